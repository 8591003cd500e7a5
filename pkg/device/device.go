package device

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ID identifies a single accelerator on a node, e.g. the CUDA device index.
type ID int

func (i ID) String() string {
	return strconv.Itoa(int(i))
}

// UnmarshalJSON accepts both a JSON number and a numeric string, since accelerator lists are
// often copied verbatim from CUDA_VISIBLE_DEVICES.
func (i *ID) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*i = ID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Errorf("accelerator id must be a number or numeric string, got %s", data)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.Wrapf(err, "invalid accelerator id %q", s)
	}
	*i = ID(n)
	return nil
}

// Type is a string holding the type of the Device.
type Type string

const (
	// CPU represents a CPU device.
	CPU Type = "cpu"
	// CUDA represents a CUDA device.
	CUDA Type = "cuda"
	// ROCM represents an AMD GPU device.
	ROCM Type = "rocm"
)

// Device represents a single computational device on a node.
type Device struct {
	ID    ID     `json:"id"`
	Brand string `json:"brand"`
	UUID  string `json:"uuid"`
	Type  Type   `json:"type"`
}

func (d *Device) String() string {
	return fmt.Sprintf("%s%d (%s)", d.Type, d.ID, d.Brand)
}

// ParseIDs parses a comma separated accelerator list such as the value of CUDA_VISIBLE_DEVICES.
// Blank entries are skipped; an empty string yields no ids.
func ParseIDs(s string) ([]ID, error) {
	var ids []ID
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid accelerator id %q", field)
		}
		if n < 0 {
			return nil, errors.Errorf("invalid accelerator id %q: must be non-negative", field)
		}
		ids = append(ids, ID(n))
	}
	return ids, nil
}

// FormatIDs is the inverse of ParseIDs.
func FormatIDs(ids []ID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ",")
}
