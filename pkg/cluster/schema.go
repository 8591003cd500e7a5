package cluster

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/pkg/errors"

	"github.com/wangxicoding/edl/pkg/schemas"
)

// object is one decoded JSON object of a snapshot. It is checked against its entity's schema
// before any field is read, so a missing or mistyped field is reported as a
// MalformedSnapshotError naming its full path.
type object struct {
	entity string
	path   string
	data   []byte
	fields map[string]json.RawMessage
}

var null = []byte("null")

// parseObject decodes data as a JSON object. A JSON string holding an object is unwrapped
// first, since older writers nested trainers and pods as encoded strings.
func parseObject(entity, path string, data []byte) (object, error) {
	o := object{entity: entity, path: path}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return o, MalformedSnapshotError{Entity: entity, Field: o.field(""), Err: err}
		}
		data = bytes.TrimSpace([]byte(inner))
	}
	if len(data) == 0 || bytes.Equal(data, null) {
		return o, malformed(entity, o.field(""), "expected an object, got %q", data)
	}
	if err := json.Unmarshal(data, &o.fields); err != nil {
		return o, MalformedSnapshotError{Entity: entity, Field: o.field(""), Err: err}
	}
	o.data = data
	return o, nil
}

// conform checks the object against the schema at url.
func (o object) conform(url string) error {
	return schemaError(o.entity, o.path, schemas.Validate(url, o.data))
}

// schemaError turns a schema violation into a MalformedSnapshotError naming the field below path.
func schemaError(entity, path string, err error) error {
	if err == nil {
		return nil
	}
	var v schemas.Violation
	if errors.As(err, &v) {
		return MalformedSnapshotError{Entity: entity, Field: joinPath(path, v.Field()),
			Err: errors.New(v.Message)}
	}
	return MalformedSnapshotError{Entity: entity, Field: path, Err: err}
}

func (o object) field(name string) string {
	if name == "" {
		return o.path
	}
	return joinPath(o.path, name)
}

// decode reads a field into dst, leaving dst untouched when the field is missing or null. Which
// fields must be present is up to the schema.
func (o object) decode(name string, dst interface{}) error {
	raw, ok := o.fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), null) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return MalformedSnapshotError{Entity: o.entity, Field: o.field(name), Err: err}
	}
	return nil
}

// indexed decodes a mapping keyed by the decimal strings "0".."N-1" and returns its values in
// numeric key order.
func indexed(entity, path string, data json.RawMessage) ([]json.RawMessage, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, MalformedSnapshotError{Entity: entity, Field: path, Err: err}
	}
	return sortIndexed(entity, path, entries)
}

// sortIndexed orders entries by numeric key. A key that is not the decimal form of a
// non-negative integer is malformed; a gap in the sequence is a RankMismatchError naming the
// first missing index.
func sortIndexed(entity, path string, entries map[string]json.RawMessage) ([]json.RawMessage, error) {
	byIndex := treemap.NewWithIntComparator()
	for key, value := range entries {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || strconv.Itoa(i) != key {
			return nil, malformed(entity, joinPath(path, key), "key is not a rank index")
		}
		byIndex.Put(i, value)
	}

	values := make([]json.RawMessage, 0, byIndex.Size())
	it := byIndex.Iterator()
	for expected := 0; it.Next(); expected++ {
		if actual := it.Key().(int); actual != expected {
			return nil, RankMismatchError{Entity: entity, Expected: expected, Actual: actual}
		}
		values = append(values, it.Value().(json.RawMessage))
	}
	return values, nil
}

func joinPath(path, name string) string {
	switch {
	case path == "":
		return name
	case name == "":
		return path
	}
	return path + "." + name
}
