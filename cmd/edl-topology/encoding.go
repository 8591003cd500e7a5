package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/wangxicoding/edl/pkg/cluster"
	"github.com/wangxicoding/edl/pkg/tproto"
)

const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatProto = "proto"
)

var formats = []string{formatJSON, formatYAML, formatProto}

// encode renders v, a *cluster.Pod or *cluster.Cluster, in the given format.
func encode(v json.Marshaler, format string) ([]byte, error) {
	switch format {
	case formatJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case formatYAML:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return yaml.JSONToYAML(b)
	case formatProto:
		var m interface{}
		var err error
		switch v := v.(type) {
		case *cluster.Pod:
			m, err = tproto.FromPod(v)
		case *cluster.Cluster:
			m, err = tproto.FromCluster(v)
		default:
			return nil, errors.Errorf("cannot encode %T as proto", v)
		}
		if err != nil {
			return nil, err
		}
		return tproto.Marshal(m)
	default:
		return nil, errors.Errorf("unknown output format %q, expected one of %v", format, formats)
	}
}

// readCluster decodes a cluster snapshot file. Files ending in .pb hold a binary message, .yaml
// and .yml files a YAML snapshot, and anything else a JSON snapshot.
func readCluster(path string) (*cluster.Cluster, error) {
	bs, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "error reading snapshot")
	}

	var c *cluster.Cluster
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pb":
		c, err = tproto.DecodeCluster(bs)
	case ".yaml", ".yml":
		if bs, err = yaml.YAMLToJSON(bs); err != nil {
			return nil, errors.Wrapf(err, "error converting %s to json", path)
		}
		c, err = cluster.DecodeCluster(bs)
	default:
		c, err = cluster.DecodeCluster(bs)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding %s", path)
	}
	return c, nil
}
