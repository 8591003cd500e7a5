package protoutils

import (
	"bytes"
	"encoding/json"

	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
)

// ToStruct converts a Go value to a protobuf struct by way of its JSON encoding.
func ToStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding value as json")
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, errors.Wrap(err, "converting json to protobuf struct")
	}
	return s, nil
}

// FromStruct decodes a protobuf struct into v. Fields that v does not declare are an error.
func FromStruct(s *structpb.Struct, v interface{}) error {
	if s == nil {
		return errors.New("protobuf struct is nil")
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "converting protobuf struct to json")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
