// Package grpcjson implements a grpc codec that marshals request and
// response messages as JSON instead of protocol buffers, so the
// InventoryService contract (spec §5/§6) can be served over
// google.golang.org/grpc without a generated protoc-gen-go stub: every
// message in this protocol is a plain Go struct, never a proto.Message.
// The codec is registered under content-subtype "json"; client calls opt
// into it with grpc.CallContentSubtype(grpcjson.Name), and the server
// picks it up automatically once this package is imported (its init
// registers the codec process-wide).
package grpcjson

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name is the content-subtype this codec negotiates. The resulting wire
// content-type is "application/grpc+json".
const Name = "json"

func init() {
	encoding.RegisterCodec(codec{})
}

type codec struct{}

func (codec) Name() string { return Name }

func (codec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("grpcjson: marshal: %w", err)
	}
	return b, nil
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("grpcjson: unmarshal: %w", err)
	}
	return nil
}
