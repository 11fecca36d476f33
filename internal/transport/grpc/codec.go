package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Codec encodes gRPC messages as JSON.
type Codec struct{}

var _ encoding.Codec = Codec{}

func (Codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name is the content subtype, sent as "application/grpc+json".
func (Codec) Name() string { return "json" }
