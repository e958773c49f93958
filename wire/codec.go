package wire

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype served by Codec. Qlik clients send
// "application/grpc" which gRPC maps to "proto".
const CodecName = "proto"

// Codec is a gRPC codec for the protocol messages of this package.
// It is installed per server or per connection, never globally, so other
// services on the same process keep the standard protobuf codec.
type Codec struct{}

var _ encoding.Codec = Codec{}

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("wire: cannot marshal %T: not a protocol message", v)
	}
	return m.Marshal()
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("wire: cannot unmarshal into %T: not a protocol message", v)
	}
	return m.Unmarshal(data)
}

// Name implements encoding.Codec.
func (Codec) Name() string {
	return CodecName
}

// ServerCodec returns the server option installing Codec.
func ServerCodec() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}

// CallCodec returns the call option installing Codec on a client connection.
func CallCodec() grpc.CallOption {
	return grpc.ForceCodec(Codec{})
}
