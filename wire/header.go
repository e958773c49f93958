package wire

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/metadata"
)

var (
	// ErrMissingHeader indicates a required header key is absent from call metadata.
	ErrMissingHeader = errors.New("missing request header")

	// ErrMalformedHeader indicates a header value could not be decoded.
	ErrMalformedHeader = errors.New("malformed request header")
)

// HeaderCodec converts one header message to and from gRPC call metadata.
// The value is stored as raw protobuf bytes under a "-bin" key.
type HeaderCodec[T any, PT interface {
	*T
	Message
}] struct {
	Key string
}

// Header codecs for every protocol header.
var (
	FunctionHeader = HeaderCodec[FunctionRequestHeader, *FunctionRequestHeader]{Key: FunctionRequestHeaderKey}
	ScriptHeader   = HeaderCodec[ScriptRequestHeader, *ScriptRequestHeader]{Key: ScriptRequestHeaderKey}
	CommonHeader   = HeaderCodec[CommonRequestHeader, *CommonRequestHeader]{Key: CommonRequestHeaderKey}
	TableHeader    = HeaderCodec[TableDescription, *TableDescription]{Key: TableDescriptionKey}
)

// Decode reads the header from md. Only the first value of the key is used.
func (c HeaderCodec[T, PT]) Decode(md metadata.MD) (*T, error) {
	vals := md.Get(c.Key)
	if len(vals) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, c.Key)
	}

	h := new(T)
	if err := PT(h).Unmarshal([]byte(vals[0])); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedHeader, c.Key, err)
	}
	return h, nil
}

// DecodeIncoming reads the header from the incoming metadata of a server call.
func (c HeaderCodec[T, PT]) DecodeIncoming(ctx context.Context) (*T, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: %s: no metadata", ErrMissingHeader, c.Key)
	}
	return c.Decode(md)
}

// Encode renders h as call metadata.
func (c HeaderCodec[T, PT]) Encode(h *T) (metadata.MD, error) {
	data, err := PT(h).Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", c.Key, err)
	}
	return metadata.Pairs(c.Key, string(data)), nil
}

// AppendOutgoing attaches h to the outgoing metadata of a client call.
func (c HeaderCodec[T, PT]) AppendOutgoing(ctx context.Context, h *T) (context.Context, error) {
	data, err := PT(h).Marshal()
	if err != nil {
		return ctx, fmt.Errorf("failed to encode %s: %w", c.Key, err)
	}
	return metadata.AppendToOutgoingContext(ctx, c.Key, string(data)), nil
}
