package connector

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/qlik-sse-go/function"
	"github.com/hugr-lab/qlik-sse-go/registry"
	"github.com/hugr-lab/qlik-sse-go/rowstream"
	"github.com/hugr-lab/qlik-sse-go/script"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

// ErrInvalidConfig indicates the connector configuration failed validation.
var ErrInvalidConfig = errors.New("invalid connector config")

// toStatus maps a call error to the status returned to the client.
// Status errors pass through unchanged.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var unsupported *script.UnsupportedTypeError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, wire.ErrMissingHeader), errors.Is(err, wire.ErrMalformedHeader),
		errors.Is(err, rowstream.ErrRowArity):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, registry.ErrFunctionNotFound), errors.Is(err, function.ErrNoHandler):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &unsupported):
		return status.Error(codes.Unimplemented, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// isTransportError reports errors caused by the peer or the connection rather
// than by the plugin.
func isTransportError(err error) bool {
	switch status.Code(err) {
	case codes.Canceled, codes.DeadlineExceeded, codes.Unavailable:
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
