// Package script evaluates ad-hoc scripts sent by the analytics engine.
package script

import (
	"context"
	"fmt"

	"github.com/hugr-lab/qlik-sse-go/rowstream"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

// Engine evaluates one script call. The header is passed unmodified; the
// reader yields the script's parameter rows and the writer receives results.
// Engines must be safe for concurrent calls.
type Engine interface {
	Evaluate(ctx context.Context, header *wire.ScriptRequestHeader, in *rowstream.Reader, out *rowstream.Writer) error
}

// EngineFunc adapts an ordinary function to Engine.
type EngineFunc func(ctx context.Context, header *wire.ScriptRequestHeader, in *rowstream.Reader, out *rowstream.Writer) error

// Evaluate calls f.
func (f EngineFunc) Evaluate(ctx context.Context, header *wire.ScriptRequestHeader, in *rowstream.Reader, out *rowstream.Writer) error {
	return f(ctx, header, in, out)
}

// UnsupportedTypeError reports a script function type the plugin does not evaluate.
type UnsupportedTypeError struct {
	Type wire.FunctionType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("Function type %s is not supported in this plugin.", e.Type)
}

// Classify returns nil for script types that are evaluated (Aggregation and
// Tensor) and an *UnsupportedTypeError for every other type.
func Classify(t wire.FunctionType) error {
	switch t {
	case wire.FunctionTypeAggregation, wire.FunctionTypeTensor:
		return nil
	default:
		return &UnsupportedTypeError{Type: t}
	}
}
