package script

import (
	"errors"
	"testing"

	"github.com/hugr-lab/qlik-sse-go/wire"
)

// TestClassify tests which script types pass the gate.
func TestClassify(t *testing.T) {
	tests := []struct {
		typ     wire.FunctionType
		allowed bool
		message string
	}{
		{wire.FunctionTypeAggregation, true, ""},
		{wire.FunctionTypeTensor, true, ""},
		{wire.FunctionTypeScalar, false, "Function type Scalar is not supported in this plugin."},
		{wire.FunctionType(7), false, "Function type FunctionType(7) is not supported in this plugin."},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			err := Classify(tt.typ)
			if tt.allowed {
				if err != nil {
					t.Errorf("Expected %s to be allowed, got %v", tt.typ, err)
				}
				return
			}

			var unsupported *UnsupportedTypeError
			if !errors.As(err, &unsupported) {
				t.Fatalf("Expected UnsupportedTypeError, got %v", err)
			}
			if unsupported.Type != tt.typ {
				t.Errorf("Expected type %s, got %s", tt.typ, unsupported.Type)
			}
			if err.Error() != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, err.Error())
			}
		})
	}
}
