package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hugr-lab/qlik-sse-go/internal/msgpack"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

// checkLoaded verifies the registry described by the testdata files.
func checkLoaded(t *testing.T, r *Registry) {
	t.Helper()

	if r.Len() != 2 {
		t.Fatalf("Expected 2 functions, got %d", r.Len())
	}

	echo, err := r.Describe(0)
	if err != nil {
		t.Fatalf("Describe(0) failed: %v", err)
	}
	if echo.Name != "Echo" || echo.Kind != wire.FunctionTypeScalar || echo.ReturnType != wire.DataTypeString {
		t.Errorf("Unexpected Echo descriptor: %+v", echo)
	}
	if echo.Arity() != 1 || echo.Params[0].Name != "text" {
		t.Errorf("Unexpected Echo params: %+v", echo.Params)
	}

	w, err := r.Describe(7)
	if err != nil {
		t.Fatalf("Describe(7) failed: %v", err)
	}
	if w.Kind != wire.FunctionTypeAggregation || w.ReturnType != wire.DataTypeNumeric {
		t.Errorf("Unexpected Weighted descriptor: %+v", w)
	}
	want := []Param{
		{Name: "label", Type: wire.DataTypeDual},
		{Name: "value", Type: wire.DataTypeNumeric},
		{Name: "weight", Type: wire.DataTypeNumeric},
	}
	if len(w.Params) != len(want) {
		t.Fatalf("Expected %d params, got %d", len(want), len(w.Params))
	}
	for i := range want {
		if w.Params[i] != want[i] {
			t.Errorf("Expected param %d to be %+v, got %+v", i, want[i], w.Params[i])
		}
	}
}

// TestLoadFormats tests that every supported definition format yields the same registry.
func TestLoadFormats(t *testing.T) {
	for _, name := range []string{"functions.json", "functions.yaml", "functions.toml"} {
		t.Run(name, func(t *testing.T) {
			r, err := Load(filepath.Join("testdata", name))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			checkLoaded(t, r)
		})
	}
}

// TestLoadMsgpack tests MessagePack definition files.
func TestLoadMsgpack(t *testing.T) {
	doc := map[string]any{
		"Functions": []any{
			map[string]any{
				"Name": "Echo", "Id": 0, "Type": "scalar", "ReturnType": 0,
				"Params": map[string]any{"text": "string"},
			},
			map[string]any{
				"Name": "Weighted", "Id": 7, "Type": 1, "ReturnType": "numeric",
				"Params": map[string]any{"weight": 1, "value": 1, "label": 2},
			},
		},
	}
	data, err := msgpack.Encode(doc)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "functions.msgpack")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	checkLoaded(t, r)
}

// TestLoadMissingFile tests that a missing source fails fast.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

// TestParseErrors tests malformed and invalid definition documents.
func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   string
		target error
	}{
		{"not json", FormatJSON, `{"Functions": [`, ErrMalformedSource},
		{"no functions list", FormatJSON, `{"Other": []}`, ErrMalformedSource},
		{"bad yaml", FormatYAML, "Functions: [\n  - Name: x\n  bad", ErrMalformedSource},
		{"missing id", FormatJSON, `{"Functions": [{"Name": "f"}]}`, ErrInvalidDefinition},
		{"fractional id", FormatJSON, `{"Functions": [{"Name": "f", "Id": 1.5}]}`, ErrInvalidDefinition},
		{"huge id", FormatJSON, `{"Functions": [{"Name": "f", "Id": 4294967296}]}`, ErrInvalidDefinition},
		{"unknown type name", FormatJSON, `{"Functions": [{"Name": "f", "Id": 1, "Type": "window"}]}`, ErrInvalidDefinition},
		{"unknown type value", FormatJSON, `{"Functions": [{"Name": "f", "Id": 1, "Type": 9}]}`, ErrInvalidDefinition},
		{"unknown param type", FormatJSON, `{"Functions": [{"Name": "f", "Id": 1, "Params": {"a": "blob"}}]}`, ErrInvalidDefinition},
		{"duplicate id", FormatJSON, `{"Functions": [{"Name": "f", "Id": 1}, {"Name": "g", "Id": 1}]}`, ErrInvalidDefinition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			if !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
		})
	}
}

// TestParseDefaults tests that omitted enumerations default to Scalar / STRING.
func TestParseDefaults(t *testing.T) {
	r, err := Parse([]byte(`{"Functions": [{"Name": "plain", "Id": 2, "Params": {"x": null}}]}`), FormatJSON)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	d, _ := r.Describe(2)
	if d.Kind != wire.FunctionTypeScalar || d.ReturnType != wire.DataTypeString {
		t.Errorf("Expected Scalar/STRING defaults, got %s/%s", d.Kind, d.ReturnType)
	}
	if d.Params[0].Type != wire.DataTypeString {
		t.Errorf("Expected STRING param default, got %s", d.Params[0].Type)
	}
}

// TestParseEmptyList tests that an empty catalog is valid.
func TestParseEmptyList(t *testing.T) {
	r, err := Parse([]byte(`{"Functions": []}`), FormatJSON)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d functions", r.Len())
	}
}

// TestFormatFromPath tests extension based format selection.
func TestFormatFromPath(t *testing.T) {
	tests := map[string]string{
		"functions.json":   FormatJSON,
		"defs.YML":         FormatYAML,
		"defs.yaml":        FormatYAML,
		"defs.toml":        FormatTOML,
		"defs.msgpack":     FormatMsgpack,
		"functions":        FormatJSON,
		"dir.v2/functions": FormatJSON,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q): expected %s, got %s", path, want, got)
		}
	}
}
