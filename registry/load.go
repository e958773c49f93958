package registry

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/hugr-lab/qlik-sse-go/internal/msgpack"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

// Supported definition file formats.
const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatTOML    = "toml"
	FormatMsgpack = "msgpack"
)

// ErrMalformedSource indicates the definition source could not be decoded.
var ErrMalformedSource = errors.New("malformed function definition source")

// definitionFile mirrors the definition document:
//
//	{"Functions": [{"Name": "...", "Id": 0, "Type": 0, "ReturnType": 0, "Params": {"name": 0}}]}
//
// Enumerations accept wire values or names, so fields stay untyped until validated.
type definitionFile struct {
	Functions *[]definitionEntry `json:"Functions" yaml:"Functions" toml:"Functions" msgpack:"Functions"`
}

type definitionEntry struct {
	Name       string         `json:"Name" yaml:"Name" toml:"Name" msgpack:"Name"`
	ID         any            `json:"Id" yaml:"Id" toml:"Id" msgpack:"Id"`
	Type       any            `json:"Type" yaml:"Type" toml:"Type" msgpack:"Type"`
	ReturnType any            `json:"ReturnType" yaml:"ReturnType" toml:"ReturnType" msgpack:"ReturnType"`
	Params     map[string]any `json:"Params" yaml:"Params" toml:"Params" msgpack:"Params"`
}

// Load reads a definition file and builds a registry.
// The format is chosen by file extension; unknown extensions are read as JSON.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read function definitions: %w", err)
	}

	r, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// FormatFromPath maps a file extension to a definition format.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".msgpack", ".mpk":
		return FormatMsgpack
	default:
		return FormatJSON
	}
}

// Parse decodes a definition document in the given format and builds a registry.
func Parse(data []byte, format string) (*Registry, error) {
	var doc definitionFile

	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	case FormatMsgpack:
		err = msgpack.Decode(data, &doc)
	default:
		return nil, fmt.Errorf("unsupported definition format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}
	if doc.Functions == nil {
		return nil, fmt.Errorf("%w: missing Functions list", ErrMalformedSource)
	}

	descs := make([]FunctionDescriptor, 0, len(*doc.Functions))
	for i, entry := range *doc.Functions {
		d, err := entry.descriptor()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		descs = append(descs, d)
	}

	return New(descs...)
}

func (e definitionEntry) descriptor() (FunctionDescriptor, error) {
	if e.ID == nil {
		return FunctionDescriptor{}, fmt.Errorf("%w: function %s has no Id", ErrInvalidDefinition, e.Name)
	}
	rawID, ok := toInt64(e.ID)
	if !ok {
		return FunctionDescriptor{}, fmt.Errorf("%w: function %s has non-integer Id %v", ErrInvalidDefinition, e.Name, e.ID)
	}
	id, err := checkID(e.Name, rawID)
	if err != nil {
		return FunctionDescriptor{}, err
	}

	kind, err := functionType(e.Type)
	if err != nil {
		return FunctionDescriptor{}, fmt.Errorf("%w: function %s: %v", ErrInvalidDefinition, e.Name, err)
	}
	ret, err := dataType(e.ReturnType)
	if err != nil {
		return FunctionDescriptor{}, fmt.Errorf("%w: function %s return type: %v", ErrInvalidDefinition, e.Name, err)
	}

	params := make([]Param, 0, len(e.Params))
	for name, raw := range e.Params {
		t, err := dataType(raw)
		if err != nil {
			return FunctionDescriptor{}, fmt.Errorf("%w: function %s parameter %s: %v", ErrInvalidDefinition, e.Name, name, err)
		}
		params = append(params, Param{Name: name, Type: t})
	}

	return FunctionDescriptor{
		ID:         id,
		Name:       e.Name,
		Kind:       kind,
		ReturnType: ret,
		Params:     params,
	}, nil
}

// functionType accepts a wire enum value or a name. A missing value is Scalar.
func functionType(v any) (wire.FunctionType, error) {
	if v == nil {
		return wire.FunctionTypeScalar, nil
	}
	if s, ok := v.(string); ok {
		return wire.ParseFunctionType(s)
	}
	n, ok := toInt64(v)
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("invalid function type %v", v)
	}
	return wire.FunctionType(n), nil
}

// dataType accepts a wire enum value or a name. A missing value is String.
func dataType(v any) (wire.DataType, error) {
	if v == nil {
		return wire.DataTypeString, nil
	}
	if s, ok := v.(string); ok {
		return wire.ParseDataType(s)
	}
	n, ok := toInt64(v)
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("invalid data type %v", v)
	}
	return wire.DataType(n), nil
}

// toInt64 normalizes the integer representations produced by the decoders.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32:
		return toInt64(float64(n))
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
