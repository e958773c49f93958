// Package wire implements the Qlik Server-Side Extension protocol messages
// (protobuf package qlik.sse) and the gRPC plumbing needed to serve them.
//
// Messages are encoded with google.golang.org/protobuf/encoding/protowire and
// follow proto3 semantics: default values are omitted on the wire and unknown
// fields are skipped on decode.
package wire

import (
	"fmt"
	"strings"
)

// Metadata keys carrying binary-encoded protocol headers.
// gRPC transparently base64-encodes values of keys ending in "-bin".
const (
	FunctionRequestHeaderKey = "qlik-functionrequestheader-bin"
	ScriptRequestHeaderKey   = "qlik-scriptrequestheader-bin"
	CommonRequestHeaderKey   = "qlik-commonrequestheader-bin"
	TableDescriptionKey      = "qlik-tabledescription-bin"
)

// DataType is the declared type of a parameter, return value or table field.
type DataType int32

const (
	DataTypeString  DataType = 0
	DataTypeNumeric DataType = 1
	DataTypeDual    DataType = 2
)

func (t DataType) String() string {
	switch t {
	case DataTypeString:
		return "STRING"
	case DataTypeNumeric:
		return "NUMERIC"
	case DataTypeDual:
		return "DUAL"
	default:
		return fmt.Sprintf("DataType(%d)", int32(t))
	}
}

// Valid reports whether t is one of the protocol-defined data types.
func (t DataType) Valid() bool {
	return t >= DataTypeString && t <= DataTypeDual
}

// ParseDataType parses a data type name (case-insensitive).
// The short aliases "str" and "num" are accepted.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str":
		return DataTypeString, nil
	case "numeric", "num", "number":
		return DataTypeNumeric, nil
	case "dual":
		return DataTypeDual, nil
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

// FunctionType classifies a callable by its calling and streaming semantics.
type FunctionType int32

const (
	FunctionTypeScalar      FunctionType = 0
	FunctionTypeAggregation FunctionType = 1
	FunctionTypeTensor      FunctionType = 2
)

func (t FunctionType) String() string {
	switch t {
	case FunctionTypeScalar:
		return "Scalar"
	case FunctionTypeAggregation:
		return "Aggregation"
	case FunctionTypeTensor:
		return "Tensor"
	default:
		return fmt.Sprintf("FunctionType(%d)", int32(t))
	}
}

// Valid reports whether t is one of the protocol-defined function types.
func (t FunctionType) Valid() bool {
	return t >= FunctionTypeScalar && t <= FunctionTypeTensor
}

// ParseFunctionType parses a function type name (case-insensitive).
func ParseFunctionType(s string) (FunctionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scalar":
		return FunctionTypeScalar, nil
	case "aggregation", "aggr":
		return FunctionTypeAggregation, nil
	case "tensor":
		return FunctionTypeTensor, nil
	}
	return 0, fmt.Errorf("unknown function type %q", s)
}

// Message is implemented by every protocol message.
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal(b []byte) error
}

// Empty is the request of GetCapabilities.
type Empty struct{}

// Parameter describes one named, typed argument.
type Parameter struct {
	DataType DataType
	Name     string
}

// FieldDescription describes one column of a TableDescription.
type FieldDescription struct {
	DataType DataType
	Name     string
	Tags     []string
}

// FunctionDefinition is the advertised form of a registered function.
type FunctionDefinition struct {
	Name         string
	FunctionType FunctionType
	ReturnType   DataType
	Params       []Parameter
	FunctionID   int32
}

// Capabilities is the response of GetCapabilities.
type Capabilities struct {
	AllowScript      bool
	Functions        []FunctionDefinition
	PluginIdentifier string
	PluginVersion    string
}

// Dual is a cell value carrying both a numeric and a string slot.
// The declared schema decides which slot is meaningful.
type Dual struct {
	NumData float64
	StrData string
}

// Row is an ordered sequence of cells.
type Row struct {
	Duals []Dual
}

// BundledRows is one transfer chunk of rows. Chunk boundaries carry no meaning.
type BundledRows struct {
	Rows []Row
}

// ScriptRequestHeader is sent with every EvaluateScript call.
type ScriptRequestHeader struct {
	Script       string
	FunctionType FunctionType
	ReturnType   DataType
	Params       []Parameter
}

// FunctionRequestHeader is sent with every ExecuteFunction call.
type FunctionRequestHeader struct {
	FunctionID int32
	Version    string
}

// CommonRequestHeader identifies the app and user issuing a call.
type CommonRequestHeader struct {
	AppID       string
	UserID      string
	Cardinality int64
}

// TableDescription declares the shape of a response whose columns are not
// implied by the function's declared return type.
type TableDescription struct {
	Fields       []FieldDescription
	Name         string
	NumberOfRows int64
}

// StringDual returns a cell carrying only a string value.
func StringDual(s string) Dual {
	return Dual{StrData: s}
}

// NumericDual returns a cell carrying only a numeric value.
func NumericDual(v float64) Dual {
	return Dual{NumData: v}
}

// NewRow builds a row from cells.
func NewRow(duals ...Dual) Row {
	return Row{Duals: duals}
}
