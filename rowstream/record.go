package rowstream

import (
	"errors"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/qlik-sse-go/wire"
)

// ErrUnsupportedColumn is returned for arrow columns that have no cell mapping.
var ErrUnsupportedColumn = errors.New("unsupported column type")

// WriteRecord writes every row of a columnar record. Columns are zipped
// positionally: numeric columns fill NumData, string columns fill StrData.
// Null numerics become NaN and null strings become empty strings.
func (w *Writer) WriteRecord(rec arrow.Record) error {
	cols := make([]func(int) wire.Dual, rec.NumCols())
	for i := range cols {
		cell, err := cellReader(rec.Column(i))
		if err != nil {
			return fmt.Errorf("column %s: %w", rec.ColumnName(i), err)
		}
		cols[i] = cell
	}

	for r := 0; r < int(rec.NumRows()); r++ {
		duals := make([]wire.Dual, len(cols))
		for c, cell := range cols {
			duals[c] = cell(r)
		}
		if err := w.Write(wire.Row{Duals: duals}); err != nil {
			return err
		}
	}
	return nil
}

func cellReader(col arrow.Array) (func(int) wire.Dual, error) {
	switch a := col.(type) {
	case *array.Float64:
		return numericCell(a, a.Value), nil
	case *array.Float32:
		return numericCell(a, func(i int) float64 { return float64(a.Value(i)) }), nil
	case *array.Int64:
		return numericCell(a, func(i int) float64 { return float64(a.Value(i)) }), nil
	case *array.Int32:
		return numericCell(a, func(i int) float64 { return float64(a.Value(i)) }), nil
	case *array.Boolean:
		return numericCell(a, func(i int) float64 {
			if a.Value(i) {
				return 1
			}
			return 0
		}), nil
	case *array.String:
		return stringCell(a, a.Value), nil
	case *array.LargeString:
		return stringCell(a, a.Value), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedColumn, col.DataType())
	}
}

func numericCell(a arrow.Array, value func(int) float64) func(int) wire.Dual {
	return func(i int) wire.Dual {
		if a.IsNull(i) {
			return wire.NumericDual(math.NaN())
		}
		return wire.NumericDual(value(i))
	}
}

func stringCell(a arrow.Array, value func(int) string) func(int) wire.Dual {
	return func(i int) wire.Dual {
		if a.IsNull(i) {
			return wire.StringDual("")
		}
		return wire.StringDual(value(i))
	}
}

// DataTypeOf maps an arrow type to the wire data type of its cells.
func DataTypeOf(dt arrow.DataType) (wire.DataType, error) {
	switch dt.ID() {
	case arrow.FLOAT64, arrow.FLOAT32, arrow.INT64, arrow.INT32, arrow.BOOL:
		return wire.DataTypeNumeric, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return wire.DataTypeString, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedColumn, dt)
	}
}

// TableFromSchema derives a table description from an arrow schema.
func TableFromSchema(name string, schema *arrow.Schema) (*wire.TableDescription, error) {
	td := &wire.TableDescription{
		Name:   name,
		Fields: make([]wire.FieldDescription, schema.NumFields()),
	}
	for i, f := range schema.Fields() {
		dt, err := DataTypeOf(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		td.Fields[i] = wire.FieldDescription{Name: f.Name, DataType: dt}
	}
	return td, nil
}
