package script

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/duckdb/duckdb-go/v2"

	"github.com/hugr-lab/qlik-sse-go/rowstream"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

// ArgsTable is the table holding a script call's parameter rows.
const ArgsTable = "args"

// ResultTableName names the table description of multi-column script results.
const ResultTableName = "ScriptResult"

// DuckDB evaluates scripts as SQL against the call's parameter rows.
//
// Every call runs in its own in-memory database. Parameter rows are loaded
// into the table "args" with one column per script parameter:
//
//	STRING  -> VARCHAR <name>
//	NUMERIC -> DOUBLE  <name>
//	DUAL    -> VARCHAR <name>, DOUBLE <name>_num
//
// Unnamed parameters are called arg0, arg1, ... by position. The script text
// is then run as a query and its result rows are streamed back. A
// single-column result is typed by the header's return type; a multi-column
// result is announced with a table description first.
type DuckDB struct {
	initSQL []string
	logger  *slog.Logger
}

// DuckDBOption configures a DuckDB engine.
type DuckDBOption func(*DuckDB)

// WithInitSQL runs statements on every call's connection before the script,
// for example "SET threads = 1".
func WithInitSQL(stmts ...string) DuckDBOption {
	return func(e *DuckDB) {
		e.initSQL = append(e.initSQL, stmts...)
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) DuckDBOption {
	return func(e *DuckDB) {
		e.logger = logger
	}
}

// NewDuckDB creates a DuckDB script engine.
func NewDuckDB(opts ...DuckDBOption) *DuckDB {
	e := &DuckDB{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ Engine = (*DuckDB)(nil)

// column is one column of the args table.
type column struct {
	name  string
	sql   string
	param int
	num   bool
}

// Evaluate implements Engine.
func (e *DuckDB) Evaluate(ctx context.Context, header *wire.ScriptRequestHeader, in *rowstream.Reader, out *rowstream.Writer) error {
	connector, err := duckdb.NewConnector("", e.initConn)
	if err != nil {
		return fmt.Errorf("failed to open duckdb: %w", err)
	}
	db := sql.OpenDB(connector)
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to duckdb: %w", err)
	}
	defer conn.Close()

	cols := argsColumns(header.Params)
	if _, err := conn.ExecContext(ctx, createArgsSQL(cols)); err != nil {
		return fmt.Errorf("failed to create %s table: %w", ArgsTable, err)
	}

	n, err := loadArgs(conn, cols, in)
	if err != nil {
		return err
	}
	e.logger.Debug("Script arguments loaded", "rows", n, "columns", len(cols))

	rows, err := conn.QueryContext(ctx, header.Script)
	if err != nil {
		return fmt.Errorf("script failed: %w", err)
	}
	defer rows.Close()

	return writeResult(ctx, header.ReturnType, rows, out)
}

func (e *DuckDB) initConn(execer driver.ExecerContext) error {
	for _, stmt := range e.initSQL {
		if _, err := execer.ExecContext(context.Background(), stmt, nil); err != nil {
			return fmt.Errorf("init statement %q failed: %w", stmt, err)
		}
	}
	return nil
}

// argsColumns lays out the args table for the declared parameters.
func argsColumns(params []wire.Parameter) []column {
	used := make(map[string]int)
	unique := func(name string) string {
		key := strings.ToLower(name)
		used[key]++
		if used[key] == 1 {
			return name
		}
		return fmt.Sprintf("%s_%d", name, used[key])
	}

	var cols []column
	for i, p := range params {
		name := p.Name
		if name == "" {
			name = "arg" + strconv.Itoa(i)
		}
		name = unique(name)
		switch p.DataType {
		case wire.DataTypeNumeric:
			cols = append(cols, column{name: name, sql: "DOUBLE", param: i, num: true})
		case wire.DataTypeDual:
			cols = append(cols,
				column{name: name, sql: "VARCHAR", param: i},
				column{name: unique(name + "_num"), sql: "DOUBLE", param: i, num: true},
			)
		default:
			cols = append(cols, column{name: name, sql: "VARCHAR", param: i})
		}
	}
	return cols
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func createArgsSQL(cols []column) string {
	if len(cols) == 0 {
		// Scripts without parameters still see one row per inbound row.
		return "CREATE TABLE " + ArgsTable + " (row_index BIGINT)"
	}
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quoteIdent(c.name) + " " + c.sql
	}
	return "CREATE TABLE " + ArgsTable + " (" + strings.Join(defs, ", ") + ")"
}

// loadArgs streams the inbound rows into the args table through an appender.
func loadArgs(conn *sql.Conn, cols []column, in *rowstream.Reader) (int64, error) {
	var n int64
	err := conn.Raw(func(dc any) error {
		driverConn, ok := dc.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", dc)
		}
		app, err := duckdb.NewAppenderFromConn(driverConn, "", ArgsTable)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}

		values := make([]driver.Value, max(len(cols), 1))
		for in.Next() {
			row := in.Row()
			if len(cols) == 0 {
				values[0] = n
			}
			for i, c := range cols {
				values[i] = argValue(c, row.Duals[c.param])
			}
			if err := app.AppendRow(values...); err != nil {
				_ = app.Close()
				return fmt.Errorf("failed to load row %d: %w", n, err)
			}
			n++
		}
		if err := in.Err(); err != nil {
			_ = app.Close()
			return err
		}
		return app.Close()
	})
	return n, err
}

// argValue converts a cell to the value of its args column. NaN numerics are NULL.
func argValue(c column, d wire.Dual) driver.Value {
	if !c.num {
		return d.StrData
	}
	if math.IsNaN(d.NumData) {
		return nil
	}
	return d.NumData
}

// writeResult streams query results to out.
func writeResult(ctx context.Context, returnType wire.DataType, rows *sql.Rows, out *rowstream.Writer) error {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return fmt.Errorf("failed to read result columns: %w", err)
	}

	types := make([]wire.DataType, len(colTypes))
	if len(colTypes) == 1 {
		types[0] = returnType
	} else {
		td := &wire.TableDescription{Name: ResultTableName, Fields: make([]wire.FieldDescription, len(colTypes))}
		for i, ct := range colTypes {
			types[i] = dataTypeOf(ct.DatabaseTypeName())
			td.Fields[i] = wire.FieldDescription{Name: ct.Name(), DataType: types[i]}
		}
		if err := out.DescribeTable(td); err != nil {
			return err
		}
	}

	values := make([]any, len(colTypes))
	dest := make([]any, len(colTypes))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to read result row: %w", err)
		}
		duals := make([]wire.Dual, len(values))
		for i, v := range values {
			duals[i] = toDual(v, types[i])
		}
		if err := out.Write(wire.Row{Duals: duals}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("script failed: %w", err)
	}
	return nil
}

// dataTypeOf maps a DuckDB column type name to a cell type.
func dataTypeOf(dbType string) wire.DataType {
	t := strings.ToUpper(dbType)
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	switch t {
	case "DOUBLE", "FLOAT", "REAL", "DECIMAL", "NUMERIC",
		"TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT", "UHUGEINT", "BOOLEAN":
		return wire.DataTypeNumeric
	default:
		return wire.DataTypeString
	}
}

// toDual renders a scanned value in the slots its type calls for.
func toDual(v any, t wire.DataType) wire.Dual {
	switch t {
	case wire.DataTypeNumeric:
		return wire.NumericDual(toFloat(v))
	case wire.DataTypeDual:
		return wire.Dual{NumData: toFloat(v), StrData: toString(v)}
	default:
		return wire.StringDual(toString(v))
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case nil:
		return math.NaN()
	case float64:
		return n
	case float32:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case duckdb.Decimal:
		return n.Float64()
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case time.Time:
		return s.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}
