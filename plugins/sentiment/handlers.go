package sentiment

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/qlik-sse-go/function"
	"github.com/hugr-lab/qlik-sse-go/rowstream"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

// Function ids of the bundled definition file.
const (
	FunctionSentiment        int32 = 0
	FunctionSentimentScript  int32 = 1
	FunctionCleanTweet       int32 = 2
	FunctionCleanTweetScript int32 = 3
)

// Table description names of the tensor functions.
const (
	SentimentTable  = "Sentiment"
	CleanTweetTable = "CleanTweet"
)

// Handlers binds the bundled functions. A nil allocator uses the Go heap.
func Handlers(analyzer Analyzer, alloc memory.Allocator) *function.Table {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	scoreAll := func(text string) Result {
		return analyze(analyzer, text, Scores.String)
	}
	cleanse := func(text string) Result {
		return Result{Value: Cleanse(text)}
	}

	return function.NewTable().
		MustRegister(FunctionSentiment, sentimentRows(analyzer)).
		MustRegister(FunctionSentimentScript, &keyedTable{
			name:      SentimentTable,
			column:    "sentiment",
			alloc:     alloc,
			transform: scoreAll,
		}).
		MustRegister(FunctionCleanTweet, textRows(cleanse)).
		MustRegister(FunctionCleanTweetScript, &keyedTable{
			name:      CleanTweetTable,
			column:    "tweet",
			alloc:     alloc,
			transform: cleanse,
		})
}

// sentimentRows scores (text, score) rows one by one.
func sentimentRows(a Analyzer) function.HandlerFunc {
	return func(ctx context.Context, in *rowstream.Reader, out *rowstream.Writer) error {
		for in.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			duals := in.Row().Duals
			sel := Score(duals[1].StrData)
			res := analyze(a, duals[0].StrData, func(s Scores) string {
				return s.Select(sel)
			})
			if err := out.WriteValues(wire.StringDual(res.String())); err != nil {
				return err
			}
		}
		return in.Err()
	}
}

// textRows maps the first string cell of every row.
func textRows(transform func(string) Result) function.HandlerFunc {
	return func(ctx context.Context, in *rowstream.Reader, out *rowstream.Writer) error {
		for in.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := transform(in.Row().Duals[0].StrData)
			if err := out.WriteValues(wire.StringDual(res.String())); err != nil {
				return err
			}
		}
		return in.Err()
	}
}

// keyedTable reads all (id, text) rows into a columnar record and answers
// with a two-column table of the id and the transformed text.
type keyedTable struct {
	name      string
	column    string
	alloc     memory.Allocator
	transform func(string) Result
}

func (t *keyedTable) schema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Float64},
		{Name: t.column, Type: arrow.BinaryTypes.String},
	}, nil)
}

// Execute implements function.Handler.
func (t *keyedTable) Execute(ctx context.Context, in *rowstream.Reader, out *rowstream.Writer) error {
	schema := t.schema()
	b := array.NewRecordBuilder(t.alloc, schema)
	defer b.Release()

	ids := b.Field(0).(*array.Float64Builder)
	texts := b.Field(1).(*array.StringBuilder)
	for in.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		duals := in.Row().Duals
		ids.Append(duals[0].NumData)
		texts.Append(t.transform(duals[1].StrData).String())
	}
	if err := in.Err(); err != nil {
		return err
	}

	rec := b.NewRecord()
	defer rec.Release()

	td, err := rowstream.TableFromSchema(t.name, schema)
	if err != nil {
		return err
	}
	if err := out.DescribeTable(td); err != nil {
		return err
	}
	return out.WriteRecord(rec)
}
