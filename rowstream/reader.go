// Package rowstream reshapes the chunked row streams of a call.
//
// The analytics engine sends and receives rows in BundledRows chunks whose
// boundaries carry no meaning. Reader flattens inbound chunks into a single
// ordered row sequence; Writer regroups outbound rows into chunks and emits
// the optional table description before the first row.
package rowstream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hugr-lab/qlik-sse-go/wire"
)

// ErrRowArity indicates an inbound row has fewer cells than the function declares.
var ErrRowArity = errors.New("row has fewer values than declared parameters")

// Source is the receiving half of a bidirectional row stream.
// grpc.BidiStreamingServer[wire.BundledRows, wire.BundledRows] satisfies it.
type Source interface {
	Recv() (*wire.BundledRows, error)
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithArity makes the reader reject rows with fewer than n cells.
func WithArity(n int) ReaderOption {
	return func(r *Reader) {
		r.arity = n
	}
}

// WithInputStats records inbound chunk and row counts into s.
func WithInputStats(s *Stats) ReaderOption {
	return func(r *Reader) {
		r.stats = s
	}
}

// WithContext stops the reader once ctx is done.
func WithContext(ctx context.Context) ReaderOption {
	return func(r *Reader) {
		r.ctx = ctx
	}
}

// Reader yields the rows of all inbound chunks in arrival order.
// Only the current chunk is held in memory.
//
//	for r.Next() {
//	    row := r.Row()
//	}
//	if err := r.Err(); err != nil {
//	    return err
//	}
type Reader struct {
	src   Source
	ctx   context.Context
	arity int
	stats *Stats

	chunk []wire.Row
	pos   int
	row   wire.Row
	index int64
	err   error
	done  bool
}

// NewReader creates a reader over src.
func NewReader(src Source, opts ...ReaderOption) *Reader {
	r := &Reader{src: src, ctx: context.Background()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next advances to the next row. It returns false at the end of the stream
// or on error; Err distinguishes the two.
func (r *Reader) Next() bool {
	if r.done {
		return false
	}

	for r.pos >= len(r.chunk) {
		if err := r.ctx.Err(); err != nil {
			return r.fail(err)
		}
		bundle, err := r.src.Recv()
		if errors.Is(err, io.EOF) {
			r.done = true
			r.chunk = nil
			return false
		}
		if err != nil {
			return r.fail(err)
		}
		if r.stats != nil {
			r.stats.RecordInput(len(bundle.Rows))
		}
		r.chunk = bundle.Rows
		r.pos = 0
	}

	row := r.chunk[r.pos]
	r.pos++
	if len(row.Duals) < r.arity {
		return r.fail(fmt.Errorf("%w: row %d has %d values, expected %d",
			ErrRowArity, r.index, len(row.Duals), r.arity))
	}
	r.row = row
	r.index++
	return true
}

func (r *Reader) fail(err error) bool {
	r.err = err
	r.done = true
	r.chunk = nil
	return false
}

// Row returns the current row. It is valid until the next call to Next.
func (r *Reader) Row() wire.Row {
	return r.row
}

// Count returns the number of rows yielded so far.
func (r *Reader) Count() int64 {
	return r.index
}

// Err returns the first error that stopped the reader, or nil at clean end of stream.
func (r *Reader) Err() error {
	return r.err
}

// ReadAll drains the reader. Used by handlers that need the full input
// before producing output.
func (r *Reader) ReadAll() ([]wire.Row, error) {
	var rows []wire.Row
	for r.Next() {
		rows = append(rows, r.Row())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
