// Package function binds registered function ids to their implementations.
package function

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hugr-lab/qlik-sse-go/rowstream"
)

var (
	// ErrNoHandler is returned by Lookup for ids without a bound handler.
	ErrNoHandler = errors.New("no handler bound to function")

	// ErrDuplicateHandler is returned when an id is bound twice.
	ErrDuplicateHandler = errors.New("handler already bound to function")
)

// Handler implements one registered function.
// Execute consumes the call's inbound rows and writes the result rows.
// Scalar and aggregation handlers may stream row by row; tensor handlers may
// read the full input before writing. The writer is closed by the caller.
type Handler interface {
	Execute(ctx context.Context, in *rowstream.Reader, out *rowstream.Writer) error
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, in *rowstream.Reader, out *rowstream.Writer) error

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, in *rowstream.Reader, out *rowstream.Writer) error {
	return f(ctx, in, out)
}

// Table is a fixed mapping from function id to handler.
// It is filled at startup and read-only while serving.
type Table struct {
	handlers map[int32]Handler
}

// NewTable creates an empty handler table.
func NewTable() *Table {
	return &Table{handlers: make(map[int32]Handler)}
}

// Register binds h to id.
func (t *Table) Register(id int32, h Handler) error {
	if id < 0 {
		return fmt.Errorf("invalid function id %d", id)
	}
	if h == nil {
		return fmt.Errorf("nil handler for function %d", id)
	}
	if _, ok := t.handlers[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateHandler, id)
	}
	t.handlers[id] = h
	return nil
}

// MustRegister is like Register but panics on error.
func (t *Table) MustRegister(id int32, h Handler) *Table {
	if err := t.Register(id, h); err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the handler bound to id.
func (t *Table) Lookup(id int32) (Handler, error) {
	h, ok := t.handlers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoHandler, id)
	}
	return h, nil
}

// IDs returns the bound ids in ascending order.
func (t *Table) IDs() []int32 {
	ids := make([]int32, 0, len(t.handlers))
	for id := range t.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
