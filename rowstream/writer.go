package rowstream

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/metadata"

	"github.com/hugr-lab/qlik-sse-go/wire"
)

// DefaultBundleSize is the maximum number of rows per outbound chunk.
const DefaultBundleSize = 1000

var (
	// ErrTableDescribed is returned when a table description is sent twice.
	ErrTableDescribed = errors.New("table description already sent")

	// ErrHeaderAfterRows is returned when a table description follows data rows.
	ErrHeaderAfterRows = errors.New("table description must precede all rows")

	// ErrWriterClosed is returned by writes after Close.
	ErrWriterClosed = errors.New("row writer is closed")
)

// Sink is the sending half of a bidirectional row stream.
// grpc.BidiStreamingServer[wire.BundledRows, wire.BundledRows] satisfies it.
type Sink interface {
	Send(*wire.BundledRows) error
	SendHeader(metadata.MD) error
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithBundleSize sets the maximum number of rows per outbound chunk.
// Values below 1 keep the default.
func WithBundleSize(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.bundleSize = n
		}
	}
}

// WithOutputStats records outbound chunk and row counts into s.
func WithOutputStats(s *Stats) WriterOption {
	return func(w *Writer) {
		w.stats = s
	}
}

// Writer groups outbound rows into chunks and preserves their order.
// A Writer is not safe for concurrent use.
type Writer struct {
	sink       Sink
	bundleSize int
	stats      *Stats

	pending   []wire.Row
	described bool
	sent      bool
	wrote     bool
	closed    bool
}

// NewWriter creates a writer over sink.
func NewWriter(sink Sink, opts ...WriterOption) *Writer {
	w := &Writer{sink: sink, bundleSize: DefaultBundleSize}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// DescribeTable announces the shape of the response in the response header.
// It may be called at most once and only before the first row.
func (w *Writer) DescribeTable(td *wire.TableDescription) error {
	if w.closed {
		return ErrWriterClosed
	}
	if w.described {
		return ErrTableDescribed
	}
	if w.wrote {
		return ErrHeaderAfterRows
	}

	md, err := wire.TableHeader.Encode(td)
	if err != nil {
		return err
	}
	if err := w.sink.SendHeader(md); err != nil {
		return fmt.Errorf("failed to send table description: %w", err)
	}
	w.described = true
	return nil
}

// Described reports whether a table description was sent.
func (w *Writer) Described() bool {
	return w.described
}

// Write queues one row, sending a chunk once the bundle size is reached.
func (w *Writer) Write(row wire.Row) error {
	if w.closed {
		return ErrWriterClosed
	}
	w.wrote = true
	w.pending = append(w.pending, row)
	if len(w.pending) >= w.bundleSize {
		return w.Flush()
	}
	return nil
}

// WriteValues queues one row built from cells.
func (w *Writer) WriteValues(duals ...wire.Dual) error {
	return w.Write(wire.NewRow(duals...))
}

// Flush sends queued rows as one chunk. It is a no-op when nothing is queued.
func (w *Writer) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	return w.send(w.pending)
}

func (w *Writer) send(rows []wire.Row) error {
	if err := w.sink.Send(&wire.BundledRows{Rows: rows}); err != nil {
		return fmt.Errorf("failed to send rows: %w", err)
	}
	if w.stats != nil {
		w.stats.RecordOutput(len(rows))
	}
	w.sent = true
	w.pending = make([]wire.Row, 0, min(w.bundleSize, DefaultBundleSize))
	return nil
}

// Close flushes queued rows. When nothing was sent during the call an empty
// chunk is sent so the caller always observes a response.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if len(w.pending) > 0 {
		return w.send(w.pending)
	}
	if !w.sent {
		return w.send(nil)
	}
	return nil
}
