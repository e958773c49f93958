// Package compress provides a ZStandard compressor for gRPC messages.
package compress

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
)

// Name is the grpc-encoding value clients send to request zstd.
const Name = "zstd"

var registerOnce sync.Once

// Register installs the zstd compressor in the gRPC encoding registry.
// Servers then accept and answer zstd-compressed calls. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		encoding.RegisterCompressor(&compressor{})
	})
}

// compressor pools encoders and decoders; both are reset per message.
type compressor struct {
	encoders sync.Pool
	decoders sync.Pool
}

func (c *compressor) Name() string {
	return Name
}

func (c *compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	if enc, ok := c.encoders.Get().(*zstd.Encoder); ok {
		enc.Reset(w)
		return &writer{Encoder: enc, pool: &c.encoders}, nil
	}
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &writer{Encoder: enc, pool: &c.encoders}, nil
}

func (c *compressor) Decompress(r io.Reader) (io.Reader, error) {
	if dec, ok := c.decoders.Get().(*zstd.Decoder); ok {
		if err := dec.Reset(r); err != nil {
			c.decoders.Put(dec)
			return nil, fmt.Errorf("failed to reset zstd decoder: %w", err)
		}
		return &reader{Decoder: dec, pool: &c.decoders}, nil
	}
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &reader{Decoder: dec, pool: &c.decoders}, nil
}

type writer struct {
	*zstd.Encoder
	pool *sync.Pool
}

// Close flushes the frame and returns the encoder to the pool.
func (w *writer) Close() error {
	err := w.Encoder.Close()
	w.pool.Put(w.Encoder)
	return err
}

type reader struct {
	*zstd.Decoder
	pool *sync.Pool
}

// Read returns the decoder to the pool once the message is drained.
func (r *reader) Read(p []byte) (int, error) {
	if r.Decoder == nil {
		return 0, io.EOF
	}
	n, err := r.Decoder.Read(p)
	if err == io.EOF {
		r.pool.Put(r.Decoder)
		r.Decoder = nil
	}
	return n, err
}
