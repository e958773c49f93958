package compress

import (
	"bytes"
	"io"
	"testing"

	"google.golang.org/grpc/encoding"
)

func roundTrip(t *testing.T, c encoding.Compressor, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := c.Compress(&buf)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := c.Decompress(&buf)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return out
}

// TestRegister tests that the compressor is available by name.
func TestRegister(t *testing.T) {
	Register()
	Register()

	c := encoding.GetCompressor(Name)
	if c == nil {
		t.Fatal("Expected zstd compressor to be registered")
	}
	if c.Name() != Name {
		t.Errorf("Expected name %s, got %s", Name, c.Name())
	}
}

// TestRoundTrip tests compression and decompression with pooled coders.
func TestRoundTrip(t *testing.T) {
	c := &compressor{}
	payload := bytes.Repeat([]byte("neg: 0.0| neu: 0.254| pos: 0.746| compound: 0.8316|"), 200)

	for i := 0; i < 3; i++ {
		out := roundTrip(t, c, payload)
		if !bytes.Equal(out, payload) {
			t.Fatalf("Round %d: payload mismatch (%d bytes, expected %d)", i, len(out), len(payload))
		}
	}
}

// TestDecompressInvalid tests that garbage input fails to decode.
func TestDecompressInvalid(t *testing.T) {
	c := &compressor{}
	r, err := c.Decompress(bytes.NewReader([]byte("not zstd at all")))
	if err != nil {
		return
	}
	if _, err := io.ReadAll(r); err == nil {
		t.Error("Expected error decoding invalid data")
	}
}
