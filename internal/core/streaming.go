package core

// streaming.go wraps input files before CSV parsing.
//
//   - A UTF-8 BOM (0xEF 0xBB 0xBF) from Windows exports is removed, and a
//     UTF-16 BOM switches decoding to UTF-16.
//   - Invalid UTF-8 sequences become U+FFFD instead of failing the parse.
//   - Bytes consumed are counted for the extraction log entry.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// NewSanitizingReader returns r decoded as UTF-8 with BOM handling and
// invalid-sequence replacement.
func NewSanitizingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// WrapForStreaming counts raw file bytes, then sanitizes. The counter sits
// beneath the decoder so BytesRead matches the file size.
func WrapForStreaming(r io.Reader) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r)
	return NewSanitizingReader(counter), counter
}
