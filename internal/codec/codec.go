// Package codec converts between raw content and the base64 transport
// encoding used by the contents API. Encoding and decoding both stream,
// so large media never has to be held twice in memory.
package codec

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// chunkSize is a multiple of 3 so chunk boundaries never need padding.
const chunkSize = 3 * 16 * 1024

// EncodeText encodes UTF-8 text.
func EncodeText(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// EncodeBytes encodes a byte slice.
func EncodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Encode streams r to w as standard base64 and returns the number of
// input bytes consumed.
func Encode(w io.Writer, r io.Reader) (int64, error) {
	enc := base64.NewEncoder(base64.StdEncoding, w)
	buf := make([]byte, chunkSize)
	n, err := io.CopyBuffer(enc, struct{ io.Reader }{r}, buf)
	if err != nil {
		return n, fmt.Errorf("encoding content: %w", err)
	}
	if err := enc.Close(); err != nil {
		return n, fmt.Errorf("flushing encoder: %w", err)
	}
	return n, nil
}

// NewDecoder returns a reader yielding the bytes encoded in r. Line
// breaks and surrounding whitespace are ignored.
func NewDecoder(r io.Reader) io.Reader {
	return base64.NewDecoder(base64.StdEncoding, &stripReader{r: bufio.NewReaderSize(r, chunkSize)})
}

// Decode decodes a base64 string that may contain line breaks.
func Decode(s string) ([]byte, error) {
	out, err := io.ReadAll(NewDecoder(strings.NewReader(s)))
	if err != nil {
		return nil, fmt.Errorf("decoding content: %w", err)
	}
	return out, nil
}

// stripReader drops ASCII whitespace from the underlying stream.
type stripReader struct {
	r io.Reader
}

func (s *stripReader) Read(p []byte) (int, error) {
	for {
		n, err := s.r.Read(p)
		kept := 0
		for _, c := range p[:n] {
			switch c {
			case '\n', '\r', ' ', '\t':
				continue
			}
			p[kept] = c
			kept++
		}
		if kept > 0 || err != nil {
			return kept, err
		}
	}
}
