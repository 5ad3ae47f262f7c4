package doccache

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/pierrec/lz4/v4"

	"github.com/edgecomet/domfilter/pkg/types"
)

// ErrDecompression is returned when a stored entry cannot be decoded
var ErrDecompression = errors.New("decompression failed")

// Every stored entry starts with one byte naming its encoding
const (
	markerNone   byte = 'n'
	markerSnappy byte = 's'
	markerLZ4    byte = 'l'
)

// Encode compresses content and prefixes the encoding marker.
// Content below types.CompressionMinSize is stored as is. Returns the algorithm actually used.
func Encode(content []byte, algorithm string) ([]byte, string, error) {
	if len(content) < types.CompressionMinSize {
		algorithm = types.CompressionNone
	}

	switch algorithm {
	case types.CompressionSnappy:
		out := make([]byte, 1, 1+snappy.MaxEncodedLen(len(content)))
		out[0] = markerSnappy
		return append(out, snappy.Encode(nil, content)...), types.CompressionSnappy, nil

	case types.CompressionLZ4:
		var buf bytes.Buffer
		buf.WriteByte(markerLZ4)
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			w.Close()
			return nil, "", fmt.Errorf("lz4 compression failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("lz4 compression close failed: %w", err)
		}
		return buf.Bytes(), types.CompressionLZ4, nil

	default:
		out := make([]byte, 1, 1+len(content))
		out[0] = markerNone
		return append(out, content...), types.CompressionNone, nil
	}
}

// Decode reverses Encode and reports the algorithm the entry used.
// Corrupt entries yield an error wrapping ErrDecompression.
func Decode(entry []byte) ([]byte, string, error) {
	if len(entry) == 0 {
		return nil, "", fmt.Errorf("%w: empty entry", ErrDecompression)
	}

	body := entry[1:]
	switch entry[0] {
	case markerNone:
		return body, types.CompressionNone, nil

	case markerSnappy:
		out, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, types.CompressionSnappy, fmt.Errorf("%w: snappy: %v", ErrDecompression, err)
		}
		return out, types.CompressionSnappy, nil

	case markerLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, types.CompressionLZ4, fmt.Errorf("%w: lz4: %v", ErrDecompression, err)
		}
		return out, types.CompressionLZ4, nil

	default:
		return nil, "", fmt.Errorf("%w: unknown marker %q", ErrDecompression, entry[0])
	}
}
