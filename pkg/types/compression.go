package types

import "fmt"

// Compression algorithms for cached documents
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionLZ4    = "lz4"
)

// CompressionMinSize is the smallest body, in bytes, worth compressing
const CompressionMinSize = 1024

// ValidateCompression accepts "" (meaning the default) or a known algorithm
func ValidateCompression(algo string) error {
	switch algo {
	case "", CompressionNone, CompressionSnappy, CompressionLZ4:
		return nil
	default:
		return fmt.Errorf("unknown compression %q: must be one of none, snappy, lz4", algo)
	}
}
