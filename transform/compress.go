package transform

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
)

// BeneficialRatio is the threshold from spec.md §6: compression is only
// "beneficial" if the compressed size is strictly less than this fraction
// of the input size.
const BeneficialRatio = 0.9

// FlateCompressor implements cartridge.Compressor with compress/flate. No
// repository anywhere in the retrieval pack imports a third-party
// compression library (zstd, lz4, snappy, ...); stdlib flate is used here
// as the documented gap, not a silent default.
type FlateCompressor struct {
	Level int // defaults to flate.DefaultCompression if zero.
}

// Compress ignores method beyond validating it is "flate" or empty, since
// this implementation only offers the one algorithm; callers that need a
// different method should supply their own Compressor.
func (c FlateCompressor) Compress(data []byte, method string) ([]byte, error) {
	if method != "" && method != "flate" {
		return nil, fmt.Errorf("transform: unsupported compression method %q", method)
	}

	level := c.Level
	if level == 0 {
		level = flate.DefaultCompression
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("transform: new flate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("transform: flate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("transform: flate close: %w", err)
	}

	return buf.Bytes(), nil
}

func (c FlateCompressor) Decompress(data []byte, method string) ([]byte, error) {
	if method != "" && method != "flate" {
		return nil, fmt.Errorf("transform: unsupported compression method %q", method)
	}

	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("transform: flate read: %w", err)
	}
	return out, nil
}

// IsBeneficial reports whether compressedLen is small enough, relative to
// originalLen, to be worth storing instead of the raw bytes (spec.md §6).
func IsBeneficial(originalLen, compressedLen int) bool {
	if originalLen == 0 {
		return false
	}
	return float64(compressedLen) < BeneficialRatio*float64(originalLen)
}
