package http

import (
	"bytes"
	"compress/gzip"
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Supported compression types.
const (
	CompressionNone   = "none"
	CompressionGzip   = "gzip"
	CompressionZstd   = "zstd"
	CompressionSnappy = "snappy"
)

// compressor compresses request bodies using a fixed codec.
type compressor struct {
	typ  string
	zstd *zstd.Encoder
}

func newCompressor(typ string) (*compressor, error) {
	c := &compressor{typ: typ}

	if typ == CompressionZstd {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}

		c.zstd = enc
	}

	return c, nil
}

// contentEncoding returns the Content-Encoding header value, or "" when
// the body is sent uncompressed.
func (c *compressor) contentEncoding() string {
	if c.typ == CompressionNone {
		return ""
	}

	return c.typ
}

func (c *compressor) compress(data []byte) ([]byte, error) {
	switch c.typ {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer

		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("gzip write failed: %w", err)
		}

		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("gzip close failed: %w", err)
		}

		return buf.Bytes(), nil
	case CompressionZstd:
		return c.zstd.EncodeAll(data, nil), nil
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", c.typ)
	}
}
