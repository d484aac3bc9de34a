package http

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var compressibleData = bytes.Repeat(
	[]byte("report rows compress well because names repeat, "), 8,
)

func TestCompressor_Gzip(t *testing.T) {
	c, err := newCompressor(CompressionGzip)
	require.NoError(t, err)

	compressed, err := c.compress(compressibleData)
	require.NoError(t, err)

	assert.Less(t, len(compressed), len(compressibleData))
	assert.Equal(t, "gzip", c.contentEncoding())

	r, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)

	decompressed, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, compressibleData, decompressed)
}

func TestCompressor_Zstd(t *testing.T) {
	c, err := newCompressor(CompressionZstd)
	require.NoError(t, err)

	compressed, err := c.compress(compressibleData)
	require.NoError(t, err)

	assert.Less(t, len(compressed), len(compressibleData))
	assert.Equal(t, "zstd", c.contentEncoding())

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()

	decompressed, err := dec.DecodeAll(compressed, nil)
	require.NoError(t, err)
	assert.Equal(t, compressibleData, decompressed)
}

func TestCompressor_Snappy(t *testing.T) {
	c, err := newCompressor(CompressionSnappy)
	require.NoError(t, err)

	compressed, err := c.compress(compressibleData)
	require.NoError(t, err)

	assert.Equal(t, "snappy", c.contentEncoding())

	decompressed, err := snappy.Decode(nil, compressed)
	require.NoError(t, err)
	assert.Equal(t, compressibleData, decompressed)
}

func TestCompressor_None(t *testing.T) {
	c, err := newCompressor(CompressionNone)
	require.NoError(t, err)

	compressed, err := c.compress(compressibleData)
	require.NoError(t, err)

	assert.Equal(t, compressibleData, compressed)
	assert.Empty(t, c.contentEncoding())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Enabled: true,
				Address: "http://localhost:8080",
			},
			wantErr: false,
		},
		{
			name:    "disabled config skips validation",
			cfg:     Config{Enabled: false},
			wantErr: false,
		},
		{
			name:    "missing address",
			cfg:     Config{Enabled: true},
			wantErr: true,
		},
		{
			name: "invalid compression",
			cfg: Config{
				Enabled:     true,
				Address:     "http://localhost:8080",
				Compression: "lzma",
			},
			wantErr: true,
		},
		{
			name: "batch size greater than queue size",
			cfg: Config{
				Enabled:      true,
				Address:      "http://localhost:8080",
				BatchSize:    1000,
				MaxQueueSize: 100,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			err := tt.cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, CompressionGzip, cfg.Compression)
	assert.Equal(t, 512, cfg.BatchSize)
	assert.Equal(t, 51200, cfg.MaxQueueSize)
	assert.Equal(t, 1, cfg.Workers)
}
