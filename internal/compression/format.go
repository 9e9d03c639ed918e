package compression

import (
	"encoding/base64"
	"fmt"

	"github.com/zoneinfo/server/internal/counts"
)

// CompressedSnapshot is an encoded snapshot ready for JSON transmission
type CompressedSnapshot struct {
	Format           string `json:"format"`            // "binary_zstd"
	Pass             uint64 `json:"pass"`              // Pass the counts belong to
	Data             string `json:"data"`              // Base64-encoded compressed data
	Size             int    `json:"size"`              // Compressed size in bytes
	UncompressedSize int    `json:"uncompressed_size"` // Encoded size before compression
}

// FormatSnapshot encodes buf and wraps it for JSON transmission
func FormatSnapshot(buf *counts.Buffer) (*CompressedSnapshot, error) {
	data, rawSize, err := EncodeSnapshot(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return &CompressedSnapshot{
		Format:           "binary_zstd",
		Pass:             buf.Pass,
		Data:             base64.StdEncoding.EncodeToString(data),
		Size:             len(data),
		UncompressedSize: rawSize,
	}, nil
}

// Decode reverses FormatSnapshot
func (c *CompressedSnapshot) Decode() (*counts.Buffer, error) {
	if c.Format != "binary_zstd" {
		return nil, fmt.Errorf("%w: unknown format %q", ErrBadSnapshot, c.Format)
	}
	data, err := base64.StdEncoding.DecodeString(c.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	return DecodeSnapshot(data)
}
