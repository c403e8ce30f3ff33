package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CompressionAlgo specifies how a stored snapshot is encoded.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the snapshot size above which snapshots are compressed.
const DefaultCompressThreshold = 8 * 1024

// StoredSnapshot is a document snapshot as persisted: either plain JSON or
// zstd-compressed bytes.
type StoredSnapshot struct {
	Plain      json.RawMessage
	Compressed []byte
	Algo       CompressionAlgo
}

// SnapshotCodec compresses large ledger snapshots.
type SnapshotCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewSnapshotCodec creates a codec. threshold <= 0 uses DefaultCompressThreshold.
func NewSnapshotCodec(threshold int) (*SnapshotCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &SnapshotCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// Encode stores data plain when small and compressed otherwise.
func (c *SnapshotCodec) Encode(data json.RawMessage) StoredSnapshot {
	if len(data) == 0 {
		return StoredSnapshot{Algo: CompressionNone}
	}
	if len(data) <= c.threshold {
		return StoredSnapshot{Plain: data, Algo: CompressionNone}
	}
	return StoredSnapshot{Compressed: c.encoder.EncodeAll(data, nil), Algo: CompressionZstd}
}

// Decode restores the JSON of a stored snapshot.
func (c *SnapshotCodec) Decode(s StoredSnapshot) (json.RawMessage, error) {
	if s.Algo != CompressionZstd {
		return s.Plain, nil
	}
	if len(s.Compressed) == 0 {
		return nil, nil
	}
	out, err := c.decoder.DecodeAll(s.Compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	return out, nil
}
