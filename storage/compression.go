package storage

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/touchhouse/touchhouse/toucherr"
)

// CompressionKind selects the codec applied to a granule's serialized
// vector before it is written to a column file.
type CompressionKind uint8

const (
	CompressionNone CompressionKind = iota
	CompressionLZ4
)

// Compression pairs a kind with the level LZ4 uses (ignored for None).
type Compression struct {
	Kind  CompressionKind
	Level uint8
}

// DefaultCompression is LZ4 level 3, the engine's default granule codec
// (storage/compression.rs's get_optimal_compression in the original).
var DefaultCompression = Compression{Kind: CompressionLZ4, Level: 3}

// Compress applies c to payload.
func Compress(payload []byte, c Compression) ([]byte, error) {
	switch c.Kind {
	case CompressionNone:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		opts := []lz4.Option{lz4.CompressionLevelOption(lz4Level(c.Level))}
		if err := w.Apply(opts...); err != nil {
			return nil, toucherr.Newf(toucherr.CouldNotInsertData, "configure lz4 writer: %v", err)
		}
		if _, err := w.Write(payload); err != nil {
			return nil, toucherr.Newf(toucherr.CouldNotInsertData, "lz4 compress: %v", err)
		}
		if err := w.Close(); err != nil {
			return nil, toucherr.Newf(toucherr.CouldNotInsertData, "lz4 finish: %v", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, toucherr.New(toucherr.CouldNotInsertData, "unknown compression kind")
	}
}

// Decompress reverses Compress.
func Decompress(compressed []byte, c Compression) ([]byte, error) {
	switch c.Kind {
	case CompressionNone:
		out := make([]byte, len(compressed))
		copy(out, compressed)
		return out, nil
	case CompressionLZ4:
		r := lz4.NewReader(bytes.NewReader(compressed))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, toucherr.Newf(toucherr.CouldNotReadData, "lz4 decompress: %v", err)
		}
		return out, nil
	default:
		return nil, toucherr.New(toucherr.CouldNotReadData, "unknown compression kind")
	}
}

// lz4Level maps the column's 0-9-ish constraint level onto the library's
// compression level constants, clamping to the fastest/best extremes.
func lz4Level(level uint8) lz4.CompressionLevel {
	switch {
	case level <= 0:
		return lz4.Fast
	case level >= 9:
		return lz4.Level9
	default:
		return lz4.CompressionLevel(1 << (8 + level))
	}
}
