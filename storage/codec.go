// Package storage implements the on-disk framing shared by every persisted
// file: a fixed magic prefix, a payload, and a trailing little-endian
// CRC32 checksum over that payload.
package storage

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/touchhouse/touchhouse/toucherr"
)

// Magic distinguishes the three kinds of framed files the engine writes.
// hash/crc32 is the standard library's implementation; no example repo in
// the pack pulls in a third-party CRC32 (the pack's checksum libraries —
// cespare/xxhash, zeebo/xxh3 — are all non-standard hashes used for
// dedup/sharding, not framing checksums), so this is the one place the
// engine reaches for stdlib over an ecosystem package; see DESIGN.md.
type Magic [6]byte

var (
	MagicTableMetadata = Magic{'T', 'H', 'M', 'E', 'T', 'A'}
	MagicPartInfo      = Magic{'T', 'H', 'I', 'N', 'D', 'X'}
	MagicColumnData    = Magic{'T', 'H', 'D', 'A', 'T', 'A'}
)

const crcLen = 4

// MinFileSize is the minimum size of any framed file: magic, at least one
// payload byte, and the trailing CRC.
const MinFileSize = len(Magic{}) + 1 + crcLen

// Frame wraps payload with magic and a trailing CRC32 checksum.
func Frame(magic Magic, payload []byte) []byte {
	out := make([]byte, 0, len(magic)+len(payload)+crcLen)
	out = append(out, magic[:]...)
	out = append(out, payload...)
	crc := crc32.ChecksumIEEE(payload)
	var crcBuf [crcLen]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	return append(out, crcBuf[:]...)
}

// Unframe validates magic and CRC32, returning the payload slice (a view
// into raw, not a copy).
func Unframe(magic Magic, raw []byte) ([]byte, error) {
	if len(raw) < MinFileSize {
		return nil, toucherr.New(toucherr.CouldNotReadData, "file too small to contain a valid frame")
	}
	if [6]byte(raw[:6]) != magic {
		return nil, toucherr.New(toucherr.CouldNotReadData, "magic bytes mismatch")
	}
	payload := raw[6 : len(raw)-crcLen]
	wantCRC := binary.LittleEndian.Uint32(raw[len(raw)-crcLen:])
	gotCRC := crc32.ChecksumIEEE(payload)
	if wantCRC != gotCRC {
		return nil, toucherr.New(toucherr.CouldNotReadData, "CRC32 mismatch")
	}
	return payload, nil
}
