package schema

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/touchhouse/touchhouse/storage"
	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/value"
)

const metadataFileName = ".metadata"

// encodeColumnDef serializes one column definition: name, type tag,
// nullable flag, optional default (presence byte + encoded value),
// compression kind + level.
func encodeColumnDef(c ColumnDef, out []byte) []byte {
	out = appendString(out, c.Name)
	out = append(out, byte(c.Type))
	nullable := byte(0)
	if c.Constraints.Nullable {
		nullable = 1
	}
	out = append(out, nullable)
	if c.Constraints.Default != nil {
		out = append(out, 1)
		out = append(out, c.Constraints.Default.Encode()...)
	} else {
		out = append(out, 0)
	}
	out = append(out, byte(c.Constraints.Compression.Kind))
	out = append(out, c.Constraints.Compression.Level)
	return out
}

func decodeColumnDef(buf []byte) (ColumnDef, []byte, error) {
	name, buf, err := readString(buf)
	if err != nil {
		return ColumnDef{}, nil, err
	}
	if len(buf) < 2 {
		return ColumnDef{}, nil, toucherr.New(toucherr.CouldNotReadData, "truncated column def")
	}
	typ := value.Type(buf[0])
	nullable := buf[1] != 0
	buf = buf[2:]
	var def *value.Value
	if len(buf) < 1 {
		return ColumnDef{}, nil, toucherr.New(toucherr.CouldNotReadData, "truncated column default flag")
	}
	hasDefault := buf[0] != 0
	buf = buf[1:]
	if hasDefault {
		v, n, err := value.Decode(buf)
		if err != nil {
			return ColumnDef{}, nil, toucherr.New(toucherr.CouldNotReadData, "decode default value")
		}
		def = &v
		buf = buf[n:]
	}
	if len(buf) < 2 {
		return ColumnDef{}, nil, toucherr.New(toucherr.CouldNotReadData, "truncated compression")
	}
	compKind := storage.CompressionKind(buf[0])
	compLevel := buf[1]
	buf = buf[2:]
	return ColumnDef{
		Name: name,
		Type: typ,
		Constraints: Constraints{
			Nullable:    nullable,
			Default:     def,
			Compression: storage.Compression{Kind: compKind, Level: compLevel},
		},
	}, buf, nil
}

func appendString(out []byte, s string) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	out = append(out, lenBuf[:]...)
	return append(out, s...)
}

func readString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, toucherr.New(toucherr.CouldNotReadData, "truncated string length")
	}
	n := binary.LittleEndian.Uint32(buf)
	buf = buf[4:]
	if len(buf) < int(n) {
		return "", nil, toucherr.New(toucherr.CouldNotReadData, "truncated string body")
	}
	return string(buf[:n]), buf[n:], nil
}

func encodeColumnDefs(cols []ColumnDef, out []byte) []byte {
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(cols)))
	out = append(out, countBuf[:]...)
	for _, c := range cols {
		out = encodeColumnDef(c, out)
	}
	return out
}

func decodeColumnDefs(buf []byte) ([]ColumnDef, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, toucherr.New(toucherr.CouldNotReadData, "truncated column count")
	}
	n := binary.LittleEndian.Uint32(buf)
	buf = buf[4:]
	cols := make([]ColumnDef, 0, n)
	for i := uint32(0); i < n; i++ {
		var c ColumnDef
		var err error
		c, buf, err = decodeColumnDef(buf)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, c)
	}
	return cols, buf, nil
}

// Encode serializes a TableMetadata to the compact archival payload (the
// bytes framed by storage.Frame with MagicTableMetadata).
func (m *TableMetadata) Encode() []byte {
	var out []byte
	var u16 [2]byte
	var u32 [4]byte
	var u64 [8]byte

	binary.LittleEndian.PutUint16(u16[:], m.Version)
	out = append(out, u16[:]...)
	binary.LittleEndian.PutUint32(u32[:], m.Flags)
	out = append(out, u32[:]...)
	binary.LittleEndian.PutUint64(u64[:], uint64(m.CreatedAt))
	out = append(out, u64[:]...)

	binary.LittleEndian.PutUint32(u32[:], m.Settings.IndexGranularity)
	out = append(out, u32[:]...)
	out = append(out, byte(m.Settings.Engine))

	out = encodeColumnDefs(m.Schema.Columns, out)
	out = encodeColumnDefs(m.Schema.OrderBy, out)
	out = encodeColumnDefs(m.Schema.PrimaryKey, out)
	return out
}

// DecodeMetadata reverses Encode.
func DecodeMetadata(buf []byte) (*TableMetadata, error) {
	if len(buf) < 2+4+8+4+1 {
		return nil, toucherr.New(toucherr.CouldNotReadData, "truncated table metadata header")
	}
	m := &TableMetadata{}
	m.Version = binary.LittleEndian.Uint16(buf)
	buf = buf[2:]
	m.Flags = binary.LittleEndian.Uint32(buf)
	buf = buf[4:]
	m.CreatedAt = int64(binary.LittleEndian.Uint64(buf))
	buf = buf[8:]
	m.Settings.IndexGranularity = binary.LittleEndian.Uint32(buf)
	buf = buf[4:]
	m.Settings.Engine = EngineName(buf[0])
	buf = buf[1:]

	var err error
	m.Schema.Columns, buf, err = decodeColumnDefs(buf)
	if err != nil {
		return nil, err
	}
	m.Schema.OrderBy, buf, err = decodeColumnDefs(buf)
	if err != nil {
		return nil, err
	}
	m.Schema.PrimaryKey, _, err = decodeColumnDefs(buf)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// WriteTo writes m as the framed `.metadata` file under dir.
func (m *TableMetadata) WriteTo(dir string) error {
	raw := storage.Frame(storage.MagicTableMetadata, m.Encode())
	path := filepath.Join(dir, metadataFileName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return toucherr.Newf(toucherr.CouldNotCreateTable, "write table metadata: %v", err)
	}
	return nil
}

// ReadMetadata loads and validates the `.metadata` file under dir.
func ReadMetadata(dir string) (*TableMetadata, error) {
	path := filepath.Join(dir, metadataFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, toucherr.New(toucherr.TableNotFound, path)
		}
		return nil, toucherr.Newf(toucherr.CouldNotReadData, "read table metadata: %v", err)
	}
	payload, err := storage.Unframe(storage.MagicTableMetadata, raw)
	if err != nil {
		return nil, err
	}
	return DecodeMetadata(payload)
}
