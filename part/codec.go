package part

import (
	"encoding/binary"

	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/storage"
	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/value"
)

const infoFileName = "part.inf"

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

func appendColumnDef(out []byte, c schema.ColumnDef) []byte {
	out = appendString(out, c.Name)
	out = append(out, byte(c.Type))
	return out
}

func readColumnDef(buf []byte) (schema.ColumnDef, []byte, error) {
	name, buf, err := readString(buf)
	if err != nil {
		return schema.ColumnDef{}, nil, err
	}
	if len(buf) < 1 {
		return schema.ColumnDef{}, nil, toucherr.New(toucherr.CouldNotReadData, "truncated part column def")
	}
	typ := value.Type(buf[0])
	return schema.ColumnDef{Name: name, Type: typ}, buf[1:], nil
}

func appendByteRange(out []byte, r ByteRange) []byte {
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], uint64(r.Start))
	out = append(out, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], uint64(r.End))
	out = append(out, u64[:]...)
	return out
}

func readByteRange(buf []byte) (ByteRange, []byte, error) {
	if len(buf) < 16 {
		return ByteRange{}, nil, toucherr.New(toucherr.CouldNotReadData, "truncated byte range")
	}
	start := int64(binary.LittleEndian.Uint64(buf[:8]))
	end := int64(binary.LittleEndian.Uint64(buf[8:16]))
	return ByteRange{Start: start, End: end}, buf[16:], nil
}

func appendMark(out []byte, m Mark) []byte {
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(m.Index)))
	out = append(out, u32[:]...)
	for _, v := range m.Index {
		out = append(out, v.Encode()...)
	}
	binary.LittleEndian.PutUint32(u32[:], uint32(len(m.Ranges)))
	out = append(out, u32[:]...)
	for _, r := range m.Ranges {
		out = appendByteRange(out, r)
	}
	return out
}

func readMark(buf []byte) (Mark, []byte, error) {
	if len(buf) < 4 {
		return Mark{}, nil, toucherr.New(toucherr.CouldNotReadData, "truncated mark index count")
	}
	n := binary.LittleEndian.Uint32(buf)
	buf = buf[4:]
	idx := make([]value.Value, 0, n)
	for i := uint32(0); i < n; i++ {
		v, consumed, err := value.Decode(buf)
		if err != nil {
			return Mark{}, nil, toucherr.Newf(toucherr.CouldNotReadData, "decode mark index value: %v", err)
		}
		idx = append(idx, v)
		buf = buf[consumed:]
	}
	if len(buf) < 4 {
		return Mark{}, nil, toucherr.New(toucherr.CouldNotReadData, "truncated mark range count")
	}
	n = binary.LittleEndian.Uint32(buf)
	buf = buf[4:]
	ranges := make([]ByteRange, 0, n)
	for i := uint32(0); i < n; i++ {
		var r ByteRange
		var err error
		r, buf, err = readByteRange(buf)
		if err != nil {
			return Mark{}, nil, err
		}
		ranges = append(ranges, r)
	}
	return Mark{Index: idx, Ranges: ranges}, buf, nil
}

// Encode serializes i into the payload framed by storage.Frame with
// storage.MagicPartInfo (the part.inf sidecar).
func (i *Info) Encode() []byte {
	var out []byte
	out = appendString(out, i.Name)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], i.RowCount)
	out = append(out, u64[:]...)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(i.ColumnDefs)))
	out = append(out, u32[:]...)
	for _, c := range i.ColumnDefs {
		out = appendColumnDef(out, c)
	}

	binary.LittleEndian.PutUint32(u32[:], uint32(len(i.Marks)))
	out = append(out, u32[:]...)
	for _, m := range i.Marks {
		out = appendMark(out, m)
	}
	return out
}

// DecodeInfo reverses Encode.
func DecodeInfo(buf []byte) (*Info, error) {
	name, buf, err := readString(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) < 8+4 {
		return nil, toucherr.New(toucherr.CouldNotReadData, "truncated part info header")
	}
	rowCount := binary.LittleEndian.Uint64(buf[:8])
	buf = buf[8:]
	nCols := binary.LittleEndian.Uint32(buf)
	buf = buf[4:]

	cols := make([]schema.ColumnDef, 0, nCols)
	for i := uint32(0); i < nCols; i++ {
		var c schema.ColumnDef
		var err error
		c, buf, err = readColumnDef(buf)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}

	if len(buf) < 4 {
		return nil, toucherr.New(toucherr.CouldNotReadData, "truncated mark count")
	}
	nMarks := binary.LittleEndian.Uint32(buf)
	buf = buf[4:]
	marks := make([]Mark, 0, nMarks)
	for i := uint32(0); i < nMarks; i++ {
		var m Mark
		var err error
		m, buf, err = readMark(buf)
		if err != nil {
			return nil, err
		}
		marks = append(marks, m)
	}

	return &Info{Name: name, RowCount: rowCount, ColumnDefs: cols, Marks: marks}, nil
}

// InfoFileName is the fixed sidecar filename within a part directory.
func InfoFileName() string { return infoFileName }

// ReadInfo unframes and decodes raw bytes previously produced by Encode.
func ReadInfo(raw []byte) (*Info, error) {
	payload, err := storage.Unframe(storage.MagicPartInfo, raw)
	if err != nil {
		return nil, err
	}
	return DecodeInfo(payload)
}
