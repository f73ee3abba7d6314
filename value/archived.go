package value

import "encoding/binary"

// Archived is a zero-copy view over one encoded Value living inside a
// larger byte slice (typically a memory-mapped granule). The accessors
// read straight from that slice (AsString still copies the bytes into a
// Go string); only Materialize (for surviving, masked-in rows) produces
// an owned Value.
type Archived struct {
	buf []byte // exactly the bytes for this one value, buf[0] is the type tag
}

// DecodeArchived wraps buf[0:n] as an Archived value without copying,
// returning the view and the number of bytes consumed so callers can
// advance through a vector.
func DecodeArchived(buf []byte) (Archived, int, error) {
	n, err := EncodedLen(buf)
	if err != nil {
		return Archived{}, 0, err
	}
	if len(buf) < n {
		return Archived{}, 0, err
	}
	return Archived{buf: buf[:n]}, n, nil
}

func (a Archived) Type() Type { return Type(a.buf[0]) }
func (a Archived) IsNull() bool { return a.Type() == TypeNull }

func (a Archived) AsBool() bool { return a.buf[1] != 0 }

func (a Archived) AsString() string { return string(a.buf[5:]) }

func (a Archived) AsInt() int64 {
	body := a.buf[1:]
	switch a.Type() {
	case TypeInt8:
		return int64(int8(body[0]))
	case TypeInt16:
		return int64(int16(binary.LittleEndian.Uint16(body)))
	case TypeInt32:
		return int64(int32(binary.LittleEndian.Uint32(body)))
	case TypeInt64:
		return int64(binary.LittleEndian.Uint64(body))
	default:
		return 0
	}
}

func (a Archived) AsUint() uint64 {
	body := a.buf[1:]
	switch a.Type() {
	case TypeUInt8:
		return uint64(body[0])
	case TypeUInt16:
		return uint64(binary.LittleEndian.Uint16(body))
	case TypeUInt32:
		return uint64(binary.LittleEndian.Uint32(body))
	case TypeUInt64:
		return binary.LittleEndian.Uint64(body)
	default:
		return 0
	}
}

func (a Archived) AsUuidBytes() []byte { return a.buf[1:17] }

// Materialize decodes a into an owned Value. Call only for rows that
// survive a filter; the whole point of Archived is to avoid this for rows
// that don't.
func (a Archived) Materialize() Value {
	v, _, _ := Decode(a.buf)
	return v
}

// CompareTo orders two archived values with the same semantics as
// Value.CompareTo, without materializing either side.
func (a Archived) CompareTo(other Archived) (int, bool) {
	at, bt := a.Type(), other.Type()
	if at == TypeNull && bt == TypeNull {
		return 0, true
	}
	if at == TypeNull {
		return 1, true
	}
	if bt == TypeNull {
		return -1, true
	}
	if at != bt {
		return 0, false
	}
	switch at {
	case TypeBool:
		return cmpBool(a.AsBool(), other.AsBool()), true
	case TypeString:
		return cmpString(a.AsString(), other.AsString()), true
	case TypeUuid:
		return cmpBytes(a.AsUuidBytes(), other.AsUuidBytes()), true
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return cmpInt64(a.AsInt(), other.AsInt()), true
	case TypeUInt8, TypeUInt16, TypeUInt32, TypeUInt64:
		return cmpUint64(a.AsUint(), other.AsUint()), true
	default:
		return 0, false
	}
}

// CompareToOwned orders an archived value against an owned one, agreeing
// with a.Materialize().CompareTo(other). The owned side is encoded first
// (one allocation per call, whatever the types) so that both sides go
// through Archived.CompareTo.
func (a Archived) CompareToOwned(other Value) (int, bool) {
	return a.CompareTo(archiveOwned(other))
}

// archiveOwned is a convenience to funnel owned-vs-archived comparisons
// through the single Archived.CompareTo implementation.
func archiveOwned(v Value) Archived {
	return Archived{buf: v.Encode()}
}

// EncodeVector serializes a slice of Values back to back; this is the
// pre-compression payload of one granule.
func EncodeVector(values []Value) []byte {
	var out []byte
	for _, v := range values {
		out = append(out, v.Encode()...)
	}
	return out
}

// DecodeArchivedVector walks buf and returns an Archived view per value,
// without allocating any of their payloads (only the slice of views
// itself is allocated).
func DecodeArchivedVector(buf []byte) ([]Archived, error) {
	var out []Archived
	for len(buf) > 0 {
		a, n, err := DecodeArchived(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		buf = buf[n:]
	}
	return out, nil
}
