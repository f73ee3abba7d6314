// Package value implements the tagged scalar type that flows through every
// column in the engine, plus its zero-copy archived projection.
package value

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Type tags the variant carried by a Value. There is deliberately no
// implicit widening between variants: an Int32 never compares against an
// Int64, and signed never compares against unsigned.
type Type uint8

const (
	TypeNull Type = iota
	TypeBool
	TypeString
	TypeUuid
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUInt8
	TypeUInt16
	TypeUInt32
	TypeUInt64
)

// ParseType resolves a SQL type-name token (as written in a CREATE TABLE
// column list) to its Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "Null":
		return TypeNull, nil
	case "Bool", "Boolean":
		return TypeBool, nil
	case "String":
		return TypeString, nil
	case "Uuid", "UUID":
		return TypeUuid, nil
	case "Int8":
		return TypeInt8, nil
	case "Int16":
		return TypeInt16, nil
	case "Int32":
		return TypeInt32, nil
	case "Int64":
		return TypeInt64, nil
	case "UInt8":
		return TypeUInt8, nil
	case "UInt16":
		return TypeUInt16, nil
	case "UInt32":
		return TypeUInt32, nil
	case "UInt64":
		return TypeUInt64, nil
	default:
		return 0, fmt.Errorf("unknown column type %q", s)
	}
}

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "Null"
	case TypeBool:
		return "Bool"
	case TypeString:
		return "String"
	case TypeUuid:
		return "Uuid"
	case TypeInt8:
		return "Int8"
	case TypeInt16:
		return "Int16"
	case TypeInt32:
		return "Int32"
	case TypeInt64:
		return "Int64"
	case TypeUInt8:
		return "UInt8"
	case TypeUInt16:
		return "UInt16"
	case TypeUInt32:
		return "UInt32"
	case TypeUInt64:
		return "UInt64"
	default:
		return "Unknown"
	}
}

// Value is an owned, tagged scalar. Only one of the fields below is
// meaningful, selected by typ.
type Value struct {
	typ Type
	i   int64
	u   uint64
	b   bool
	s   string
	id  uuid.UUID
}

func Null() Value           { return Value{typ: TypeNull} }
func Bool(v bool) Value     { return Value{typ: TypeBool, b: v} }
func String(v string) Value { return Value{typ: TypeString, s: v} }
func Uuid(v uuid.UUID) Value {
	return Value{typ: TypeUuid, id: v}
}

// ParseUuid parses s as a UUID; pass the result to Uuid to get a Value.
func ParseUuid(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
func Int8(v int8) Value    { return Value{typ: TypeInt8, i: int64(v)} }
func Int16(v int16) Value  { return Value{typ: TypeInt16, i: int64(v)} }
func Int32(v int32) Value  { return Value{typ: TypeInt32, i: int64(v)} }
func Int64(v int64) Value  { return Value{typ: TypeInt64, i: v} }
func UInt8(v uint8) Value  { return Value{typ: TypeUInt8, u: uint64(v)} }
func UInt16(v uint16) Value { return Value{typ: TypeUInt16, u: uint64(v)} }
func UInt32(v uint32) Value { return Value{typ: TypeUInt32, u: uint64(v)} }
func UInt64(v uint64) Value { return Value{typ: TypeUInt64, u: v} }

// Type returns the variant of v.
func (v Value) Type() Type { return v.typ }

func (v Value) IsNull() bool { return v.typ == TypeNull }

func (v Value) AsBool() bool       { return v.b }
func (v Value) AsString() string   { return v.s }
func (v Value) AsUuid() uuid.UUID  { return v.id }
func (v Value) AsInt() int64       { return v.i }
func (v Value) AsUint() uint64     { return v.u }

func (v Value) String() string {
	switch v.typ {
	case TypeNull:
		return "NULL"
	case TypeBool:
		return fmt.Sprintf("%v", v.b)
	case TypeString:
		return v.s
	case TypeUuid:
		return v.id.String()
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return fmt.Sprintf("%d", v.i)
	case TypeUInt8, TypeUInt16, TypeUInt32, TypeUInt64:
		return fmt.Sprintf("%d", v.u)
	default:
		return "<invalid>"
	}
}

func isSigned(t Type) bool {
	return t == TypeInt8 || t == TypeInt16 || t == TypeInt32 || t == TypeInt64
}

func isUnsigned(t Type) bool {
	return t == TypeUInt8 || t == TypeUInt16 || t == TypeUInt32 || t == TypeUInt64
}

// CompareTo orders v against other. The second return value is false when
// the two values are not comparable: differing variants (including
// different-width integers of the same signedness, and signed-vs-unsigned)
// never compare, except that Null always sorts greatest against any
// non-Null value of any type (the engine's single, uniform null-ordering
// policy; see DESIGN.md open question 1).
func (v Value) CompareTo(other Value) (int, bool) {
	if v.typ == TypeNull && other.typ == TypeNull {
		return 0, true
	}
	if v.typ == TypeNull {
		return 1, true
	}
	if other.typ == TypeNull {
		return -1, true
	}
	if v.typ != other.typ {
		return 0, false
	}
	switch v.typ {
	case TypeBool:
		return cmpBool(v.b, other.b), true
	case TypeString:
		return cmpString(v.s, other.s), true
	case TypeUuid:
		return cmpBytes(v.id[:], other.id[:]), true
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return cmpInt64(v.i, other.i), true
	case TypeUInt8, TypeUInt16, TypeUInt32, TypeUInt64:
		return cmpUint64(v.u, other.u), true
	default:
		return 0, false
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBytes(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// byteLen returns the little-endian width used to encode this variant's
// payload, excluding the one-byte type tag.
func byteLen(t Type) int {
	switch t {
	case TypeNull:
		return 0
	case TypeBool, TypeInt8, TypeUInt8:
		return 1
	case TypeInt16, TypeUInt16:
		return 2
	case TypeInt32, TypeUInt32:
		return 4
	case TypeInt64, TypeUInt64:
		return 8
	case TypeUuid:
		return 16
	case TypeString:
		return -1 // variable length, length-prefixed
	default:
		return 0
	}
}

// Encode serializes v into the compact archival format: a one-byte type
// tag, followed by a fixed-width little-endian payload (strings are
// length-prefixed with a uint32). This is the format both table/part
// metadata and granule vectors use before LZ4 compression is applied.
func (v Value) Encode() []byte {
	switch v.typ {
	case TypeNull:
		return []byte{byte(v.typ)}
	case TypeBool:
		b := byte(0)
		if v.b {
			b = 1
		}
		return []byte{byte(v.typ), b}
	case TypeString:
		buf := make([]byte, 1+4+len(v.s))
		buf[0] = byte(v.typ)
		binary.LittleEndian.PutUint32(buf[1:5], uint32(len(v.s)))
		copy(buf[5:], v.s)
		return buf
	case TypeUuid:
		buf := make([]byte, 1+16)
		buf[0] = byte(v.typ)
		copy(buf[1:], v.id[:])
		return buf
	case TypeInt8:
		return []byte{byte(v.typ), byte(int8(v.i))}
	case TypeInt16:
		buf := make([]byte, 3)
		buf[0] = byte(v.typ)
		binary.LittleEndian.PutUint16(buf[1:], uint16(int16(v.i)))
		return buf
	case TypeInt32:
		buf := make([]byte, 5)
		buf[0] = byte(v.typ)
		binary.LittleEndian.PutUint32(buf[1:], uint32(int32(v.i)))
		return buf
	case TypeInt64:
		buf := make([]byte, 9)
		buf[0] = byte(v.typ)
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.i))
		return buf
	case TypeUInt8:
		return []byte{byte(v.typ), byte(v.u)}
	case TypeUInt16:
		buf := make([]byte, 3)
		buf[0] = byte(v.typ)
		binary.LittleEndian.PutUint16(buf[1:], uint16(v.u))
		return buf
	case TypeUInt32:
		buf := make([]byte, 5)
		buf[0] = byte(v.typ)
		binary.LittleEndian.PutUint32(buf[1:], uint32(v.u))
		return buf
	case TypeUInt64:
		buf := make([]byte, 9)
		buf[0] = byte(v.typ)
		binary.LittleEndian.PutUint64(buf[1:], v.u)
		return buf
	default:
		return []byte{byte(TypeNull)}
	}
}

// EncodedLen reports how many bytes Encode would need to read back exactly
// one value starting at buf[0], without fully decoding it. Used to walk a
// granule's vector without allocating.
func EncodedLen(buf []byte) (int, error) {
	if len(buf) < 1 {
		return 0, fmt.Errorf("value: empty buffer")
	}
	t := Type(buf[0])
	n := byteLen(t)
	if n >= 0 {
		return 1 + n, nil
	}
	// string: length-prefixed
	if len(buf) < 5 {
		return 0, fmt.Errorf("value: truncated string header")
	}
	strLen := binary.LittleEndian.Uint32(buf[1:5])
	return 5 + int(strLen), nil
}

// Decode reads one owned Value starting at buf[0], returning it and the
// number of bytes consumed.
func Decode(buf []byte) (Value, int, error) {
	n, err := EncodedLen(buf)
	if err != nil {
		return Value{}, 0, err
	}
	if len(buf) < n {
		return Value{}, 0, fmt.Errorf("value: truncated payload")
	}
	t := Type(buf[0])
	body := buf[1:n]
	switch t {
	case TypeNull:
		return Null(), n, nil
	case TypeBool:
		return Bool(body[0] != 0), n, nil
	case TypeString:
		return String(string(body[4:])), n, nil
	case TypeUuid:
		var id uuid.UUID
		copy(id[:], body)
		return Uuid(id), n, nil
	case TypeInt8:
		return Int8(int8(body[0])), n, nil
	case TypeInt16:
		return Int16(int16(binary.LittleEndian.Uint16(body))), n, nil
	case TypeInt32:
		return Int32(int32(binary.LittleEndian.Uint32(body))), n, nil
	case TypeInt64:
		return Int64(int64(binary.LittleEndian.Uint64(body))), n, nil
	case TypeUInt8:
		return UInt8(body[0]), n, nil
	case TypeUInt16:
		return UInt16(binary.LittleEndian.Uint16(body)), n, nil
	case TypeUInt32:
		return UInt32(binary.LittleEndian.Uint32(body)), n, nil
	case TypeUInt64:
		return UInt64(binary.LittleEndian.Uint64(body)), n, nil
	default:
		return Value{}, 0, fmt.Errorf("value: unknown type tag %d", t)
	}
}
