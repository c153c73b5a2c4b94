// internal/harp/payload.go
package harp

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PayloadType is the wire encoding of a register payload element.
// Low nibble is the element width in bytes.
type PayloadType byte

const (
	U8    PayloadType = 0x01
	S8    PayloadType = 0x81
	U16   PayloadType = 0x02
	S16   PayloadType = 0x82
	U32   PayloadType = 0x04
	S32   PayloadType = 0x84
	U64   PayloadType = 0x08
	S64   PayloadType = 0x88
	Float PayloadType = 0x44
)

// ---- type flag bits (wire only) ----

const (
	typeSizeMask   byte = 0x0F
	typeSignedFlag byte = 0x80
	typeFloatFlag  byte = 0x40

	// HasTimestamp is set on the payload type byte when a timestamp precedes the payload.
	HasTimestamp byte = 0x10
)

// Size returns the width of one payload element in bytes.
func (t PayloadType) Size() int {
	return int(byte(t) & typeSizeMask)
}

func (t PayloadType) IsSigned() bool {
	return byte(t)&typeSignedFlag != 0
}

func (t PayloadType) IsFloat() bool {
	return byte(t)&typeFloatFlag != 0
}

// Valid reports whether t is one of the nine Harp payload types.
func (t PayloadType) Valid() bool {
	switch t {
	case U8, S8, U16, S16, U32, S32, U64, S64, Float:
		return true
	}
	return false
}

func (t PayloadType) String() string {
	switch t {
	case U8:
		return "U8"
	case S8:
		return "S8"
	case U16:
		return "U16"
	case S16:
		return "S16"
	case U32:
		return "U32"
	case S32:
		return "S32"
	case U64:
		return "U64"
	case S64:
		return "S64"
	case Float:
		return "Float"
	}
	return fmt.Sprintf("PayloadType(0x%02x)", byte(t))
}

// ParsePayloadType accepts the names returned by String (case-sensitive).
func ParsePayloadType(s string) (PayloadType, error) {
	for _, t := range []PayloadType{U8, S8, U16, S16, U32, S32, U64, S64, Float} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("harp: unknown payload type %q", s)
}

// ---- element geometry (little-endian) ----

// PutElement writes the low Size() bytes of bits into dst, little-endian.
// dst must hold at least Size() bytes.
func (t PayloadType) PutElement(dst []byte, bits uint64) {
	switch t.Size() {
	case 1:
		dst[0] = byte(bits)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(bits))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(bits))
	case 8:
		binary.LittleEndian.PutUint64(dst, bits)
	}
}

// Element reads one element from src and returns its raw bit pattern,
// zero-extended to 64 bits. Sign handling is left to the caller.
func (t PayloadType) Element(src []byte) uint64 {
	switch t.Size() {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(src))
	case 4:
		return uint64(binary.LittleEndian.Uint32(src))
	case 8:
		return binary.LittleEndian.Uint64(src)
	}
	return 0
}

// SignExtend interprets bits as a two's complement value of the type's width.
func (t PayloadType) SignExtend(bits uint64) int64 {
	shift := 64 - 8*uint(t.Size())
	return int64(bits<<shift) >> shift
}

// FloatBits converts between a float element and its raw bits.
func FloatBits(f float32) uint64 { return uint64(math.Float32bits(f)) }

func FloatFromBits(bits uint64) float32 { return math.Float32frombits(uint32(bits)) }
