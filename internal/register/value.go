// internal/register/value.go
package register

import (
	"fmt"
	"strconv"

	"github.com/tamzrod/harp-replicator/internal/harp"
)

// Value is one payload element whose Go type is only known at runtime
// (config-driven polling, the interactive shell).
type Value struct {
	Type harp.PayloadType
	Bits uint64
}

func (v Value) Uint() uint64 { return v.Bits }

func (v Value) Int() int64 {
	if v.Type.IsSigned() {
		return v.Type.SignExtend(v.Bits)
	}
	return int64(v.Bits)
}

// Float returns the numeric value, whatever the payload type.
func (v Value) Float() float64 {
	switch {
	case v.Type.IsFloat():
		return float64(harp.FloatFromBits(v.Bits))
	case v.Type.IsSigned():
		return float64(v.Type.SignExtend(v.Bits))
	default:
		return float64(v.Bits)
	}
}

// Number is the value as float64, int64 or uint64, following the payload type.
func (v Value) Number() any {
	switch {
	case v.Type.IsFloat():
		return v.Float()
	case v.Type.IsSigned():
		return v.Int()
	default:
		return v.Uint()
	}
}

func (v Value) String() string {
	switch {
	case v.Type.IsFloat():
		return strconv.FormatFloat(float64(harp.FloatFromBits(v.Bits)), 'g', -1, 32)
	case v.Type.IsSigned():
		return strconv.FormatInt(v.Type.SignExtend(v.Bits), 10)
	default:
		return strconv.FormatUint(v.Bits, 10)
	}
}

// DecodeValues splits a payload into runtime-typed elements.
func (d Descriptor) DecodeValues(payload []byte) ([]Value, error) {
	if err := d.checkPayload(payload); err != nil {
		return nil, err
	}
	size := d.Type.Size()
	out := make([]Value, d.Length)
	for i := range out {
		out[i] = Value{Type: d.Type, Bits: d.Type.Element(payload[i*size:])}
	}
	return out, nil
}

// EncodeValues is the inverse of DecodeValues.
func (d Descriptor) EncodeValues(values []Value) ([]byte, error) {
	if len(values) != d.Length {
		return nil, fmt.Errorf(
			"%w: register %s expects %d values, got %d",
			harp.ErrPayloadLengthMismatch, d.Name, d.Length, len(values),
		)
	}
	size := d.Type.Size()
	out := make([]byte, d.PayloadSize())
	for i, v := range values {
		if v.Type != d.Type {
			return nil, fmt.Errorf("%w: register %s is %s, value %d is %s", harp.ErrPayloadTypeMismatch, d.Name, d.Type, i, v.Type)
		}
		d.Type.PutElement(out[i*size:], v.Bits)
	}
	return out, nil
}

// ParseValues converts text (decimal, 0x hex, or float) to values of d's type,
// rejecting anything that does not fit the element width.
func ParseValues(d Descriptor, args []string) ([]Value, error) {
	if len(args) != d.Length {
		return nil, fmt.Errorf(
			"%w: register %s expects %d values, got %d",
			harp.ErrPayloadLengthMismatch, d.Name, d.Length, len(args),
		)
	}
	bitSize := 8 * d.Type.Size()
	out := make([]Value, len(args))
	for i, s := range args {
		var bits uint64
		switch {
		case d.Type.IsFloat():
			f, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, fmt.Errorf("register %s: value %q: %w", d.Name, s, err)
			}
			bits = harp.FloatBits(float32(f))
		case d.Type.IsSigned():
			n, err := strconv.ParseInt(s, 0, bitSize)
			if err != nil {
				return nil, fmt.Errorf("register %s: value %q: %w", d.Name, s, err)
			}
			bits = uint64(n) & mask(bitSize)
		default:
			n, err := strconv.ParseUint(s, 0, bitSize)
			if err != nil {
				return nil, fmt.Errorf("register %s: value %q: %w", d.Name, s, err)
			}
			bits = n
		}
		out[i] = Value{Type: d.Type, Bits: bits}
	}
	return out, nil
}

func mask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (1 << uint(bits)) - 1
}
