// internal/register/codec.go
package register

import (
	"fmt"
	"reflect"

	"github.com/tamzrod/harp-replicator/internal/harp"
)

// Element is any Go type that can hold one payload element.
// Named types (bitflag sets) are accepted through the ~ constraints.
type Element interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64 | ~float32
}

// Register is the typed codec for one descriptor. The same code serves
// every register; only the descriptor and T differ.
type Register[T Element] struct {
	Descriptor
}

// New binds T to d. T must match the payload type's width, signedness
// and float-ness exactly.
func New[T Element](d Descriptor) (Register[T], error) {
	if err := d.validate(); err != nil {
		return Register[T]{}, err
	}
	var zero T
	size, signed, float := elementKind(reflect.TypeOf(zero).Kind())
	if size != d.Type.Size() || float != d.Type.IsFloat() || (!float && signed != d.Type.IsSigned()) {
		return Register[T]{}, fmt.Errorf(
			"%w: register %s is %s, Go type %T does not fit",
			harp.ErrPayloadTypeMismatch, d.Name, d.Type, zero,
		)
	}
	return Register[T]{Descriptor: d}, nil
}

// Must is New for package-level registers.
func Must[T Element](d Descriptor) Register[T] {
	r, err := New[T](d)
	if err != nil {
		panic(err)
	}
	return r
}

// ---- decode ----

// Decode reads a single-element register payload.
func (r Register[T]) Decode(payload []byte) (T, error) {
	var zero T
	if r.Length != 1 {
		return zero, fmt.Errorf("%w: register %s has %d elements, use DecodeArray", harp.ErrPayloadLengthMismatch, r.Name, r.Length)
	}
	if err := r.checkPayload(payload); err != nil {
		return zero, err
	}
	return r.fromBits(r.Type.Element(payload)), nil
}

// DecodeArray reads every element of the payload.
func (r Register[T]) DecodeArray(payload []byte) ([]T, error) {
	if err := r.checkPayload(payload); err != nil {
		return nil, err
	}
	size := r.Type.Size()
	out := make([]T, r.Length)
	for i := range out {
		out[i] = r.fromBits(r.Type.Element(payload[i*size:]))
	}
	return out, nil
}

// DecodeTimestamped pairs Decode with a timestamp taken from the reply envelope.
func (r Register[T]) DecodeTimestamped(payload []byte, seconds float64) (harp.Timestamped[T], error) {
	v, err := r.Decode(payload)
	if err != nil {
		return harp.Timestamped[T]{}, err
	}
	return harp.NewTimestamped(v, seconds), nil
}

// DecodeMessage decodes a message payload after checking it belongs to r.
func (r Register[T]) DecodeMessage(m harp.Message) (T, error) {
	var zero T
	if err := r.checkMessage(m); err != nil {
		return zero, err
	}
	return r.Decode(m.Payload)
}

// DecodeTimestampedMessage requires the message to carry a timestamp.
func (r Register[T]) DecodeTimestampedMessage(m harp.Message) (harp.Timestamped[T], error) {
	if err := r.checkMessage(m); err != nil {
		return harp.Timestamped[T]{}, err
	}
	if !m.HasTimestamp {
		return harp.Timestamped[T]{}, fmt.Errorf("%w: register %s", harp.ErrMissingTimestamp, r.Name)
	}
	return r.DecodeTimestamped(m.Payload, m.Seconds())
}

// ---- encode ----

// Encode is the inverse of Decode/DecodeArray. The value count must equal
// the register length; nothing is produced otherwise.
func (r Register[T]) Encode(values ...T) ([]byte, error) {
	if len(values) != r.Length {
		return nil, fmt.Errorf(
			"%w: register %s expects %d values, got %d",
			harp.ErrPayloadLengthMismatch, r.Name, r.Length, len(values),
		)
	}
	size := r.Type.Size()
	out := make([]byte, r.PayloadSize())
	for i, v := range values {
		r.Type.PutElement(out[i*size:], r.toBits(v))
	}
	return out, nil
}

// ---- bit conversion ----

func (r Register[T]) fromBits(bits uint64) T {
	switch {
	case r.Type.IsFloat():
		return T(harp.FloatFromBits(bits))
	case r.Type.IsSigned():
		return T(r.Type.SignExtend(bits))
	default:
		return T(bits)
	}
}

func (r Register[T]) toBits(v T) uint64 {
	switch {
	case r.Type.IsFloat():
		return harp.FloatBits(float32(v))
	case r.Type.IsSigned():
		return uint64(int64(v))
	default:
		return uint64(v)
	}
}

func (r Register[T]) checkMessage(m harp.Message) error {
	if m.Address != r.Address {
		return fmt.Errorf("%w: message address %d is not register %s (%d)", harp.ErrUnknownRegister, m.Address, r.Name, r.Address)
	}
	if m.PayloadType != r.Type {
		return fmt.Errorf("%w: register %s is %s, message is %s", harp.ErrPayloadTypeMismatch, r.Name, r.Type, m.PayloadType)
	}
	return nil
}

func elementKind(k reflect.Kind) (size int, signed, float bool) {
	switch k {
	case reflect.Uint8:
		return 1, false, false
	case reflect.Int8:
		return 1, true, false
	case reflect.Uint16:
		return 2, false, false
	case reflect.Int16:
		return 2, true, false
	case reflect.Uint32:
		return 4, false, false
	case reflect.Int32:
		return 4, true, false
	case reflect.Uint64:
		return 8, false, false
	case reflect.Int64:
		return 8, true, false
	case reflect.Float32:
		return 4, false, true
	}
	return 0, false, false
}
