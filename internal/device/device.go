// internal/device/device.go
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/register"
)

// Transport is the request/reply contract the accessors depend on.
// It owns framing, correlation of replies to requests, and timeouts.
type Transport interface {
	Command(ctx context.Context, req harp.Message) (harp.Message, error)
	Close() error
}

// Info identifies a device type.
type Info struct {
	Name   string
	WhoAmI uint16
	Table  register.Table
}

// Device is a connected, identity-checked Harp device.
// Safe for concurrent use as long as the Transport is.
type Device struct {
	info Info
	tr   Transport
	port string
}

// Option configures Connect.
type Option func(*Device)

// WithPort records the port name for error messages.
func WithPort(name string) Option {
	return func(d *Device) { d.port = name }
}

// Connect reads WhoAmI and returns a Device only if it matches info.WhoAmI.
// On any failure the transport is closed and no Device is returned.
func Connect(ctx context.Context, tr Transport, info Info, opts ...Option) (*Device, error) {
	if tr == nil {
		return nil, errors.New("device: transport required")
	}
	d := &Device{info: info, tr: tr}
	for _, o := range opts {
		o(d)
	}

	who, err := Read(ctx, d, register.WhoAmIRegister)
	if err != nil {
		_ = tr.Close()
		return nil, fmt.Errorf("device: identify %s: %w", info.Name, err)
	}
	if who != info.WhoAmI {
		_ = tr.Close()
		return nil, &harp.IdentityMismatchError{
			Device:   info.Name,
			Port:     d.port,
			Expected: info.WhoAmI,
			Observed: who,
		}
	}

	return d, nil
}

func (d *Device) Info() Info { return d.info }

func (d *Device) Table() register.Table { return d.info.Table }

func (d *Device) Port() string { return d.port }

// Close closes the underlying transport.
func (d *Device) Close() error {
	if d == nil || d.tr == nil {
		return nil
	}
	return d.tr.Close()
}

// ReadDeviceName reads the core DeviceName register as a trimmed string.
func (d *Device) ReadDeviceName(ctx context.Context) (string, error) {
	b, err := ReadArray(ctx, d, register.DeviceNameRegister)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00 "), nil
}

// ---- typed accessors ----

// Read issues one read of r and decodes the reply.
func Read[T register.Element](ctx context.Context, d *Device, r register.Register[T]) (T, error) {
	var zero T
	reply, err := d.roundTrip(ctx, r.Descriptor, register.BuildRead(r.Descriptor))
	if err != nil {
		return zero, err
	}
	v, err := r.Decode(reply.Payload)
	if err != nil {
		return zero, &harp.TransportError{Op: "read", Address: r.Address, Err: err}
	}
	return v, nil
}

// ReadTimestamped is Read paired with the reply's device timestamp.
func ReadTimestamped[T register.Element](ctx context.Context, d *Device, r register.Register[T]) (harp.Timestamped[T], error) {
	reply, err := d.roundTrip(ctx, r.Descriptor, register.BuildRead(r.Descriptor))
	if err != nil {
		return harp.Timestamped[T]{}, err
	}
	if !reply.HasTimestamp {
		return harp.Timestamped[T]{}, &harp.TransportError{Op: "read", Address: r.Address, Err: harp.ErrMissingTimestamp}
	}
	v, err := r.DecodeTimestamped(reply.Payload, reply.Seconds())
	if err != nil {
		return harp.Timestamped[T]{}, &harp.TransportError{Op: "read", Address: r.Address, Err: err}
	}
	return v, nil
}

// ReadArray reads every element of a multi-element register.
func ReadArray[T register.Element](ctx context.Context, d *Device, r register.Register[T]) ([]T, error) {
	reply, err := d.roundTrip(ctx, r.Descriptor, register.BuildRead(r.Descriptor))
	if err != nil {
		return nil, err
	}
	v, err := r.DecodeArray(reply.Payload)
	if err != nil {
		return nil, &harp.TransportError{Op: "read", Address: r.Address, Err: err}
	}
	return v, nil
}

// Write encodes values and waits for the device to acknowledge.
// Length errors are reported before anything is sent.
func Write[T register.Element](ctx context.Context, d *Device, r register.Register[T], values ...T) error {
	req, err := r.Message(harp.Write, values...)
	if err != nil {
		return err
	}
	_, err = d.roundTrip(ctx, r.Descriptor, req)
	return err
}

// ---- runtime-typed accessors ----

// ReadValues reads d by descriptor and returns the values and reply timestamp.
func (d *Device) ReadValues(ctx context.Context, desc register.Descriptor) ([]register.Value, float64, error) {
	reply, err := d.roundTrip(ctx, desc, register.BuildRead(desc))
	if err != nil {
		return nil, 0, err
	}
	vals, err := desc.DecodeValues(reply.Payload)
	if err != nil {
		return nil, 0, &harp.TransportError{Op: "read", Address: desc.Address, Err: err}
	}
	return vals, reply.Seconds(), nil
}

// WriteValues writes runtime-typed values to desc.
func (d *Device) WriteValues(ctx context.Context, desc register.Descriptor, values []register.Value) error {
	payload, err := desc.EncodeValues(values)
	if err != nil {
		return err
	}
	req, err := register.BuildWrite(desc, harp.Write, payload)
	if err != nil {
		return err
	}
	_, err = d.roundTrip(ctx, desc, req)
	return err
}

// roundTrip performs exactly one exchange and validates the reply envelope.
func (d *Device) roundTrip(ctx context.Context, desc register.Descriptor, req harp.Message) (harp.Message, error) {
	if !d.info.Table.Contains(desc) {
		if _, err := d.info.Table.Lookup(desc.Address); err != nil {
			return harp.Message{}, err
		}
		return harp.Message{}, fmt.Errorf("%w: %s at address %d is not declared by %s", harp.ErrUnknownRegister, desc.Name, desc.Address, d.info.Name)
	}

	op := "read"
	if req.Type == harp.Write {
		op = "write"
		if !desc.Access.Has(register.Writable) {
			return harp.Message{}, fmt.Errorf("%w: %s (%s) on %s", harp.ErrNotWritable, desc.Name, desc.Access, d.info.Name)
		}
	}

	reply, err := d.tr.Command(ctx, req)
	if err != nil {
		return harp.Message{}, &harp.TransportError{Op: op, Address: desc.Address, Err: err}
	}
	if reply.Error {
		return harp.Message{}, &harp.TransportError{Op: op, Address: desc.Address, Err: harp.ErrErrorReply}
	}
	if reply.Address != desc.Address || reply.Type != req.Type {
		return harp.Message{}, &harp.TransportError{
			Op: op, Address: desc.Address,
			Err: fmt.Errorf("unexpected reply %s", reply),
		}
	}
	if reply.PayloadType != desc.Type {
		return harp.Message{}, &harp.TransportError{
			Op: op, Address: desc.Address,
			Err: fmt.Errorf("%w: want %s, got %s", harp.ErrPayloadTypeMismatch, desc.Type, reply.PayloadType),
		}
	}
	return reply, nil
}
