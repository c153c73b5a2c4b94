// internal/device/licketysplit/licketysplit.go
package licketysplit

import (
	"context"

	"github.com/tamzrod/harp-replicator/internal/device"
	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/register"
)

// WhoAmI is the identity class of the LicketySplit lick detector.
const WhoAmI uint16 = 1400

const Name = "LicketySplit"

const (
	AddrLickState                  uint8 = 32
	AddrChannel0TriggerThreshold   uint8 = 33
	AddrChannel0UntriggerThreshold uint8 = 34
)

var (
	// LickState emits an event whenever any channel changes; a set bit means a lick.
	LickState = register.Must[LickChannels](register.Descriptor{
		Name:        "LickState",
		Address:     AddrLickState,
		Type:        harp.U8,
		Length:      1,
		Access:      register.Readable | register.Evented,
		Description: "Emits an event when the state of any lick detector changes.",
	})

	// Channel0TriggerThreshold: samples below it are a detected lick.
	Channel0TriggerThreshold = register.Must[uint8](register.Descriptor{
		Name:        "Channel0TriggerThreshold",
		Address:     AddrChannel0TriggerThreshold,
		Type:        harp.U8,
		Length:      1,
		Access:      register.ReadWrite,
		Description: "Threshold value to detect the lick.",
	})

	// Channel0UntriggerThreshold: samples above it release a detected lick.
	Channel0UntriggerThreshold = register.Must[uint8](register.Descriptor{
		Name:        "Channel0UntriggerThreshold",
		Address:     AddrChannel0UntriggerThreshold,
		Type:        harp.U8,
		Length:      1,
		Access:      register.ReadWrite,
		Description: "Threshold value to release the lick detection state.",
	})
)

var Table = register.Core.Named(Name).MustExtend(
	LickState.Descriptor,
	Channel0TriggerThreshold.Descriptor,
	Channel0UntriggerThreshold.Descriptor,
)

var Info = device.Info{Name: Name, WhoAmI: WhoAmI, Table: Table}

type Device struct {
	*device.Device
}

func Connect(ctx context.Context, tr device.Transport, opts ...device.Option) (*Device, error) {
	d, err := device.Connect(ctx, tr, Info, opts...)
	if err != nil {
		return nil, err
	}
	return &Device{Device: d}, nil
}

// ---- LickState ----

func (d *Device) ReadLickState(ctx context.Context) (LickChannels, error) {
	return device.Read(ctx, d.Device, LickState)
}

func (d *Device) ReadTimestampedLickState(ctx context.Context) (harp.Timestamped[LickChannels], error) {
	return device.ReadTimestamped(ctx, d.Device, LickState)
}

// ---- Channel0TriggerThreshold ----

func (d *Device) ReadChannel0TriggerThreshold(ctx context.Context) (uint8, error) {
	return device.Read(ctx, d.Device, Channel0TriggerThreshold)
}

func (d *Device) ReadTimestampedChannel0TriggerThreshold(ctx context.Context) (harp.Timestamped[uint8], error) {
	return device.ReadTimestamped(ctx, d.Device, Channel0TriggerThreshold)
}

func (d *Device) WriteChannel0TriggerThreshold(ctx context.Context, v uint8) error {
	return device.Write(ctx, d.Device, Channel0TriggerThreshold, v)
}

// ---- Channel0UntriggerThreshold ----

func (d *Device) ReadChannel0UntriggerThreshold(ctx context.Context) (uint8, error) {
	return device.Read(ctx, d.Device, Channel0UntriggerThreshold)
}

func (d *Device) ReadTimestampedChannel0UntriggerThreshold(ctx context.Context) (harp.Timestamped[uint8], error) {
	return device.ReadTimestamped(ctx, d.Device, Channel0UntriggerThreshold)
}

func (d *Device) WriteChannel0UntriggerThreshold(ctx context.Context, v uint8) error {
	return device.Write(ctx, d.Device, Channel0UntriggerThreshold, v)
}
