// internal/device/lickdetector/lickdetector.go
package lickdetector

import (
	"context"

	"github.com/tamzrod/harp-replicator/internal/device"
	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/register"
)

// WhoAmI is the identity class of the LickDetector.
const WhoAmI uint16 = 0

const Name = "LickDetector"

const AddrDetectionThreshold uint8 = 32

var DetectionThreshold = register.Must[uint8](register.Descriptor{
	Name:    "DetectionThreshold",
	Address: AddrDetectionThreshold,
	Type:    harp.U8,
	Length:  1,
	Access:  register.ReadWrite,
})

// Table is the core table plus the LickDetector registers.
var Table = register.Core.Named(Name).MustExtend(DetectionThreshold.Descriptor)

var Info = device.Info{Name: Name, WhoAmI: WhoAmI, Table: Table}

// Device is the LickDetector accessor surface.
type Device struct {
	*device.Device
}

// Connect identifies the device on tr and fails on any other WhoAmI.
func Connect(ctx context.Context, tr device.Transport, opts ...device.Option) (*Device, error) {
	d, err := device.Connect(ctx, tr, Info, opts...)
	if err != nil {
		return nil, err
	}
	return &Device{Device: d}, nil
}

func (d *Device) ReadDetectionThreshold(ctx context.Context) (uint8, error) {
	return device.Read(ctx, d.Device, DetectionThreshold)
}

func (d *Device) ReadTimestampedDetectionThreshold(ctx context.Context) (harp.Timestamped[uint8], error) {
	return device.ReadTimestamped(ctx, d.Device, DetectionThreshold)
}

func (d *Device) WriteDetectionThreshold(ctx context.Context, v uint8) error {
	return device.Write(ctx, d.Device, DetectionThreshold, v)
}
