// internal/register/core.go
package register

import "github.com/tamzrod/harp-replicator/internal/harp"

// Common register addresses shared by every Harp device.
const (
	AddrWhoAmI              uint8 = 0
	AddrHardwareVersionHigh uint8 = 1
	AddrHardwareVersionLow  uint8 = 2
	AddrAssemblyVersion     uint8 = 3
	AddrCoreVersionHigh     uint8 = 4
	AddrCoreVersionLow      uint8 = 5
	AddrFirmwareVersionHigh uint8 = 6
	AddrFirmwareVersionLow  uint8 = 7
	AddrTimestampSeconds    uint8 = 8
	AddrTimestampMicros     uint8 = 9
	AddrOperationControl    uint8 = 10
	AddrResetDevice         uint8 = 11
	AddrDeviceName          uint8 = 12
	AddrSerialNumber        uint8 = 13
	AddrClockConfiguration  uint8 = 14
)

// DeviceNameLength is the fixed byte length of the DeviceName register.
const DeviceNameLength = 25

// Device-specific registers start here.
const FirstAppAddress uint8 = 32

var (
	WhoAmI = Descriptor{
		Name: "WhoAmI", Address: AddrWhoAmI, Type: harp.U16, Length: 1, Access: Readable,
		Description: "Identity class of the device.",
	}
	DeviceName = Descriptor{
		Name: "DeviceName", Address: AddrDeviceName, Type: harp.U8, Length: DeviceNameLength, Access: ReadWrite,
		Description: "Zero-padded ASCII device name.",
	}
)

// Core is the base table every device table extends.
var Core = Table{name: "core", byAddr: map[uint8]Descriptor{}}.MustExtend(
	WhoAmI,
	Descriptor{Name: "HardwareVersionHigh", Address: AddrHardwareVersionHigh, Type: harp.U8, Length: 1, Access: Readable},
	Descriptor{Name: "HardwareVersionLow", Address: AddrHardwareVersionLow, Type: harp.U8, Length: 1, Access: Readable},
	Descriptor{Name: "AssemblyVersion", Address: AddrAssemblyVersion, Type: harp.U8, Length: 1, Access: Readable},
	Descriptor{Name: "CoreVersionHigh", Address: AddrCoreVersionHigh, Type: harp.U8, Length: 1, Access: Readable},
	Descriptor{Name: "CoreVersionLow", Address: AddrCoreVersionLow, Type: harp.U8, Length: 1, Access: Readable},
	Descriptor{Name: "FirmwareVersionHigh", Address: AddrFirmwareVersionHigh, Type: harp.U8, Length: 1, Access: Readable},
	Descriptor{Name: "FirmwareVersionLow", Address: AddrFirmwareVersionLow, Type: harp.U8, Length: 1, Access: Readable},
	Descriptor{Name: "TimestampSeconds", Address: AddrTimestampSeconds, Type: harp.U32, Length: 1, Access: ReadWrite | Evented},
	Descriptor{Name: "TimestampMicroseconds", Address: AddrTimestampMicros, Type: harp.U16, Length: 1, Access: Readable},
	Descriptor{Name: "OperationControl", Address: AddrOperationControl, Type: harp.U8, Length: 1, Access: ReadWrite},
	Descriptor{Name: "ResetDevice", Address: AddrResetDevice, Type: harp.U8, Length: 1, Access: ReadWrite},
	DeviceName,
	Descriptor{Name: "SerialNumber", Address: AddrSerialNumber, Type: harp.U16, Length: 1, Access: ReadWrite},
	Descriptor{Name: "ClockConfiguration", Address: AddrClockConfiguration, Type: harp.U8, Length: 1, Access: ReadWrite},
)

// WhoAmIRegister is the typed identity register.
var WhoAmIRegister = Must[uint16](WhoAmI)

// DeviceNameRegister is the typed name register (25 bytes).
var DeviceNameRegister = Must[uint8](DeviceName)
