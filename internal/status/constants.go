// internal/status/constants.go
package status

// Status block layout. One block per replicated Harp unit, SlotsPerDevice
// holding registers long, at BaseSlot*SlotsPerDevice in status memory.
// Fixed; readers on the Modbus side depend on it.
const SlotsPerDevice = 20

// Slot offsets inside a block.
const (
	SlotHealthCode     = 0 // Health*
	SlotLastErrorCode  = 1 // ErrCode*
	SlotSecondsInError = 2 // saturating
	SlotWhoAmI         = 3 // identity class the unit was configured for

	// 4..10 reserved, written as zero on full re-assert.
	SlotReservedStart = 4
	SlotReservedEnd   = 10

	// Device name sits at the tail: 8 registers, two ASCII bytes each.
	SlotDeviceNameStart = 11
	SlotDeviceNameSlots = 8
	SlotDeviceNameEnd   = SlotDeviceNameStart + SlotDeviceNameSlots - 1
)

// DeviceNameMaxChars is the number of ASCII characters the name slots hold.
const DeviceNameMaxChars = 2 * SlotDeviceNameSlots

// SecondsInErrorMax is where seconds_in_error stops counting.
const SecondsInErrorMax uint16 = 0xFFFF

// Health codes.
const (
	HealthUnknown uint16 = 0 // boot, no poll completed yet
	HealthOK      uint16 = 1
	HealthError   uint16 = 2
)
