// internal/harp/errors.go
package harp

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRegister means the address is not declared in the device table.
	// Schema error, not retryable.
	ErrUnknownRegister = errors.New("harp: unknown register")

	// ErrNotWritable means a write was requested on a register the device
	// table declares without write access. Never sent.
	ErrNotWritable = errors.New("harp: register is not writable")

	// ErrPayloadLengthMismatch means a payload byte count (or value count)
	// disagrees with the register's declared length.
	ErrPayloadLengthMismatch = errors.New("harp: payload length mismatch")

	// ErrPayloadTypeMismatch means a reply carried a different payload type
	// than the register declares.
	ErrPayloadTypeMismatch = errors.New("harp: payload type mismatch")

	// ErrIdentityMismatch is matched by *IdentityMismatchError.
	ErrIdentityMismatch = errors.New("harp: identity mismatch")

	// ErrErrorReply means the device answered with the error flag set.
	ErrErrorReply = errors.New("harp: device replied with error")

	// ErrMissingTimestamp means a timestamped decode was requested on an
	// untimestamped message.
	ErrMissingTimestamp = errors.New("harp: message has no timestamp")

	// ---- framing ----

	ErrShortFrame         = errors.New("harp: short frame")
	ErrChecksum           = errors.New("harp: checksum mismatch")
	ErrInvalidPayloadType = errors.New("harp: invalid payload type")
	ErrInvalidMessageType = errors.New("harp: invalid message type")
)

// IdentityMismatchError is returned when the WhoAmI register does not hold
// the constant expected for the device type. The connection attempt is void.
type IdentityMismatchError struct {
	Device   string
	Port     string
	Expected uint16
	Observed uint16
}

func (e *IdentityMismatchError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf(
			"harp: device id %d on %s was unexpected: expected %d (%s)",
			e.Observed, e.Port, e.Expected, e.Device,
		)
	}
	return fmt.Sprintf(
		"harp: device id %d was unexpected: expected %d (%s)",
		e.Observed, e.Expected, e.Device,
	)
}

func (e *IdentityMismatchError) Is(target error) bool {
	return target == ErrIdentityMismatch
}

// TransportError wraps any failure of a request/reply exchange
// (timeout, disconnect, malformed or error reply). Always propagated.
type TransportError struct {
	Op      string // "read" | "write"
	Address uint8
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("harp: %s register %d: %v", e.Op, e.Address, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err originated in the request/reply exchange.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
