// internal/register/descriptor.go
package register

import (
	"fmt"
	"strings"

	"github.com/tamzrod/harp-replicator/internal/harp"
)

// Access is the set of operations a register supports.
type Access uint8

const (
	Readable Access = 1 << iota
	Writable
	Evented
)

const ReadWrite = Readable | Writable

func (a Access) Has(x Access) bool { return a&x == x }

func (a Access) String() string {
	var parts []string
	if a.Has(Readable) {
		parts = append(parts, "R")
	}
	if a.Has(Writable) {
		parts = append(parts, "W")
	}
	if a.Has(Evented) {
		parts = append(parts, "E")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "")
}

// Descriptor is the static schema of one register.
// Value type; one per (device, address) for the life of the process.
type Descriptor struct {
	Name        string
	Address     uint8
	Type        harp.PayloadType
	Length      int // elements, not bytes
	Access      Access
	Description string
}

// PayloadSize is the exact byte count of a full register payload.
func (d Descriptor) PayloadSize() int {
	return d.Type.Size() * d.Length
}

// Words is the number of 16-bit words the register occupies when each
// element is laid out on whole words (U8/S8 take one word each).
func (d Descriptor) Words() int {
	per := d.Type.Size() / 2
	if per < 1 {
		per = 1
	}
	return per * d.Length
}

func (d Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("register %d: name required", d.Address)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("register %s: %w", d.Name, harp.ErrInvalidPayloadType)
	}
	if d.Length < 1 {
		return fmt.Errorf("register %s: length must be >= 1", d.Name)
	}
	return nil
}

func (d Descriptor) String() string {
	if d.Length == 1 {
		return fmt.Sprintf("%s@%d %s %s", d.Name, d.Address, d.Type, d.Access)
	}
	return fmt.Sprintf("%s@%d %s[%d] %s", d.Name, d.Address, d.Type, d.Length, d.Access)
}

// checkPayload guards every decode and every outbound write.
func (d Descriptor) checkPayload(payload []byte) error {
	if len(payload) != d.PayloadSize() {
		return fmt.Errorf(
			"%w: register %s expects %d bytes, got %d",
			harp.ErrPayloadLengthMismatch, d.Name, d.PayloadSize(), len(payload),
		)
	}
	return nil
}
