// internal/device/licketysplit/channels.go
package licketysplit

import (
	"fmt"
	"strings"
)

// LickChannels is the bitflag set reported by the LickState register.
// Bits outside Channel0|Channel1 are kept as received.
type LickChannels uint8

const (
	None     LickChannels = 0x0
	Channel0 LickChannels = 0x1
	Channel1 LickChannels = 0x2

	defined = Channel0 | Channel1
)

// Has reports whether every bit of c is set.
func (l LickChannels) Has(c LickChannels) bool { return l&c == c }

func (l LickChannels) Union(c LickChannels) LickChannels { return l | c }

// Undefined returns the bits no channel is declared for.
func (l LickChannels) Undefined() LickChannels { return l &^ defined }

// Valid is false when the device reported undefined bits.
func (l LickChannels) Valid() bool { return l.Undefined() == None }

func (l LickChannels) String() string {
	if l == None {
		return "None"
	}
	var parts []string
	if l.Has(Channel0) {
		parts = append(parts, "Channel0")
	}
	if l.Has(Channel1) {
		parts = append(parts, "Channel1")
	}
	if u := l.Undefined(); u != None {
		parts = append(parts, fmt.Sprintf("0x%02x", uint8(u)))
	}
	return strings.Join(parts, "|")
}
