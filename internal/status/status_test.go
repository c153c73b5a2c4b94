// internal/status/status_test.go
package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/transport"
)

func TestEncode_Layout(t *testing.T) {
	regs := Encode(
		Snapshot{Health: HealthError, LastErrorCode: ErrCodeTimeout, SecondsInError: 9},
		Identity{WhoAmI: 1400, DeviceName: "RIG-1"},
	)

	if len(regs) != SlotsPerDevice {
		t.Fatalf("expected %d regs, got %d", SlotsPerDevice, len(regs))
	}
	if regs[SlotHealthCode] != HealthError || regs[SlotLastErrorCode] != ErrCodeTimeout || regs[SlotSecondsInError] != 9 {
		t.Fatalf("live slots wrong: %v", regs[:3])
	}
	if regs[SlotWhoAmI] != 1400 {
		t.Fatalf("whoami slot wrong: %d", regs[SlotWhoAmI])
	}
	for i := SlotReservedStart; i <= SlotReservedEnd; i++ {
		if regs[i] != 0 {
			t.Fatalf("reserved slot %d not zero", i)
		}
	}
	if regs[SlotDeviceNameStart] != uint16('R')<<8|uint16('I') {
		t.Fatalf("device name not packed big-endian: %#04x", regs[SlotDeviceNameStart])
	}
}

func TestEncodeDeviceName_TruncatesAndSanitizes(t *testing.T) {
	regs := EncodeDeviceName("ABCDEFGHIJKLMNOPQRST\x01")
	if regs[7] != uint16('O')<<8|uint16('P') {
		t.Fatalf("expected truncation at 16 chars, last reg %#04x", regs[7])
	}

	regs = EncodeDeviceName("A\x01")
	if regs[0] != uint16('A')<<8|uint16('?') {
		t.Fatalf("expected control char replaced: %#04x", regs[0])
	}
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() uint16  { return 42 }

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want uint16
	}{
		{nil, ErrCodeNone},
		{errors.New("x"), ErrCodeGeneric},
		{&harp.TransportError{Op: "read", Address: 32, Err: transport.ErrTimeout}, ErrCodeTimeout},
		{&harp.TransportError{Op: "read", Address: 32, Err: transport.ErrClosed}, ErrCodeLinkDown},
		{&harp.TransportError{Op: "read", Address: 32, Err: harp.ErrErrorReply}, ErrCodeErrorReply},
		{&harp.IdentityMismatchError{Device: "LicketySplit", Expected: 1400, Observed: 1216}, ErrCodeIdentityMismatch},
		{fmt.Errorf("wrapped: %w", codedErr{}), 42},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Fatalf("ErrorCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
