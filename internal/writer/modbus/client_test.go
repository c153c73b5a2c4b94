// internal/writer/modbus/client_test.go
package modbus

import "testing"

func TestPackUnpackRegisters(t *testing.T) {
	regs := []uint16{0x0578, 0x0001, 0xFFFF}

	raw := packRegisters(regs)
	if raw[0] != 0x05 || raw[1] != 0x78 {
		t.Fatalf("expected big-endian words on the wire, got % x", raw[:2])
	}

	back := unpackRegisters(raw)
	for i := range regs {
		if back[i] != regs[i] {
			t.Fatalf("reg %d: got %#04x want %#04x", i, back[i], regs[i])
		}
	}
}

func TestNewEndpointClient_RequiresEndpoint(t *testing.T) {
	if _, err := NewEndpointClient(Config{}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}
