// internal/writer/writer_test.go
package writer

import (
	"errors"
	"testing"

	"github.com/tamzrod/harp-replicator/internal/device/licketysplit"
	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/poller"
	"github.com/tamzrod/harp-replicator/internal/register"
)

// ---- fake endpoint client ----

type fakeEndpointClient struct {
	writes []writeCall
	fail   error

	// last call, for status tests
	lastRegsAddr uint16
	lastRegs     []uint16
}

type writeCall struct {
	unitID uint8
	addr   uint16
	regs   []uint16
}

func (f *fakeEndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if f.fail != nil {
		return f.fail
	}
	f.writes = append(f.writes, writeCall{unitID: unitID, addr: addr, regs: regs})
	f.lastRegsAddr = addr
	f.lastRegs = regs
	return nil
}

func (f *fakeEndpointClient) Close() error { return nil }

func u8Block(d register.Descriptor, v uint64) poller.BlockResult {
	return poller.BlockResult{Descriptor: d, Values: []register.Value{{Type: d.Type, Bits: v}}}
}

// ---- tests ----

func TestWriter_OffsetMath(t *testing.T) {
	fake := &fakeEndpointClient{}

	plan := Plan{
		UnitID: "unit-1",
		Targets: []TargetEndpoint{
			{TargetID: 1, Endpoint: "ep1", UnitID: 7, Offset: 100},
		},
	}

	w := New(plan, map[string]endpointClient{"ep1": fake})

	res := poller.PollResult{
		UnitID: "unit-1",
		Blocks: []poller.BlockResult{
			u8Block(licketysplit.LickState.Descriptor, 0x03),
			u8Block(licketysplit.Channel0TriggerThreshold.Descriptor, 80),
		},
	}

	if err := w.Write(res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(fake.writes))
	}
	if fake.writes[0].addr != 132 { // 100 + 32
		t.Fatalf("expected LickState at 132, got %d", fake.writes[0].addr)
	}
	if fake.writes[1].addr != 133 || fake.writes[1].regs[0] != 80 {
		t.Fatalf("unexpected threshold write: %+v", fake.writes[1])
	}
	if fake.writes[0].unitID != 7 {
		t.Fatalf("expected unit id 7, got %d", fake.writes[0].unitID)
	}
}

func TestWriter_DefaultOffsetZero(t *testing.T) {
	fake := &fakeEndpointClient{}

	plan := Plan{
		UnitID:  "unit-1",
		Targets: []TargetEndpoint{{TargetID: 1, Endpoint: "ep1", UnitID: 1}},
	}

	w := New(plan, map[string]endpointClient{"ep1": fake})

	res := poller.PollResult{
		Blocks: []poller.BlockResult{u8Block(licketysplit.LickState.Descriptor, 1)},
	}

	if err := w.Write(res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fake.writes[0].addr != 32 {
		t.Fatalf("expected addr 32, got %d", fake.writes[0].addr)
	}
}

func TestWriter_FailedCycleWritesNothing(t *testing.T) {
	fake := &fakeEndpointClient{}
	w := New(Plan{Targets: []TargetEndpoint{{Endpoint: "ep1"}}}, map[string]endpointClient{"ep1": fake})

	res := poller.PollResult{Err: errors.New("timeout")}
	if err := w.Write(res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.writes) != 0 {
		t.Fatalf("expected no writes, got %d", len(fake.writes))
	}
}

func TestWriter_MissingClient(t *testing.T) {
	w := New(Plan{Targets: []TargetEndpoint{{Endpoint: "ep1"}}}, map[string]endpointClient{})

	res := poller.PollResult{Blocks: []poller.BlockResult{u8Block(licketysplit.LickState.Descriptor, 1)}}
	if err := w.Write(res); err == nil {
		t.Fatalf("expected missing client error")
	}
}

func TestWords_WideValuesSplitLowWordFirst(t *testing.T) {
	d := register.Descriptor{Name: "Counter", Address: 40, Type: harp.U32, Length: 2}
	b := poller.BlockResult{
		Descriptor: d,
		Values: []register.Value{
			{Type: harp.U32, Bits: 0x00010002},
			{Type: harp.U32, Bits: 0xAABBCCDD},
		},
	}

	got := Words(b)
	want := []uint16{0x0002, 0x0001, 0xCCDD, 0xAABB}

	if len(got) != d.Words() || len(got) != len(want) {
		t.Fatalf("expected %d words, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("word %d: got %#04x want %#04x", i, got[i], want[i])
		}
	}
}
