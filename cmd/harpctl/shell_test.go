// cmd/harpctl/shell_test.go
package main

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/harp-replicator/internal/device"
	"github.com/tamzrod/harp-replicator/internal/device/licketysplit"
	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/register"
)

type fakeTarget struct {
	values  map[uint8][]register.Value
	written map[uint8][]register.Value
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		values: map[uint8][]register.Value{
			licketysplit.AddrLickState:                {{Type: harp.U8, Bits: 0x01}},
			licketysplit.AddrChannel0TriggerThreshold: {{Type: harp.U8, Bits: 80}},
		},
		written: map[uint8][]register.Value{},
	}
}

func (f *fakeTarget) Info() device.Info { return licketysplit.Info }

func (f *fakeTarget) ReadValues(_ context.Context, d register.Descriptor) ([]register.Value, float64, error) {
	v, ok := f.values[d.Address]
	if !ok {
		return nil, 0, harp.ErrErrorReply
	}
	return v, 1.5, nil
}

func (f *fakeTarget) WriteValues(_ context.Context, d register.Descriptor, values []register.Value) error {
	f.written[d.Address] = values
	return nil
}

func (f *fakeTarget) ReadDeviceName(context.Context) (string, error) { return "lick-rig", nil }

func newTestShell() (*shell, *fakeTarget, *bytes.Buffer, *atomic.Bool) {
	var buf bytes.Buffer
	var events atomic.Bool
	ft := newFakeTarget()
	return newShell(ft, &buf, 100*time.Millisecond, &events), ft, &buf, &events
}

func TestShellReadByNameAndAddress(t *testing.T) {
	sh, _, out, _ := newTestShell()

	_, err := sh.exec(context.Background(), "read Channel0TriggerThreshold")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Channel0TriggerThreshold = 80")

	out.Reset()
	_, err = sh.exec(context.Background(), "tread 32")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "LickState = 1 @ 1.500000s")
}

func TestShellReadUnknownRegister(t *testing.T) {
	sh, _, _, _ := newTestShell()
	_, err := sh.exec(context.Background(), "read 99")
	assert.ErrorIs(t, err, harp.ErrUnknownRegister)

	_, err = sh.exec(context.Background(), "read Nope")
	assert.Error(t, err)
}

func TestShellWrite(t *testing.T) {
	sh, ft, _, _ := newTestShell()

	_, err := sh.exec(context.Background(), "write Channel0UntriggerThreshold 0x20")
	require.NoError(t, err)
	require.Len(t, ft.written[licketysplit.AddrChannel0UntriggerThreshold], 1)
	assert.Equal(t, uint64(0x20), ft.written[licketysplit.AddrChannel0UntriggerThreshold][0].Bits)

	_, err = sh.exec(context.Background(), "write Channel0UntriggerThreshold 300")
	assert.Error(t, err, "300 does not fit U8")
}

func TestShellEventsToggle(t *testing.T) {
	sh, _, out, events := newTestShell()

	_, err := sh.exec(context.Background(), "events on")
	require.NoError(t, err)
	assert.True(t, events.Load())

	sh.printEvent(harp.Message{
		Type: harp.Event, Address: licketysplit.AddrLickState, PayloadType: harp.U8,
		Payload: []byte{0x03}, HasTimestamp: true, Timestamp: harp.Timestamp{Seconds: 2},
	})
	assert.Contains(t, out.String(), "event LickState = 3 @ 2.000000s")

	_, err = sh.exec(context.Background(), "events off")
	require.NoError(t, err)
	assert.False(t, events.Load())

	_, err = sh.exec(context.Background(), "events maybe")
	assert.Error(t, err)
}

func TestShellQuitAndUnknown(t *testing.T) {
	sh, _, _, _ := newTestShell()

	quit, err := sh.exec(context.Background(), "quit")
	require.NoError(t, err)
	assert.True(t, quit)

	quit, err = sh.exec(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, quit)

	_, err = sh.exec(context.Background(), "frobnicate")
	assert.Error(t, err)
}

func TestShellWhoAmI(t *testing.T) {
	sh, _, out, _ := newTestShell()
	_, err := sh.exec(context.Background(), "whoami")
	require.NoError(t, err)
	assert.Contains(t, out.String(), `LicketySplit (WhoAmI 1400) name="lick-rig"`)
}

type fakeReader struct {
	regs   []uint16
	addr   uint16
	unit   uint8
	closed bool
}

func (f *fakeReader) ReadRegisters(unitID uint8, addr, qty uint16) ([]uint16, error) {
	f.unit, f.addr = unitID, addr
	if int(qty) > len(f.regs) {
		return nil, errors.New("short read")
	}
	return f.regs[:qty], nil
}

func (f *fakeReader) Close() error { f.closed = true; return nil }

func TestShellMirror(t *testing.T) {
	sh, _, out, _ := newTestShell()

	fr := &fakeReader{regs: []uint16{80}}
	old := mirrorDialer
	mirrorDialer = func(string, time.Duration) (registerReader, error) { return fr, nil }
	t.Cleanup(func() { mirrorDialer = old })

	_, err := sh.exec(context.Background(), "mirror 127.0.0.1:502 3 1000 Channel0TriggerThreshold")
	require.NoError(t, err)
	assert.Equal(t, uint8(3), fr.unit)
	assert.Equal(t, uint16(1000+33), fr.addr)
	assert.True(t, fr.closed)
	assert.Contains(t, out.String(), "mirror ok")

	fr.regs = []uint16{81}
	out.Reset()
	_, err = sh.exec(context.Background(), "mirror 127.0.0.1:502 3 1000 Channel0TriggerThreshold")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "MISMATCH")
}

func TestShellRegsListsTable(t *testing.T) {
	sh, _, out, _ := newTestShell()
	_, err := sh.exec(context.Background(), "regs")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "WhoAmI")
	assert.Contains(t, out.String(), "LickState")
}
