// cmd/harpctl/shell.go
package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/tamzrod/harp-replicator/internal/device"
	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/poller"
	"github.com/tamzrod/harp-replicator/internal/register"
	"github.com/tamzrod/harp-replicator/internal/writer"
	wmodbus "github.com/tamzrod/harp-replicator/internal/writer/modbus"
)

// target is the device surface the shell drives.
type target interface {
	Info() device.Info
	ReadValues(ctx context.Context, d register.Descriptor) ([]register.Value, float64, error)
	WriteValues(ctx context.Context, d register.Descriptor, values []register.Value) error
	ReadDeviceName(ctx context.Context) (string, error)
}

type registerReader interface {
	ReadRegisters(unitID uint8, addr, qty uint16) ([]uint16, error)
	Close() error
}

// mirrorDialer is swapped in tests.
var mirrorDialer = func(endpoint string, timeout time.Duration) (registerReader, error) {
	return wmodbus.NewEndpointClient(wmodbus.Config{Endpoint: endpoint, Timeout: timeout})
}

type shell struct {
	dev     target
	out     io.Writer
	timeout time.Duration
	events  *atomic.Bool
}

func newShell(dev target, out io.Writer, timeout time.Duration, events *atomic.Bool) *shell {
	return &shell{dev: dev, out: out, timeout: timeout, events: events}
}

// exec runs one command line. quit is true when the session should end.
func (s *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "regs", "ls":
		s.cmdRegs()
	case "read", "r":
		return false, s.cmdRead(ctx, args, false)
	case "tread", "tr":
		return false, s.cmdRead(ctx, args, true)
	case "write", "w":
		return false, s.cmdWrite(ctx, args)
	case "events":
		return false, s.cmdEvents(args)
	case "whoami":
		return false, s.cmdWhoAmI(ctx)
	case "mirror":
		return false, s.cmdMirror(ctx, args)
	case "dump":
		return false, s.cmdDump(ctx, args)
	case "quit", "exit", "q":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
	return false, nil
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, `
Harp Device Commands:
  regs                       - List registers of the connected device
  read <reg>                 - Read a register (name or address)
  tread <reg>                - Read a register with its device timestamp
  write <reg> <v>...         - Write a register (decimal, 0x hex or float)
  events on|off              - Print device events as they arrive
  whoami                     - Show identity and device name
  mirror <ep> <unit> <off> <reg>
                             - Compare a register with its Modbus mirror
  dump <file> [reg]          - Print device messages from a capture file
  quit                       - Exit`)
}

// resolve accepts a register name or a decimal/hex address.
func resolve(t register.Table, ref string) (register.Descriptor, error) {
	if n, err := strconv.ParseUint(ref, 0, 8); err == nil {
		return t.Lookup(uint8(n))
	}
	return t.LookupName(ref)
}

func (s *shell) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 4*s.timeout)
}

func (s *shell) cmdRegs() {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDR\tNAME\tTYPE\tLEN\tACCESS")
	for _, d := range s.dev.Info().Table.Descriptors() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", d.Address, d.Name, d.Type, d.Length, d.Access)
	}
	_ = tw.Flush()
}

func (s *shell) cmdRead(ctx context.Context, args []string, withTime bool) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: read <reg>")
	}
	d, err := resolve(s.dev.Info().Table, args[0])
	if err != nil {
		return err
	}
	cctx, cancel := s.ctx(ctx)
	defer cancel()

	vals, secs, err := s.dev.ReadValues(cctx, d)
	if err != nil {
		return err
	}
	if withTime {
		fmt.Fprintf(s.out, "%s = %s @ %.6fs\n", d.Name, formatValues(vals), secs)
	} else {
		fmt.Fprintf(s.out, "%s = %s\n", d.Name, formatValues(vals))
	}
	return nil
}

func (s *shell) cmdWrite(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: write <reg> <value>...")
	}
	d, err := resolve(s.dev.Info().Table, args[0])
	if err != nil {
		return err
	}
	vals, err := register.ParseValues(d, args[1:])
	if err != nil {
		return err
	}
	cctx, cancel := s.ctx(ctx)
	defer cancel()

	if err := s.dev.WriteValues(cctx, d, vals); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s <- %s\n", d.Name, formatValues(vals))
	return nil
}

func (s *shell) cmdEvents(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: events on|off")
	}
	switch strings.ToLower(args[0]) {
	case "on":
		s.events.Store(true)
	case "off":
		s.events.Store(false)
	default:
		return fmt.Errorf("usage: events on|off")
	}
	fmt.Fprintf(s.out, "events %s\n", strings.ToLower(args[0]))
	return nil
}

func (s *shell) cmdWhoAmI(ctx context.Context) error {
	info := s.dev.Info()
	cctx, cancel := s.ctx(ctx)
	defer cancel()

	name, err := s.dev.ReadDeviceName(cctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s (WhoAmI %d) name=%q\n", info.Name, info.WhoAmI, name)
	return nil
}

// cmdMirror reads a register from the device and the words the replicator
// should have written for it, and reports whether they agree.
func (s *shell) cmdMirror(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: mirror <endpoint> <unit_id> <offset> <reg>")
	}
	unitID, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return fmt.Errorf("unit_id: %w", err)
	}
	offset, err := strconv.ParseUint(args[2], 0, 16)
	if err != nil {
		return fmt.Errorf("offset: %w", err)
	}
	d, err := resolve(s.dev.Info().Table, args[3])
	if err != nil {
		return err
	}

	cctx, cancel := s.ctx(ctx)
	defer cancel()
	vals, secs, err := s.dev.ReadValues(cctx, d)
	if err != nil {
		return err
	}
	want := writer.Words(poller.BlockResult{Descriptor: d, Values: vals, Seconds: secs})

	mb, err := mirrorDialer(args[0], s.timeout)
	if err != nil {
		return err
	}
	defer mb.Close()

	got, err := mb.ReadRegisters(uint8(unitID), uint16(offset)+uint16(d.Address), uint16(len(want)))
	if err != nil {
		return err
	}

	match := len(got) == len(want)
	for i := 0; match && i < len(want); i++ {
		match = got[i] == want[i]
	}
	if match {
		fmt.Fprintf(s.out, "%s mirror ok %v\n", d.Name, got)
	} else {
		fmt.Fprintf(s.out, "%s mirror MISMATCH device=%v modbus=%v\n", d.Name, want, got)
	}
	return nil
}

func (s *shell) cmdDump(ctx context.Context, args []string) error {
	switch len(args) {
	case 1:
		return dumpCapture(ctx, s.out, s.dev.Info().Table, args[0], "")
	case 2:
		return dumpCapture(ctx, s.out, s.dev.Info().Table, args[0], args[1])
	}
	return fmt.Errorf("usage: dump <file> [reg]")
}

func (s *shell) printEvent(m harp.Message) {
	d, err := s.dev.Info().Table.Lookup(m.Address)
	if err != nil {
		fmt.Fprintf(s.out, "event %s\n", m)
		return
	}
	vals, err := d.DecodeValues(m.Payload)
	if err != nil {
		fmt.Fprintf(s.out, "event %s: %v\n", d.Name, err)
		return
	}
	fmt.Fprintf(s.out, "event %s = %s @ %.6fs\n", d.Name, formatValues(vals), m.Seconds())
}

func formatValues(vals []register.Value) string {
	if len(vals) == 1 {
		return vals[0].String()
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
