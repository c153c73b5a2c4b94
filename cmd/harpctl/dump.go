// cmd/harpctl/dump.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tamzrod/harp-replicator/internal/capture"
	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/register"
	"github.com/tamzrod/harp-replicator/internal/stream"
	"github.com/tamzrod/harp-replicator/internal/transport"
)

type feedResult struct {
	bad int
	err error
}

// dumpCapture prints the device-to-host messages of a capture file.
// A non-empty ref keeps only that register.
func dumpCapture(ctx context.Context, out io.Writer, table register.Table, path, ref string) error {
	var only *register.Descriptor
	if ref != "" {
		d, err := resolve(table, ref)
		if err != nil {
			return err
		}
		only = &d
	}

	r, err := capture.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan harp.Message)
	res := make(chan feedResult, 1)
	go func() {
		defer close(msgs)
		bad, err := feed(ctx, r, msgs)
		res <- feedResult{bad: bad, err: err}
	}()

	var in <-chan harp.Message = msgs
	if only != nil {
		in = stream.FilterRegister(ctx, msgs, only.Address)
	}

	n := 0
	for m := range in {
		fmt.Fprintln(out, describe(table, m))
		n++
	}

	fr := <-res
	if fr.err != nil {
		return fr.err
	}
	if fr.bad > 0 {
		fmt.Fprintf(out, "%d messages, %d unreadable frames\n", n, fr.bad)
	} else {
		fmt.Fprintf(out, "%d messages\n", n)
	}
	return nil
}

// feed sends every inbound record of r as a message until EOF.
func feed(ctx context.Context, r *capture.Reader, out chan<- harp.Message) (bad int, err error) {
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return bad, nil
		}
		if err != nil {
			return bad, err
		}
		if rec.Direction != transport.Inbound {
			continue
		}
		m, err := rec.Message()
		if err != nil {
			bad++
			continue
		}
		select {
		case out <- m:
		case <-ctx.Done():
			return bad, ctx.Err()
		}
	}
}

// describe renders one message against table.
func describe(table register.Table, m harp.Message) string {
	d, err := table.Lookup(m.Address)
	if err != nil {
		return m.String()
	}
	if m.Error {
		return fmt.Sprintf("%s %s: error reply @ %.6fs", m.Type, d.Name, m.Seconds())
	}
	vals, err := d.DecodeValues(m.Payload)
	if err != nil {
		return fmt.Sprintf("%s %s: %v", m.Type, d.Name, err)
	}
	return fmt.Sprintf("%s %s = %s @ %.6fs", m.Type, d.Name, formatValues(vals), m.Seconds())
}
