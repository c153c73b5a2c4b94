// internal/sink/sample.go
package sink

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/poller"
	"github.com/tamzrod/harp-replicator/internal/register"
)

// Source says how a sample reached the host.
type Source string

const (
	SourcePoll  Source = "poll"
	SourceEvent Source = "event"
)

// Sample is one decoded register reading on its way to a sink.
type Sample struct {
	Unit     string
	Device   string
	Register register.Descriptor
	Source   Source
	Values   []register.Value
	Seconds  float64   // device clock
	At       time.Time // host clock
}

// Sink delivers samples somewhere outside the process.
type Sink interface {
	Publish(s Sample) error
	Close() error
}

// FromEvent decodes an event message using the unit's register table.
func FromEvent(unit, device string, table register.Table, m harp.Message, at time.Time) (Sample, error) {
	if m.Type != harp.Event || m.Error {
		return Sample{}, fmt.Errorf("sink: not an event: %s", m)
	}
	d, err := table.Lookup(m.Address)
	if err != nil {
		return Sample{}, err
	}
	if m.PayloadType != d.Type {
		return Sample{}, fmt.Errorf("%w: %s want %s, got %s", harp.ErrPayloadTypeMismatch, d.Name, d.Type, m.PayloadType)
	}
	vals, err := d.DecodeValues(m.Payload)
	if err != nil {
		return Sample{}, err
	}
	return Sample{
		Unit:     unit,
		Device:   device,
		Register: d,
		Source:   SourceEvent,
		Values:   vals,
		Seconds:  m.Seconds(),
		At:       at,
	}, nil
}

// FromPoll flattens a successful poll cycle. Failed cycles yield nothing.
func FromPoll(device string, res poller.PollResult) []Sample {
	if res.Err != nil {
		return nil
	}
	out := make([]Sample, 0, len(res.Blocks))
	for _, b := range res.Blocks {
		out = append(out, Sample{
			Unit:     res.UnitID,
			Device:   device,
			Register: b.Descriptor,
			Source:   SourcePoll,
			Values:   b.Values,
			Seconds:  b.Seconds,
			At:       res.At,
		})
	}
	return out
}

// Fanout publishes to every sink and joins the errors.
type Fanout []Sink

func (f Fanout) Publish(s Sample) error {
	var errs []error
	for _, sk := range f {
		if err := sk.Publish(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, sk := range f {
		if err := sk.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
