// internal/poller/builder.go
package poller

import (
	"context"
	"time"

	cfg "github.com/tamzrod/harp-replicator/internal/config"
)

// Build constructs a Poller and wires client lifecycle.
// Connection is reused while healthy.
// On transport death, Poller discards the client and uses factory on a future tick.
// No retries, no loops, no semantics.
func Build(ctx context.Context, u cfg.UnitConfig, factory Factory) (*Poller, func() error, error) {
	regs, err := cfg.UnitRegisters(u)
	if err != nil {
		return nil, nil, err
	}

	// initial client (fail fast at startup)
	client, err := factory(ctx)
	if err != nil {
		return nil, nil, err
	}

	p, err := New(
		Config{
			UnitID:    u.ID,
			Interval:  time.Duration(u.Poll.IntervalMs) * time.Millisecond,
			Registers: regs,
		},
		client,
		factory,
	)
	if err != nil {
		if c, ok := client.(interface{ Close() error }); ok {
			_ = c.Close()
		}
		return nil, nil, err
	}

	return p, p.Close, nil
}
