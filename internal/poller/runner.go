// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run polls once immediately, then on every tick, and emits each PollResult
// on out. One goroutine per unit. A slow cycle delays the next tick; cycles
// never overlap and failed reads are not retried within a cycle.
func (p *Poller) Run(ctx context.Context, out chan<- PollResult) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.log.Debug().Str("unit", p.cfg.UnitID).Dur("interval", p.cfg.Interval).Msg("poller: running")

	for {
		if !p.emit(ctx, out, p.PollOnce(ctx)) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// emit reports false once ctx is done.
func (p *Poller) emit(ctx context.Context, out chan<- PollResult, res PollResult) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- res:
		return true
	case <-ctx.Done():
		return false
	}
}
