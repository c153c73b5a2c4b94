// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-replicator/internal/register"
)

// Client abstracts the device reads the poller needs.
// The poller depends on descriptors only.
type Client interface {
	ReadValues(ctx context.Context, d register.Descriptor) ([]register.Value, float64, error)
}

// Factory makes a fresh client. ONE attempt per call.
type Factory func(ctx context.Context) (Client, error)

// ErrNoClient is reported for cycles run while no client is connected.
var ErrNoClient = errors.New("poller: no client")

// Config is the minimal runtime config the poller needs.
type Config struct {
	UnitID    string
	Interval  time.Duration
	Registers []register.Descriptor
}

// Poller is a dumb, clock-driven reader.
type Poller struct {
	cfg     Config
	client  Client
	factory Factory
	log     zerolog.Logger
}

// New creates a poller with immutable config.
// client may be nil when factory is set; the first cycle will dial.
func New(cfg Config, client Client, factory Factory) (*Poller, error) {
	if cfg.UnitID == "" {
		return nil, errors.New("poller: unit id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Registers) == 0 {
		return nil, errors.New("poller: at least one register required")
	}
	if client == nil && factory == nil {
		return nil, errors.New("poller: client or factory required")
	}
	return &Poller{cfg: cfg, client: client, factory: factory, log: zerolog.Nop()}, nil
}

// SetLogger replaces the default no-op logger.
func (p *Poller) SetLogger(l zerolog.Logger) { p.log = l }

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle.
func (p *Poller) PollOnce(ctx context.Context) PollResult {
	res := PollResult{
		UnitID: p.cfg.UnitID,
		At:     time.Now(),
	}

	if p.client == nil {
		if p.factory == nil {
			res.Err = ErrNoClient
			return res
		}
		c, err := p.factory(ctx)
		if err != nil {
			res.Err = err
			return res
		}
		p.log.Info().Str("unit", p.cfg.UnitID).Msg("poller: client connected")
		p.client = c
	}

	blocks := make([]BlockResult, 0, len(p.cfg.Registers))

	for _, d := range p.cfg.Registers {
		vals, seconds, err := p.client.ReadValues(ctx, d)
		if err != nil {
			res.Err = err
			p.discardIfDead()
			return res
		}
		blocks = append(blocks, BlockResult{
			Descriptor: d,
			Values:     vals,
			Seconds:    seconds,
		})
	}

	// Commit only if all reads succeeded
	res.Blocks = blocks
	return res
}

// discardIfDead drops a client whose link went down so a later tick can
// use the factory. Only clients that expose Done() are ever discarded.
func (p *Poller) discardIfDead() {
	if p.factory == nil {
		return
	}
	d, ok := p.client.(interface{ Done() <-chan struct{} })
	if !ok {
		return
	}
	select {
	case <-d.Done():
	default:
		return
	}
	if c, ok := p.client.(io.Closer); ok {
		_ = c.Close()
	}
	p.log.Warn().Str("unit", p.cfg.UnitID).Msg("poller: link down, client discarded")
	p.client = nil
}

// Close closes the current client, if it can be closed.
func (p *Poller) Close() error {
	if c, ok := p.client.(io.Closer); ok {
		p.client = nil
		return c.Close()
	}
	return nil
}
