// internal/poller/link/client.go
package link

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-replicator/internal/device"
	"github.com/tamzrod/harp-replicator/internal/device/catalog"
	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/metrics"
	"github.com/tamzrod/harp-replicator/internal/register"
	"github.com/tamzrod/harp-replicator/internal/transport"
)

// Client implements poller.Client over one serial Harp link.
// It owns the transport, the identity-checked device, and the event feed.
type Client struct {
	tr     *transport.Client
	dev    *device.Device
	cancel func()
}

// Config is minimal link config.
type Config struct {
	Unit     string
	Device   string // catalog kind
	Port     string
	BaudRate int
	Timeout  time.Duration

	Log      zerolog.Logger
	Observer transport.Observer // frame capture (optional)
	OnEvent  func(harp.Message) // device events (optional)
}

// opener is swapped in tests.
var opener = func(cfg transport.Config, opts ...transport.Option) (*transport.Client, error) {
	return transport.Open(cfg, opts...)
}

// Dial opens the port, starts the event feed and checks WhoAmI.
// Nothing is left open on failure.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	info, err := catalog.Lookup(cfg.Device)
	if err != nil {
		return nil, err
	}

	opts := []transport.Option{transport.WithLogger(cfg.Log)}
	if cfg.Observer != nil {
		opts = append(opts, transport.WithObserver(cfg.Observer))
	}

	tr, err := opener(transport.Config{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Timeout:  cfg.Timeout,
	}, opts...)
	if err != nil {
		return nil, err
	}

	return attach(ctx, tr, info, cfg)
}

func attach(ctx context.Context, tr *transport.Client, info device.Info, cfg Config) (*Client, error) {
	c := &Client{tr: tr, cancel: func() {}}

	// subscribe before identification so no early event is lost
	if cfg.OnEvent != nil {
		events, cancel := tr.Subscribe(64)
		c.cancel = cancel
		go func() {
			for m := range events {
				if m.Type == harp.Event {
					metrics.RecordEvent(cfg.Unit, metrics.RegisterName(info.Table, m.Address))
					cfg.OnEvent(m)
				}
			}
		}()
	}

	dev, err := device.Connect(ctx,
		metrics.Instrument(cfg.Unit, info.Table, tr),
		info,
		device.WithPort(cfg.Port),
	)
	if err != nil {
		c.cancel()
		return nil, err
	}
	c.dev = dev

	cfg.Log.Info().
		Str("unit", cfg.Unit).
		Str("device", info.Name).
		Uint16("who_am_i", info.WhoAmI).
		Str("port", cfg.Port).
		Msg("link: device identified")

	return c, nil
}

// Device exposes the typed accessor surface.
func (c *Client) Device() *device.Device { return c.dev }

// Transport exposes the raw link (subscriptions, sends).
func (c *Client) Transport() *transport.Client { return c.tr }

// Done is closed when the link goes down.
func (c *Client) Done() <-chan struct{} { return c.tr.Done() }

// ReadValues implements poller.Client.
func (c *Client) ReadValues(ctx context.Context, d register.Descriptor) ([]register.Value, float64, error) {
	if c == nil || c.dev == nil {
		return nil, 0, errors.New("link: not connected")
	}
	return c.dev.ReadValues(ctx, d)
}

// Close stops the event feed and closes the port.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.cancel()
	return c.tr.Close()
}
