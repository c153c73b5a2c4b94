// internal/transport/client.go
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-replicator/internal/harp"
)

var (
	ErrClosed  = errors.New("transport: closed")
	ErrTimeout = errors.New("transport: reply timeout")
)

const DefaultTimeout = 2 * time.Second

// Direction of a frame relative to the host.
type Direction uint8

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "out"
	}
	return "in"
}

// Observer sees every frame that crosses the link. Called from the reader
// goroutine (inbound) or the caller's goroutine (outbound); must not block.
type Observer func(dir Direction, frame []byte, m harp.Message)

// Client is a Harp request/reply link over any byte stream.
//
// Harp replies carry no correlation id: a reply is matched to the oldest
// pending command with the same address and message type.
type Client struct {
	rwc      io.ReadWriteCloser
	timeout  time.Duration
	log      zerolog.Logger
	observer Observer

	wmu sync.Mutex // serializes frame writes

	mu      sync.Mutex
	pending map[key][]chan harp.Message
	subs    map[int]chan harp.Message
	nextSub int
	closed  bool
	err     error

	done chan struct{}

	portOnce sync.Once
	portErr  error
}

type key struct {
	addr uint8
	typ  harp.MessageType
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New starts a client over rwc. The client owns rwc from here on.
func New(rwc io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		rwc:     rwc,
		timeout: DefaultTimeout,
		log:     zerolog.Nop(),
		pending: make(map[key][]chan harp.Message),
		subs:    make(map[int]chan harp.Message),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	go c.readLoop()
	return c
}

// ---- serial ----

// Config is the minimal serial link config.
type Config struct {
	Port     string
	BaudRate int
	Timeout  time.Duration // command reply timeout
}

const DefaultBaudRate = 1000000

// readPoll bounds a single port read so the reader notices Close.
const readPoll = 100 * time.Millisecond

// Open opens a serial port (8N1) and starts a client on it.
func Open(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Port == "" {
		return nil, errors.New("transport: port required")
	}
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	port, err := serial.Open(&serial.Config{
		Address:  cfg.Port,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  readPoll,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Port, err)
	}

	opts = append([]Option{WithTimeout(cfg.Timeout)}, opts...)
	return New(pollingPort{port}, opts...), nil
}

// pollingPort turns serial read timeouts into empty reads.
type pollingPort struct {
	serial.Port
}

func (p pollingPort) Read(b []byte) (int, error) {
	for {
		n, err := p.Port.Read(b)
		if errors.Is(err, serial.ErrTimeout) {
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// ---- request/reply ----

// Command sends req and waits for the matching reply. Cancellation and the
// client timeout both abandon the wait; the pending slot is released.
func (c *Client) Command(ctx context.Context, req harp.Message) (harp.Message, error) {
	frame, err := req.MarshalBinary()
	if err != nil {
		return harp.Message{}, err
	}

	k := key{addr: req.Address, typ: req.Type}
	ch := make(chan harp.Message, 1)

	c.mu.Lock()
	if c.closed {
		err := c.err
		c.mu.Unlock()
		return harp.Message{}, err
	}
	c.pending[k] = append(c.pending[k], ch)
	c.mu.Unlock()

	if err := c.write(frame, req); err != nil {
		c.release(k, ch)
		return harp.Message{}, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		c.release(k, ch)
		return harp.Message{}, ctx.Err()
	case <-timer.C:
		c.release(k, ch)
		return harp.Message{}, fmt.Errorf("%w after %v (%s addr=%d)", ErrTimeout, c.timeout, req.Type, req.Address)
	case <-c.done:
		// a reply may have raced with shutdown
		select {
		case reply := <-ch:
			return reply, nil
		default:
		}
		return harp.Message{}, c.closeErr()
	}
}

// Send writes a frame without waiting for a reply.
func (c *Client) Send(m harp.Message) error {
	frame, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	return c.write(frame, m)
}

func (c *Client) write(frame []byte, m harp.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	for b := frame; len(b) > 0; {
		n, err := c.rwc.Write(b)
		if err != nil {
			return fmt.Errorf("transport: write: %w", err)
		}
		b = b[n:]
	}
	if c.observer != nil {
		c.observer(Outbound, frame, m)
	}
	return nil
}

func (c *Client) release(k key, ch chan harp.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.pending[k]
	for i, p := range q {
		if p == ch {
			q = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(q) == 0 {
		delete(c.pending, k)
	} else {
		c.pending[k] = q
	}
}

// ---- inbound ----

// Subscribe returns a channel receiving every inbound message (events and
// replies). Slow subscribers lose messages rather than stall the link.
func (c *Client) Subscribe(buffer int) (<-chan harp.Message, func()) {
	ch := make(chan harp.Message, buffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if s, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(s)
			}
		})
	}
}

func (c *Client) readLoop() {
	r := bufio.NewReaderSize(c.rwc, 4096)
	for {
		m, skipped, err := harp.ReadMessage(r)
		if skipped > 0 {
			c.log.Debug().Int("bytes", skipped).Msg("harp: skipped unframed bytes")
		}
		if err != nil {
			_ = c.closePort()
			c.shutdown(err)
			return
		}

		if c.observer != nil {
			frame, _ := m.MarshalBinary()
			c.observer(Inbound, frame, m)
		}
		c.dispatch(m)
	}
}

func (c *Client) dispatch(m harp.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m.Type != harp.Event {
		k := key{addr: m.Address, typ: m.Type}
		if q := c.pending[k]; len(q) > 0 {
			q[0] <- m
			if len(q) == 1 {
				delete(c.pending, k)
			} else {
				c.pending[k] = q[1:]
			}
		} else {
			c.log.Debug().Stringer("msg", m).Msg("harp: unsolicited reply")
		}
	}

	for id, s := range c.subs {
		select {
		case s <- m:
		default:
			c.log.Warn().Int("subscriber", id).Uint8("address", m.Address).Msg("harp: subscriber full, message dropped")
		}
	}
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		c.err = ErrClosed
	} else {
		c.err = fmt.Errorf("%w: %v", ErrClosed, err)
		c.log.Error().Err(err).Msg("harp: link failed")
	}
	c.pending = make(map[key][]chan harp.Message)
	for id, s := range c.subs {
		close(s)
		delete(c.subs, id)
	}
	close(c.done)
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed once the link is down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the link went down (nil while up).
func (c *Client) Err() error { return c.closeErr() }

// Close shuts the link down and fails pending commands with ErrClosed.
// The port is released even when the reader already took the link down.
func (c *Client) Close() error {
	err := c.closePort()
	c.shutdown(nil)
	return err
}

// closePort closes rwc exactly once; later calls return the first result.
func (c *Client) closePort() error {
	c.portOnce.Do(func() { c.portErr = c.rwc.Close() })
	return c.portErr
}
