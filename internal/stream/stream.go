// internal/stream/stream.go
package stream

import (
	"context"

	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/register"
)

// Operators over message channels. Each one owns its output channel,
// closes it when the input closes or ctx is done, and never buffers
// more than one item.

// Group is the per-register sub-stream produced by GroupByRegister.
type Group struct {
	Register register.Descriptor
	Messages <-chan harp.Message
}

// GroupByRegister splits in by address using table. Groups are emitted the
// first time an address is seen. Messages for undeclared addresses go to
// onUnknown (dropped when nil).
//
// Every group must be drained; a stalled group stalls the source.
func GroupByRegister(ctx context.Context, in <-chan harp.Message, table register.Table, onUnknown func(harp.Message, error)) <-chan Group {
	out := make(chan Group)

	go func() {
		groups := make(map[uint8]chan harp.Message)
		defer func() {
			for _, g := range groups {
				close(g)
			}
			close(out)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				d, err := table.Lookup(m.Address)
				if err != nil {
					if onUnknown != nil {
						onUnknown(m, err)
					}
					continue
				}

				g, exists := groups[m.Address]
				if !exists {
					g = make(chan harp.Message, 1)
					groups[m.Address] = g
					select {
					case out <- Group{Register: d, Messages: g}:
					case <-ctx.Done():
						return
					}
				}

				select {
				case g <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// FilterRegister passes messages for address. When types are given only
// those message types pass.
func FilterRegister(ctx context.Context, in <-chan harp.Message, address uint8, types ...harp.MessageType) <-chan harp.Message {
	return filter(ctx, in, func(m harp.Message) bool {
		if m.Address != address {
			return false
		}
		if len(types) == 0 {
			return true
		}
		for _, t := range types {
			if m.Type == t {
				return true
			}
		}
		return false
	})
}

// Parse decodes messages for reg into timestamped values. Error replies are
// skipped; decode failures go to onError (dropped when nil).
func Parse[T register.Element](ctx context.Context, in <-chan harp.Message, reg register.Register[T], onError func(harp.Message, error)) <-chan harp.Timestamped[T] {
	out := make(chan harp.Timestamped[T])

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				if m.Address != reg.Address || m.Error {
					continue
				}
				v, err := reg.DecodeMessage(m)
				if err != nil {
					if onError != nil {
						onError(m, err)
					}
					continue
				}
				select {
				case out <- harp.NewTimestamped(v, m.Seconds()):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// Format turns values into messages of msgType for reg.
func Format[T register.Element](ctx context.Context, in <-chan T, reg register.Register[T], msgType harp.MessageType, onError func(T, error)) <-chan harp.Message {
	out := make(chan harp.Message)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				m, err := reg.Message(msgType, v)
				if err != nil {
					if onError != nil {
						onError(v, err)
					}
					continue
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func filter(ctx context.Context, in <-chan harp.Message, keep func(harp.Message) bool) <-chan harp.Message {
	out := make(chan harp.Message)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				if !keep(m) {
					continue
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
