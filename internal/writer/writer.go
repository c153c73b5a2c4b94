// internal/writer/writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/harp-replicator/internal/poller"
)

// endpointClient is the exact contract the writer uses.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

type writerImpl struct {
	plan    Plan
	clients map[string]endpointClient
}

func New(plan Plan, clients map[string]endpointClient) Writer {
	return &writerImpl{
		plan:    plan,
		clients: clients,
	}
}

// Write mirrors every block of a successful cycle into every target.
// Failed cycles write nothing; status is reported by the status writer.
func (w *writerImpl) Write(res poller.PollResult) error {
	if res.Err != nil {
		return nil
	}

	var errs []string

	for _, tgt := range w.plan.Targets {
		cli := w.clients[tgt.Endpoint]
		if cli == nil {
			errs = append(errs, fmt.Sprintf(
				"writer: missing client for endpoint %s",
				tgt.Endpoint,
			))
			continue
		}

		for _, b := range res.Blocks {
			dstAddr := uint32(tgt.Offset) + uint32(b.Descriptor.Address)
			regs := Words(b)

			if dstAddr+uint32(len(regs)) > 0x10000 {
				errs = append(errs, fmt.Sprintf(
					"writer: ep=%s unit=%d register=%s addr=%d exceeds holding register space",
					tgt.Endpoint, tgt.UnitID, b.Descriptor.Name, dstAddr,
				))
				continue
			}

			if err := cli.WriteRegisters(tgt.UnitID, uint16(dstAddr), regs); err != nil {
				errs = append(errs, fmt.Sprintf(
					"writer: ep=%s unit=%d register=%s addr=%d err=%v",
					tgt.Endpoint, tgt.UnitID, b.Descriptor.Name, dstAddr, err,
				))
			}
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}

	return nil
}

// Words lays a block out on 16-bit holding registers: one word per element
// up to 16 bits, wider elements split low word first.
func Words(b poller.BlockResult) []uint16 {
	per := b.Descriptor.Words() / max(b.Descriptor.Length, 1)
	out := make([]uint16, 0, per*len(b.Values))

	for _, v := range b.Values {
		bits := v.Bits
		for i := 0; i < per; i++ {
			out = append(out, uint16(bits))
			bits >>= 16
		}
	}
	return out
}
