// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/harp-replicator/internal/register"
)

// BlockResult is the decoded result of a single register read.
type BlockResult struct {
	Descriptor register.Descriptor
	Values     []register.Value

	// Seconds is the device timestamp of the reply (0 when not timestamped).
	Seconds float64
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	UnitID string
	At     time.Time

	Blocks []BlockResult
	Err    error // non-nil means the poll cycle failed
}
