// internal/writer/types.go
package writer

import "github.com/tamzrod/harp-replicator/internal/poller"

// TargetEndpoint is one target endpoint (TCP) holding the mirrored registers.
type TargetEndpoint struct {
	TargetID uint32
	Endpoint string
	UnitID   uint8  // Modbus unit id of the data memory
	Offset   uint16 // holding register = Offset + harp address
}

// StatusPlan is where one copy of the device status block lives.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
	WhoAmI     uint16
}

// Plan is the fully-built write plan for one unit.
type Plan struct {
	UnitID  string
	Targets []TargetEndpoint
	Status  []StatusPlan // empty: status disabled
}

// Writer writes poll snapshots into targets.
type Writer interface {
	Write(res poller.PollResult) error
}
