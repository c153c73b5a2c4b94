// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	cfg "github.com/tamzrod/harp-replicator/internal/config"
	wmodbus "github.com/tamzrod/harp-replicator/internal/writer/modbus"
)

// BuildPlan converts one unit config into a Writer Plan.
// Assumes config has already passed conflict validation.
// statusEndpoint overrides the target endpoint for status blocks when set.
func BuildPlan(u cfg.UnitConfig, statusEndpoint string, whoAmI uint16) (Plan, error) {
	if u.ID == "" {
		return Plan{}, errors.New("writer: unit.id required")
	}

	plan := Plan{UnitID: u.ID}

	for _, t := range u.Targets {
		plan.Targets = append(plan.Targets, TargetEndpoint{
			TargetID: t.ID,
			Endpoint: t.Endpoint,
			UnitID:   t.UnitID,
			Offset:   t.Offset,
		})

		// status is opt-in
		if u.Source.StatusSlot == nil || t.StatusUnitID == nil {
			continue
		}

		ep := t.Endpoint
		if statusEndpoint != "" {
			ep = statusEndpoint
		}
		plan.Status = append(plan.Status, StatusPlan{
			Endpoint:   ep,
			UnitID:     *t.StatusUnitID,
			BaseSlot:   *u.Source.StatusSlot,
			DeviceName: u.Source.DeviceName,
			WhoAmI:     whoAmI,
		})
	}

	return plan, nil
}

// dialer is swapped in tests.
var dialer = func(c wmodbus.Config) (endpointCloser, error) {
	return wmodbus.NewEndpointClient(c)
}

type endpointCloser interface {
	endpointClient
	Close() error
}

// BuildEndpointClients creates one TCP client per unique endpoint in plan.
func BuildEndpointClients(plan Plan, timeout time.Duration) (map[string]endpointClient, func() error, error) {
	unique := map[string]struct{}{}
	for _, t := range plan.Targets {
		unique[t.Endpoint] = struct{}{}
	}
	for _, s := range plan.Status {
		unique[s.Endpoint] = struct{}{}
	}

	clients := make(map[string]endpointClient)
	var closers []func() error

	for endpoint := range unique {
		c, err := dialer(wmodbus.Config{
			Endpoint: endpoint,
			Timeout:  timeout,
		})
		if err != nil {
			for _, fn := range closers {
				_ = fn()
			}
			return nil, nil, err
		}
		clients[endpoint] = c
		closers = append(closers, c.Close)
	}

	closeAll := func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}

	return clients, closeAll, nil
}
