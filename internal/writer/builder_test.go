// internal/writer/builder_test.go
package writer

import (
	"errors"
	"testing"
	"time"

	cfg "github.com/tamzrod/harp-replicator/internal/config"
	wmodbus "github.com/tamzrod/harp-replicator/internal/writer/modbus"
)

func TestBuildPlan_StatusPerTarget(t *testing.T) {
	slot := uint16(3)
	s1, s2 := uint8(10), uint8(11)

	u := cfg.UnitConfig{
		ID: "rig-1",
		Source: cfg.SourceConfig{
			StatusSlot: &slot,
			DeviceName: "RIG-1",
		},
		Targets: []cfg.TargetConfig{
			{ID: 1, Endpoint: "ep1", UnitID: 1, Offset: 100, StatusUnitID: &s1},
			{ID: 2, Endpoint: "ep2", UnitID: 1, StatusUnitID: &s2},
		},
	}

	plan, err := BuildPlan(u, "", 1400)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan.Targets) != 2 || plan.Targets[0].Offset != 100 {
		t.Fatalf("unexpected targets: %+v", plan.Targets)
	}
	if len(plan.Status) != 2 {
		t.Fatalf("expected 2 status plans, got %d", len(plan.Status))
	}
	if plan.Status[1].Endpoint != "ep2" || plan.Status[1].UnitID != 11 || plan.Status[1].BaseSlot != 3 || plan.Status[1].WhoAmI != 1400 {
		t.Fatalf("unexpected status plan: %+v", plan.Status[1])
	}

	shared, _ := BuildPlan(u, "status:1502", 1400)
	if shared.Status[0].Endpoint != "status:1502" {
		t.Fatalf("status endpoint override not applied: %+v", shared.Status[0])
	}
}

func TestBuildEndpointClients_OnePerEndpoint(t *testing.T) {
	var dialed []string
	prev := dialer
	dialer = func(c wmodbus.Config) (endpointCloser, error) {
		dialed = append(dialed, c.Endpoint)
		return &fakeEndpointClient{}, nil
	}
	defer func() { dialer = prev }()

	plan := Plan{
		Targets: []TargetEndpoint{{Endpoint: "ep1"}, {Endpoint: "ep1"}},
		Status:  []StatusPlan{{Endpoint: "status"}},
	}

	clients, closeAll, err := BuildEndpointClients(plan, time.Second)
	if err != nil {
		t.Fatalf("BuildEndpointClients: %v", err)
	}
	defer closeAll()

	if len(clients) != 2 || len(dialed) != 2 {
		t.Fatalf("expected 2 clients, got %d (dialed %v)", len(clients), dialed)
	}
}

func TestBuildEndpointClients_FailureClosesOthers(t *testing.T) {
	prev := dialer
	dialer = func(c wmodbus.Config) (endpointCloser, error) {
		return nil, errors.New("refused")
	}
	defer func() { dialer = prev }()

	if _, _, err := BuildEndpointClients(Plan{Targets: []TargetEndpoint{{Endpoint: "ep1"}}}, time.Second); err == nil {
		t.Fatalf("expected dial error")
	}
}
