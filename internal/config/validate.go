// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/tamzrod/harp-replicator/internal/device/catalog"
	"github.com/tamzrod/harp-replicator/internal/register"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	type span struct {
		start int
		end   int
		unit  string
	}

	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if len(cfg.Replicator.Units) == 0 {
		return fmt.Errorf("config: at least one unit required")
	}

	if err := validateSinks(&cfg.Replicator); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// UNIT / SOURCE VALIDATION
	// ------------------------------------------------------------

	ids := make(map[string]struct{})
	ports := make(map[string]string)

	for _, u := range cfg.Replicator.Units {
		if u.ID == "" {
			return fmt.Errorf("unit: id required")
		}
		if _, dup := ids[u.ID]; dup {
			return fmt.Errorf("unit %q: duplicate id", u.ID)
		}
		ids[u.ID] = struct{}{}

		if u.Source.Port == "" {
			return fmt.Errorf("unit %q: source.port required", u.ID)
		}
		if prev, taken := ports[u.Source.Port]; taken {
			return fmt.Errorf("unit %q: port %s already used by unit %q", u.ID, u.Source.Port, prev)
		}
		ports[u.Source.Port] = u.ID

		if u.Source.BaudRate < 0 || u.Source.TimeoutMs < 0 {
			return fmt.Errorf("unit %q: baud_rate and timeout_ms must not be negative", u.ID)
		}
		if u.Poll.IntervalMs <= 0 {
			return fmt.Errorf("unit %q: poll.interval_ms must be > 0", u.ID)
		}

		if _, err := UnitRegisters(u); err != nil {
			return err
		}

		for _, t := range u.Targets {
			if t.Endpoint == "" {
				return fmt.Errorf("unit %q: target %d endpoint required", u.ID, t.ID)
			}
		}

		// device_name sanity (ASCII only)
		if u.Source.DeviceName != "" {
			for i := 0; i < len(u.Source.DeviceName); i++ {
				if u.Source.DeviceName[i] > 0x7F {
					return fmt.Errorf(
						"unit %q: device_name must contain ASCII characters only",
						u.ID,
					)
				}
			}
		}
	}

	// ------------------------------------------------------------
	// DEVICE STATUS BLOCK VALIDATION (PER-TARGET, OPT-IN)
	// ------------------------------------------------------------

	// key = endpoint | status_unit_id | status_slot
	statusOwner := make(map[string]string)

	for _, u := range cfg.Replicator.Units {
		// status is opt-in
		if u.Source.StatusSlot == nil {
			continue
		}

		if cfg.Replicator.StatusMemory.Endpoint == "" && len(u.Targets) == 0 {
			return fmt.Errorf(
				"unit %q: status_slot is set but neither status_memory.endpoint nor targets are defined",
				u.ID,
			)
		}

		slot := *u.Source.StatusSlot

		for _, t := range u.Targets {
			// each target must declare status_unit_id
			if t.StatusUnitID == nil {
				return fmt.Errorf(
					"unit %q: status_slot is set but target %q has no status_unit_id",
					u.ID,
					t.Endpoint,
				)
			}

			key := fmt.Sprintf(
				"%s|%d|%d",
				StatusEndpoint(cfg, t),
				*t.StatusUnitID,
				slot,
			)

			if prev, exists := statusOwner[key]; exists {
				return fmt.Errorf(
					"status_slot collision: endpoint=%s status_unit_id=%d slot=%d used by units %q and %q",
					StatusEndpoint(cfg, t),
					*t.StatusUnitID,
					slot,
					prev,
					u.ID,
				)
			}

			statusOwner[key] = u.ID
		}
	}

	// ------------------------------------------------------------
	// DESTINATION MEMORY GEOMETRY VALIDATION
	// ------------------------------------------------------------

	// key = endpoint | unit_id
	spans := make(map[string][]span)

	for _, u := range cfg.Replicator.Units {
		regs, _ := UnitRegisters(u)

		for _, t := range u.Targets {
			key := fmt.Sprintf("%s|%d", t.Endpoint, t.UnitID)

			for _, d := range regs {
				start := int(t.Offset) + int(d.Address)
				end := start + d.Words() - 1

				if end > 0xFFFF {
					return fmt.Errorf(
						"unit %q: register %s mirrored at %d-%d exceeds holding register space",
						u.ID, d.Name, start, end,
					)
				}

				for _, s := range spans[key] {
					// overlap check (inclusive)
					if !(end < s.start || start > s.end) {
						return fmt.Errorf(
							"memory overlap: endpoint=%s unit_id=%d range=%d-%d overlaps with unit=%s range=%d-%d",
							t.Endpoint,
							t.UnitID,
							start,
							end,
							s.unit,
							s.start,
							s.end,
						)
					}
				}

				spans[key] = append(spans[key], span{
					start: start,
					end:   end,
					unit:  u.ID,
				})
			}
		}
	}

	return nil
}

func validateSinks(r *ReplicatorConfig) error {
	if r.MQTT.Enabled {
		if r.MQTT.Broker == "" {
			return fmt.Errorf("mqtt: broker required when enabled")
		}
		if r.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt: qos must be 0, 1 or 2")
		}
	}
	if r.InfluxDB.Enabled {
		if r.InfluxDB.URL == "" || r.InfluxDB.Org == "" || r.InfluxDB.Bucket == "" {
			return fmt.Errorf("influxdb: url, org and bucket required when enabled")
		}
	}
	return nil
}

// UnitRegisters resolves the unit's register names against its device table.
// An empty list selects every readable application register.
func UnitRegisters(u UnitConfig) ([]register.Descriptor, error) {
	info, err := catalog.Lookup(u.Source.Device)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", u.ID, err)
	}

	if len(u.Registers) == 0 {
		var out []register.Descriptor
		for _, d := range info.Table.Descriptors() {
			if d.Address >= register.FirstAppAddress && d.Access.Has(register.Readable) {
				out = append(out, d)
			}
		}
		return out, nil
	}

	seen := make(map[uint8]struct{})
	out := make([]register.Descriptor, 0, len(u.Registers))
	for _, name := range u.Registers {
		d, err := info.Table.LookupName(name)
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", u.ID, err)
		}
		if !d.Access.Has(register.Readable) {
			return nil, fmt.Errorf("unit %q: register %s is not readable", u.ID, d.Name)
		}
		if _, dup := seen[d.Address]; dup {
			return nil, fmt.Errorf("unit %q: register %s listed twice", u.ID, d.Name)
		}
		seen[d.Address] = struct{}{}
		out = append(out, d)
	}
	return out, nil
}

// StatusEndpoint is where a target's status block lives: the shared
// status_memory endpoint when set, otherwise the target's own endpoint.
func StatusEndpoint(cfg *Config, t TargetConfig) string {
	if cfg.Replicator.StatusMemory.Endpoint != "" {
		return cfg.Replicator.StatusMemory.Endpoint
	}
	return t.Endpoint
}
