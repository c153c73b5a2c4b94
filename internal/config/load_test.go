// internal/config/load_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `
replicator:
  logging: {level: debug, format: console}
  metrics: {listen: ":9102"}
  mqtt: {enabled: true, broker: "tcp://localhost:1883"}
  units:
    - id: rig-1
      source:
        device: LicketySplit
        port: /dev/ttyACM0
        status_slot: 2
        device_name: A-VERY-LONG-RIG-NAME
      registers: [LickState, Channel0TriggerThreshold]
      poll: {interval_ms: 250}
      targets:
        - {id: 1, endpoint: "127.0.0.1:502", unit_id: 1, offset: 100, status_unit_id: 2}
`

func TestLoad_ValidateNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replicator.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	Normalize(cfg)

	u := cfg.Replicator.Units[0]
	if u.Source.BaudRate != 1000000 {
		t.Fatalf("baud default not applied: %d", u.Source.BaudRate)
	}
	if u.Source.TimeoutMs != DefaultTimeoutMs {
		t.Fatalf("timeout default not applied: %d", u.Source.TimeoutMs)
	}
	if u.Source.DeviceName != "A-VERY-LONG-RIG-" {
		t.Fatalf("device_name not truncated: %q", u.Source.DeviceName)
	}
	if *u.Targets[0].StatusUnitID != 2 || u.Targets[0].Offset != 100 {
		t.Fatalf("target not parsed: %+v", u.Targets[0])
	}
	if cfg.Replicator.MQTT.TopicPrefix != DefaultTopicPrefix {
		t.Fatalf("topic prefix default not applied: %q", cfg.Replicator.MQTT.TopicPrefix)
	}
	if cfg.Replicator.Logging.Output != "stdout" || cfg.Replicator.Logging.Level != "debug" {
		t.Fatalf("logging defaults wrong: %+v", cfg.Replicator.Logging)
	}
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	if _, err := Parse([]byte("replicator:\n  unitz: []\n")); err == nil {
		t.Fatalf("expected unknown field error, got nil")
	}
}

func TestParse_EnvLogLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "WARN")

	cfg, err := Parse([]byte("replicator:\n  logging: {level: info}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Replicator.Logging.Level != "warn" {
		t.Fatalf("env override not applied: %q", cfg.Replicator.Logging.Level)
	}
}
