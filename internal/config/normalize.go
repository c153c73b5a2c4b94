// internal/config/normalize.go
package config

import "github.com/tamzrod/harp-replicator/internal/transport"

const (
	DefaultTimeoutMs   = 500
	DefaultTopicPrefix = "harp"
	DefaultClientID    = "harp-replicator"
	DefaultBatchSize   = 100
	DefaultFlushMs     = 1000
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	r := &cfg.Replicator

	if r.Logging.Level == "" {
		r.Logging.Level = "info"
	}
	if r.Logging.Format == "" {
		r.Logging.Format = "json"
	}
	if r.Logging.Output == "" {
		r.Logging.Output = "stdout"
	}

	if r.MQTT.TopicPrefix == "" {
		r.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if r.MQTT.ClientID == "" {
		r.MQTT.ClientID = DefaultClientID
	}
	if r.InfluxDB.BatchSize == 0 {
		r.InfluxDB.BatchSize = DefaultBatchSize
	}
	if r.InfluxDB.FlushInterval == 0 {
		r.InfluxDB.FlushInterval = DefaultFlushMs
	}

	for ui := range r.Units {
		u := &r.Units[ui]

		// ------------------------------------------------------------
		// SOURCE LINK DEFAULTS
		// ------------------------------------------------------------

		if u.Source.BaudRate == 0 {
			u.Source.BaudRate = transport.DefaultBaudRate
		}
		if u.Source.TimeoutMs == 0 {
			u.Source.TimeoutMs = DefaultTimeoutMs
		}

		// ------------------------------------------------------------
		// DEVICE STATUS BLOCK NORMALIZATION (OPT-IN)
		// ------------------------------------------------------------

		// Skip units that did not opt in
		if u.Source.StatusSlot == nil {
			continue
		}

		// Normalize device_name:
		// - ASCII already validated
		// - Falls back to the unit id
		// - Truncate to max 16 characters
		if u.Source.DeviceName == "" {
			u.Source.DeviceName = u.ID
		}
		if len(u.Source.DeviceName) > 16 {
			u.Source.DeviceName = u.Source.DeviceName[:16]
		}
	}
}
