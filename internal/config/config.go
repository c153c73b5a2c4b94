// internal/config/config.go
package config

type Config struct {
	Replicator ReplicatorConfig `yaml:"replicator"`
}

type ReplicatorConfig struct {
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	StatusMemory StatusMemoryConfig `yaml:"status_memory"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Units        []UnitConfig       `yaml:"units"`
}

// ---- AMBIENT ----

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | console
	Output string `yaml:"output"` // stdout | stderr
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
}

type StatusMemoryConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// ---- SINKS ----

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     uint   `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval_ms"`
}

// ---- UNIT ----

type UnitConfig struct {
	ID        string         `yaml:"id"`
	Source    SourceConfig   `yaml:"source"`
	Registers []string       `yaml:"registers"` // names from the device register table
	Targets   []TargetConfig `yaml:"targets"`
	Poll      PollConfig     `yaml:"poll"`
}

// ---- SOURCE ----

type SourceConfig struct {
	Device    string `yaml:"device"` // lickdetector | licketysplit
	Port      string `yaml:"port"`
	BaudRate  int    `yaml:"baud_rate"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// Device status block (optional, opt-in)
	StatusSlot *uint16 `yaml:"status_slot"`
	DeviceName string  `yaml:"device_name"`

	// Frame capture file (optional)
	Capture string `yaml:"capture"`
}

// ---- TARGET ----

type TargetConfig struct {
	ID           uint32 `yaml:"id"`
	Endpoint     string `yaml:"endpoint"`
	UnitID       uint8  `yaml:"unit_id"`        // data memory
	StatusUnitID *uint8 `yaml:"status_unit_id"` // per-target status memory (optional)
	Offset       uint16 `yaml:"offset"`         // holding register = offset + harp address
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}
