// internal/sink/mqtt.go
package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tamzrod/harp-replicator/internal/config"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQuiesceMs      = 500
	mqttKeepAlive      = 30 * time.Second
)

var (
	ErrMQTTConnect = errors.New("mqtt: connection failed")
	ErrMQTTPublish = errors.New("mqtt: publish failed")
)

// publisher is the part of pahomqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes samples as JSON to <prefix>/<unit>/<register>.
type MQTT struct {
	pub    publisher
	prefix string
	qos    byte
	retain bool
	log    zerolog.Logger
}

// ConnectMQTT dials the broker and waits for the first connection.
// Auto-reconnect is left to the paho client.
func ConnectMQTT(cfg config.MQTTConfig, log zerolog.Logger) (*MQTT, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout).
		SetKeepAlive(mqttKeepAlive).
		SetWill(statusTopic(cfg.TopicPrefix), `{"status":"offline"}`, 1, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt: connection lost")
	})
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		c.Publish(statusTopic(cfg.TopicPrefix), 1, true, `{"status":"online"}`)
		log.Info().Str("broker", cfg.Broker).Msg("mqtt: connected")
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrMQTTConnect, mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMQTTConnect, err)
	}

	return newMQTT(client, cfg, log), nil
}

func newMQTT(pub publisher, cfg config.MQTTConfig, log zerolog.Logger) *MQTT {
	return &MQTT{
		pub:    pub,
		prefix: strings.TrimRight(cfg.TopicPrefix, "/"),
		qos:    cfg.QoS,
		retain: cfg.Retain,
		log:    log,
	}
}

func statusTopic(prefix string) string {
	return strings.TrimRight(prefix, "/") + "/status"
}

// Topic is where samples of reg on unit are published.
func (m *MQTT) Topic(unit, reg string) string {
	return m.prefix + "/" + unit + "/" + reg
}

type mqttPayload struct {
	Unit     string  `json:"unit"`
	Device   string  `json:"device"`
	Register string  `json:"register"`
	Address  uint8   `json:"address"`
	Source   Source  `json:"source"`
	Value    any     `json:"value"`
	Values   []any   `json:"values,omitempty"`
	Seconds  float64 `json:"device_time"`
	Time     string  `json:"time"`
}

// Encode builds the JSON payload. Single-element registers carry only
// "value"; arrays carry "values" too.
func Encode(s Sample) ([]byte, error) {
	p := mqttPayload{
		Unit:     s.Unit,
		Device:   s.Device,
		Register: s.Register.Name,
		Address:  s.Register.Address,
		Source:   s.Source,
		Seconds:  s.Seconds,
		Time:     s.At.UTC().Format(time.RFC3339Nano),
	}
	if len(s.Values) > 0 {
		p.Value = s.Values[0].Number()
	}
	if len(s.Values) > 1 {
		p.Values = make([]any, len(s.Values))
		for i, v := range s.Values {
			p.Values[i] = v.Number()
		}
	}
	return json.Marshal(p)
}

func (m *MQTT) Publish(s Sample) error {
	payload, err := Encode(s)
	if err != nil {
		return err
	}
	topic := m.Topic(s.Unit, s.Register.Name)

	token := m.pub.Publish(topic, m.qos, m.retain, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrMQTTPublish, topic, mqttPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMQTTPublish, topic, err)
	}
	return nil
}

func (m *MQTT) Close() error {
	token := m.pub.Publish(statusTopic(m.prefix), 1, true, `{"status":"offline"}`)
	token.WaitTimeout(mqttPublishTimeout)
	m.pub.Disconnect(mqttQuiesceMs)
	return nil
}
