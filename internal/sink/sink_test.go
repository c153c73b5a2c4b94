// internal/sink/sink_test.go
package sink

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/harp-replicator/internal/config"
	"github.com/tamzrod/harp-replicator/internal/device/licketysplit"
	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/poller"
	"github.com/tamzrod/harp-replicator/internal/register"
)

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func lickEvent() harp.Message {
	return harp.Message{
		Type: harp.Event, Address: licketysplit.AddrLickState, Port: harp.DefaultPort,
		PayloadType: harp.U8, Payload: []byte{0x01}, HasTimestamp: true, Timestamp: harp.Timestamp{Seconds: 12},
	}
}

func TestFromEvent(t *testing.T) {
	s, err := FromEvent("rig-1", "LicketySplit", licketysplit.Table, lickEvent(), at)
	require.NoError(t, err)
	assert.Equal(t, "LickState", s.Register.Name)
	assert.Equal(t, SourceEvent, s.Source)
	assert.Equal(t, uint64(1), s.Values[0].Uint())
	assert.Equal(t, 12.0, s.Seconds)

	unknown := lickEvent()
	unknown.Address = 99
	_, err = FromEvent("rig-1", "LicketySplit", licketysplit.Table, unknown, at)
	assert.ErrorIs(t, err, harp.ErrUnknownRegister)

	wrong := lickEvent()
	wrong.PayloadType = harp.U16
	wrong.Payload = []byte{1, 0}
	_, err = FromEvent("rig-1", "LicketySplit", licketysplit.Table, wrong, at)
	assert.ErrorIs(t, err, harp.ErrPayloadTypeMismatch)
}

func TestFromPoll(t *testing.T) {
	res := poller.PollResult{
		UnitID: "rig-1",
		At:     at,
		Blocks: []poller.BlockResult{{
			Descriptor: licketysplit.Channel0TriggerThreshold.Descriptor,
			Values:     []register.Value{{Type: harp.U8, Bits: 80}},
			Seconds:    4,
		}},
	}
	samples := FromPoll("LicketySplit", res)
	require.Len(t, samples, 1)
	assert.Equal(t, SourcePoll, samples[0].Source)

	res.Err = errors.New("boom")
	assert.Empty(t, FromPoll("LicketySplit", res))
}

// ---- mqtt ----

type doneToken struct{ err error }

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *doneToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	msgs         []published
	err          error
	disconnected bool
}

func (f *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) pahomqtt.Token {
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	f.msgs = append(f.msgs, published{topic: topic, qos: qos, payload: b})
	return &doneToken{err: f.err}
}

func (f *fakePublisher) Disconnect(uint) { f.disconnected = true }

func TestMQTTPublish(t *testing.T) {
	pub := &fakePublisher{}
	m := newMQTT(pub, config.MQTTConfig{TopicPrefix: "lab/", QoS: 1}, zerolog.Nop())

	s, err := FromEvent("rig-1", "LicketySplit", licketysplit.Table, lickEvent(), at)
	require.NoError(t, err)
	require.NoError(t, m.Publish(s))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "lab/rig-1/LickState", pub.msgs[0].topic)
	assert.Equal(t, byte(1), pub.msgs[0].qos)

	var body map[string]any
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &body))
	assert.Equal(t, "LickState", body["register"])
	assert.Equal(t, 1.0, body["value"])
	assert.Equal(t, "event", body["source"])
	assert.NotContains(t, body, "values")

	require.NoError(t, m.Close())
	assert.True(t, pub.disconnected)
	assert.Equal(t, "lab/status", pub.msgs[1].topic)
}

func TestMQTTPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	m := newMQTT(pub, config.MQTTConfig{TopicPrefix: "harp"}, zerolog.Nop())

	s, err := FromEvent("rig-1", "LicketySplit", licketysplit.Table, lickEvent(), at)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Publish(s), ErrMQTTPublish)
}

func TestEncodeArray(t *testing.T) {
	s := Sample{
		Unit: "rig-1", Register: register.Descriptor{Name: "Pair", Address: 40, Type: harp.S16, Length: 2},
		Values: []register.Value{{Type: harp.S16, Bits: 0xFFFF}, {Type: harp.S16, Bits: 2}},
		At:     at,
	}
	b, err := Encode(s)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(b, &body))
	assert.Equal(t, []any{-1.0, 2.0}, body["values"])
}

// ---- influx ----

type fakeWriter struct {
	points  []*write.Point
	flushed bool
}

func (f *fakeWriter) WritePoint(p *write.Point) { f.points = append(f.points, p) }
func (f *fakeWriter) Flush()                    { f.flushed = true }

func TestInfluxPoint(t *testing.T) {
	s, err := FromEvent("rig-1", "LicketySplit", licketysplit.Table, lickEvent(), at)
	require.NoError(t, err)

	p := Point(s)
	assert.Equal(t, "harp_register", p.Name())
	assert.True(t, at.Equal(p.Time()))

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"unit": "rig-1", "device": "LicketySplit", "register": "LickState", "source": "event"}, tags)

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, uint64(1), fields["value"])
	assert.Equal(t, 12.0, fields["device_time"])
}

func TestInfluxPublishAndClose(t *testing.T) {
	w := &fakeWriter{}
	sk := &Influx{w: w}

	s, err := FromEvent("rig-1", "LicketySplit", licketysplit.Table, lickEvent(), at)
	require.NoError(t, err)
	require.NoError(t, sk.Publish(s))
	require.NoError(t, sk.Close())

	assert.Len(t, w.points, 1)
	assert.True(t, w.flushed)
}

// ---- fanout ----

type countingSink struct {
	n   int
	err error
}

func (c *countingSink) Publish(Sample) error { c.n++; return c.err }
func (c *countingSink) Close() error         { return nil }

func TestFanoutDeliversToAll(t *testing.T) {
	a := &countingSink{err: errors.New("a down")}
	b := &countingSink{}

	err := Fanout{a, b}.Publish(Sample{})
	assert.Error(t, err)
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}
