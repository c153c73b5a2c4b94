// internal/register/command.go
package register

import (
	"github.com/tamzrod/harp-replicator/internal/harp"
)

// BuildRead assembles a read request for d. Nothing is transmitted.
func BuildRead(d Descriptor) harp.Message {
	return harp.Message{
		Type:        harp.Read,
		Address:     d.Address,
		Port:        harp.DefaultPort,
		PayloadType: d.Type,
	}
}

// BuildWrite assembles a message carrying payload for d. The payload length
// is checked here: a short or long payload would spill into neighbouring
// registers on the device.
func BuildWrite(d Descriptor, msgType harp.MessageType, payload []byte) (harp.Message, error) {
	if err := d.checkPayload(payload); err != nil {
		return harp.Message{}, err
	}
	return harp.Message{
		Type:        msgType,
		Address:     d.Address,
		Port:        harp.DefaultPort,
		PayloadType: d.Type,
		Payload:     append([]byte(nil), payload...),
	}, nil
}

// BuildTimestampedWrite is BuildWrite with a timestamp, in seconds.
func BuildTimestampedWrite(d Descriptor, seconds float64, msgType harp.MessageType, payload []byte) (harp.Message, error) {
	m, err := BuildWrite(d, msgType, payload)
	if err != nil {
		return harp.Message{}, err
	}
	m.HasTimestamp = true
	m.Timestamp = harp.TimestampFromSeconds(seconds)
	return m, nil
}

// ---- typed helpers ----

func (r Register[T]) ReadCommand() harp.Message {
	return BuildRead(r.Descriptor)
}

// Message creates a message of the given type holding values.
func (r Register[T]) Message(msgType harp.MessageType, values ...T) (harp.Message, error) {
	payload, err := r.Encode(values...)
	if err != nil {
		return harp.Message{}, err
	}
	return BuildWrite(r.Descriptor, msgType, payload)
}

// TimestampedMessage creates a timestamped message holding values.
func (r Register[T]) TimestampedMessage(seconds float64, msgType harp.MessageType, values ...T) (harp.Message, error) {
	payload, err := r.Encode(values...)
	if err != nil {
		return harp.Message{}, err
	}
	return BuildTimestampedWrite(r.Descriptor, seconds, msgType, payload)
}
