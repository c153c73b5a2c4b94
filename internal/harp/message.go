// internal/harp/message.go
package harp

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
)

// MessageType is the command/reply kind carried in the first frame byte.
type MessageType byte

const (
	Read  MessageType = 0x01
	Write MessageType = 0x02
	Event MessageType = 0x03

	errorFlag byte = 0x08
)

func (t MessageType) Valid() bool {
	return t == Read || t == Write || t == Event
}

func (t MessageType) String() string {
	switch t {
	case Read:
		return "Read"
	case Write:
		return "Write"
	case Event:
		return "Event"
	}
	return fmt.Sprintf("MessageType(%d)", byte(t))
}

// DefaultPort addresses the device itself (no hub forwarding).
const DefaultPort byte = 0xFF

// TickSeconds is the resolution of the timestamp sub-second field.
const TickSeconds = 32e-6

const ticksPerSecond = 31250

// Frame geometry.
//
// 0      MessageType (| 0x08 error)
// 1      Length (bytes after this one)
// 2      Address
// 3      Port
// 4      PayloadType (| 0x10 timestamped)
// 5..10  Seconds U32 + Ticks U16 (timestamped only)
// ...    Payload
// last   Checksum
const (
	headerLen    = 5
	timestampLen = 6
	checksumLen  = 1

	// MaxFrameLen bounds one frame: Length is a single byte.
	MaxFrameLen = 2 + 255
)

// Timestamp is the device clock as carried on the wire.
type Timestamp struct {
	Seconds uint32
	Ticks   uint16 // 32 µs units
}

// Float returns the timestamp in seconds.
func (ts Timestamp) Float() float64 {
	return float64(ts.Seconds) + float64(ts.Ticks)*TickSeconds
}

// MaxTimestamp is the latest time the wire format can carry.
var MaxTimestamp = Timestamp{Seconds: math.MaxUint32, Ticks: ticksPerSecond - 1}

// TimestampFromSeconds rounds s to the nearest tick. Values outside the
// wire range saturate: negative and NaN give zero, overflow gives MaxTimestamp.
func TimestampFromSeconds(s float64) Timestamp {
	if !(s > 0) {
		return Timestamp{}
	}
	sec := math.Floor(s)
	if sec > math.MaxUint32 {
		return MaxTimestamp
	}
	ticks := math.Round((s - sec) / TickSeconds)
	if ticks >= ticksPerSecond {
		if sec == math.MaxUint32 {
			return MaxTimestamp
		}
		sec++
		ticks = 0
	}
	return Timestamp{Seconds: uint32(sec), Ticks: uint16(ticks)}
}

// Message is one logical Harp frame. The codec only ever touches Payload;
// envelope fields are built and checked here.
type Message struct {
	Type         MessageType
	Error        bool
	Address      uint8
	Port         uint8
	PayloadType  PayloadType
	HasTimestamp bool
	Timestamp    Timestamp
	Payload      []byte
}

// Seconds returns the message timestamp in seconds (0 when absent).
func (m Message) Seconds() float64 {
	if !m.HasTimestamp {
		return 0
	}
	return m.Timestamp.Float()
}

func (m Message) String() string {
	s := fmt.Sprintf("%s addr=%d type=%s payload=% x", m.Type, m.Address, m.PayloadType, m.Payload)
	if m.Error {
		s += " ERROR"
	}
	if m.HasTimestamp {
		s += fmt.Sprintf(" t=%.6f", m.Timestamp.Float())
	}
	return s
}

// MarshalBinary encodes the frame including length and checksum.
func (m Message) MarshalBinary() ([]byte, error) {
	if !m.Type.Valid() {
		return nil, ErrInvalidMessageType
	}
	if !m.PayloadType.Valid() {
		return nil, ErrInvalidPayloadType
	}
	if len(m.Payload)%m.PayloadType.Size() != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %s", ErrPayloadLengthMismatch, len(m.Payload), m.PayloadType)
	}

	n := headerLen + len(m.Payload) + checksumLen
	if m.HasTimestamp {
		n += timestampLen
	}
	if n > MaxFrameLen {
		return nil, fmt.Errorf("harp: frame too large (%d bytes)", n)
	}

	buf := make([]byte, n)
	buf[0] = byte(m.Type)
	if m.Error {
		buf[0] |= errorFlag
	}
	buf[1] = byte(n - 2)
	buf[2] = m.Address
	buf[3] = m.Port
	buf[4] = byte(m.PayloadType)

	off := headerLen
	if m.HasTimestamp {
		buf[4] |= HasTimestamp
		binary.LittleEndian.PutUint32(buf[off:], m.Timestamp.Seconds)
		binary.LittleEndian.PutUint16(buf[off+4:], m.Timestamp.Ticks)
		off += timestampLen
	}
	copy(buf[off:], m.Payload)
	buf[n-1] = checksum(buf[:n-1])

	return buf, nil
}

// ParseMessage decodes exactly one complete frame.
func ParseMessage(frame []byte) (Message, error) {
	if len(frame) < headerLen+checksumLen {
		return Message{}, ErrShortFrame
	}
	if int(frame[1])+2 != len(frame) {
		return Message{}, fmt.Errorf("%w: length byte %d, frame %d", ErrShortFrame, frame[1], len(frame))
	}
	if sum := checksum(frame[:len(frame)-1]); sum != frame[len(frame)-1] {
		return Message{}, fmt.Errorf("%w: got=0x%02x want=0x%02x", ErrChecksum, frame[len(frame)-1], sum)
	}

	m := Message{
		Type:        MessageType(frame[0] &^ errorFlag),
		Error:       frame[0]&errorFlag != 0,
		Address:     frame[2],
		Port:        frame[3],
		PayloadType: PayloadType(frame[4] &^ HasTimestamp),
	}
	if !m.Type.Valid() {
		return Message{}, fmt.Errorf("%w: 0x%02x", ErrInvalidMessageType, frame[0])
	}
	if !m.PayloadType.Valid() {
		return Message{}, fmt.Errorf("%w: 0x%02x", ErrInvalidPayloadType, frame[4])
	}

	off := headerLen
	if frame[4]&HasTimestamp != 0 {
		if len(frame) < headerLen+timestampLen+checksumLen {
			return Message{}, ErrShortFrame
		}
		m.HasTimestamp = true
		m.Timestamp.Seconds = binary.LittleEndian.Uint32(frame[off:])
		m.Timestamp.Ticks = binary.LittleEndian.Uint16(frame[off+4:])
		off += timestampLen
	}

	payload := frame[off : len(frame)-1]
	if len(payload)%m.PayloadType.Size() != 0 {
		return Message{}, fmt.Errorf("%w: %d bytes is not a multiple of %s", ErrPayloadLengthMismatch, len(payload), m.PayloadType)
	}
	m.Payload = append([]byte(nil), payload...)

	return m, nil
}

// ReadMessage reads the next valid frame from r, skipping bytes that cannot
// start a frame and frames that fail validation. It only returns I/O errors.
// The skipped count lets callers report line noise.
func ReadMessage(r *bufio.Reader) (Message, int, error) {
	skipped := 0
	for {
		hdr, err := r.Peek(2)
		if err != nil {
			return Message{}, skipped, err
		}
		if !MessageType(hdr[0]&^errorFlag).Valid() || int(hdr[1]) < headerLen-2+checksumLen {
			_, _ = r.Discard(1)
			skipped++
			continue
		}

		n := int(hdr[1]) + 2
		frame, err := r.Peek(n)
		if err != nil {
			return Message{}, skipped, err
		}

		m, perr := ParseMessage(frame)
		if perr != nil {
			_, _ = r.Discard(1)
			skipped++
			continue
		}
		_, _ = r.Discard(n)
		return m, skipped, nil
	}
}

func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}
