// internal/capture/capture.go
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/transport"
)

// Record is one captured frame. Integer keys keep files small.
type Record struct {
	Time      time.Time           `cbor:"1,keyasint"`
	Session   string              `cbor:"2,keyasint"`
	Direction transport.Direction `cbor:"3,keyasint"`
	Frame     []byte              `cbor:"4,keyasint"`
	Address   uint8               `cbor:"5,keyasint"`
	Type      harp.MessageType    `cbor:"6,keyasint"`
	Error     bool                `cbor:"7,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor dec mode: %v", err))
	}
}

// Writer appends records to a capture file. Safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	w       io.WriteCloser
	enc     *cbor.Encoder
	session string
	now     func() time.Time
	closed  bool
	err     error
}

// Create opens path for appending (0644) and starts a new session.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return NewWriter(f), nil
}

// NewWriter starts a session on w. The Writer owns w.
func NewWriter(w io.WriteCloser) *Writer {
	return &Writer{
		w:       w,
		enc:     encMode.NewEncoder(w),
		session: uuid.NewString(),
		now:     time.Now,
	}
}

func (w *Writer) Session() string { return w.session }

// Observe records a frame. It matches transport.Observer.
// Encoding errors are kept for Close; capture never disturbs the link.
func (w *Writer) Observe(dir transport.Direction, frame []byte, m harp.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.err != nil {
		return
	}
	rec := Record{
		Time:      w.now().UTC(),
		Session:   w.session,
		Direction: dir,
		Frame:     append([]byte(nil), frame...),
		Address:   m.Address,
		Type:      m.Type,
		Error:     m.Error,
	}
	if err := w.enc.Encode(rec); err != nil {
		w.err = err
	}
}

// Close closes the file and reports the first encode error, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return errors.Join(w.err, w.w.Close())
}

// Reader iterates records in a capture file.
type Reader struct {
	r   io.ReadCloser
	dec *cbor.Decoder
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return NewReader(f), nil
}

func NewReader(r io.ReadCloser) *Reader {
	return &Reader{r: r, dec: decMode.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the file.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("capture: decode: %w", err)
	}
	return rec, nil
}

// Message re-parses the captured frame.
func (rec Record) Message() (harp.Message, error) {
	return harp.ParseMessage(rec.Frame)
}

func (r *Reader) Close() error { return r.r.Close() }
