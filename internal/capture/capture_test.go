// internal/capture/capture_test.go
package capture

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/harp-replicator/internal/harp"
	"github.com/tamzrod/harp-replicator/internal/transport"
)

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.cbor")
	w, err := Create(path)
	require.NoError(t, err)

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	w.now = func() time.Time { return fixed }

	read := harp.Message{Type: harp.Read, Address: 32, Port: harp.DefaultPort, PayloadType: harp.U8}
	reply := harp.Message{Type: harp.Read, Address: 32, Port: harp.DefaultPort, PayloadType: harp.U8, Payload: []byte{0x03},
		HasTimestamp: true, Timestamp: harp.Timestamp{Seconds: 9}}

	for _, tc := range []struct {
		dir transport.Direction
		m   harp.Message
	}{{transport.Outbound, read}, {transport.Inbound, reply}} {
		frame, err := tc.m.MarshalBinary()
		require.NoError(t, err)
		w.Observe(tc.dir, frame, tc.m)
	}
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, transport.Outbound, first.Direction)
	assert.Equal(t, w.Session(), first.Session)
	assert.True(t, fixed.Equal(first.Time))

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, transport.Inbound, second.Direction)
	m, err := second.Message()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03}, m.Payload)
	assert.Equal(t, 9.0, m.Seconds())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSessionsAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.cbor")
	m := harp.Message{Type: harp.Event, Address: 32, Port: harp.DefaultPort, PayloadType: harp.U8, Payload: []byte{1}}
	frame, err := m.MarshalBinary()
	require.NoError(t, err)

	var sessions []string
	for i := 0; i < 2; i++ {
		w, err := Create(path)
		require.NoError(t, err)
		w.Observe(transport.Inbound, frame, m)
		require.NoError(t, w.Close())
		sessions = append(sessions, w.Session())
	}
	require.NotEqual(t, sessions[0], sessions[1])

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	var got []string
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, rec.Session)
	}
	assert.Equal(t, sessions, got)
}

func TestObserveAfterCloseIgnored(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "x.cbor"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	w.Observe(transport.Inbound, []byte{1}, harp.Message{})
	assert.NoError(t, w.Close())
}
