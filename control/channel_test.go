package control

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memConn is a minimal in-memory net.Conn: writes append to an internal
// buffer, reads consume it. Single-goroutine use only.
type memConn struct {
	buf bytes.Buffer
}

func (c *memConn) Read(p []byte) (int, error)         { return c.buf.Read(p) }
func (c *memConn) Write(p []byte) (int, error)        { return c.buf.Write(p) }
func (c *memConn) Close() error                       { return nil }
func (c *memConn) LocalAddr() net.Addr                { return memAddr{} }
func (c *memConn) RemoteAddr() net.Addr               { return memAddr{} }
func (c *memConn) SetDeadline(t time.Time) error      { return nil }
func (c *memConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *memConn) SetWriteDeadline(t time.Time) error { return nil }

type memAddr struct{}

func (memAddr) Network() string { return "mem" }
func (memAddr) String() string  { return "mem" }

// sessionPair derives the two ends of one session from a fixed shared secret.
func sessionPair(t *testing.T) (*session, *session) {
	t.Helper()

	shared := bytes.Repeat([]byte{0x5a}, keySize)
	var saltA, saltB [keySize]byte
	for i := range saltA {
		saltA[i] = byte(i)
		saltB[i] = byte(255 - i)
	}

	client, err := deriveSession(shared, saltA, saltB, true)
	require.NoError(t, err)
	server, err := deriveSession(shared, saltA, saltB, false)
	require.NoError(t, err)
	return client, server
}

func TestChannelRoundTrip(t *testing.T) {
	client, server := sessionPair(t)
	wire := &memConn{}
	out := &channel{conn: wire, sess: client}
	in := &channel{conn: wire, sess: server}

	payloads := [][]byte{
		[]byte("getparam 34"),
		{},
		bytes.Repeat([]byte{0xfe}, 100_000),
	}
	for i, payload := range payloads {
		sent := &Query{ID: testQueryID(byte(i)), Payload: payload}
		require.NoError(t, out.writePacket(sent))

		got, err := in.readPacket()
		require.NoError(t, err)
		q, ok := got.(*Query)
		require.True(t, ok)
		require.Equal(t, sent.ID, q.ID)
		require.Equal(t, len(payload), len(q.Payload))
		require.Equal(t, payload, append([]byte{}, q.Payload...))
	}
}

func TestChannelTamperDetected(t *testing.T) {
	// Flipping any single bit of the checksum or the ciphertext must surface
	// as an integrity failure, never as a successful decode of wrong data.
	pristine := func(t *testing.T) []byte {
		client, _ := sessionPair(t)
		wire := &memConn{}
		out := &channel{conn: wire, sess: client}
		require.NoError(t, out.writePacket(&Query{ID: testQueryID(7), Payload: []byte("sendmessage")}))
		return wire.buf.Bytes()
	}

	frame := pristine(t)
	for pos := frameLenSize; pos < len(frame); pos++ {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte{}, frame...)
			tampered[pos] ^= 1 << bit

			_, server := sessionPair(t)
			wire := &memConn{}
			wire.buf.Write(tampered)
			in := &channel{conn: wire, sess: server}

			p, err := in.readPacket()
			require.Nil(t, p, "pos %d bit %d", pos, bit)
			require.ErrorIs(t, err, ErrIntegrity, "pos %d bit %d", pos, bit)
		}
	}
}

func TestChannelBadLengthPrefix(t *testing.T) {
	for _, length := range []uint32{0, 1, checksumSize, maxFrameLen + 1, 1 << 31} {
		_, server := sessionPair(t)
		wire := &memConn{}
		wire.buf.Write([]byte{byte(length), byte(length >> 8), byte(length >> 16), byte(length >> 24)})
		in := &channel{conn: wire, sess: server}

		_, err := in.readPacket()
		require.ErrorIs(t, err, ErrMalformedPacket, "length %d", length)
	}
}

func TestChannelKeystreamNeverRepeats(t *testing.T) {
	client, _ := sessionPair(t)
	wire := &memConn{}
	out := &channel{conn: wire, sess: client}

	// The same plaintext, framed N times in one direction, must produce N
	// distinct ciphertexts: the counter advances once per frame and the
	// keystream segment never repeats.
	p := &Query{ID: testQueryID(1), Payload: bytes.Repeat([]byte{0x00}, 64)}
	frameLen := frameLenSize + checksumSize + len(EncodePacket(p))

	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		require.NoError(t, out.writePacket(p))
		frame := make([]byte, frameLen)
		_, err := io.ReadFull(wire, frame)
		require.NoError(t, err)

		ct := string(frame[frameLenSize+checksumSize:])
		_, dup := seen[ct]
		require.False(t, dup, "ciphertext repeated at frame %d", i)
		seen[ct] = struct{}{}
	}
}

func TestChannelDirectionsIndependent(t *testing.T) {
	client, server := sessionPair(t)
	c2s := &memConn{}
	s2c := &memConn{}

	// Interleave traffic in both directions; each direction's counter
	// sequence must be unaffected by the other.
	co := &channel{conn: c2s, sess: client}
	so := &channel{conn: s2c, sess: server}
	ci := &channel{conn: s2c, sess: client}
	si := &channel{conn: c2s, sess: server}

	for i := 0; i < 10; i++ {
		require.NoError(t, co.writePacket(&Query{ID: testQueryID(byte(i)), Payload: []byte("ping")}))
		p, err := si.readPacket()
		require.NoError(t, err)
		require.Equal(t, testQueryID(byte(i)), p.(*Query).ID)

		require.NoError(t, so.writePacket(&Answer{ID: testQueryID(byte(i)), Payload: []byte("pong")}))
		a, err := ci.readPacket()
		require.NoError(t, err)
		require.Equal(t, testQueryID(byte(i)), a.(*Answer).ID)
	}
}
