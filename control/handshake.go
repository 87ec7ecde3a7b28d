package control

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/flynn/noise"
)

// Key derivation labels. The two directions get independent keys and initial
// counters; reversing a direction's keystream requires breaking SHA-256 or
// Curve25519, not guessing a label.
const (
	labelClientKey     = "ctl-c2s-key"
	labelServerKey     = "ctl-s2c-key"
	labelClientCounter = "ctl-c2s-ctr"
	labelServerCounter = "ctl-s2c-ctr"
	labelReady         = "ctl-ready"
)

// Handshake messages travel in a minimal cleartext envelope of a 4-byte
// little-endian length followed by the encoded packet. maxHandshakeLen bounds
// what a peer may claim before any trust is established.
const maxHandshakeLen = 512

// session is the symmetric state derived once per connection: an AES-CTR
// stream per direction and the session identifier. The cipher streams carry
// their counters internally; they advance on every encrypted byte and are
// never rewound or reset.
type session struct {
	enc    cipher.Stream
	dec    cipher.Stream
	id     [sha256.Size]byte
	marker [sha256.Size]byte
}

func deriveKey(label string, parts ...[]byte) []byte {
	h := sha256.New()
	h.Write([]byte(label))
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// deriveSession computes both directions from the Diffie-Hellman shared
// secret and the client-chosen salts. Client and server call it with the same
// inputs; initiator selects which direction is outbound.
func deriveSession(shared []byte, saltA, saltB [keySize]byte, initiator bool) (*session, error) {
	clientKey := deriveKey(labelClientKey, shared, saltA[:], saltB[:])
	serverKey := deriveKey(labelServerKey, shared, saltA[:], saltB[:])
	clientIV := deriveKey(labelClientCounter, shared, saltA[:])[:aes.BlockSize]
	serverIV := deriveKey(labelServerCounter, shared, saltB[:])[:aes.BlockSize]

	clientBlock, err := aes.NewCipher(clientKey)
	if err != nil {
		return nil, err
	}
	serverBlock, err := aes.NewCipher(serverKey)
	if err != nil {
		return nil, err
	}
	clientStream := cipher.NewCTR(clientBlock, clientIV)
	serverStream := cipher.NewCTR(serverBlock, serverIV)

	s := &session{}
	if initiator {
		s.enc, s.dec = clientStream, serverStream
	} else {
		s.enc, s.dec = serverStream, clientStream
	}
	s.id = sha256.Sum256(append(append(append([]byte{}, saltA[:]...), saltB[:]...), shared...))
	s.marker = sha256.Sum256(append([]byte(labelReady), s.id[:]...))
	return s, nil
}

// confirm encrypts the session marker with the outbound stream, consuming the
// first marker-sized keystream segment. The peer decrypts it with its inbound
// stream, so both sides stay aligned.
func (s *session) confirm() [keySize]byte {
	var out [keySize]byte
	s.enc.XORKeyStream(out[:], s.marker[:])
	return out
}

// verifyConfirm decrypts a received confirmation with the inbound stream and
// compares it to the expected marker.
func (s *session) verifyConfirm(got [keySize]byte) bool {
	var pt [keySize]byte
	s.dec.XORKeyStream(pt[:], got[:])
	return subtle.ConstantTimeCompare(pt[:], s.marker[:]) == 1
}

func writeHandshakeMsg(conn net.Conn, p Packet) error {
	body := EncodePacket(p)
	buf := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(body)))
	copy(buf[4:], body)
	_, err := conn.Write(buf)
	return err
}

func readHandshakeMsg(conn net.Conn) (Packet, error) {
	var size [4]byte
	if _, err := io.ReadFull(conn, size[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(size[:])
	if length == 0 || length > maxHandshakeLen {
		return nil, prefixError(ErrMalformedPacket, "handshake message of %d bytes", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(conn, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return DecodePacket(buf)
}

// clientHandshake runs the initiator side: generate a fresh key pair, derive
// the session from the shared secret and send the init packet, then check the
// server's confirmation. On failure the caller closes the stream; there are
// no retries at this level.
func clientHandshake(conn net.Conn, serverKey PublicKey, random io.Reader) (rsess *session, rerr error) {
	lcheck, handle := errorHandler(func(xerr error) {
		rerr = &wrapErr{ErrHandshakeFailed, xerr}
	})
	defer handle()

	if random == nil {
		random = rand.Reader
	}

	key, err := noise.DH25519.GenerateKeypair(random)
	lcheck(err, "generating ephemeral key")

	var saltA, saltB [keySize]byte
	_, err = io.ReadFull(random, saltA[:])
	lcheck(err, "generating salt")
	_, err = io.ReadFull(random, saltB[:])
	lcheck(err, "generating salt")

	shared, err := noise.DH25519.DH(key.Private, serverKey)
	lcheck(err, "computing shared secret")

	sess, err := deriveSession(shared, saltA, saltB, true)
	lcheck(err, "deriving session keys")

	init := &HandshakeInit{
		KeyID: serverKey.ID(),
		SaltA: saltA,
		SaltB: saltB,
	}
	copy(init.Ephemeral[:], key.Public)
	init.Confirm = sess.confirm()

	err = writeHandshakeMsg(conn, init)
	lcheck(err, "writing handshake init")

	p, err := readHandshakeMsg(conn)
	lcheck(err, "reading handshake ack")
	ack, ok := p.(*HandshakeAck)
	if !ok {
		return nil, prefixError(ErrHandshakeFailed, "peer sent %T instead of a handshake ack", p)
	}
	if !sess.verifyConfirm(ack.Confirm) {
		return nil, prefixError(ErrHandshakeFailed, "peer confirmation does not match, derived different keys")
	}
	return sess, nil
}

// serverHandshake runs the responder side against the given long-term key.
func serverHandshake(conn net.Conn, key noise.DHKey) (rsess *session, rerr error) {
	lcheck, handle := errorHandler(func(xerr error) {
		rerr = &wrapErr{ErrHandshakeFailed, xerr}
	})
	defer handle()

	p, err := readHandshakeMsg(conn)
	lcheck(err, "reading handshake init")
	init, ok := p.(*HandshakeInit)
	if !ok {
		return nil, prefixError(ErrHandshakeFailed, "peer sent %T instead of a handshake init", p)
	}

	if keyID := PublicKey(key.Public).ID(); subtle.ConstantTimeCompare(init.KeyID[:], keyID[:]) != 1 {
		return nil, prefixError(ErrHandshakeFailed, "peer addressed key id %x, serving %x", init.KeyID[:8], keyID[:8])
	}

	shared, err := noise.DH25519.DH(key.Private, init.Ephemeral[:])
	lcheck(err, "computing shared secret")

	sess, err := deriveSession(shared, init.SaltA, init.SaltB, false)
	lcheck(err, "deriving session keys")

	if !sess.verifyConfirm(init.Confirm) {
		return nil, prefixError(ErrHandshakeFailed, "client confirmation does not match, derived different keys")
	}

	err = writeHandshakeMsg(conn, &HandshakeAck{Confirm: sess.confirm()})
	lcheck(err, "writing handshake ack")

	return sess, nil
}

// withDeadline applies an absolute deadline around fn, clearing it afterwards
// so session traffic is not affected.
func withDeadline(conn net.Conn, timeout time.Duration, fn func() error) error {
	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
		defer conn.SetDeadline(time.Time{})
	}
	return fn()
}
