package control

// Packet tags. A frame whose plaintext starts with an unknown tag is
// malformed; decoding fails closed.
const (
	tagHandshakeInit = 0x01
	tagHandshakeAck  = 0x02
	tagQuery         = 0x03
	tagAnswer        = 0x04
)

const (
	handshakeInitSize = 1 + 5*keySize
	handshakeAckSize  = 1 + keySize
	queryHeaderSize   = 1 + keySize
)

// QueryID is the fixed-width random token correlating a Query with its
// eventual Answer.
type QueryID [keySize]byte

// Packet is the typed union carried by the control protocol: the two
// handshake messages exchanged before a session exists, and the query/answer
// pairs exchanged inside encrypted frames afterwards.
type Packet interface {
	appendTo(b []byte) []byte
}

// HandshakeInit opens a connection. It travels in the clear, except for
// Confirm, which is the session confirmation marker encrypted under the
// just-derived client-to-server key.
type HandshakeInit struct {
	KeyID     [keySize]byte // SHA-256 of the server public key being addressed.
	Ephemeral [keySize]byte // Client's fresh Curve25519 public key.
	SaltA     [keySize]byte
	SaltB     [keySize]byte
	Confirm   [keySize]byte
}

// HandshakeAck completes a handshake: the confirmation marker encrypted under
// the server-to-client key. A client failing to decrypt it to the expected
// marker must abandon the connection.
type HandshakeAck struct {
	Confirm [keySize]byte
}

// Query carries an opaque request payload. The payload structure belongs to
// the command layer; this package only frames it with its correlation id.
type Query struct {
	ID      QueryID
	Payload []byte
}

// Answer carries the opaque response payload for the Query with the same id.
type Answer struct {
	ID      QueryID
	Payload []byte
}

func (p *HandshakeInit) appendTo(b []byte) []byte {
	b = append(b, tagHandshakeInit)
	b = append(b, p.KeyID[:]...)
	b = append(b, p.Ephemeral[:]...)
	b = append(b, p.SaltA[:]...)
	b = append(b, p.SaltB[:]...)
	b = append(b, p.Confirm[:]...)
	return b
}

func (p *HandshakeAck) appendTo(b []byte) []byte {
	b = append(b, tagHandshakeAck)
	b = append(b, p.Confirm[:]...)
	return b
}

func (p *Query) appendTo(b []byte) []byte {
	b = append(b, tagQuery)
	b = append(b, p.ID[:]...)
	b = append(b, p.Payload...)
	return b
}

func (p *Answer) appendTo(b []byte) []byte {
	b = append(b, tagAnswer)
	b = append(b, p.ID[:]...)
	b = append(b, p.Payload...)
	return b
}

// EncodePacket returns the canonical byte layout of p. Encoding is
// deterministic: equal packets always yield equal bytes, which the handshake
// confirmation check depends on.
func EncodePacket(p Packet) []byte {
	return p.appendTo(nil)
}

// DecodePacket parses a canonical byte layout back into a packet. It returns
// ErrMalformedPacket for an unknown tag or a truncated body; it never panics
// on hostile input.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) == 0 {
		return nil, prefixError(ErrMalformedPacket, "empty packet")
	}
	switch b[0] {
	case tagHandshakeInit:
		if len(b) != handshakeInitSize {
			return nil, prefixError(ErrMalformedPacket, "handshake init is %d bytes, expected %d", len(b), handshakeInitSize)
		}
		p := &HandshakeInit{}
		b = b[1:]
		for _, field := range [][]byte{p.KeyID[:], p.Ephemeral[:], p.SaltA[:], p.SaltB[:], p.Confirm[:]} {
			copy(field, b[:keySize])
			b = b[keySize:]
		}
		return p, nil
	case tagHandshakeAck:
		if len(b) != handshakeAckSize {
			return nil, prefixError(ErrMalformedPacket, "handshake ack is %d bytes, expected %d", len(b), handshakeAckSize)
		}
		p := &HandshakeAck{}
		copy(p.Confirm[:], b[1:])
		return p, nil
	case tagQuery:
		if len(b) < queryHeaderSize {
			return nil, prefixError(ErrMalformedPacket, "query is %d bytes, expected at least %d", len(b), queryHeaderSize)
		}
		p := &Query{}
		copy(p.ID[:], b[1:])
		p.Payload = append([]byte{}, b[queryHeaderSize:]...)
		return p, nil
	case tagAnswer:
		if len(b) < queryHeaderSize {
			return nil, prefixError(ErrMalformedPacket, "answer is %d bytes, expected at least %d", len(b), queryHeaderSize)
		}
		p := &Answer{}
		copy(p.ID[:], b[1:])
		p.Payload = append([]byte{}, b[queryHeaderSize:]...)
		return p, nil
	default:
		return nil, prefixError(ErrMalformedPacket, "unknown tag 0x%02x", b[0])
	}
}
