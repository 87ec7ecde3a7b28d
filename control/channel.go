package control

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"io"
	"net"
)

const (
	frameLenSize = 4
	checksumSize = sha256.Size

	// maxFrameLen bounds the length prefix of a frame: checksum plus
	// ciphertext. The control protocol carries config cells and signed
	// messages, never bulk data.
	maxFrameLen = 1 << 20
)

// channel frames, encrypts and authenticates packets over an already
// handshaken stream. Writers must be serialized by the caller: encrypting
// advances the shared outbound counter and a frame must reach the wire in one
// piece. Reads must come from a single goroutine, because the inbound counter
// is sequential and frames can only be decrypted in the exact order written.
type channel struct {
	conn net.Conn
	sess *session
}

// writePacket encrypts p with the outbound stream, advancing its counter by
// one frame, and writes [length][checksum][ciphertext] in a single Write.
func (ch *channel) writePacket(p Packet) error {
	pt := EncodePacket(p)
	if len(pt)+checksumSize > maxFrameLen {
		return prefixError(ErrMalformedPacket, "frame of %d bytes exceeds limit", len(pt)+checksumSize)
	}

	frame := make([]byte, frameLenSize+checksumSize+len(pt))
	ct := frame[frameLenSize+checksumSize:]
	ch.sess.enc.XORKeyStream(ct, pt)

	sum := sha256.Sum256(ct)
	binary.LittleEndian.PutUint32(frame[:frameLenSize], uint32(checksumSize+len(ct)))
	copy(frame[frameLenSize:frameLenSize+checksumSize], sum[:])

	_, err := ch.conn.Write(frame)
	return err
}

// readPacket reads exactly one frame, looping over partial reads until it is
// fully buffered, verifies the checksum before touching the cipher, then
// decrypts and parses. Checksum mismatch is fatal to the connection; it is
// never a recoverable parse error.
func (ch *channel) readPacket() (Packet, error) {
	var size [frameLenSize]byte
	if _, err := io.ReadFull(ch.conn, size[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(size[:])
	if length <= checksumSize || length > maxFrameLen {
		return nil, prefixError(ErrMalformedPacket, "frame length prefix %d out of bounds", length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(ch.conn, buf); err != nil {
		if err == io.EOF {
			// A connection torn down mid-frame is not a clean close.
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	ct := buf[checksumSize:]
	sum := sha256.Sum256(ct)
	if subtle.ConstantTimeCompare(sum[:], buf[:checksumSize]) != 1 {
		return nil, prefixError(ErrIntegrity, "checksum mismatch on %d byte frame", length)
	}

	pt := make([]byte, len(ct))
	ch.sess.dec.XORKeyStream(pt, ct)
	return DecodePacket(pt)
}
