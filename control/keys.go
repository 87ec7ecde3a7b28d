package control

import (
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"
)

// keySize is the size of Curve25519 public and private keys, of query ids and
// of the handshake salts.
const keySize = 32

// PublicKey is a 32-byte Curve25519 public key. The node's long-term control
// server key is the peer identity a connection authenticates against.
type PublicKey []byte

// String returns a base64-raw-url-encoded version of the public key.
func (k PublicKey) String() string {
	return base64.RawURLEncoding.EncodeToString(k)
}

// ID returns the short identifier of the key used in the handshake packet:
// the SHA-256 digest of the key bytes. It lets a node serving multiple
// control keys select the right one.
func (k PublicKey) ID() [sha256.Size]byte {
	return sha256.Sum256(k)
}

// ParsePublicKey parses a base64-raw-url-encoded 32-byte public key.
func ParsePublicKey(s string) (PublicKey, error) {
	buf, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, prefixError(ErrBadKey, "bad base64-raw-url for public key: %s", err)
	}
	if len(buf) != keySize {
		return nil, prefixError(ErrBadKey, "got %d bytes, expected %d", len(buf), keySize)
	}
	return PublicKey(buf), nil
}

// ParsePrivateKey derives a full key pair from a base64-raw-url-encoded
// 32-byte private scalar.
func ParsePrivateKey(s string) (*noise.DHKey, error) {
	buf, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, prefixError(ErrBadKey, "bad base64-raw-url for private key: %s", err)
	}
	return parseKey(buf)
}

func parseKey(privBuf []byte) (*noise.DHKey, error) {
	var pubKey, privKey [keySize]byte
	if len(privBuf) != len(privKey) {
		return nil, prefixError(ErrBadKey, "got %d bytes expected %d bytes", len(privBuf), len(privKey))
	}
	copy(privKey[:], privBuf)
	curve25519.ScalarBaseMult(&pubKey, &privKey)
	key := &noise.DHKey{Private: privKey[:], Public: pubKey[:]}
	return key, nil
}

// GenerateKey creates a fresh Curve25519 key pair from random. If random is
// nil, crypto/rand is used. Connections call this once per handshake; the
// resulting pair is owned by that connection and never persisted.
func GenerateKey(random io.Reader) (noise.DHKey, error) {
	return noise.DH25519.GenerateKeypair(random)
}
