/*
Package control implements the client side of the encrypted control protocol
used to administer a validator node over its local control endpoint.

A connection is established with Dial (or Client on an existing net.Conn). The
handshake generates a fresh ephemeral Curve25519 key pair, combines it with the
node's long-term public key through Diffie-Hellman, and derives one AES-CTR
stream cipher and counter per direction by hashing the shared secret with two
client-chosen salts. The salts travel in the clear portion of the handshake
packet; a confirmation marker encrypted under the just-derived outbound key
lets the node prove it arrived at the same keys before any application traffic
flows. The ephemeral key pair never leaves the connection that generated it
and is never reused.

After the handshake, every unit on the wire is a frame: a 4-byte little-endian
length, a SHA-256 checksum of the ciphertext, and the ciphertext itself. The
checksum is verified before decryption; a mismatch terminates the connection.
The per-direction cipher counters advance exactly once per frame and are never
reset, which keeps the keystream unique for the lifetime of the connection.

Plaintext frames carry packets: queries and answers correlated by a 32-byte
random id. Conn multiplexes concurrent Call invocations over one connection: a
single background goroutine reads frames and routes each answer to the caller
whose query id matches, regardless of arrival order. A query that misses its
deadline fails alone; the connection stays usable. A transport or integrity
failure closes the connection and fails every outstanding call.

The node's control server public key is the peer identity and must be
configured out of band, as with SSH or WireGuard. Keys are 32 bytes,
base64-raw-url encoded in configuration files. No PKI is involved.

Server implements the responder side of the same protocol. It exists so that
tests and tools can emulate a node's control endpoint; the real counterpart is
the node itself.
*/
package control
