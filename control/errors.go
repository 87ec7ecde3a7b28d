package control

import (
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

var (
	// ErrHandshakeFailed is returned when the key exchange or the confirmation
	// check failed. The connection never becomes usable.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrIntegrity is returned when a frame checksum does not match its
	// ciphertext. This indicates corruption or a protocol confusion attack and
	// closes the connection immediately.
	ErrIntegrity = errors.New("frame integrity check failed")

	// ErrMalformedPacket is returned when a decrypted frame does not parse as
	// a packet, or when a frame length prefix is out of bounds. Both mean the
	// two ends have lost protocol sync, so the connection is closed.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrQueryTimeout is returned by Call when no answer arrived within the
	// caller's deadline. The connection remains usable for other queries.
	ErrQueryTimeout = errors.New("query timed out")

	// ErrConnClosed is returned by Call and Close when the connection has been
	// torn down, either explicitly or after a fatal protocol error. Unwrap for
	// the original cause.
	ErrConnClosed = errors.New("connection closed")

	// ErrBadKey indicates a key is not valid: bad base64-raw-url encoding, or
	// not 32 bytes.
	ErrBadKey = errors.New("bad key")
)

func errorHandler(fn func(error)) (func(error, string), func()) {
	type localError struct {
		err error
	}

	check := func(err error, msg string) {
		if err != nil {
			err = xerrors.Errorf("%s: %w", msg, err)
			panic(&localError{err})
		}
	}
	handle := func() {
		e := recover()
		if e == nil {
			return
		}
		if le, ok := e.(*localError); ok {
			fn(le.err)
		} else {
			panic(e)
		}
	}
	return check, handle
}

// Remove when xerrors supports "%w" in arbitrary location in the formatting
// string. At the time of writing, it only allows it at the end.
type prefixErr struct {
	err    error
	errmsg string
}

func prefixError(err error, format string, args ...interface{}) *prefixErr {
	return &prefixErr{err, err.Error() + ": " + fmt.Sprintf(format, args...)}
}

func (e *prefixErr) Error() string {
	return e.errmsg
}

func (e *prefixErr) Unwrap() error {
	return e.err
}

// wrapErr implements "Is" for the first error, and unwraps into the second error.
type wrapErr struct {
	err  error
	next error
}

func (e *wrapErr) Error() string {
	if e.next != nil {
		return e.err.Error() + ": " + e.next.Error()
	}
	return e.err.Error()
}

func (e *wrapErr) Is(err error) bool {
	return xerrors.Is(e.err, err)
}

func (e *wrapErr) Unwrap() error {
	return e.next
}
