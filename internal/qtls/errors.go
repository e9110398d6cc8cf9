// Package qtls implements the bit-exact wire codecs for the TLS 1.3
// ClientHello that rides inside QUIC Initial CRYPTO frames and for the
// QUIC transport-parameters TLS extension (RFC 9000 §18).
//
// Every function in this package is pure with respect to shared state:
// it reads a caller-provided byte slice and writes into a caller-provided
// output struct or a freshly allocated buffer. There are no locks, no
// goroutines, and no blocking operations — the adversary controls every
// byte, so the only contract this package keeps is "never panic, never
// read out of bounds, always return one of the three errors below."
package qtls

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers should test with errors.Is against
// these, never by comparing error strings.
var (
	// ErrInvalidParameter means the input was malformed, an out-of-range
	// value was seen, a duplicate was found, or a value was offered in a
	// direction (client/server) that isn't allowed to offer it.
	ErrInvalidParameter = errors.New("qtls: invalid parameter")

	// ErrPending means more bytes are needed before a complete ClientHello
	// can be parsed. Only the framing driver (ReadInitial) returns this;
	// it is never returned by the inner ClientHello or transport-parameter
	// parsers.
	ErrPending = errors.New("qtls: pending")

	// ErrOutOfMemory is returned by EncodeTransportParameters when the
	// encoded parameter set would exceed 0xffff bytes.
	ErrOutOfMemory = errors.New("qtls: out of memory")
)

// invalidf wraps a formatted detail message around ErrInvalidParameter.
func invalidf(format string, args ...any) error {
	return &wrappedError{sentinel: ErrInvalidParameter, detail: fmt.Sprintf(format, args...)}
}

type wrappedError struct {
	sentinel error
	detail   string
}

func (e *wrappedError) Error() string { return e.sentinel.Error() + ": " + e.detail }

func (e *wrappedError) Unwrap() error { return e.sentinel }
