// Package bip352 implements the BIP-352 Silent Payments cryptographic
// pipeline: tagged hashing, shared-secret derivation, output-key
// derivation, candidate matching and prefix computation.
package bip352

import "fmt"

// Kind classifies a core error the way the design's error taxonomy does:
// callers switch on Kind rather than string-matching messages.
type Kind int

const (
	// KindInvalidInput covers empty input sets and out-of-range label values.
	KindInvalidInput Kind = iota
	// KindInvalidKey covers point-decoding failures on keys or scripts.
	KindInvalidKey
	// KindCryptoError covers scalar reduction to zero, point-at-infinity,
	// and ECDH failures.
	KindCryptoError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindInvalidKey:
		return "invalid_key"
	case KindCryptoError:
		return "crypto_error"
	default:
		return "unknown"
	}
}

// Error is the core package's single error type. It carries a Kind so
// callers (the ingestor, the HTTP layer) can map it to the right
// external representation without parsing strings.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bip352: %s: %s", e.Kind, e.Message)
}

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidInput is returned when the caller violates an input
// precondition, e.g. an empty set of inputs.
func ErrInvalidInput(format string, args ...interface{}) *Error {
	return newErr(KindInvalidInput, format, args...)
}

// ErrInvalidKey is returned when a key or script fails to parse.
func ErrInvalidKey(format string, args ...interface{}) *Error {
	return newErr(KindInvalidKey, format, args...)
}

// ErrCryptoError is returned for scalar/point degeneracies that are
// cryptographically possible only with negligible probability.
func ErrCryptoError(format string, args ...interface{}) *Error {
	return newErr(KindCryptoError, format, args...)
}
