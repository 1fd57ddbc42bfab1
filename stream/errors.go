package stream

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of
// ErrDecode, ErrProtocolViolation, or ErrInvariant.
var (
	// ErrDecode indicates bytes that do not parse into the expected shape.
	ErrDecode = errors.New("decode error")
	// ErrProtocolViolation indicates data that parses, and claims to belong to
	// a stream, but breaks the stream's rules.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrInvariant indicates a caller bug or corrupted stream state.
	ErrInvariant = errors.New("invariant violation")
)

// Decode errors.
var (
	ErrMalformed     = fmt.Errorf("%w: malformed serialization", ErrDecode)
	ErrSolutionShape = fmt.Errorf("%w: unexpected solution shape", ErrDecode)
)

func decodeErr(kind error, what string, err error) error {
	return fmt.Errorf("%w: %s: %v", kind, what, err)
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}

func invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
