package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrGenerationFailed indicates that the final answer could not be generated.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrEmbeddingFailed indicates that embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrStorageOperation indicates that a storage operation failed.
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrProfileNotFound indicates that no profile exists for a user.
	ErrProfileNotFound = errors.New("profile not found")
)

// RelayError wraps errors with operation context.
//
// Example:
//
//	err := &RelayError{
//	    Op:  "Answer",
//	    Err: ErrGenerationFailed,
//	}
//	// Error() returns: "relay: Answer: generation failed"
type RelayError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns "relay: <Op>: <Err>".
func (e *RelayError) Error() string {
	return fmt.Sprintf("relay: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error so errors.Is and errors.As see through it.
func (e *RelayError) Unwrap() error {
	return e.Err
}

// NewRelayError creates a new RelayError wrapping err.
//
// If err is nil, returns nil:
//
//	if err != nil {
//	    return NewRelayError("Answer", err)
//	}
func NewRelayError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RelayError{
		Op:  op,
		Err: err,
	}
}

// wrapf wraps cause under sentinel so that errors.Is matches both.
func wrapf(sentinel, cause error) error {
	return fmt.Errorf("%w: %w", sentinel, cause)
}
