package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransportError reports that the generation endpoint could not be reached,
// or did not answer before the deadline.
type TransportError struct {
	// Endpoint is the URL that was called.
	Endpoint string

	// Err is the underlying network or context error.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm transport: %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline expiry.
func (e *TransportError) Timeout() bool {
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Interrupted reports whether err came from the connection rather than the
// payload: a network error, an expired deadline or a cancellation. A response
// body that fails to decode for one of these reasons is a transport failure.
func Interrupted(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// ServerError reports a non-success HTTP status from the generation endpoint.
type ServerError struct {
	// StatusCode is the HTTP status returned by the endpoint.
	StatusCode int

	// Body is the (possibly truncated) response body.
	Body string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("llm server: status %d: %s", e.StatusCode, e.Body)
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsServer reports whether err is, or wraps, a *ServerError.
func IsServer(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}
