package landmarker

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrClosed is returned when using a closed session or backend.
	ErrClosed = errors.New("landmarker: closed")

	// ErrInvalidConfig is returned when options fail validation.
	ErrInvalidConfig = errors.New("landmarker: invalid config")

	// ErrModelUnavailable is returned when the model asset cannot be fetched.
	ErrModelUnavailable = errors.New("landmarker: model asset unavailable")

	// ErrHandshake is returned when the runtime does not acknowledge construction.
	ErrHandshake = errors.New("landmarker: runtime handshake failed")

	// ErrProtocol is returned on malformed runtime messages.
	ErrProtocol = errors.New("landmarker: protocol error")
)

// RuntimeError wraps an error with backend and operation context.
type RuntimeError struct {
	Backend string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("landmarker [%s] %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// wrap creates a RuntimeError, passing nil through.
func wrap(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &RuntimeError{Backend: backend, Op: op, Err: err}
}

// remoteError is an error reported by the runtime itself.
type remoteError struct {
	Message string `json:"message"`
}

func (e *remoteError) Error() string {
	return "runtime: " + e.Message
}
