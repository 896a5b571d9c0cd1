package audio

import (
	"errors"
	"fmt"
)

var (
	ErrNoDevicesFound    = errors.New("no audio devices found")
	ErrFormatUnsupported = errors.New("stream format not supported")
	ErrAlreadyRunning    = errors.New("stream already running")
	ErrNotRunning        = errors.New("stream not running")
	ErrClosed            = errors.New("stream closed")
)

// BackendError is an opaque failure reported by the platform audio
// subsystem.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// NewBackendError wraps err as a *BackendError. It returns nil when err is
// nil.
func NewBackendError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Op: op, Err: err}
}
