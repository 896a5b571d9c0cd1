package utils

import "time"

// ReconnectStrategy yields the delay before each reconnection attempt.
type ReconnectStrategy interface {
	NextDelay() time.Duration
	Reset()
}

// ExponentialBackoff doubles the delay after every attempt up to a maximum.
type ExponentialBackoff struct {
	initialDelay time.Duration
	currentDelay time.Duration
	maxDelay     time.Duration
}

var _ ReconnectStrategy = (*ExponentialBackoff)(nil)

// NewExponentialBackoff starts at one second and caps at thirty.
func NewExponentialBackoff() *ExponentialBackoff {
	return NewExponentialBackoffRange(1*time.Second, 30*time.Second)
}

// NewExponentialBackoffRange starts at initial and caps at max.
func NewExponentialBackoffRange(initial, max time.Duration) *ExponentialBackoff {
	if max < initial {
		max = initial
	}
	return &ExponentialBackoff{
		initialDelay: initial,
		currentDelay: initial,
		maxDelay:     max,
	}
}

func (e *ExponentialBackoff) NextDelay() time.Duration {
	delay := e.currentDelay
	e.currentDelay *= 2
	if e.currentDelay > e.maxDelay {
		e.currentDelay = e.maxDelay
	}
	return delay
}

// Reset goes back to the initial delay, typically after a connection
// succeeded.
func (e *ExponentialBackoff) Reset() {
	e.currentDelay = e.initialDelay
}
