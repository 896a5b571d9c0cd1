package audio

import (
	"sync"
	"sync/atomic"
)

// State of a session's stream lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// lifecycle serializes Start/Stop/Close of a session. Its mutex is only
// ever taken on the control path, never by the real-time callback.
//
// Stop on an idle session is an error (ErrNotRunning), not a no-op.
type lifecycle struct {
	mu     sync.Mutex
	state  State
	closed bool
}

// start runs fn and moves to Running if it succeeds.
func (l *lifecycle) start(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if l.state == StateRunning {
		return ErrAlreadyRunning
	}
	if err := fn(); err != nil {
		return err
	}
	l.state = StateRunning
	return nil
}

// stop moves to Idle and runs fn. The session is Idle afterwards even when
// fn fails, since the callback has been deactivated by then.
func (l *lifecycle) stop(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateRunning {
		return ErrNotRunning
	}
	l.state = StateIdle
	return fn()
}

// close marks the lifecycle closed and runs fn once.
func (l *lifecycle) close(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return fn()
}

func (l *lifecycle) current() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Stats are counters updated by the real-time callback.
type Stats struct {
	// Callbacks is the number of callback invocations while running.
	Callbacks uint64
	// Dropped counts capture invocations discarded because the hand-off
	// was full.
	Dropped uint64
	// Underruns counts playback invocations padded with silence because
	// the shared buffer ran short.
	Underruns uint64
	// LockMisses counts playback invocations that found the shared buffer
	// locked and played silence.
	LockMisses uint64
}

type counters struct {
	callbacks  atomic.Uint64
	dropped    atomic.Uint64
	underruns  atomic.Uint64
	lockMisses atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Callbacks:  c.callbacks.Load(),
		Dropped:    c.dropped.Load(),
		Underruns:  c.underruns.Load(),
		LockMisses: c.lockMisses.Load(),
	}
}

func (c *counters) reset() {
	c.callbacks.Store(0)
	c.dropped.Store(0)
	c.underruns.Store(0)
	c.lockMisses.Store(0)
}
