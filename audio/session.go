package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// session is the state shared by Microphone and Speaker.
type session struct {
	dir     Direction
	device  Device
	config  Config
	stream  Stream
	backend string
	log     *slog.Logger

	lc     lifecycle
	stats  counters
	active atomic.Bool

	// format is guarded by lc.mu.
	format NegotiatedFormat
}

// Device returns the device snapshot taken when the session was created.
func (s *session) Device() Device { return s.device }

// Config returns the requested configuration.
func (s *session) Config() Config { return s.config }

// Format returns the format negotiated by the last Start.
func (s *session) Format() NegotiatedFormat {
	s.lc.mu.Lock()
	defer s.lc.mu.Unlock()
	return s.format
}

// Running reports whether the callback is installed and the stream active.
func (s *session) Running() bool { return s.lc.current() == StateRunning }

// Stats returns the callback counters of the current or last run.
func (s *session) Stats() Stats { return s.stats.snapshot() }

// negotiateStream resolves the session config into a format and applies it
// to the stream. Must be called with lc.mu held.
func negotiateStream[T Sample](s *session) (NegotiatedFormat, error) {
	want, err := Negotiate[T](s.device, s.config)
	if err != nil {
		return NegotiatedFormat{}, err
	}

	got, err := s.stream.SetFormat(want)
	if err != nil {
		if errors.Is(err, ErrFormatUnsupported) {
			return NegotiatedFormat{}, err
		}
		return NegotiatedFormat{}, fmt.Errorf("%w: %s: %w", ErrFormatUnsupported, want, err)
	}
	if got.Flags == 0 {
		got.Flags = flagsFor(got.Format)
	}

	// The callback indexes samples using the negotiated channel count and
	// representation, so those must match exactly.
	if got.Channels != want.Channels || got.Format != want.Format {
		return NegotiatedFormat{}, fmt.Errorf("%w: requested %s, device accepted %s",
			ErrFormatUnsupported, want, got)
	}
	if got.SampleRate != want.SampleRate {
		s.log.Warn("Device sample rate differs from requested",
			"device", s.device.Name,
			"requested", want.SampleRate,
			"negotiated", got.SampleRate)
	}
	return got, nil
}

// install sets the callback and starts the hardware stream. Must be called
// with lc.mu held.
func (s *session) install(cb Callback) error {
	if err := s.stream.SetCallback(cb); err != nil {
		return fmt.Errorf("failed to install %s callback: %w", s.dir, err)
	}

	s.stats.reset()
	s.active.Store(true)
	if err := s.stream.Start(); err != nil {
		s.active.Store(false)
		return fmt.Errorf("failed to start %s stream: %w", s.dir, err)
	}
	return nil
}

// stop deactivates the callback, halts the stream and then runs finish.
func (s *session) stop(finish func()) error {
	return s.lc.stop(func() error {
		s.active.Store(false)
		err := s.stream.Stop()
		finish()

		st := s.stats.snapshot()
		s.log.Info("Audio stream stopped",
			"direction", s.dir,
			"device", s.device.Name,
			"callbacks", st.Callbacks,
			"dropped", st.Dropped,
			"underruns", st.Underruns,
			"lock_misses", st.LockMisses)

		if err != nil {
			return fmt.Errorf("failed to stop %s stream: %w", s.dir, err)
		}
		return nil
	})
}

// close stops the session if needed, runs release and then releases the
// stream handle. release may be nil.
func (s *session) close(stop func() error, release func()) error {
	err := stop()
	if errors.Is(err, ErrNotRunning) {
		err = nil
	}
	closeErr := s.lc.close(func() error {
		if release != nil {
			release()
		}
		if err := s.stream.Close(); err != nil {
			return fmt.Errorf("failed to close %s stream: %w", s.dir, err)
		}
		return nil
	})
	return errors.Join(err, closeErr)
}

func (s *session) logStarted(nf NegotiatedFormat) {
	s.log.Info("Audio stream started",
		"direction", s.dir,
		"backend", s.backend,
		"device", s.device.Name,
		"sample_rate", nf.SampleRate,
		"channels", nf.Channels,
		"format", nf.Format,
		"block_size", nf.BlockSize)
}
