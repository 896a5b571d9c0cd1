package audiotest

import (
	"errors"
	"sync"

	"github.com/lisuiheng/soundcard/audio"
)

var errStreamClosed = errors.New("stream closed")

// Stream is a simulated hardware stream.
type Stream struct {
	dev audio.Device
	dir audio.Direction
	b   *Backend

	// inflight is read-locked for the duration of each callback
	// invocation, so Stop can wait for the running one to return.
	inflight sync.RWMutex
	cb       audio.Callback
	format   audio.NegotiatedFormat
	running  bool
	closed   bool
	starts   int
	stops    int
}

var _ audio.Stream = (*Stream)(nil)

func (s *Stream) SetFormat(want audio.NegotiatedFormat) (audio.NegotiatedFormat, error) {
	got := want
	if s.b.formatHook != nil {
		var err error
		if got, err = s.b.formatHook(want); err != nil {
			return audio.NegotiatedFormat{}, err
		}
	}
	s.inflight.Lock()
	s.format = got
	s.inflight.Unlock()
	return got, nil
}

func (s *Stream) SetCallback(cb audio.Callback) error {
	s.inflight.Lock()
	defer s.inflight.Unlock()
	if s.closed {
		return audio.NewBackendError(Name, "set callback", errStreamClosed)
	}
	s.cb = cb
	return nil
}

func (s *Stream) Start() error {
	s.inflight.Lock()
	defer s.inflight.Unlock()
	if s.closed {
		return audio.NewBackendError(Name, "start", errStreamClosed)
	}
	if s.b.startErr != nil {
		return audio.NewBackendError(Name, "start", s.b.startErr)
	}
	s.running = true
	s.starts++
	return nil
}

func (s *Stream) Stop() error {
	s.inflight.Lock()
	defer s.inflight.Unlock()
	s.running = false
	s.stops++
	if s.b.stopErr != nil {
		return audio.NewBackendError(Name, "stop", s.b.stopErr)
	}
	return nil
}

func (s *Stream) Close() error {
	s.inflight.Lock()
	defer s.inflight.Unlock()
	s.running = false
	s.closed = true
	s.cb = nil
	return nil
}

// Device returns the device the stream was opened on.
func (s *Stream) Device() audio.Device { return s.dev }

// Direction returns the direction the stream was opened with.
func (s *Stream) Direction() audio.Direction { return s.dir }

// Format returns the format last accepted by SetFormat.
func (s *Stream) Format() audio.NegotiatedFormat {
	s.inflight.RLock()
	defer s.inflight.RUnlock()
	return s.format
}

// Running reports whether the stream is started.
func (s *Stream) Running() bool {
	s.inflight.RLock()
	defer s.inflight.RUnlock()
	return s.running
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.inflight.RLock()
	defer s.inflight.RUnlock()
	return s.closed
}

// Counts returns how many times the stream was started and stopped.
func (s *Stream) Counts() (starts, stops int) {
	s.inflight.RLock()
	defer s.inflight.RUnlock()
	return s.starts, s.stops
}

// Capture invokes the installed callback with samples as the input block,
// as a capture device would. It reports false when the stream is not
// running.
func Capture[T audio.Sample](s *Stream, samples []T) bool {
	s.inflight.RLock()
	defer s.inflight.RUnlock()
	if !s.running || s.cb == nil {
		return false
	}
	frames := 0
	if s.format.Channels > 0 {
		frames = len(samples) / s.format.Channels
	}
	s.cb(nil, audio.BytesOf(samples), frames)
	return true
}

// Render invokes the installed callback for the given number of frames, as
// a playback device would, and returns the output block. The block is
// pre-filled with fill so positions the callback leaves untouched are
// visible. It reports false when the stream is not running.
func Render[T audio.Sample](s *Stream, frames int, fill T) ([]T, bool) {
	s.inflight.RLock()
	defer s.inflight.RUnlock()
	if !s.running || s.cb == nil {
		return nil, false
	}
	out := make([]T, frames*s.format.Channels)
	for i := range out {
		out[i] = fill
	}
	s.cb(audio.BytesOf(out), nil, frames)
	return out, true
}
