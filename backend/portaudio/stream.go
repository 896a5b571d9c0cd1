//go:build cgo && !noaudio

package portaudio

import (
	"errors"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/lisuiheng/soundcard/audio"
)

var errNoStream = errors.New("stream not opened")

// stream wraps a PortAudio stream. PortAudio fixes the format when the
// stream is opened, so SetFormat (re)opens it.
type stream struct {
	info *portaudio.DeviceInfo
	dir  audio.Direction
	pa   *portaudio.Stream
	cb   atomic.Pointer[audio.Callback]
}

func (s *stream) params(want audio.NegotiatedFormat) portaudio.StreamParameters {
	dp := portaudio.StreamDeviceParameters{
		Device:   s.info,
		Channels: want.Channels,
	}
	p := portaudio.StreamParameters{
		SampleRate:      want.SampleRate,
		FramesPerBuffer: want.BlockSize,
	}
	if s.dir == audio.Playback {
		dp.Latency = s.info.DefaultLowOutputLatency
		p.Output = dp
	} else {
		dp.Latency = s.info.DefaultLowInputLatency
		p.Input = dp
	}
	if p.FramesPerBuffer == 0 {
		p.FramesPerBuffer = portaudio.FramesPerBufferUnspecified
	}
	return p
}

// trampoline returns a typed PortAudio callback forwarding to the installed
// audio.Callback as raw bytes.
func trampoline[T audio.Sample](s *stream, channels int) any {
	call := func(out, in []T) {
		cb := s.cb.Load()
		if cb == nil {
			clear(out)
			return
		}
		n := len(in) + len(out)
		(*cb)(audio.BytesOf(out), audio.BytesOf(in), n/channels)
	}
	if s.dir == audio.Playback {
		return func(out []T) { call(out, nil) }
	}
	return func(in []T) { call(nil, in) }
}

func (s *stream) callback(want audio.NegotiatedFormat) (any, error) {
	switch want.Format {
	case audio.FormatS16:
		return trampoline[int16](s, want.Channels), nil
	case audio.FormatS32:
		return trampoline[int32](s, want.Channels), nil
	case audio.FormatF32:
		return trampoline[float32](s, want.Channels), nil
	default:
		return nil, audio.ErrFormatUnsupported
	}
}

func (s *stream) SetFormat(want audio.NegotiatedFormat) (audio.NegotiatedFormat, error) {
	if want.Channels <= 0 {
		return audio.NegotiatedFormat{}, audio.ErrFormatUnsupported
	}
	fn, err := s.callback(want)
	if err != nil {
		return audio.NegotiatedFormat{}, err
	}
	p := s.params(want)
	if err := portaudio.IsFormatSupported(p, fn); err != nil {
		return audio.NegotiatedFormat{}, audio.NewBackendError(Name, "format check", err)
	}

	if err := s.closeStream(); err != nil {
		return audio.NegotiatedFormat{}, err
	}
	pa, err := portaudio.OpenStream(p, fn)
	if err != nil {
		return audio.NegotiatedFormat{}, audio.NewBackendError(Name, "open stream", err)
	}
	s.pa = pa

	got := want
	if info := pa.Info(); info != nil && info.SampleRate > 0 {
		got.SampleRate = info.SampleRate
	}
	return got, nil
}

func (s *stream) SetCallback(cb audio.Callback) error {
	s.cb.Store(&cb)
	return nil
}

func (s *stream) Start() error {
	if s.pa == nil {
		return audio.NewBackendError(Name, "start", errNoStream)
	}
	return audio.NewBackendError(Name, "start", s.pa.Start())
}

// Stop waits for pending buffers to finish, after which PortAudio makes no
// further callback invocations.
func (s *stream) Stop() error {
	if s.pa == nil {
		return nil
	}
	return audio.NewBackendError(Name, "stop", s.pa.Stop())
}

func (s *stream) Close() error {
	s.cb.Store(nil)
	return s.closeStream()
}

func (s *stream) closeStream() error {
	if s.pa == nil {
		return nil
	}
	err := s.pa.Close()
	s.pa = nil
	return audio.NewBackendError(Name, "close stream", err)
}
