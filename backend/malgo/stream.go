//go:build cgo && !noaudio

package malgo

import (
	"errors"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/lisuiheng/soundcard/audio"
)

var errNoDevice = errors.New("device not initialized")

// stream wraps a malgo device. The device is (re)initialized by SetFormat,
// since miniaudio fixes the format at init time.
type stream struct {
	ctx    *malgo.AllocatedContext
	id     malgo.DeviceID
	dir    audio.Direction
	device *malgo.Device
	cb     atomic.Pointer[audio.Callback]
}

func toMalgoFormat(f audio.SampleFormat) malgo.FormatType {
	switch f {
	case audio.FormatS16:
		return malgo.FormatS16
	case audio.FormatS32:
		return malgo.FormatS32
	case audio.FormatF32:
		return malgo.FormatF32
	default:
		return malgo.FormatUnknown
	}
}

func fromMalgoFormat(f malgo.FormatType) audio.SampleFormat {
	switch f {
	case malgo.FormatS16:
		return audio.FormatS16
	case malgo.FormatS32:
		return audio.FormatS32
	case malgo.FormatF32:
		return audio.FormatF32
	default:
		return audio.FormatUnknown
	}
}

func (s *stream) SetFormat(want audio.NegotiatedFormat) (audio.NegotiatedFormat, error) {
	format := toMalgoFormat(want.Format)
	if format == malgo.FormatUnknown {
		return audio.NegotiatedFormat{}, audio.ErrFormatUnsupported
	}
	s.uninit()

	cfg := malgo.DefaultDeviceConfig(deviceType(s.dir))
	cfg.SampleRate = uint32(want.SampleRate)
	cfg.PeriodSizeInFrames = uint32(want.BlockSize)
	cfg.Alsa.NoMMap = 1
	if s.dir == audio.Playback {
		cfg.Playback.Format = format
		cfg.Playback.Channels = uint32(want.Channels)
		cfg.Playback.DeviceID = s.id.Pointer()
	} else {
		cfg.Capture.Format = format
		cfg.Capture.Channels = uint32(want.Channels)
		cfg.Capture.DeviceID = s.id.Pointer()
	}

	device, err := malgo.InitDevice(s.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: s.onData,
	})
	if err != nil {
		return audio.NegotiatedFormat{}, audio.NewBackendError(Name, "init device", err)
	}
	s.device = device

	got := want
	got.SampleRate = float64(device.SampleRate())
	if s.dir == audio.Playback {
		got.Channels = int(device.PlaybackChannels())
		got.Format = fromMalgoFormat(device.PlaybackFormat())
	} else {
		got.Channels = int(device.CaptureChannels())
		got.Format = fromMalgoFormat(device.CaptureFormat())
	}
	return got, nil
}

// onData runs on the miniaudio thread.
func (s *stream) onData(output, input []byte, frames uint32) {
	if cb := s.cb.Load(); cb != nil {
		(*cb)(output, input, int(frames))
	}
}

func (s *stream) SetCallback(cb audio.Callback) error {
	s.cb.Store(&cb)
	return nil
}

func (s *stream) Start() error {
	if s.device == nil {
		return audio.NewBackendError(Name, "start", errNoDevice)
	}
	return audio.NewBackendError(Name, "start", s.device.Start())
}

// Stop blocks until the device is stopped, so no data callback runs after
// it returns.
func (s *stream) Stop() error {
	if s.device == nil {
		return nil
	}
	return audio.NewBackendError(Name, "stop", s.device.Stop())
}

func (s *stream) Close() error {
	s.uninit()
	s.cb.Store(nil)
	return nil
}

func (s *stream) uninit() {
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
}
