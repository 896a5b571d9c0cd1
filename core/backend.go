package core

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lisuiheng/soundcard/audio"
	"github.com/lisuiheng/soundcard/backend/malgo"
	"github.com/lisuiheng/soundcard/backend/portaudio"
)

// OpenSoundCard initializes the named backend and returns a SoundCard over
// it. The caller closes the backend through SoundCard.Backend().Close().
func OpenSoundCard(name string, log *slog.Logger) (*audio.SoundCard, error) {
	switch name {
	case malgo.Name:
		b, err := malgo.New(log)
		if err != nil {
			return nil, err
		}
		return audio.NewSoundCard(b, b, log), nil
	case portaudio.Name:
		b, err := portaudio.New(log)
		if err != nil {
			return nil, err
		}
		return audio.NewSoundCard(b, b, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, name)
	}
}

// OpenMicrophone creates a microphone as selected by dc.
func OpenMicrophone[T audio.Sample](sc *audio.SoundCard, dc DeviceConfig) (*audio.Microphone[T], error) {
	if dc.Device < 0 {
		return audio.DefaultMicrophone[T](sc, dc.Config)
	}
	return audio.NewMicrophone[T](sc, audio.DeviceID(dc.Device), dc.Config)
}

// OpenSpeaker creates a speaker as selected by dc.
func OpenSpeaker[T audio.Sample](sc *audio.SoundCard, dc DeviceConfig) (*audio.Speaker[T], error) {
	if dc.Device < 0 {
		return audio.DefaultSpeaker[T](sc, dc.Config)
	}
	return audio.NewSpeaker[T](sc, audio.DeviceID(dc.Device), dc.Config)
}

// StopMicrophone stops m and logs a failure. Stopping a microphone that is
// not running is not reported.
func StopMicrophone[T audio.Sample](m *audio.Microphone[T], log *slog.Logger) {
	if err := m.Stop(); err != nil && !errors.Is(err, audio.ErrNotRunning) {
		log.Warn("Failed to stop microphone", "error", err)
	}
}
