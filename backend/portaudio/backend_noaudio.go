//go:build !cgo || noaudio

package portaudio

import (
	"log/slog"

	"github.com/lisuiheng/soundcard/audio"
)

// Backend is a stub used when PortAudio support is not compiled in.
type Backend struct{}

// New always fails with ErrAudioDisabled.
func New(*slog.Logger) (*Backend, error) { return nil, ErrAudioDisabled }

func (*Backend) Name() string { return Name }
func (*Backend) Close() error { return nil }

func (*Backend) OpenStream(audio.Device, audio.Direction) (audio.Stream, error) {
	return nil, ErrAudioDisabled
}

func (*Backend) OutputDevices() ([]audio.Device, error) { return nil, ErrAudioDisabled }
func (*Backend) InputDevices() ([]audio.Device, error)  { return nil, ErrAudioDisabled }

func (*Backend) DefaultOutputDevice() (audio.Device, error) { return audio.Device{}, ErrAudioDisabled }
func (*Backend) DefaultInputDevice() (audio.Device, error)  { return audio.Device{}, ErrAudioDisabled }

func (*Backend) Device(audio.DeviceID, audio.Direction) (audio.Device, error) {
	return audio.Device{}, ErrAudioDisabled
}
