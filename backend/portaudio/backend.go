//go:build cgo && !noaudio

package portaudio

import (
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
	"github.com/lisuiheng/soundcard/audio"
)

// Backend holds a PortAudio initialization. Each Backend must be closed,
// PortAudio reference-counts Initialize/Terminate pairs.
type Backend struct {
	log *slog.Logger
}

var (
	_ audio.Backend   = (*Backend)(nil)
	_ audio.Directory = (*Backend)(nil)
)

// New initializes PortAudio.
func New(log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, audio.NewBackendError(Name, "initialize", err)
	}
	log = log.With("backend", Name)
	log.Debug("PortAudio initialized", "version", portaudio.VersionText())
	return &Backend{log: log}, nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Close() error {
	return audio.NewBackendError(Name, "terminate", portaudio.Terminate())
}

func channelsFor(info *portaudio.DeviceInfo, dir audio.Direction) int {
	if dir == audio.Playback {
		return info.MaxOutputChannels
	}
	return info.MaxInputChannels
}

func toDevice(info *portaudio.DeviceInfo, dir audio.Direction, def *portaudio.DeviceInfo) audio.Device {
	name := info.Name
	if name == "" {
		name = "Unknown"
	}
	return audio.Device{
		ID:         audio.DeviceID(info.Index),
		Name:       name,
		Channels:   channelsFor(info, dir),
		SampleRate: info.DefaultSampleRate,
		IsDefault:  def != nil && def.Index == info.Index,
	}
}

func defaultInfo(dir audio.Direction) (*portaudio.DeviceInfo, error) {
	if dir == audio.Playback {
		return portaudio.DefaultOutputDevice()
	}
	return portaudio.DefaultInputDevice()
}

func (b *Backend) list(dir audio.Direction) ([]audio.Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, audio.NewBackendError(Name, "list devices", err)
	}
	def, err := defaultInfo(dir)
	if err != nil {
		b.log.Debug("No default device", "direction", dir, "error", err)
	}

	var devs []audio.Device
	for _, info := range infos {
		if channelsFor(info, dir) == 0 {
			continue
		}
		devs = append(devs, toDevice(info, dir, def))
	}
	if len(devs) == 0 {
		return nil, audio.ErrNoDevicesFound
	}
	return devs, nil
}

func (b *Backend) OutputDevices() ([]audio.Device, error) { return b.list(audio.Playback) }
func (b *Backend) InputDevices() ([]audio.Device, error)  { return b.list(audio.Capture) }

func (b *Backend) defaultDevice(dir audio.Direction) (audio.Device, error) {
	info, err := defaultInfo(dir)
	if err != nil || info == nil || channelsFor(info, dir) == 0 {
		return audio.Device{}, fmt.Errorf("%w: no default %s device", audio.ErrNoDevicesFound, dir)
	}
	return toDevice(info, dir, info), nil
}

func (b *Backend) DefaultOutputDevice() (audio.Device, error) {
	return b.defaultDevice(audio.Playback)
}

func (b *Backend) DefaultInputDevice() (audio.Device, error) {
	return b.defaultDevice(audio.Capture)
}

func (b *Backend) Device(id audio.DeviceID, dir audio.Direction) (audio.Device, error) {
	devs, err := b.list(dir)
	if err != nil {
		return audio.Device{}, err
	}
	for _, dev := range devs {
		if dev.ID == id {
			return dev, nil
		}
	}
	return audio.Device{}, fmt.Errorf("%w: %s device %d", audio.ErrNoDevicesFound, dir, id)
}

func (b *Backend) OpenStream(dev audio.Device, dir audio.Direction) (audio.Stream, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, audio.NewBackendError(Name, "list devices", err)
	}
	if int(dev.ID) >= len(infos) || channelsFor(infos[dev.ID], dir) == 0 {
		return nil, fmt.Errorf("%w: %s device %d", audio.ErrNoDevicesFound, dir, dev.ID)
	}
	return &stream{info: infos[dev.ID], dir: dir}, nil
}
