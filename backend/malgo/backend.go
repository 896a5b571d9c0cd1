//go:build cgo && !noaudio

package malgo

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/lisuiheng/soundcard/audio"
)

// Devices that report no native format are assumed to take miniaudio's
// defaults.
const (
	fallbackChannels   = 2
	fallbackSampleRate = 48000
)

// Backend owns a miniaudio context. Device ids are positions in the last
// enumeration of each direction.
type Backend struct {
	ctx *malgo.AllocatedContext
	log *slog.Logger

	mu  sync.Mutex
	ids map[audio.Direction][]malgo.DeviceID
}

var (
	_ audio.Backend   = (*Backend)(nil)
	_ audio.Directory = (*Backend)(nil)
)

// New initializes a miniaudio context. Messages from miniaudio are logged at
// debug level.
func New(log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("backend", Name)

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, audio.NewBackendError(Name, "init context", err)
	}

	return &Backend{
		ctx: ctx,
		log: log,
		ids: make(map[audio.Direction][]malgo.DeviceID),
	}, nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Close() error {
	err := b.ctx.Uninit()
	b.ctx.Free()
	return audio.NewBackendError(Name, "uninit context", err)
}

func deviceType(dir audio.Direction) malgo.DeviceType {
	if dir == audio.Playback {
		return malgo.Playback
	}
	return malgo.Capture
}

// enumerate lists the devices of one direction and remembers their malgo
// ids.
func (b *Backend) enumerate(dir audio.Direction) ([]audio.Device, error) {
	typ := deviceType(dir)
	infos, err := b.ctx.Devices(typ)
	if err != nil {
		return nil, audio.NewBackendError(Name, "list devices", err)
	}

	devs := make([]audio.Device, 0, len(infos))
	ids := make([]malgo.DeviceID, 0, len(infos))
	seen := make(map[malgo.DeviceID]struct{}, len(infos))
	for _, info := range infos {
		full, err := b.ctx.DeviceInfo(typ, info.ID, malgo.Shared)
		if err != nil {
			b.log.Warn("Unable to get audio device info", "error", err)
			continue
		}

		// Avoid duplicate device IDs.
		if _, ok := seen[full.ID]; ok {
			continue
		}
		seen[full.ID] = struct{}{}

		channels, rate := nativeFormat(full)
		name := full.Name()
		if name == "" {
			name = "Unknown"
		}
		devs = append(devs, audio.Device{
			ID:         audio.DeviceID(len(ids)),
			Name:       name,
			Channels:   channels,
			SampleRate: rate,
			IsDefault:  full.IsDefault == 1,
		})
		ids = append(ids, full.ID)
	}

	b.mu.Lock()
	b.ids[dir] = ids
	b.mu.Unlock()

	if len(devs) == 0 {
		return nil, audio.ErrNoDevicesFound
	}
	return devs, nil
}

// nativeFormat returns the widest channel count and the first sample rate
// the device reports natively.
func nativeFormat(info malgo.DeviceInfo) (channels int, rate float64) {
	for i := 0; i < int(info.FormatCount) && i < len(info.Formats); i++ {
		f := info.Formats[i]
		channels = max(channels, int(f.Channels))
		if rate == 0 && f.SampleRate > 0 {
			rate = float64(f.SampleRate)
		}
	}
	if channels == 0 {
		channels = fallbackChannels
	}
	if rate == 0 {
		rate = fallbackSampleRate
	}
	return channels, rate
}

func (b *Backend) OutputDevices() ([]audio.Device, error) { return b.enumerate(audio.Playback) }
func (b *Backend) InputDevices() ([]audio.Device, error)  { return b.enumerate(audio.Capture) }

func (b *Backend) defaultDevice(dir audio.Direction) (audio.Device, error) {
	devs, err := b.enumerate(dir)
	if err != nil {
		return audio.Device{}, err
	}
	for _, dev := range devs {
		if dev.IsDefault {
			return dev, nil
		}
	}
	return devs[0], nil
}

func (b *Backend) DefaultOutputDevice() (audio.Device, error) {
	return b.defaultDevice(audio.Playback)
}

func (b *Backend) DefaultInputDevice() (audio.Device, error) {
	return b.defaultDevice(audio.Capture)
}

func (b *Backend) Device(id audio.DeviceID, dir audio.Direction) (audio.Device, error) {
	devs, err := b.enumerate(dir)
	if err != nil {
		return audio.Device{}, err
	}
	if int(id) >= len(devs) {
		return audio.Device{}, fmt.Errorf("%w: %s device %d", audio.ErrNoDevicesFound, dir, id)
	}
	return devs[id], nil
}

func (b *Backend) malgoID(id audio.DeviceID, dir audio.Direction) (malgo.DeviceID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.ids[dir]
	if int(id) >= len(ids) {
		return malgo.DeviceID{}, fmt.Errorf("%w: %s device %d", audio.ErrNoDevicesFound, dir, id)
	}
	return ids[id], nil
}

func (b *Backend) OpenStream(dev audio.Device, dir audio.Direction) (audio.Stream, error) {
	id, err := b.malgoID(dev.ID, dir)
	if err != nil {
		return nil, err
	}
	return &stream{ctx: b.ctx, id: id, dir: dir}, nil
}
