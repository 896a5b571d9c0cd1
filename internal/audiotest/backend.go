// Package audiotest provides a simulated audio backend. Tests drive the
// installed callbacks directly with Capture and Render, from any goroutine,
// the way a platform real-time thread would.
package audiotest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lisuiheng/soundcard/audio"
)

// Name of the simulated backend.
const Name = "simulated"

// FormatHook decides which format a simulated stream accepts.
type FormatHook func(want audio.NegotiatedFormat) (audio.NegotiatedFormat, error)

// Option configures a Backend.
type Option func(*Backend)

// WithInput adds capture devices.
func WithInput(devs ...audio.Device) Option {
	return func(b *Backend) { b.inputs = append(b.inputs, devs...) }
}

// WithOutput adds playback devices.
func WithOutput(devs ...audio.Device) Option {
	return func(b *Backend) { b.outputs = append(b.outputs, devs...) }
}

// WithFormatHook overrides the format accepted by SetFormat.
func WithFormatHook(fn FormatHook) Option {
	return func(b *Backend) { b.formatHook = fn }
}

// WithOpenError makes OpenStream fail with err.
func WithOpenError(err error) Option {
	return func(b *Backend) { b.openErr = err }
}

// WithStartError makes Stream.Start fail with err.
func WithStartError(err error) Option {
	return func(b *Backend) { b.startErr = err }
}

// WithStopError makes Stream.Stop fail with err. The stream still stops.
func WithStopError(err error) Option {
	return func(b *Backend) { b.stopErr = err }
}

// Backend is a simulated audio.Backend that is also its own
// audio.Directory.
type Backend struct {
	inputs     []audio.Device
	outputs    []audio.Device
	formatHook FormatHook
	openErr    error
	startErr   error
	stopErr    error

	mu      sync.Mutex
	streams []*Stream
	closed  bool
}

var (
	_ audio.Backend   = (*Backend)(nil)
	_ audio.Directory = (*Backend)(nil)
)

// NewBackend returns a simulated backend.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewSoundCard is a shortcut for a SoundCard over a simulated backend.
func NewSoundCard(opts ...Option) (*audio.SoundCard, *Backend) {
	b := NewBackend(opts...)
	return audio.NewSoundCard(b, b, nil), b
}

func (b *Backend) Name() string { return Name }

func (b *Backend) OpenStream(dev audio.Device, dir audio.Direction) (audio.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, audio.NewBackendError(Name, "open stream", errors.New("backend closed"))
	}
	if b.openErr != nil {
		return nil, audio.NewBackendError(Name, "open stream", b.openErr)
	}
	s := &Stream{dev: dev, dir: dir, b: b}
	b.streams = append(b.streams, s)
	return s, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Streams returns every stream opened so far, in order.
func (b *Backend) Streams() []*Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Stream(nil), b.streams...)
}

// LastStream returns the most recently opened stream, or nil.
func (b *Backend) LastStream() *Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.streams) == 0 {
		return nil
	}
	return b.streams[len(b.streams)-1]
}

func (b *Backend) devices(dir audio.Direction) []audio.Device {
	src := b.inputs
	if dir == audio.Playback {
		src = b.outputs
	}
	var devs []audio.Device
	for _, dev := range src {
		if dev.Channels > 0 {
			devs = append(devs, dev)
		}
	}
	return devs
}

func (b *Backend) list(dir audio.Direction) ([]audio.Device, error) {
	devs := b.devices(dir)
	if len(devs) == 0 {
		return nil, audio.ErrNoDevicesFound
	}
	return devs, nil
}

func (b *Backend) defaultDevice(dir audio.Direction) (audio.Device, error) {
	devs, err := b.list(dir)
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

func (b *Backend) OutputDevices() ([]audio.Device, error) { return b.list(audio.Playback) }
func (b *Backend) InputDevices() ([]audio.Device, error)  { return b.list(audio.Capture) }

func (b *Backend) DefaultOutputDevice() (audio.Device, error) {
	return b.defaultDevice(audio.Playback)
}

func (b *Backend) DefaultInputDevice() (audio.Device, error) {
	return b.defaultDevice(audio.Capture)
}

func (b *Backend) Device(id audio.DeviceID, dir audio.Direction) (audio.Device, error) {
	for _, dev := range b.devices(dir) {
		if dev.ID == id {
			return dev, nil
		}
	}
	return audio.Device{}, fmt.Errorf("%w: %s device %d", audio.ErrNoDevicesFound, dir, id)
}
