package audio

import (
	"fmt"
	"log/slog"
	"strings"
)

// SoundCard binds a Backend, used to open hardware streams, to the
// Directory used to resolve devices. Sessions are created from it.
type SoundCard struct {
	backend Backend
	dir     Directory
	log     *slog.Logger
}

// NewSoundCard returns a SoundCard. A nil logger discards all output.
func NewSoundCard(b Backend, dir Directory, log *slog.Logger) *SoundCard {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &SoundCard{backend: b, dir: dir, log: log}
}

// Backend returns the backend streams are opened with.
func (sc *SoundCard) Backend() Backend { return sc.backend }

// Speakers returns the available output devices.
func (sc *SoundCard) Speakers() ([]Device, error) { return sc.dir.OutputDevices() }

// Microphones returns the available input devices.
func (sc *SoundCard) Microphones() ([]Device, error) { return sc.dir.InputDevices() }

// String lists the speakers and microphones of the sound card.
func (sc *SoundCard) String() string {
	var b strings.Builder
	b.WriteString("Speakers:\n")
	if speakers, err := sc.Speakers(); err == nil {
		for _, dev := range speakers {
			fmt.Fprintf(&b, "  %d: %s (%d out)\n", dev.ID, dev.Name, dev.Channels)
		}
	}
	b.WriteString("\nMicrophones:\n")
	if mics, err := sc.Microphones(); err == nil {
		for _, dev := range mics {
			fmt.Fprintf(&b, "  %d: %s (%d in)\n", dev.ID, dev.Name, dev.Channels)
		}
	}
	return b.String()
}

func (sc *SoundCard) defaultDevice(dir Direction) (Device, error) {
	if dir == Playback {
		return sc.dir.DefaultOutputDevice()
	}
	return sc.dir.DefaultInputDevice()
}

// openSession snapshots dev and opens a stream on it. No session is
// returned when the stream handle cannot be obtained.
func (sc *SoundCard) openSession(dir Direction, dev Device, cfg Config) (*session, error) {
	stream, err := sc.backend.OpenStream(dev, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s stream on %q: %w", dir, dev.Name, err)
	}
	return &session{
		dir:     dir,
		device:  dev,
		config:  cfg,
		stream:  stream,
		backend: sc.backend.Name(),
		log:     sc.log.With("device_id", dev.ID),
	}, nil
}

func (sc *SoundCard) sessionByID(dir Direction, id DeviceID, cfg Config) (*session, error) {
	dev, err := sc.dir.Device(id, dir)
	if err != nil {
		return nil, err
	}
	return sc.openSession(dir, dev, cfg)
}

func (sc *SoundCard) defaultSession(dir Direction, cfg Config) (*session, error) {
	dev, err := sc.defaultDevice(dir)
	if err != nil {
		return nil, err
	}
	return sc.openSession(dir, dev, cfg)
}
