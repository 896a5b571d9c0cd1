// Package audio bridges a platform's real-time audio callback to ordinary
// goroutines, in both capture (Microphone) and playback (Speaker)
// directions.
package audio

// DeviceID identifies a device within the Directory that listed it.
type DeviceID uint32

// Direction of an audio stream.
type Direction int

const (
	Capture Direction = iota
	Playback
)

func (d Direction) String() string {
	switch d {
	case Capture:
		return "capture"
	case Playback:
		return "playback"
	default:
		return "unknown"
	}
}

// Device is an immutable snapshot of an audio device as reported by a
// Directory. Sessions copy it at construction time.
type Device struct {
	ID         DeviceID `json:"id"`
	Name       string   `json:"name"`
	Channels   int      `json:"channels"`
	SampleRate float64  `json:"sample_rate"`
	IsDefault  bool     `json:"is_default"`
}

// Config holds the requested stream parameters. Zero values mean "not
// specified": SampleRate and Channels then fall back to the device defaults
// and BlockSize is left for the OS to decide.
type Config struct {
	// SampleRate in Hz, e.g. 44100.
	SampleRate float64 `mapstructure:"sample_rate"`
	// Channels to record or play.
	Channels int `mapstructure:"channels"`
	// BlockSize is the preferred number of frames per callback. The OS may
	// override it.
	BlockSize int `mapstructure:"block_size"`
	// QueueDepth is the number of blocks the capture hand-off can hold
	// before new callback blocks are dropped. Unused by playback.
	QueueDepth int `mapstructure:"queue_depth"`
}

// Directory enumerates the devices of the platform audio subsystem. The
// core only reads from it.
type Directory interface {
	OutputDevices() ([]Device, error)
	InputDevices() ([]Device, error)
	DefaultOutputDevice() (Device, error)
	DefaultInputDevice() (Device, error)
	// Device returns the device with the given id in the given direction.
	Device(id DeviceID, dir Direction) (Device, error)
}
