package audio

import (
	"fmt"
	"unsafe"
)

// Sample is the set of sample representations a session can be
// instantiated with.
type Sample interface {
	int16 | int32 | float32
}

// SampleFormat is the hardware representation of a single sample.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatS16
	FormatS32
	FormatF32
)

// Size in bytes of one sample.
func (f SampleFormat) Size() int {
	switch f {
	case FormatS16:
		return 2
	case FormatS32, FormatF32:
		return 4
	default:
		return 0
	}
}

func (f SampleFormat) IsFloat() bool { return f == FormatF32 }

func (f SampleFormat) String() string {
	switch f {
	case FormatS16:
		return "s16"
	case FormatS32:
		return "s32"
	case FormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// FormatOf returns the SampleFormat matching the type parameter.
func FormatOf[T Sample]() SampleFormat {
	var zero T
	switch any(zero).(type) {
	case int16:
		return FormatS16
	case int32:
		return FormatS32
	case float32:
		return FormatF32
	}
	return FormatUnknown
}

// FormatFlags describe the linear PCM layout requested from the hardware.
type FormatFlags uint32

const (
	FlagFloat FormatFlags = 1 << iota
	FlagSignedInteger
	FlagPacked
)

func (fl FormatFlags) Has(flag FormatFlags) bool { return fl&flag == flag }

func flagsFor(f SampleFormat) FormatFlags {
	if f.IsFloat() {
		return FlagFloat | FlagPacked
	}
	return FlagSignedInteger | FlagPacked
}

// NegotiatedFormat is the concrete stream format used for one start/stop
// cycle of a session.
type NegotiatedFormat struct {
	SampleRate float64
	Channels   int
	Format     SampleFormat
	Flags      FormatFlags
	// BlockSize is the requested frames per callback, 0 if left to the OS.
	BlockSize int
}

// Interleaved reports whether samples of a frame are stored contiguously.
func (nf NegotiatedFormat) Interleaved() bool { return nf.Flags.Has(FlagPacked) }

// FrameBytes is the size in bytes of one interleaved frame.
func (nf NegotiatedFormat) FrameBytes() int { return nf.Channels * nf.Format.Size() }

// SampleIndex returns the position of a channel's sample within an
// interleaved block.
func (nf NegotiatedFormat) SampleIndex(frame, channel int) int {
	return nf.Channels*frame + channel
}

// SamplesPerBlock is the number of samples in a block of the given frames.
func (nf NegotiatedFormat) SamplesPerBlock(frames int) int { return frames * nf.Channels }

func (nf NegotiatedFormat) String() string {
	return fmt.Sprintf("%s %gHz %dch", nf.Format, nf.SampleRate, nf.Channels)
}

// Negotiate resolves cfg against the defaults of dev for samples of type T.
func Negotiate[T Sample](dev Device, cfg Config) (NegotiatedFormat, error) {
	if cfg.SampleRate < 0 || cfg.Channels < 0 || cfg.BlockSize < 0 {
		return NegotiatedFormat{}, fmt.Errorf("%w: negative stream parameter", ErrFormatUnsupported)
	}

	rate := cfg.SampleRate
	if rate == 0 {
		rate = dev.SampleRate
	}
	channels := cfg.Channels
	if channels == 0 {
		channels = dev.Channels
	}
	if rate <= 0 {
		return NegotiatedFormat{}, fmt.Errorf("%w: no sample rate for device %q",
			ErrFormatUnsupported, dev.Name)
	}
	if channels <= 0 {
		return NegotiatedFormat{}, fmt.Errorf("%w: no channels for device %q",
			ErrFormatUnsupported, dev.Name)
	}

	format := FormatOf[T]()
	return NegotiatedFormat{
		SampleRate: rate,
		Channels:   channels,
		Format:     format,
		Flags:      flagsFor(format),
		BlockSize:  cfg.BlockSize,
	}, nil
}

// SamplesOf views raw native-endian sample bytes as a slice of T without
// copying. Trailing bytes that do not form a whole sample are ignored.
func SamplesOf[T Sample](b []byte) []T {
	var zero T
	n := len(b) / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// BytesOf views samples as their raw native-endian bytes without copying.
func BytesOf[T Sample](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(s[0])))
}
