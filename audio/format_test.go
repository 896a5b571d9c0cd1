package audio

import (
	"errors"
	"testing"
)

func TestNegotiate(t *testing.T) {
	t.Parallel()

	dev := Device{ID: 1, Name: "test", Channels: 2, SampleRate: 48000}
	tests := []struct {
		name     string
		cfg      Config
		rate     float64
		channels int
	}{
		{"defaults", Config{}, 48000, 2},
		{"only sample rate", Config{SampleRate: 44100}, 44100, 2},
		{"only channels", Config{Channels: 1}, 48000, 1},
		{"both", Config{SampleRate: 16000, Channels: 1}, 16000, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			nf, err := Negotiate[float32](dev, tc.cfg)
			if err != nil {
				t.Fatalf("Negotiate() error = %v", err)
			}
			if nf.SampleRate != tc.rate || nf.Channels != tc.channels {
				t.Errorf("Negotiate() = %s, want %gHz %dch", nf, tc.rate, tc.channels)
			}
			if nf.Format != FormatF32 || !nf.Flags.Has(FlagFloat) || !nf.Interleaved() {
				t.Errorf("Negotiate() format = %s flags %b", nf.Format, nf.Flags)
			}
		})
	}
}

func TestNegotiateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dev  Device
		cfg  Config
	}{
		{"negative rate", Device{Channels: 1, SampleRate: 48000}, Config{SampleRate: -1}},
		{"negative channels", Device{Channels: 1, SampleRate: 48000}, Config{Channels: -2}},
		{"negative block size", Device{Channels: 1, SampleRate: 48000}, Config{BlockSize: -1}},
		{"device without rate", Device{Channels: 1}, Config{}},
		{"device without channels", Device{SampleRate: 48000}, Config{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Negotiate[int16](tc.dev, tc.cfg)
			if !errors.Is(err, ErrFormatUnsupported) {
				t.Errorf("Negotiate() error = %v, want ErrFormatUnsupported", err)
			}
		})
	}
}

func TestFormatOf(t *testing.T) {
	t.Parallel()

	if f := FormatOf[int16](); f != FormatS16 || f.Size() != 2 || f.IsFloat() {
		t.Errorf("FormatOf[int16]() = %s", f)
	}
	if f := FormatOf[int32](); f != FormatS32 || f.Size() != 4 || f.IsFloat() {
		t.Errorf("FormatOf[int32]() = %s", f)
	}
	if f := FormatOf[float32](); f != FormatF32 || f.Size() != 4 || !f.IsFloat() {
		t.Errorf("FormatOf[float32]() = %s", f)
	}
}

func TestSampleIndexing(t *testing.T) {
	t.Parallel()

	nf, err := Negotiate[int16](Device{Channels: 3, SampleRate: 8000}, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if got := nf.SampleIndex(2, 1); got != 7 {
		t.Errorf("SampleIndex(2, 1) = %d, want 7", got)
	}
	if got := nf.FrameBytes(); got != 6 {
		t.Errorf("FrameBytes() = %d, want 6", got)
	}
	if got := nf.SamplesPerBlock(256); got != 768 {
		t.Errorf("SamplesPerBlock(256) = %d, want 768", got)
	}
}

func TestSampleViews(t *testing.T) {
	t.Parallel()

	in := []int16{1, -2, 300}
	raw := BytesOf(in)
	if len(raw) != 6 {
		t.Fatalf("BytesOf() len = %d, want 6", len(raw))
	}
	out := SamplesOf[int16](raw)
	if len(out) != 3 || out[0] != 1 || out[1] != -2 || out[2] != 300 {
		t.Errorf("SamplesOf() = %v, want %v", out, in)
	}
	if got := SamplesOf[int32](raw[:3]); got != nil {
		t.Errorf("SamplesOf() on a partial sample = %v, want nil", got)
	}
}
