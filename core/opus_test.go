package core

import (
	"math"
	"testing"

	"github.com/lisuiheng/soundcard/audio"
	"github.com/lisuiheng/soundcard/internal/assert"
)

func TestPCMCodec(t *testing.T) {
	t.Parallel()

	enc, dec, err := NewCodec(CodecPCM, audio.NegotiatedFormat{}, audio.NegotiatedFormat{}, 0, nil)
	assert.NilErr(t, err)

	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	pkt, err := enc.Encode(in)
	assert.NilErr(t, err)
	assert.DeepEqual(t, len(pkt), 10)

	out, err := dec.Decode(pkt)
	assert.NilErr(t, err)
	assert.DeepEqual(t, out, in)

	_, err = dec.Decode([]byte{1, 2, 3})
	assert.NonNilErr(t, err)
}

func TestOpusCodec(t *testing.T) {
	t.Parallel()

	nf := audio.NegotiatedFormat{SampleRate: 16000, Channels: 1, Format: audio.FormatS16}
	enc, dec, err := NewCodec(CodecOpus, nf, nf, 24000, nil)
	assert.NilErr(t, err)

	// 20ms of a 440Hz tone.
	frame := make([]int16, 320)
	for i := range frame {
		frame[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	pkt, err := enc.Encode(frame)
	assert.NilErr(t, err)
	if len(pkt) == 0 || len(pkt) >= len(frame)*2 {
		t.Fatalf("unexpected packet size %d", len(pkt))
	}

	out, err := dec.Decode(pkt)
	assert.NilErr(t, err)
	assert.DeepEqual(t, len(out), len(frame))
}

func TestNewCodecUnknown(t *testing.T) {
	t.Parallel()

	_, _, err := NewCodec("aac", audio.NegotiatedFormat{}, audio.NegotiatedFormat{}, 0, nil)
	assert.ErrorIs(t, err, ErrUnsupportedCodec)
}
