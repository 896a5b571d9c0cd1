package core

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hraban/opus"
	"github.com/lisuiheng/soundcard/audio"
)

// Codec names accepted in RelayConfig.Codec.
const (
	CodecOpus = "opus"
	CodecPCM  = "pcm"
)

const (
	// maxOpusFrameSamples is the largest opus frame per channel (120ms at
	// 48kHz).
	maxOpusFrameSamples = 5760
	// maxOpusPacket bounds the size of one encoded packet.
	maxOpusPacket = 4000
)

// FrameEncoder turns one frame of interleaved PCM into a packet.
type FrameEncoder interface {
	Encode(pcm []int16) ([]byte, error)
}

// FrameDecoder turns one packet into interleaved PCM.
type FrameDecoder interface {
	Decode(data []byte) ([]int16, error)
}

// NewCodec returns the encoder and decoder for the named codec.
func NewCodec(name string, enc, dec audio.NegotiatedFormat, bitrate int, log *slog.Logger) (FrameEncoder, FrameDecoder, error) {
	switch name {
	case CodecPCM:
		return pcmCodec{}, pcmCodec{}, nil
	case CodecOpus:
		e, err := NewOpusEncoder(int(enc.SampleRate), enc.Channels, bitrate, log)
		if err != nil {
			return nil, nil, err
		}
		d, err := NewOpusDecoder(int(dec.SampleRate), dec.Channels, log)
		if err != nil {
			return nil, nil, err
		}
		return e, d, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, name)
	}
}

// pcmCodec sends raw native-endian 16-bit samples.
type pcmCodec struct{}

func (pcmCodec) Encode(pcm []int16) ([]byte, error) {
	return slices.Clone(audio.BytesOf(pcm)), nil
}

func (pcmCodec) Decode(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm packet has odd length %d", len(data))
	}
	return slices.Clone(audio.SamplesOf[int16](data)), nil
}

// OpusDecoder decodes opus packets.
type OpusDecoder struct {
	decoder    *opus.Decoder
	sampleRate int
	channels   int
	pcm        []int16
	logger     *slog.Logger
}

func NewOpusDecoder(sampleRate, channels int, logger *slog.Logger) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder:    dec,
		sampleRate: sampleRate,
		channels:   channels,
		pcm:        make([]int16, maxOpusFrameSamples*channels),
		logger:     logger,
	}, nil
}

// Decode returns a fresh slice of interleaved samples.
func (d *OpusDecoder) Decode(opusData []byte) ([]int16, error) {
	if d.decoder == nil {
		return nil, errors.New("decoder not initialized")
	}

	n, err := d.decoder.Decode(opusData, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	return slices.Clone(d.pcm[:n*d.channels]), nil
}

func (d *OpusDecoder) Close() {
	d.decoder = nil
}

// OpusEncoder encodes fixed-size PCM frames as opus packets.
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	packet     []byte
	logger     *slog.Logger
}

func NewOpusEncoder(sampleRate, channels, bitrate int, logger *slog.Logger) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	if err := enc.SetBitrate(bitrate); err != nil {
		return nil, fmt.Errorf("failed to set bitrate: %w", err)
	}

	return &OpusEncoder{
		encoder:    enc,
		sampleRate: sampleRate,
		channels:   channels,
		packet:     make([]byte, maxOpusPacket),
		logger:     logger,
	}, nil
}

// Encode returns a fresh packet for one frame. The frame length must be a
// valid opus frame size for the encoder's rate and channels.
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	if e.encoder == nil {
		return nil, errors.New("encoder not initialized")
	}

	n, err := e.encoder.Encode(pcm, e.packet)
	if err != nil {
		return nil, fmt.Errorf("opus encode failed: %w", err)
	}

	return slices.Clone(e.packet[:n]), nil
}

func (e *OpusEncoder) Close() {
	e.encoder = nil
}
