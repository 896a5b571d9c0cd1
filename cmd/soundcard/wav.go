package main

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth  = 16
	wavFormatPCM = 1
)

var errNotWavFile = errors.New("not a valid WAV file")

// wavWriter streams 16-bit PCM into a WAV file.
type wavWriter struct {
	enc *wav.Encoder
	buf goaudio.IntBuffer
}

func newWAVWriter(w io.WriteSeeker, sampleRate, channels int) *wavWriter {
	return &wavWriter{
		enc: wav.NewEncoder(w, sampleRate, wavBitDepth, channels, wavFormatPCM),
		buf: goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: wavBitDepth,
		},
	}
}

func (w *wavWriter) Write(samples []int16) error {
	w.buf.Data = w.buf.Data[:0]
	for _, s := range samples {
		w.buf.Data = append(w.buf.Data, int(s))
	}
	return w.enc.Write(&w.buf)
}

// Close finalizes the WAV header. It does not close the underlying writer.
func (w *wavWriter) Close() error {
	return w.enc.Close()
}

// wavReader reads a PCM WAV file of any integer bit depth as 16-bit
// samples.
type wavReader struct {
	dec        *wav.Decoder
	sampleRate int
	channels   int
	bitDepth   int
	buf        goaudio.IntBuffer
}

func newWAVReader(r io.ReadSeeker, chunkFrames int) (*wavReader, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errNotWavFile
	}
	format := dec.Format()
	if format == nil || format.NumChannels <= 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing format", errNotWavFile)
	}
	return &wavReader{
		dec:        dec,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
		bitDepth:   int(dec.BitDepth),
		buf: goaudio.IntBuffer{
			Format: format,
			Data:   make([]int, chunkFrames*format.NumChannels),
		},
	}, nil
}

// Read decodes up to len(dst) samples and returns io.EOF once the data
// chunk is exhausted.
func (r *wavReader) Read(dst []int16) (int, error) {
	want := min(len(dst), cap(r.buf.Data))
	r.buf.Data = r.buf.Data[:want]
	n, err := r.dec.PCMBuffer(&r.buf)
	for i := 0; i < n; i++ {
		dst[i] = toInt16(r.buf.Data[i], r.bitDepth)
	}
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// toInt16 rescales a sample of the given bit depth to 16 bits. 8-bit WAV
// samples are unsigned.
func toInt16(v, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		return int16((v - 128) << 8)
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	default:
		return int16(v)
	}
}
