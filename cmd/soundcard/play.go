package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"time"

	"github.com/lisuiheng/soundcard/audio"
	"github.com/lisuiheng/soundcard/core"
	"github.com/lisuiheng/soundcard/logger"
)

const (
	playChunkFrames = 4096
	pollInterval    = 10 * time.Millisecond
)

func play(ctx context.Context, sc *audio.SoundCard, dc core.DeviceConfig, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	in := fs.String("i", "", "Input WAV file")
	deviceFlags(fs, &dc)
	if err := fs.Parse(args); err != nil || *in == "" {
		return errUsage
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := newWAVReader(f, playChunkFrames)
	if err != nil {
		return err
	}
	// The file decides the stream format.
	dc.SampleRate = float64(r.sampleRate)
	dc.Channels = r.channels

	sp, err := core.OpenSpeaker[int16](sc, dc)
	if err != nil {
		return err
	}
	defer sp.Close()

	buf, err := sp.Start()
	if err != nil {
		return err
	}
	nf := sp.Format()
	if int(nf.SampleRate) != r.sampleRate {
		logger.Warn("Device rate differs from file, playback speed will be off",
			"file_rate", r.sampleRate, "device_rate", nf.SampleRate)
	}
	logger.Info("Playing", "device", sp.Device().Name, "format", nf, "file", *in)

	// Keep about one second queued ahead of the device.
	highWater := r.sampleRate * r.channels
	chunk := make([]int16, playChunkFrames*r.channels)
	for {
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if !waitBelow(ctx, buf, highWater) {
			return sp.Stop()
		}
	}
	waitBelow(ctx, buf, 1)

	return sp.Stop()
}

// waitBelow blocks until fewer than n samples are queued. It reports false
// if ctx is done first.
func waitBelow(ctx context.Context, buf *audio.SharedBuffer[int16], n int) bool {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for buf.Len() >= n {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}
