package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lisuiheng/soundcard/audio"
	"github.com/lisuiheng/soundcard/core"
	"github.com/lisuiheng/soundcard/logger"
)

func record(ctx context.Context, sc *audio.SoundCard, dc core.DeviceConfig, args []string) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	out := fs.String("o", "recording.wav", "Output WAV file")
	duration := fs.Duration("d", 5*time.Second, "Recording length, 0 records until interrupted")
	deviceFlags(fs, &dc)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	mic, err := core.OpenMicrophone[int16](sc, dc)
	if err != nil {
		return err
	}
	defer mic.Close()

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer f.Close()

	blocks, err := mic.Start()
	if err != nil {
		return err
	}
	nf := mic.Format()
	w := newWAVWriter(f, int(nf.SampleRate), nf.Channels)
	logger.Info("Recording", "device", mic.Device().Name, "format", nf, "file", *out)

	var cancel context.CancelFunc
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	go func() {
		<-ctx.Done()
		core.StopMicrophone(mic, logger.Logger())
	}()

	var writeErr error
	frames := 0
	for blk := range blocks {
		if writeErr != nil {
			continue
		}
		if writeErr = w.Write(blk.Samples); writeErr != nil {
			core.StopMicrophone(mic, logger.Logger())
			continue
		}
		frames += blk.Frames()
	}
	if writeErr != nil {
		return fmt.Errorf("failed to write %s: %w", *out, writeErr)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", *out, err)
	}

	logger.Info("Saved recording", "file", *out, "frames", frames,
		"seconds", float64(frames)/nf.SampleRate)
	return nil
}
