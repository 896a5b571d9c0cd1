// Command soundcard lists audio devices, records the microphone to a WAV
// file and plays WAV files on a speaker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lisuiheng/soundcard/core"
	"github.com/lisuiheng/soundcard/logger"
)

const usage = `usage: soundcard [-c config] [-backend name] [-debug] <command> [flags]

commands:
  list     print the capture and playback devices
  record   record the microphone into a WAV file
  play     play a WAV file on a speaker
`

var errUsage = errors.New("invalid usage")

func main() {
	configPath := flag.String("c", "", "Path to config file (default searches ./config.yaml, /etc/soundcard/config.yaml)")
	backend := flag.String("backend", "", "Audio backend, overrides the config (malgo or portaudio)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*configPath, *backend, *debug, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, backend string, debug bool, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if backend != "" {
		cfg.Backend = backend
	}

	// stdout carries command output.
	logCfg := cfg.Logging
	logCfg.Outputs = []string{"stderr"}
	if debug {
		logCfg.Level = "debug"
	}
	if err := logger.Init(logCfg); err != nil {
		return err
	}

	sc, err := core.OpenSoundCard(cfg.Backend, logger.Logger())
	if err != nil {
		return err
	}
	defer func() {
		if err := sc.Backend().Close(); err != nil {
			logger.Warn("Failed to close audio backend", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "list":
		fmt.Print(sc)
		return nil
	case "record":
		return record(ctx, sc, cfg.Audio.Capture, rest)
	case "play":
		return play(ctx, sc, cfg.Audio.Playback, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		return errUsage
	}
}

// deviceFlags registers the device selection flags shared by record and
// play, defaulting to the configured values.
func deviceFlags(fs *flag.FlagSet, dc *core.DeviceConfig) {
	fs.IntVar(&dc.Device, "device", dc.Device, "Device id from the list command, -1 for the default device")
	fs.Float64Var(&dc.SampleRate, "rate", dc.SampleRate, "Sample rate in Hz")
	fs.IntVar(&dc.Channels, "channels", dc.Channels, "Number of channels")
	fs.IntVar(&dc.BlockSize, "block", dc.BlockSize, "Preferred frames per callback, 0 for the device default")
}
