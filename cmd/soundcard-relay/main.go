// Command soundcard-relay streams the microphone to a websocket peer and
// plays the audio it sends back.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/lisuiheng/soundcard/core"
	"github.com/lisuiheng/soundcard/logger"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("c", "", "Path to config file (default searches ./config.yaml, /etc/soundcard/config.yaml)")
	debug := flag.Bool("debug", false, "Enable debug logging to stdout")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Relay.URL == "" {
		logger.Error("No relay url configured", "hint", "set relay.url or SOUNDCARD_RELAY_URL")
		os.Exit(1)
	}

	if err := initLogger(cfg, *debug); err != nil {
		logger.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Error("Service runtime error", "error", err)
		os.Exit(1)
	}
	logger.Info("Service shutdown completed")
}

func run(cfg core.Config) error {
	sc, err := core.OpenSoundCard(cfg.Backend, logger.Logger())
	if err != nil {
		return err
	}
	defer func() {
		if err := sc.Backend().Close(); err != nil {
			logger.Error("Failed to close audio backend", "error", err)
		}
	}()
	logger.Debug("Audio devices", "devices", sc.String())

	relay, err := core.NewRelay(cfg, sc, logger.Logger())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if addr := cfg.Relay.MetricsAddr; addr != "" {
		metrics := core.NewMetrics(relay)
		g.Go(func() error { return metrics.ListenAndServe(gctx, addr, logger.Logger()) })
	}
	g.Go(func() error {
		err := relay.Run(gctx)
		// Stop the metrics listener too.
		stop()
		return err
	})
	return g.Wait()
}

func initLogger(cfg core.Config, debug bool) error {
	logCfg := cfg.Logging
	if debug {
		logCfg.Level = "debug"
		logCfg.Outputs = []string{"stdout"}
	}
	return logger.Init(logCfg)
}
