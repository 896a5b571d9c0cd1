package core

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lisuiheng/soundcard/audio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the counters of a Relay in the Prometheus format. Values
// are read from the relay at scrape time.
type Metrics struct {
	reg *prometheus.Registry

	framesSent     prometheus.CounterFunc
	framesReceived prometheus.CounterFunc
	captureGaps    prometheus.CounterFunc
	streaming      prometheus.GaugeFunc
}

func NewMetrics(r *Relay) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	counter := func(name, help string, fn func(RelayStats) uint64) prometheus.CounterFunc {
		return f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "soundcard",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn(r.Stats())) })
	}

	m := &Metrics{
		reg: reg,
		framesSent: counter("relay_frames_sent_total", "Encoded frames sent to the peer",
			func(s RelayStats) uint64 { return s.FramesSent }),
		framesReceived: counter("relay_frames_received_total", "Frames received from the peer and queued for playback",
			func(s RelayStats) uint64 { return s.FramesReceived }),
		captureGaps: counter("relay_capture_gaps_total", "Times captured blocks were missing before encoding",
			func(s RelayStats) uint64 { return s.CaptureGaps }),
		streaming: f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "soundcard",
			Name:      "relay_streaming",
			Help:      "1 while the relay is connected and streaming",
		}, func() float64 {
			if r.Status().State == RelayStateStreaming {
				return 1
			}
			return 0
		}),
	}

	streamCounter := func(dir audio.Direction, name, help string, fn func(audio.Stats) uint64) {
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "soundcard",
			Subsystem:   "stream",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"direction": dir.String()},
		}, func() float64 {
			st := r.Stats()
			if dir == audio.Capture {
				return float64(fn(st.Capture))
			}
			return float64(fn(st.Playback))
		})
	}
	for _, dir := range []audio.Direction{audio.Capture, audio.Playback} {
		streamCounter(dir, "callbacks_total", "Device callback invocations while running",
			func(s audio.Stats) uint64 { return s.Callbacks })
	}
	streamCounter(audio.Capture, "dropped_total", "Capture invocations dropped because the hand-off was full",
		func(s audio.Stats) uint64 { return s.Dropped })
	streamCounter(audio.Playback, "underruns_total", "Playback invocations padded with silence",
		func(s audio.Stats) uint64 { return s.Underruns })
	streamCounter(audio.Playback, "lock_misses_total", "Playback invocations that found the buffer locked",
		func(s audio.Stats) uint64 { return s.LockMisses })

	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(m.reg, promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
}

// ListenAndServe serves /metrics on addr until ctx is done.
func (m *Metrics) ListenAndServe(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	hs := http.Server{
		Addr:        addr,
		BaseContext: func(net.Listener) context.Context { return ctx },
		Handler:     mux,
	}
	log.Info("Exposing prometheus metrics", "addr", addr)
	go func() {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hs.Shutdown(ctx)
	}()
	if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
