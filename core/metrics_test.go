package core

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lisuiheng/soundcard/audio"
	"github.com/lisuiheng/soundcard/internal/assert"
	"github.com/lisuiheng/soundcard/internal/audiotest"
	"github.com/lisuiheng/soundcard/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsReportRelayStats(t *testing.T) {
	t.Parallel()

	sc, b := audiotest.NewSoundCard(audiotest.WithInput(relayMic), audiotest.WithOutput(relaySpeaker))
	ft := newFakeTransport()
	r, err := NewRelay(relayConfig(), sc, slog.New(slog.DiscardHandler),
		WithTransportFactory(func() (interfaces.TransportProtocol, error) { return ft, nil }))
	assert.NilErr(t, err)
	m := NewMetrics(r)
	assert.DeepEqual(t, testutil.ToFloat64(m.streaming), float64(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	assert.ChanWritten(t, ft.sent) // hello
	waitFor(t, "streaming state", func() bool { return r.Status().State == RelayStateStreaming })
	assert.DeepEqual(t, testutil.ToFloat64(m.streaming), float64(1))

	mic := streamFor(b, audio.Capture)
	assert.BoolIs(t, audiotest.Capture(mic, make([]int16, 200)), true)
	assert.BoolIs(t, audiotest.Capture(mic, make([]int16, 200)), true)
	assert.ChanWritten(t, ft.sent)

	// Nothing was received, so the render underruns.
	_, ok := audiotest.Render(streamFor(b, audio.Playback), 16, int16(1))
	assert.BoolIs(t, ok, true)

	cancel()
	assert.NilErr(t, assert.ChanWritten(t, errc))

	// Counters of the closed session are kept.
	st := r.Stats()
	assert.DeepEqual(t, st.Capture.Callbacks, uint64(2))
	assert.DeepEqual(t, st.Playback.Callbacks, uint64(1))
	assert.DeepEqual(t, st.Playback.Underruns, uint64(1))
	assert.DeepEqual(t, testutil.ToFloat64(m.framesSent), float64(1))
	assert.DeepEqual(t, testutil.ToFloat64(m.framesReceived), float64(0))
	assert.DeepEqual(t, testutil.ToFloat64(m.captureGaps), float64(0))
	assert.DeepEqual(t, testutil.ToFloat64(m.streaming), float64(0))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.DeepEqual(t, rec.Code, http.StatusOK)
	body := rec.Body.String()
	for _, want := range []string{
		"soundcard_relay_frames_sent_total 1",
		`soundcard_stream_callbacks_total{direction="capture"} 2`,
		`soundcard_stream_underruns_total{direction="playback"} 1`,
		`soundcard_stream_dropped_total{direction="capture"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
