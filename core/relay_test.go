package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/lisuiheng/soundcard/audio"
	"github.com/lisuiheng/soundcard/internal/assert"
	"github.com/lisuiheng/soundcard/internal/audiotest"
	"github.com/lisuiheng/soundcard/pkg/interfaces"
	"github.com/lisuiheng/soundcard/protocols/websocket"
	"github.com/lisuiheng/soundcard/utils"
)

// fakeTransport records sent messages and delivers messages pushed by the
// test.
type fakeTransport struct {
	sent   chan interfaces.Message
	recv   chan interfaces.Message
	closed chan struct{}
	once   sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sent:   make(chan interfaces.Message, 256),
		recv:   make(chan interfaces.Message),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Connect(context.Context) error { return nil }

func (f *fakeTransport) Send(data []byte, typ interfaces.MessageType) error {
	select {
	case <-f.closed:
		return interfaces.ErrConnectionClosed
	case f.sent <- interfaces.Message{Payload: slices.Clone(data), Type: typ}:
		return nil
	}
}

func (f *fakeTransport) Receive() <-chan interfaces.Message { return f.recv }
func (f *fakeTransport) ProtocolType() string               { return "fake" }

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// deliver hands msg to the relay as if it came from the server.
func (f *fakeTransport) deliver(t *testing.T, msg interfaces.Message) {
	t.Helper()
	select {
	case f.recv <- msg:
	case <-f.closed:
		t.Fatal("transport closed before delivery")
	case <-time.After(5 * time.Second):
		t.Fatal("timeout delivering message")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func streamFor(b *audiotest.Backend, dir audio.Direction) *audiotest.Stream {
	streams := b.Streams()
	for i := len(streams) - 1; i >= 0; i-- {
		if streams[i].Direction() == dir {
			return streams[i]
		}
	}
	return nil
}

var (
	relayMic     = audio.Device{ID: 1, Name: "mic", Channels: 1, SampleRate: 16000}
	relaySpeaker = audio.Device{ID: 2, Name: "speaker", Channels: 1, SampleRate: 16000}
)

func relayConfig() Config {
	var cfg Config
	cfg.Backend = "malgo"
	cfg.Audio.Capture = DeviceConfig{Device: DefaultDevice, Config: audio.Config{SampleRate: 16000}}
	cfg.Audio.Playback = DeviceConfig{Device: DefaultDevice}
	cfg.Audio.FrameDuration = 20
	cfg.Relay.Codec = CodecPCM
	return cfg
}

func TestRelayStreamsBothDirections(t *testing.T) {
	t.Parallel()

	sc, b := audiotest.NewSoundCard(audiotest.WithInput(relayMic), audiotest.WithOutput(relaySpeaker))
	ft := newFakeTransport()
	r, err := NewRelay(relayConfig(), sc, slog.New(slog.DiscardHandler),
		WithTransportFactory(func() (interfaces.TransportProtocol, error) { return ft, nil }))
	assert.NilErr(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	hello := assert.ChanWritten(t, ft.sent)
	assert.DeepEqual(t, hello.Type, interfaces.MsgText)
	var msg struct {
		Type        string `json:"type"`
		AudioParams struct {
			Format     string `json:"format"`
			SampleRate int    `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"audio_params"`
	}
	assert.NilErr(t, json.Unmarshal(hello.Payload, &msg))
	assert.DeepEqual(t, msg.Type, "hello")
	assert.DeepEqual(t, msg.AudioParams.Format, CodecPCM)
	assert.DeepEqual(t, msg.AudioParams.SampleRate, 16000)
	assert.DeepEqual(t, msg.AudioParams.Channels, 1)
	waitFor(t, "streaming state", func() bool { return r.Status().State == RelayStateStreaming })

	// Two 200-sample blocks complete one 320-sample frame.
	mic := streamFor(b, audio.Capture)
	var captured []int16
	for i := 0; i < 400; i++ {
		captured = append(captured, int16(i+1))
	}
	assert.BoolIs(t, audiotest.Capture(mic, captured[:200]), true)
	assert.BoolIs(t, audiotest.Capture(mic, captured[200:]), true)

	frame := assert.ChanWritten(t, ft.sent)
	assert.DeepEqual(t, frame.Type, interfaces.MsgBinary)
	assert.DeepEqual(t, audio.SamplesOf[int16](frame.Payload), captured[:320])
	assert.ChanNotWritten(t, ft.sent, 20*time.Millisecond)

	ft.deliver(t, interfaces.Message{Type: interfaces.MsgText, Payload: []byte(`{"type":"hello","session_id":"s-1"}`)})
	waitFor(t, "session id", func() bool { return r.Status().SessionID == "s-1" })

	remote := []int16{5, -5, 10, -10, 15, -15}
	ft.deliver(t, interfaces.Message{Type: interfaces.MsgBinary, Payload: audio.BytesOf(remote)})
	waitFor(t, "received frame", func() bool { return r.Stats().FramesReceived == 1 })

	out, ok := audiotest.Render(streamFor(b, audio.Playback), 8, int16(99))
	assert.BoolIs(t, ok, true)
	assert.DeepEqual(t, out, []int16{5, -5, 10, -10, 15, -15, 0, 0})

	cancel()
	assert.NilErr(t, assert.ChanWritten(t, errc))
	for _, s := range b.Streams() {
		assert.BoolIs(t, s.Closed(), true)
	}
	assert.DeepEqual(t, r.Status(), Status{State: RelayStateDisconnected})
	assert.DeepEqual(t, r.Stats().FramesSent, uint64(1))
}

func TestRelayReconnects(t *testing.T) {
	t.Parallel()

	sc, b := audiotest.NewSoundCard(audiotest.WithInput(relayMic), audiotest.WithOutput(relaySpeaker))
	transports := make(chan *fakeTransport, 4)
	factory := func() (interfaces.TransportProtocol, error) {
		ft := newFakeTransport()
		transports <- ft
		return ft, nil
	}
	r, err := NewRelay(relayConfig(), sc, slog.New(slog.DiscardHandler),
		WithTransportFactory(factory),
		WithReconnectStrategy(utils.NewExponentialBackoffRange(time.Millisecond, 5*time.Millisecond)))
	assert.NilErr(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	first := assert.ChanWritten(t, transports)
	assert.ChanWritten(t, first.sent)
	first.deliver(t, interfaces.Message{Type: interfaces.MsgText, Payload: []byte(`{"type":"hello","session_id":"s-1"}`)})
	waitFor(t, "session id", func() bool { return r.Status().SessionID == "s-1" })

	// A server error ends the session; the relay reconnects.
	first.deliver(t, interfaces.Message{Type: interfaces.MsgText, Payload: []byte(`{"type":"error","message":"overloaded"}`)})

	second := assert.ChanWritten(t, transports)
	hello := assert.ChanWritten(t, second.sent)
	assert.DeepEqual(t, hello.Type, interfaces.MsgText)
	// The new session has not been greeted yet.
	assert.DeepEqual(t, r.Status().SessionID, "")

	// Devices of the first session were released before reconnecting.
	for _, s := range b.Streams()[:2] {
		assert.BoolIs(t, s.Closed(), true)
	}

	cancel()
	assert.NilErr(t, assert.ChanWritten(t, errc))
}

func TestRelayNoDevices(t *testing.T) {
	t.Parallel()

	sc, _ := audiotest.NewSoundCard(audiotest.WithOutput(relaySpeaker))
	r, err := NewRelay(relayConfig(), sc, slog.New(slog.DiscardHandler),
		WithTransportFactory(func() (interfaces.TransportProtocol, error) { return newFakeTransport(), nil }))
	assert.NilErr(t, err)

	err = r.Run(context.Background())
	assert.ErrorIs(t, err, audio.ErrNoDevicesFound)
}

func TestNewRelayValidation(t *testing.T) {
	t.Parallel()

	sc, _ := audiotest.NewSoundCard()
	_, err := NewRelay(relayConfig(), sc, nil)
	assert.NonNilErr(t, err)
	_, err = NewRelay(relayConfig(), nil, slog.New(slog.DiscardHandler))
	assert.NonNilErr(t, err)
}

func TestNewProtocol(t *testing.T) {
	t.Parallel()

	cfg := relayConfig()
	cfg.Relay.URL = "wss://example.com/v1/"
	p, err := NewProtocol(cfg)
	assert.NilErr(t, err)
	if _, ok := p.(*websocket.WSProtocol); !ok {
		t.Fatalf("NewProtocol() = %T, want *websocket.WSProtocol", p)
	}

	cfg.Relay.URL = "mqtt://broker:1883"
	_, err = NewProtocol(cfg)
	assert.ErrorIs(t, err, ErrUnsupportedProtocol)
}
