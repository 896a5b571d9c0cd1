package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lisuiheng/soundcard/audio"
	"github.com/lisuiheng/soundcard/pkg/interfaces"
	"github.com/lisuiheng/soundcard/protocols/websocket"
	"github.com/lisuiheng/soundcard/utils"
	"golang.org/x/sync/errgroup"
)

// RelayState is the connection state of a Relay.
type RelayState string

const (
	RelayStateDisconnected RelayState = "disconnected"
	RelayStateConnecting   RelayState = "connecting"
	RelayStateStreaming    RelayState = "streaming"
)

// Status describes the relay at one point in time.
type Status struct {
	State     RelayState
	SessionID string
}

// RelayStats counts relayed frames across sessions.
type RelayStats struct {
	FramesSent     uint64
	FramesReceived uint64
	// CaptureGaps counts the times captured blocks were found missing
	// before encoding.
	CaptureGaps uint64

	// Capture and Playback accumulate the device stream counters of every
	// session, including the current one.
	Capture  audio.Stats
	Playback audio.Stats
}

func addStats(a, b audio.Stats) audio.Stats {
	return audio.Stats{
		Callbacks:  a.Callbacks + b.Callbacks,
		Dropped:    a.Dropped + b.Dropped,
		Underruns:  a.Underruns + b.Underruns,
		LockMisses: a.LockMisses + b.LockMisses,
	}
}

// Relay streams the microphone to a remote peer and plays the audio the
// peer sends back on the speaker.
type Relay struct {
	config       Config
	soundCard    *audio.SoundCard
	logger       *slog.Logger
	newTransport func() (interfaces.TransportProtocol, error)
	reconnect    utils.ReconnectStrategy

	stateMutex sync.RWMutex
	state      RelayState
	sessionID  string

	// Streams of the running session and the totals of finished ones.
	mic          *audio.Microphone[int16]
	speaker      *audio.Speaker[int16]
	pastCapture  audio.Stats
	pastPlayback audio.Stats

	framesSent     atomic.Uint64
	framesReceived atomic.Uint64
	captureGaps    atomic.Uint64
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithTransportFactory replaces the transport built from the relay config.
func WithTransportFactory(fn func() (interfaces.TransportProtocol, error)) RelayOption {
	return func(r *Relay) { r.newTransport = fn }
}

// WithReconnectStrategy replaces the default exponential backoff.
func WithReconnectStrategy(s utils.ReconnectStrategy) RelayOption {
	return func(r *Relay) { r.reconnect = s }
}

func NewRelay(cfg Config, sc *audio.SoundCard, log *slog.Logger, opts ...RelayOption) (*Relay, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if sc == nil {
		return nil, errors.New("sound card cannot be nil")
	}

	r := &Relay{
		config:    cfg,
		soundCard: sc,
		logger:    log,
		reconnect: utils.NewExponentialBackoff(),
		state:     RelayStateDisconnected,
	}
	r.newTransport = func() (interfaces.TransportProtocol, error) {
		return NewProtocol(r.config)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewProtocol creates the transport matching the scheme of the relay URL.
func NewProtocol(config Config) (interfaces.TransportProtocol, error) {
	u, err := url.Parse(config.Relay.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		var wsConfig websocket.Config
		wsConfig.Server.URL = config.Relay.URL
		wsConfig.Server.ProtocolVersion = 1
		wsConfig.Auth.AccessToken = config.Relay.AccessToken
		wsConfig.Device.ID = config.Relay.DeviceID
		wsConfig.Device.ClientID = config.Relay.ClientID
		return websocket.NewWebSocketProtocol(wsConfig)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, u.Scheme)
	}
}

// Run relays audio until ctx is done, reconnecting after transport
// failures. Audio setup failures are returned since retrying cannot fix
// them.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("Starting relay", "url", r.config.Relay.URL, "codec", r.config.Relay.Codec)
	defer r.logger.Info("Relay stopped")

	for {
		err := r.session(ctx)
		r.setState(RelayStateDisconnected)
		if ctx.Err() != nil {
			return nil
		}
		if fatal(err) {
			return err
		}

		delay := r.reconnect.NextDelay()
		r.logger.Warn("Relay session ended, reconnecting", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func fatal(err error) bool {
	return errors.Is(err, audio.ErrNoDevicesFound) ||
		errors.Is(err, audio.ErrFormatUnsupported) ||
		errors.Is(err, ErrUnsupportedCodec) ||
		errors.Is(err, ErrUnsupportedProtocol)
}

// session runs one connection: open devices, greet the peer, then relay in
// both directions until either side fails or ctx is done.
func (r *Relay) session(ctx context.Context) error {
	r.setState(RelayStateConnecting)
	// Runs after the streams below are closed.
	defer r.endSession()

	transport, err := r.newTransport()
	if err != nil {
		return err
	}
	defer transport.Close()
	if err := transport.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	mic, err := OpenMicrophone[int16](r.soundCard, r.config.Audio.Capture)
	if err != nil {
		return fmt.Errorf("failed to open microphone: %w", err)
	}
	defer mic.Close()

	speaker, err := OpenSpeaker[int16](r.soundCard, r.config.Audio.Playback)
	if err != nil {
		return fmt.Errorf("failed to open speaker: %w", err)
	}
	defer speaker.Close()

	blocks, err := mic.Start()
	if err != nil {
		return fmt.Errorf("failed to start microphone: %w", err)
	}
	buf, err := speaker.Start()
	if err != nil {
		return fmt.Errorf("failed to start speaker: %w", err)
	}

	r.trackStreams(mic, speaker)

	micFormat, speakerFormat := mic.Format(), speaker.Format()
	size, err := frameSamples(micFormat.SampleRate, micFormat.Channels, r.config.Audio.FrameDuration)
	if err != nil {
		return err
	}
	enc, dec, err := NewCodec(r.config.Relay.Codec, micFormat, speakerFormat, r.config.Relay.Bitrate, r.logger)
	if err != nil {
		return err
	}

	helloMsg := map[string]any{
		"type":      "hello",
		"version":   1,
		"transport": transport.ProtocolType(),
		"audio_params": map[string]any{
			"format":         r.config.Relay.Codec,
			"sample_rate":    int(micFormat.SampleRate),
			"channels":       micFormat.Channels,
			"frame_duration": r.config.Audio.FrameDuration,
		},
	}
	if err := r.sendJSON(transport, helloMsg); err != nil {
		return fmt.Errorf("failed to send hello message: %w", err)
	}

	r.reconnect.Reset()
	r.setState(RelayStateStreaming)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		StopMicrophone(mic, r.logger)
		return transport.Close()
	})
	g.Go(func() error {
		err := r.audioSender(transport, blocks, newFramer(size), enc)
		if err != nil {
			// Keep draining so the capture pump can finish once stopped.
			StopMicrophone(mic, r.logger)
			for range blocks {
			}
		}
		return err
	})
	g.Go(func() error {
		return r.messageHandler(gctx, transport, dec, buf)
	})
	return g.Wait()
}

// audioSender encodes captured blocks into frames and sends them until the
// block channel is closed.
func (r *Relay) audioSender(t interfaces.TransportProtocol, blocks <-chan audio.Block[int16], fr *framer, enc FrameEncoder) error {
	r.logger.Debug("Starting audio sender")
	defer r.logger.Debug("Audio sender stopped")

	send := func(frame []int16) error {
		pkt, err := enc.Encode(frame)
		if err != nil {
			return err
		}
		if err := t.Send(pkt, interfaces.MsgBinary); err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
		r.framesSent.Add(1)
		return nil
	}

	var next uint64
	for blk := range blocks {
		if blk.Seq > next {
			r.captureGaps.Add(1)
			r.logger.Debug("Captured blocks dropped", "missing", blk.Seq-next)
			fr.reset()
		}
		next = blk.Seq + 1

		if err := fr.push(blk.Samples, send); err != nil {
			return err
		}
	}
	return nil
}

// messageHandler plays received audio and handles control messages until
// the transport closes.
func (r *Relay) messageHandler(ctx context.Context, t interfaces.TransportProtocol, dec FrameDecoder, buf *audio.SharedBuffer[int16]) error {
	msgChan := t.Receive()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgChan:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrConnectionLost
			}
			switch msg.Type {
			case interfaces.MsgBinary:
				pcm, err := dec.Decode(msg.Payload)
				if err != nil {
					r.logger.Warn("Failed to decode audio frame", "error", err, "size", len(msg.Payload))
					continue
				}
				buf.Write(pcm)
				r.framesReceived.Add(1)
			case interfaces.MsgText:
				if err := r.handleTextMessage(msg.Payload, buf); err != nil {
					return err
				}
			}
		}
	}
}

type serverMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Text      string `json:"text"`
	Message   string `json:"message"`
	Reason    string `json:"reason"`
}

func (r *Relay) handleTextMessage(data []byte, buf *audio.SharedBuffer[int16]) error {
	if len(data) == 0 {
		r.logger.Debug("Empty message received")
		return nil
	}

	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.Error("JSON unmarshal failed", "error", err, "raw_data", string(data))
		return nil
	}

	switch msg.Type {
	case "hello":
		r.stateMutex.Lock()
		r.sessionID = msg.SessionID
		r.stateMutex.Unlock()
		r.logger.Info("Received hello response from server", "session_id", msg.SessionID)
	case "tts":
		r.logger.Info("Remote playback", "state", msg.State, "text", msg.Text)
	case "abort":
		buf.Clear()
		r.logger.Info("Playback aborted", "reason", msg.Reason)
	case "error":
		r.logger.Error("Received error message", "session_id", msg.SessionID, "error", msg.Message)
		return fmt.Errorf("%w: %s", ErrServerError, msg.Message)
	default:
		r.logger.Warn("Unknown message type received", "type", msg.Type)
	}
	return nil
}

func (r *Relay) sendJSON(t interfaces.TransportProtocol, data any) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	r.logger.Debug("Sending JSON message", "json", string(msg))
	return t.Send(msg, interfaces.MsgText)
}

// Status returns the current state and session id.
func (r *Relay) Status() Status {
	r.stateMutex.RLock()
	defer r.stateMutex.RUnlock()
	return Status{State: r.state, SessionID: r.sessionID}
}

func (r *Relay) Stats() RelayStats {
	st := RelayStats{
		FramesSent:     r.framesSent.Load(),
		FramesReceived: r.framesReceived.Load(),
		CaptureGaps:    r.captureGaps.Load(),
	}

	r.stateMutex.RLock()
	defer r.stateMutex.RUnlock()
	st.Capture, st.Playback = r.pastCapture, r.pastPlayback
	if r.mic != nil {
		st.Capture = addStats(st.Capture, r.mic.Stats())
	}
	if r.speaker != nil {
		st.Playback = addStats(st.Playback, r.speaker.Stats())
	}
	return st
}

// endSession folds the stream counters into the totals and forgets the
// session id.
func (r *Relay) endSession() {
	r.trackStreams(nil, nil)

	r.stateMutex.Lock()
	r.sessionID = ""
	r.stateMutex.Unlock()
}

// trackStreams folds the counters of the current streams into the totals
// and starts tracking mic and speaker.
func (r *Relay) trackStreams(mic *audio.Microphone[int16], speaker *audio.Speaker[int16]) {
	r.stateMutex.Lock()
	defer r.stateMutex.Unlock()
	if r.mic != nil {
		r.pastCapture = addStats(r.pastCapture, r.mic.Stats())
	}
	if r.speaker != nil {
		r.pastPlayback = addStats(r.pastPlayback, r.speaker.Stats())
	}
	r.mic, r.speaker = mic, speaker
}

func (r *Relay) setState(newState RelayState) {
	r.stateMutex.Lock()
	defer r.stateMutex.Unlock()

	oldState := r.state
	if oldState != newState {
		r.state = newState
		r.logger.Info("State changed", "from", oldState, "to", newState)
	}
}
