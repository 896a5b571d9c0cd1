package audio

// Speaker plays audio on a device from a SharedBuffer fed by the
// application.
type Speaker[T Sample] struct {
	*session
	buffer *SharedBuffer[T]
}

// NewSpeaker creates a speaker on the output device with the given id.
func NewSpeaker[T Sample](sc *SoundCard, id DeviceID, cfg Config) (*Speaker[T], error) {
	s, err := sc.sessionByID(Playback, id, cfg)
	if err != nil {
		return nil, err
	}
	return &Speaker[T]{session: s}, nil
}

// DefaultSpeaker creates a speaker on the default output device.
func DefaultSpeaker[T Sample](sc *SoundCard, cfg Config) (*Speaker[T], error) {
	s, err := sc.defaultSession(Playback, cfg)
	if err != nil {
		return nil, err
	}
	return &Speaker[T]{session: s}, nil
}

// Start negotiates the stream format, installs the render callback and
// starts the device. Samples written to the returned buffer are played in
// order; whenever it runs short the device plays silence.
func (sp *Speaker[T]) Start() (*SharedBuffer[T], error) {
	var buf *SharedBuffer[T]
	err := sp.lc.start(func() error {
		nf, err := negotiateStream[T](sp.session)
		if err != nil {
			return err
		}

		b := newSharedBuffer[T]()
		bridge := &playbackBridge[T]{buf: b, channels: nf.Channels, s: sp.session}
		if err := sp.install(bridge.onFrames); err != nil {
			return err
		}

		sp.buffer = b
		sp.format = nf
		buf = b
		sp.logStarted(nf)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Stop halts the device and invalidates the buffer returned by Start. No
// callback runs after Stop returns.
func (sp *Speaker[T]) Stop() error {
	return sp.stop(func() {
		sp.buffer.invalidate()
		sp.buffer = nil
	})
}

// Close stops the speaker if running and releases the device stream.
func (sp *Speaker[T]) Close() error {
	return sp.close(sp.Stop, nil)
}

type playbackBridge[T Sample] struct {
	buf      *SharedBuffer[T]
	channels int
	s        *session
}

// onFrames runs on the real-time thread. Every output position not filled
// from the shared buffer is set to silence, including when the buffer lock
// is busy.
func (pb *playbackBridge[T]) onFrames(output, _ []byte, frames int) {
	out := SamplesOf[T](output)
	if n := frames * pb.channels; n < len(out) {
		out = out[:n]
	}
	if !pb.s.active.Load() {
		clear(out)
		return
	}
	pb.s.stats.callbacks.Add(1)

	n, ok := pb.buf.drainInto(out)
	switch {
	case !ok:
		pb.s.stats.lockMisses.Add(1)
	case n < len(out):
		pb.s.stats.underruns.Add(1)
	}
	clear(out[n:])
}
