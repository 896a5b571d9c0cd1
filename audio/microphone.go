package audio

import (
	"slices"
	"sync"
)

const (
	// defaultQueueDepth is the number of blocks buffered between the
	// capture callback and the consumer.
	defaultQueueDepth = 64

	// defaultBlockFrames sizes capture slots when the OS picks the block
	// size. Larger blocks are split across slots.
	defaultBlockFrames = 4096
)

// Block is the interleaved samples delivered by one capture callback
// invocation.
type Block[T Sample] struct {
	// Seq is the callback invocation number, starting at 0 for each Start.
	// A gap means the invocations in between were dropped. Blocks larger
	// than a capture slot arrive split, sharing the same Seq.
	Seq      uint64
	Channels int
	Samples  []T
}

// Frames returns the number of frames in the block.
func (b Block[T]) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Frame returns the samples of frame i, one per channel.
func (b Block[T]) Frame(i int) []T {
	return b.Samples[i*b.Channels : (i+1)*b.Channels]
}

// At returns the sample of the given channel in the given frame.
func (b Block[T]) At(frame, channel int) T {
	return b.Samples[b.Channels*frame+channel]
}

// Microphone records audio from a device and delivers each block of
// captured samples to the caller through a channel.
type Microphone[T Sample] struct {
	*session
	bridge *captureBridge[T]
}

// NewMicrophone creates a microphone on the input device with the given id.
func NewMicrophone[T Sample](sc *SoundCard, id DeviceID, cfg Config) (*Microphone[T], error) {
	s, err := sc.sessionByID(Capture, id, cfg)
	if err != nil {
		return nil, err
	}
	return &Microphone[T]{session: s}, nil
}

// DefaultMicrophone creates a microphone on the default input device.
func DefaultMicrophone[T Sample](sc *SoundCard, cfg Config) (*Microphone[T], error) {
	s, err := sc.defaultSession(Capture, cfg)
	if err != nil {
		return nil, err
	}
	return &Microphone[T]{session: s}, nil
}

// Start negotiates the stream format, installs the capture callback and
// starts the device. The returned channel delivers blocks in capture order
// and is closed after Stop once every buffered block has been delivered.
// Blocks are dropped, never delayed, when the consumer falls behind.
// Blocks of a previous run that were never read are discarded.
func (m *Microphone[T]) Start() (<-chan Block[T], error) {
	var out <-chan Block[T]
	err := m.lc.start(func() error {
		nf, err := negotiateStream[T](m.session)
		if err != nil {
			return err
		}

		bridge := newCaptureBridge[T](nf, m.config.QueueDepth, m.session)
		if err := m.install(bridge.onFrames); err != nil {
			return err
		}
		if m.bridge != nil {
			m.bridge.abort()
		}
		go bridge.pump()

		m.bridge = bridge
		m.format = nf
		out = bridge.out
		m.logStarted(nf)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stop halts the device. No callback runs after Stop returns. The channel
// returned by Start is closed once the blocks captured before Stop have
// been delivered.
func (m *Microphone[T]) Stop() error {
	return m.stop(func() {
		m.bridge.finish()
	})
}

// Close stops the microphone if running and releases the device stream.
// Blocks not yet read are discarded and the channel returned by Start is
// closed even if nobody reads it.
func (m *Microphone[T]) Close() error {
	return m.close(m.Stop, func() {
		if m.bridge != nil {
			m.bridge.abort()
			m.bridge = nil
		}
	})
}

// captureBridge moves samples from the real-time callback to the consumer
// channel. The callback only writes into the pre-allocated ring; the pump
// goroutine copies blocks out of it and performs the blocking sends.
type captureBridge[T Sample] struct {
	channels int
	ring     *blockRing[T]
	notify   chan struct{}
	done     chan struct{}
	out      chan Block[T]

	// aborted unblocks the pump when the consumer is gone.
	aborted   chan struct{}
	abortOnce sync.Once

	// seq is only touched by the callback.
	seq uint64

	s *session
}

func newCaptureBridge[T Sample](nf NegotiatedFormat, depth int, s *session) *captureBridge[T] {
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	frames := nf.BlockSize
	if frames <= 0 {
		frames = defaultBlockFrames
	}
	return &captureBridge[T]{
		channels: nf.Channels,
		ring:     newBlockRing[T](depth, nf.SamplesPerBlock(frames)),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		out:      make(chan Block[T], depth),
		aborted:  make(chan struct{}),
		s:        s,
	}
}

// onFrames runs on the real-time thread and never blocks. When the ring is
// full the whole invocation is dropped.
func (cb *captureBridge[T]) onFrames(_, input []byte, frames int) {
	if !cb.s.active.Load() {
		return
	}
	cb.s.stats.callbacks.Add(1)

	seq := cb.seq
	cb.seq++

	samples := SamplesOf[T](input)
	if n := frames * cb.channels; n < len(samples) {
		samples = samples[:n]
	}
	if !cb.ring.push(seq, samples) {
		cb.s.stats.dropped.Add(1)
		return
	}

	select {
	case cb.notify <- struct{}{}:
	default:
	}
}

func (cb *captureBridge[T]) pump() {
	defer close(cb.out)
	for {
		if !cb.drain() {
			return
		}
		select {
		case <-cb.notify:
		case <-cb.done:
			cb.drain()
			return
		case <-cb.aborted:
			return
		}
	}
}

// drain delivers every block in the ring. It reports false if the bridge
// was aborted first.
func (cb *captureBridge[T]) drain() bool {
	for {
		var blk Block[T]
		ok := cb.ring.pop(func(seq uint64, samples []T) {
			blk = Block[T]{Seq: seq, Channels: cb.channels, Samples: slices.Clone(samples)}
		})
		if !ok {
			return true
		}
		select {
		case cb.out <- blk:
		case <-cb.aborted:
			return false
		}
	}
}

// finish tells the pump that no more callbacks will run.
func (cb *captureBridge[T]) finish() {
	close(cb.done)
}

// abort makes the pump give up on undelivered blocks and close the channel.
func (cb *captureBridge[T]) abort() {
	cb.abortOnce.Do(func() { close(cb.aborted) })
}
