package audio

// Callback is invoked by a Stream on the platform's real-time audio thread.
// output and input hold the given number of interleaved frames of raw native-endian
// samples in the negotiated format; output is nil for capture streams and
// input is nil for playback streams.
//
// Implementations must not block, allocate, or wait on locks held by
// other goroutines.
type Callback func(output, input []byte, frames int)

// Stream is a hardware stream handle bound to one device and direction.
type Stream interface {
	// SetFormat applies the requested format and returns the format the
	// hardware accepted.
	SetFormat(want NegotiatedFormat) (NegotiatedFormat, error)
	SetCallback(cb Callback) error
	Start() error
	// Stop halts the stream. No callback invocation happens after Stop
	// returns.
	Stop() error
	Close() error
}

// Backend is a platform audio subsystem able to open hardware streams.
type Backend interface {
	Name() string
	OpenStream(dev Device, dir Direction) (Stream, error)
	Close() error
}
