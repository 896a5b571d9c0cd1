package core

import "fmt"

// framer regroups captured samples, which arrive in blocks of whatever size
// the device chose, into the fixed-size frames the codec expects.
type framer struct {
	buf []int16
	n   int
}

// frameSamples is the number of interleaved samples in one frame.
func frameSamples(sampleRate float64, channels, durationMs int) (int, error) {
	n := int(sampleRate) * channels * durationMs / 1000
	if n <= 0 {
		return 0, fmt.Errorf("invalid frame size: %d", n)
	}
	return n, nil
}

func newFramer(size int) *framer {
	return &framer{buf: make([]int16, size)}
}

// push appends samples and calls emit for every completed frame. The frame
// passed to emit is reused after emit returns.
func (f *framer) push(samples []int16, emit func(frame []int16) error) error {
	for len(samples) > 0 {
		k := copy(f.buf[f.n:], samples)
		f.n += k
		samples = samples[k:]
		if f.n < len(f.buf) {
			return nil
		}
		f.n = 0
		if err := emit(f.buf); err != nil {
			return err
		}
	}
	return nil
}

// reset drops a partial frame, e.g. after captured blocks were lost.
func (f *framer) reset() { f.n = 0 }
