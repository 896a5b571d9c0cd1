package audio

import "sync"

const minBufferSamples = 1024

// SharedBuffer is the FIFO of samples an application feeds ahead of real
// time for a Speaker. It is safe for concurrent use.
type SharedBuffer[T Sample] struct {
	mu      sync.Mutex
	buf     []T
	head    int
	n       int
	invalid bool
}

func newSharedBuffer[T Sample]() *SharedBuffer[T] {
	return &SharedBuffer[T]{}
}

// Write enqueues interleaved samples and returns how many were accepted.
// After the speaker is stopped samples are still accepted but discarded.
func (b *SharedBuffer[T]) Write(samples []T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.invalid || len(samples) == 0 {
		return len(samples)
	}

	b.grow(b.n + len(samples))
	tail := (b.head + b.n) % len(b.buf)
	k := copy(b.buf[tail:], samples)
	copy(b.buf, samples[k:])
	b.n += len(samples)
	return len(samples)
}

// Len returns the number of samples waiting to be played.
func (b *SharedBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Clear discards every queued sample.
func (b *SharedBuffer[T]) Clear() {
	b.mu.Lock()
	b.head, b.n = 0, 0
	b.mu.Unlock()
}

// Invalidated reports whether the speaker that returned the buffer has
// been stopped.
func (b *SharedBuffer[T]) Invalidated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.invalid
}

func (b *SharedBuffer[T]) invalidate() {
	b.mu.Lock()
	b.invalid = true
	b.buf, b.head, b.n = nil, 0, 0
	b.mu.Unlock()
}

// drainInto moves up to len(dst) samples into dst without waiting for the
// lock. ok is false when the lock was held elsewhere.
func (b *SharedBuffer[T]) drainInto(dst []T) (n int, ok bool) {
	if !b.mu.TryLock() {
		return 0, false
	}
	defer b.mu.Unlock()

	n = b.peek(dst)
	if n == 0 {
		return 0, true
	}
	b.n -= n
	if b.n == 0 {
		b.head = 0
	} else {
		b.head = (b.head + n) % len(b.buf)
	}
	return n, true
}

// peek copies the oldest samples into dst without consuming them.
func (b *SharedBuffer[T]) peek(dst []T) int {
	n := min(b.n, len(dst))
	if n == 0 {
		return 0
	}
	k := copy(dst[:n], b.buf[b.head:min(b.head+n, len(b.buf))])
	copy(dst[k:n], b.buf)
	return n
}

// grow ensures room for need samples. Only the application side grows the
// buffer, under the lock.
func (b *SharedBuffer[T]) grow(need int) {
	if need <= len(b.buf) {
		return
	}
	size := max(need, 2*len(b.buf), minBufferSamples)
	buf := make([]T, size)
	b.peek(buf)
	b.buf, b.head = buf, 0
}
