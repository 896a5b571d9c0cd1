package audio

import "sync/atomic"

type blockSlot[T Sample] struct {
	seq uint64
	n   int
	buf []T
}

// blockRing is a single-producer single-consumer queue of pre-allocated
// sample slots. The producer is the real-time callback; push never blocks
// and never allocates.
type blockRing[T Sample] struct {
	slots []blockSlot[T]
	head  atomic.Uint64 // written by the producer only
	tail  atomic.Uint64 // written by the consumer only
}

func newBlockRing[T Sample](depth, slotSamples int) *blockRing[T] {
	slots := make([]blockSlot[T], depth)
	for i := range slots {
		slots[i].buf = make([]T, slotSamples)
	}
	return &blockRing[T]{slots: slots}
}

// push copies samples into as many consecutive slots as needed, all tagged
// with seq. It reports false without writing anything when the ring does
// not have room for every sample.
func (r *blockRing[T]) push(seq uint64, samples []T) bool {
	if len(samples) == 0 {
		return true
	}

	slotLen := len(r.slots[0].buf)
	need := uint64((len(samples) + slotLen - 1) / slotLen)
	depth := uint64(len(r.slots))

	head := r.head.Load()
	if free := depth - (head - r.tail.Load()); need > free {
		return false
	}

	for i := uint64(0); i < need; i++ {
		s := &r.slots[(head+i)%depth]
		s.n = copy(s.buf, samples)
		s.seq = seq
		samples = samples[s.n:]
	}
	r.head.Store(head + need)
	return true
}

// pop passes the oldest slot to fn and then releases it. fn must not retain
// the samples slice. It reports false when the ring is empty.
func (r *blockRing[T]) pop(fn func(seq uint64, samples []T)) bool {
	tail := r.tail.Load()
	if tail == r.head.Load() {
		return false
	}

	s := &r.slots[tail%uint64(len(r.slots))]
	fn(s.seq, s.buf[:s.n])
	r.tail.Store(tail + 1)
	return true
}

func (r *blockRing[T]) len() int {
	return int(r.head.Load() - r.tail.Load())
}
