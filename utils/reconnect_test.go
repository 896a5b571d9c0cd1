package utils

import (
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	b := NewExponentialBackoff()
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		if got := b.NextDelay(); got != w {
			t.Fatalf("delay %d = %v, want %v", i, got, w)
		}
	}

	b.Reset()
	if got := b.NextDelay(); got != time.Second {
		t.Errorf("delay after Reset = %v, want 1s", got)
	}
}

func TestExponentialBackoffRange(t *testing.T) {
	t.Parallel()

	b := NewExponentialBackoffRange(10*time.Millisecond, 5*time.Millisecond)
	for i := 0; i < 3; i++ {
		if got := b.NextDelay(); got != 10*time.Millisecond {
			t.Fatalf("delay %d = %v, want max clamped to initial", i, got)
		}
	}
}
