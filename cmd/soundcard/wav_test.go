package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	var want []int16
	for i := 0; i < 1000; i++ {
		want = append(want, int16(i*30-15000), int16(15000-i*30))
	}
	w := newWAVWriter(f, 22050, 2)
	// Written in uneven blocks, the way microphone blocks arrive.
	for _, part := range [][]int16{want[:300], want[300:1201], want[1201:]} {
		if err := w.Write(part); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	f, err = os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	r, err := newWAVReader(f, 256)
	if err != nil {
		t.Fatalf("newWAVReader() error = %v", err)
	}
	if r.sampleRate != 22050 || r.channels != 2 || r.bitDepth != 16 {
		t.Fatalf("format = %d Hz %d ch %d bit", r.sampleRate, r.channels, r.bitDepth)
	}

	var got []int16
	chunk := make([]int16, 512)
	for {
		n, err := r.Read(chunk)
		got = append(got, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}
	if !slices.Equal(got, want) {
		t.Fatalf("read %d samples, want %d identical samples", len(got), len(want))
	}
}

func TestWAVReaderRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF data"), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := newWAVReader(f, 256); !errors.Is(err, errNotWavFile) {
		t.Fatalf("newWAVReader() error = %v, want errNotWavFile", err)
	}
}

func TestToInt16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v, depth int
		want     int16
	}{
		{1234, 16, 1234},
		{-32768, 16, -32768},
		{255, 8, 127 << 8},
		{128, 8, 0},
		{0x7fffff, 24, 0x7fff},
		{-0x800000, 24, -0x8000},
		{1 << 30, 32, 1 << 14},
	}
	for _, tc := range tests {
		if got := toInt16(tc.v, tc.depth); got != tc.want {
			t.Errorf("toInt16(%d, %d) = %d, want %d", tc.v, tc.depth, got, tc.want)
		}
	}
}
