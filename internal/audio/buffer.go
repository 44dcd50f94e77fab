// Package audio provides the voice-activity-driven stream segmenter.
package audio

import "time"

// Buffer is a fixed-capacity sample accumulator. It is deliberately
// unsynchronized: the segmenter owns it and serializes access, and the flush
// snapshot is taken under the same lock as the write that triggered it.
type Buffer struct {
	data     []float32
	writePos int
}

// NewBuffer creates a buffer holding at most capacity samples.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]float32, capacity)}
}

// Append copies as many samples as fit into the remaining capacity and
// returns how many were written.
func (b *Buffer) Append(samples []float32) int {
	n := copy(b.data[b.writePos:], samples)
	b.writePos += n
	return n
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	return b.writePos
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Full reports whether the buffer has reached capacity.
func (b *Buffer) Full() bool {
	return b.writePos == len(b.data)
}

// Duration returns the buffered audio duration at the given sample rate.
func (b *Buffer) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(b.writePos) * time.Second / time.Duration(sampleRate)
}

// Snapshot returns an immutable copy of the buffered samples and resets the
// write position, so the caller can hand the copy to asynchronous work while
// writes continue.
func (b *Buffer) Snapshot() []float32 {
	snap := make([]float32, b.writePos)
	copy(snap, b.data[:b.writePos])
	b.writePos = 0
	return snap
}

// Reset discards buffered samples without copying.
func (b *Buffer) Reset() {
	b.writePos = 0
}
