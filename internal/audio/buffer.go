package audio

import (
	"sync"
)

// RingBuffer is a thread-safe FIFO ring buffer of audio samples.
// Writes never overwrite unread samples.
type RingBuffer struct {
	buffer []float64
	size   int
	read   int
	write  int
	mu     sync.RWMutex
}

// NewRingBuffer creates a new ring buffer able to hold size-1 samples
func NewRingBuffer(size int) *RingBuffer {
	if size < 2 {
		size = 2
	}
	return &RingBuffer{
		buffer: make([]float64, size),
		size:   size,
	}
}

// Write writes samples to the ring buffer.
// Returns the number of samples written (may be less than len(samples) if the buffer is full).
func (rb *RingBuffer) Write(samples []float64) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for _, sample := range samples {
		if (rb.write+1)%rb.size == rb.read {
			break // Buffer full
		}

		rb.buffer[rb.write] = sample
		rb.write = (rb.write + 1) % rb.size
		written++
	}

	return written
}

// Read reads up to len(dst) samples from the ring buffer.
// Returns the number of samples read.
func (rb *RingBuffer) Read(dst []float64) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for i := range dst {
		if rb.read == rb.write {
			break // Buffer empty
		}

		dst[i] = rb.buffer[rb.read]
		rb.read = (rb.read + 1) % rb.size
		read++
	}

	return read
}

// Available returns the number of samples available to read
func (rb *RingBuffer) Available() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.available()
}

func (rb *RingBuffer) available() int {
	if rb.write >= rb.read {
		return rb.write - rb.read
	}
	return rb.size - rb.read + rb.write
}

// Space returns the number of samples that can still be written
func (rb *RingBuffer) Space() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.size - rb.available() - 1 // -1 to prevent full/empty ambiguity
}

// Clear discards all buffered samples
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.read = 0
	rb.write = 0
}

// IsEmpty returns true if the buffer is empty
func (rb *RingBuffer) IsEmpty() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.read == rb.write
}

// IsFull returns true if the buffer is full
func (rb *RingBuffer) IsFull() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return (rb.write+1)%rb.size == rb.read
}
