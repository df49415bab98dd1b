package audio

import "fmt"

// Framer chunks an arbitrary-length sample stream into fixed-length frames.
// Incomplete trailing samples stay buffered until the next Push.
type Framer struct {
	frameLength int
	ring        *RingBuffer
}

// NewFramer creates a framer emitting frames of frameLength samples.
// capacity is the number of samples that may be pending between pushes and
// is raised to at least two frames.
func NewFramer(frameLength, capacity int) (*Framer, error) {
	if frameLength <= 0 {
		return nil, fmt.Errorf("frame length must be positive, got %d", frameLength)
	}
	if capacity < frameLength*2 {
		capacity = frameLength * 2
	}
	return &Framer{
		frameLength: frameLength,
		ring:        NewRingBuffer(capacity + 1),
	}, nil
}

// Push appends samples and returns every complete frame now available.
// Each returned frame is a fresh slice owned by the caller.
func (f *Framer) Push(samples []float64) [][]float64 {
	var frames [][]float64

	for len(samples) > 0 {
		written := f.ring.Write(samples)
		samples = samples[written:]

		for f.ring.Available() >= f.frameLength {
			frame := make([]float64, f.frameLength)
			f.ring.Read(frame)
			frames = append(frames, frame)
		}
	}

	return frames
}

// Pending returns the number of buffered samples not yet forming a frame
func (f *Framer) Pending() int {
	return f.ring.Available()
}

// FrameLength returns the configured frame length in samples
func (f *Framer) FrameLength() int {
	return f.frameLength
}

// Reset drops any buffered samples
func (f *Framer) Reset() {
	f.ring.Clear()
}
