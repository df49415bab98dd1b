package vad

const (
	// DefaultNoiseHistorySize is the number of past frame energies the tracker keeps
	DefaultNoiseHistorySize = 10

	// NoiseFloorMultiplier scales the noise floor into the voice energy threshold
	NoiseFloorMultiplier = 3.0
)

// NoiseFloorTracker keeps a fixed-capacity ring of recent frame energies.
// The noise floor is the minimum energy in the window.
type NoiseFloorTracker struct {
	history  []float64
	capacity int
	next     int // index the next energy is written to
	count    int

	noiseFloor     float64
	voiceThreshold float64
}

// NewNoiseFloorTracker creates a tracker holding up to capacity energies
func NewNoiseFloorTracker(capacity int) *NoiseFloorTracker {
	if capacity < 1 {
		capacity = DefaultNoiseHistorySize
	}
	return &NoiseFloorTracker{
		history:  make([]float64, capacity),
		capacity: capacity,
	}
}

// Update records a frame energy, evicting the oldest once at capacity,
// and recomputes the noise floor and voice threshold.
func (t *NoiseFloorTracker) Update(energy float64) {
	if energy < 0 {
		energy = 0
	}

	t.history[t.next] = energy
	t.next = (t.next + 1) % t.capacity
	if t.count < t.capacity {
		t.count++
	}

	floor := t.history[0]
	for i := 1; i < t.count; i++ {
		if t.history[i] < floor {
			floor = t.history[i]
		}
	}

	t.noiseFloor = floor
	t.voiceThreshold = floor * NoiseFloorMultiplier
}

// IsVoice updates the tracker with energy and reports whether it exceeds the new threshold
func (t *NoiseFloorTracker) IsVoice(energy float64) bool {
	t.Update(energy)
	return energy > t.voiceThreshold
}

// NoiseFloor returns the current noise floor estimate
func (t *NoiseFloorTracker) NoiseFloor() float64 {
	return t.noiseFloor
}

// VoiceThreshold returns the energy threshold derived from the noise floor
func (t *NoiseFloorTracker) VoiceThreshold() float64 {
	return t.voiceThreshold
}

// Len returns the number of energies currently held
func (t *NoiseFloorTracker) Len() int {
	return t.count
}

// Capacity returns the maximum number of energies held
func (t *NoiseFloorTracker) Capacity() int {
	return t.capacity
}

// Reset clears the history and estimates
func (t *NoiseFloorTracker) Reset() {
	for i := range t.history {
		t.history[i] = 0
	}
	t.next = 0
	t.count = 0
	t.noiseFloor = 0
	t.voiceThreshold = 0
}
