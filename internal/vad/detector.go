package vad

import (
	"errors"
	"fmt"

	"github.com/lexiqai/vad-gateway/internal/audio"
)

// ErrFrameLength is returned when a frame does not match the configured frame length
var ErrFrameLength = errors.New("frame length mismatch")

// Config holds configuration for a Detector
type Config struct {
	SampleRate            int     // Sample rate of incoming frames in Hz
	FrameLength           int     // Samples per frame
	EnergyThreshold       float64 // Fixed energy threshold (mean squared amplitude)
	ZeroCrossingThreshold float64 // Carried for configuration compatibility; not used by the decision
	SmoothingFactor       float64 // Carried for configuration compatibility; not used by the decision
	NoiseHistorySize      int     // Capacity of the noise-floor energy history
	AdaptiveThreshold     bool    // Use the noise-floor derived threshold instead of EnergyThreshold
	VoiceConfirmFrames    int     // Consecutive voiced frames to confirm VOICE
	SilenceConfirmFrames  int     // Consecutive unvoiced frames to confirm SILENCE
	ConditionFrames       bool    // Normalize and high-pass each frame before feature extraction
}

// DefaultConfig returns the default detector configuration
func DefaultConfig() Config {
	return Config{
		SampleRate:            16000,
		FrameLength:           512, // 32ms at 16kHz
		EnergyThreshold:       0.001,
		ZeroCrossingThreshold: 0.1,
		SmoothingFactor:       0.8,
		NoiseHistorySize:      DefaultNoiseHistorySize,
		VoiceConfirmFrames:    DefaultVoiceConfirmFrames,
		SilenceConfirmFrames:  DefaultSilenceConfirmFrames,
	}
}

// Validate checks the configuration for values the detector cannot run with
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameLength < 2 {
		return fmt.Errorf("frame length must be at least 2, got %d", c.FrameLength)
	}
	if c.EnergyThreshold < 0 {
		return fmt.Errorf("energy threshold must not be negative, got %f", c.EnergyThreshold)
	}
	if c.NoiseHistorySize < 1 {
		return fmt.Errorf("noise history size must be at least 1, got %d", c.NoiseHistorySize)
	}
	if c.VoiceConfirmFrames < 1 || c.SilenceConfirmFrames < 1 {
		return fmt.Errorf("confirmation frame counts must be at least 1, got voice=%d silence=%d",
			c.VoiceConfirmFrames, c.SilenceConfirmFrames)
	}
	return nil
}

// Decision is the detector output for one frame
type Decision struct {
	Voice       bool     `json:"voice"`       // Stable, smoothed decision
	Probability float64  `json:"probability"` // Fused voice probability in [0, 1]
	Instant     bool     `json:"instant"`     // Unsmoothed decision for this frame
	Threshold   float64  `json:"threshold"`   // Energy threshold applied to this frame
	Features    Features `json:"features"`
}

// State reports the stable state carried by the decision
func (d Decision) State() State {
	if d.Voice {
		return StateVoice
	}
	return StateSilence
}

// Snapshot is a read-only view of a detector's mutable state
type Snapshot struct {
	EnergyThreshold         float64
	ZeroCrossingThreshold   float64
	SmoothingFactor         float64
	PreviousEnergy          float64
	PreviousDecision        bool
	ConsecutiveVoiceCount   int
	ConsecutiveSilenceCount int
	NoiseFloor              float64
	VoiceThreshold          float64
}

// Detector performs voice activity detection over fixed-length frames
type Detector struct {
	config     Config
	classifier Classifier
	tracker    *NoiseFloorTracker
	hysteresis *Hysteresis

	previousEnergy float64
}

// NewDetector creates a detector. The configuration is validated.
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		config:     config,
		tracker:    NewNoiseFloorTracker(config.NoiseHistorySize),
		hysteresis: NewHysteresis(config.VoiceConfirmFrames, config.SilenceConfirmFrames),
	}, nil
}

// ProcessFrame classifies one frame and advances the state machine.
// A frame of the wrong length yields the zero Decision and an error wrapping
// ErrFrameLength; detector state is left untouched.
func (d *Detector) ProcessFrame(frame []float64) (Decision, error) {
	if len(frame) != d.config.FrameLength {
		return Decision{}, fmt.Errorf("%w: expected %d samples, got %d", ErrFrameLength, d.config.FrameLength, len(frame))
	}

	features := ExtractFeatures(d.prepare(frame), d.config.SampleRate)

	d.tracker.Update(features.Energy)
	threshold := d.threshold()

	instant, probability := d.classifier.Classify(features, threshold)
	voice := d.hysteresis.Update(instant)

	d.previousEnergy = features.Energy

	return Decision{
		Voice:       voice,
		Probability: probability,
		Instant:     instant,
		Threshold:   threshold,
		Features:    features,
	}, nil
}

// Detect processes a frame and returns only the stable decision.
// Length mismatches report false.
func (d *Detector) Detect(frame []float64) bool {
	decision, err := d.ProcessFrame(frame)
	if err != nil {
		return false
	}
	return decision.Voice
}

// Probability scores a frame without advancing any detector state.
// Length mismatches score 0.
func (d *Detector) Probability(frame []float64) float64 {
	if len(frame) != d.config.FrameLength {
		return 0
	}
	features := ExtractFeatures(d.prepare(frame), d.config.SampleRate)
	return Probability(features, d.threshold())
}

func (d *Detector) prepare(frame []float64) []float64 {
	if !d.config.ConditionFrames {
		return frame
	}
	conditioned := audio.NormalizeAmplitude(frame)
	audio.HighPassFilter(conditioned, audio.DefaultHighPassAlpha)
	return conditioned
}

func (d *Detector) threshold() float64 {
	if d.config.AdaptiveThreshold {
		return d.tracker.VoiceThreshold()
	}
	return d.config.EnergyThreshold
}

// Reset returns the detector to its initial state: SILENCE, zeroed counters,
// zero previous energy and an empty noise-floor history.
func (d *Detector) Reset() {
	d.hysteresis.Reset()
	d.tracker.Reset()
	d.previousEnergy = 0
}

// Snapshot returns the current detector state
func (d *Detector) Snapshot() Snapshot {
	voice, silence := d.hysteresis.Counts()
	return Snapshot{
		EnergyThreshold:         d.config.EnergyThreshold,
		ZeroCrossingThreshold:   d.config.ZeroCrossingThreshold,
		SmoothingFactor:         d.config.SmoothingFactor,
		PreviousEnergy:          d.previousEnergy,
		PreviousDecision:        d.hysteresis.State() == StateVoice,
		ConsecutiveVoiceCount:   voice,
		ConsecutiveSilenceCount: silence,
		NoiseFloor:              d.tracker.NoiseFloor(),
		VoiceThreshold:          d.tracker.VoiceThreshold(),
	}
}

// Config returns a copy of the detector configuration
func (d *Detector) Config() Config {
	return d.config
}

// SetEnergyThreshold sets the fixed energy threshold
func (d *Detector) SetEnergyThreshold(threshold float64) {
	if threshold < 0 {
		threshold = 0
	}
	d.config.EnergyThreshold = threshold
}

// SetZeroCrossingThreshold sets the configured zero-crossing threshold
func (d *Detector) SetZeroCrossingThreshold(threshold float64) {
	d.config.ZeroCrossingThreshold = threshold
}

// SetSmoothingFactor sets the configured smoothing factor
func (d *Detector) SetSmoothingFactor(factor float64) {
	d.config.SmoothingFactor = factor
}

// SetAdaptiveThreshold switches between the fixed and noise-floor derived threshold
func (d *Detector) SetAdaptiveThreshold(enabled bool) {
	d.config.AdaptiveThreshold = enabled
}

// SetSampleRate changes the sample rate used for the spectral centroid
func (d *Detector) SetSampleRate(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	d.config.SampleRate = sampleRate
	return nil
}

// SetFrameLength changes the expected frame length
func (d *Detector) SetFrameLength(frameLength int) error {
	if frameLength < 2 {
		return fmt.Errorf("frame length must be at least 2, got %d", frameLength)
	}
	d.config.FrameLength = frameLength
	return nil
}

// SetNoiseHistorySize replaces the noise-floor tracker with one of the given capacity.
// The energy history starts empty.
func (d *Detector) SetNoiseHistorySize(size int) error {
	if size < 1 {
		return fmt.Errorf("noise history size must be at least 1, got %d", size)
	}
	d.config.NoiseHistorySize = size
	d.tracker = NewNoiseFloorTracker(size)
	return nil
}
