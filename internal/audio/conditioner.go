package audio

import "math"

const (
	// DefaultTargetSampleRate is the canonical rate the detector and recognizer consume
	DefaultTargetSampleRate = 16000

	// DefaultHighPassAlpha is the first-order high-pass coefficient
	DefaultHighPassAlpha = 0.97
)

// Conditioner normalizes, high-pass filters and resamples raw audio
// before it reaches the detector or the recognizer.
type Conditioner struct {
	TargetRate int     // Canonical output sample rate in Hz
	Alpha      float64 // High-pass filter coefficient
}

// NewConditioner creates a conditioner with the default target rate and filter coefficient
func NewConditioner() *Conditioner {
	return &Conditioner{
		TargetRate: DefaultTargetSampleRate,
		Alpha:      DefaultHighPassAlpha,
	}
}

// Condition runs normalization, high-pass filtering and resampling in that order.
// The input slice is never modified.
func (c *Conditioner) Condition(raw []float64, sourceRate int) []float64 {
	processed := NormalizeAmplitude(raw)
	HighPassFilter(processed, c.Alpha)
	return Resample(processed, sourceRate, c.TargetRate)
}

// NormalizeAmplitude returns a copy of samples scaled so the peak magnitude is 1.
// All-zero input is returned unscaled.
func NormalizeAmplitude(samples []float64) []float64 {
	normalized := make([]float64, len(samples))
	copy(normalized, samples)

	peak := PeakAmplitude(samples)
	if peak > 0 {
		for i := range normalized {
			normalized[i] /= peak
		}
	}

	return normalized
}

// PeakAmplitude returns the maximum absolute sample value
func PeakAmplitude(samples []float64) float64 {
	peak := 0.0
	for _, sample := range samples {
		if abs := math.Abs(sample); abs > peak {
			peak = abs
		}
	}
	return peak
}

// HighPassFilter applies the first-order filter in place, left to right.
// Each output feeds the next step, so samples[i-1] is the already filtered value.
func HighPassFilter(samples []float64, alpha float64) {
	if len(samples) <= 1 {
		return
	}

	for i := 1; i < len(samples); i++ {
		samples[i] = alpha*(samples[i]-samples[i-1]) + alpha*samples[i-1]
	}
}

// Resample performs linear interpolation resampling from sourceRate to targetRate.
// When the rates match the input slice is returned as-is.
func Resample(samples []float64, sourceRate, targetRate int) []float64 {
	if sourceRate == targetRate || sourceRate <= 0 || targetRate <= 0 {
		return samples
	}

	ratio := float64(sourceRate) / float64(targetRate)
	outputLength := int(float64(len(samples)) / ratio)
	output := make([]float64, outputLength)

	for i := 0; i < outputLength; i++ {
		srcPos := float64(i) * ratio
		idx := int(srcPos)

		switch {
		case idx < len(samples)-1:
			fraction := srcPos - float64(idx)
			output[i] = samples[idx]*(1.0-fraction) + samples[idx+1]*fraction
		case idx < len(samples):
			output[i] = samples[idx]
		default:
			output[i] = 0
		}
	}

	return output
}
