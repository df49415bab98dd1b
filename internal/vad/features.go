// Package vad classifies fixed-length audio frames as speech or non-speech.
//
// A Detector extracts per-frame features (energy, zero-crossing rate and an
// approximate spectral centroid), fuses them into an instantaneous decision
// and a probability score, and smooths the instantaneous decisions with a
// hysteresis state machine. An optional noise-floor tracker derives the
// energy threshold from recent frame energies.
//
// A Detector is not safe for concurrent use; create one per audio stream.
package vad

import "math"

// Features holds the per-frame values the classifier consumes
type Features struct {
	Energy           float64 `json:"energy"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
	SpectralCentroid float64 `json:"spectral_centroid"`
}

// ExtractFeatures computes energy, zero-crossing rate and spectral centroid for a frame
func ExtractFeatures(frame []float64, sampleRate int) Features {
	return Features{
		Energy:           CalculateEnergy(frame),
		ZeroCrossingRate: CalculateZeroCrossingRate(frame),
		SpectralCentroid: CalculateSpectralCentroid(frame, sampleRate),
	}
}

// CalculateEnergy returns the mean squared amplitude, or 0 for an empty frame
func CalculateEnergy(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}

	energy := 0.0
	for _, sample := range frame {
		energy += sample * sample
	}
	return energy / float64(len(frame))
}

// CalculateZeroCrossingRate returns the fraction of adjacent sample pairs whose
// signs differ. Zero counts as non-negative. Frames shorter than two samples yield 0.
func CalculateZeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}

	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i] >= 0) != (frame[i-1] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}

// CalculateSpectralCentroid approximates the spectral centroid without a
// frequency transform: sample i is assigned the pseudo-frequency
// i*sampleRate/(2N) and weighted by its magnitude. This is a coarse proxy
// for brightness, not an FFT-based centroid.
func CalculateSpectralCentroid(frame []float64, sampleRate int) float64 {
	n := float64(len(frame))
	weightedSum := 0.0
	magnitudeSum := 0.0

	for i, sample := range frame {
		frequency := float64(i) * float64(sampleRate) / (2.0 * n)
		magnitude := math.Abs(sample)

		weightedSum += frequency * magnitude
		magnitudeSum += magnitude
	}

	if magnitudeSum > 0 {
		return weightedSum / magnitudeSum
	}
	return 0
}
