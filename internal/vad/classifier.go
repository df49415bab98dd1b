package vad

import "math"

// Fusion constants for the frame classifier
const (
	MaxVoiceZeroCrossingRate = 0.5    // Voiced frames stay below this zcr
	MinVoiceCentroid         = 1000.0 // Voiced frames exceed this pseudo-centroid (Hz)

	TargetZeroCrossingRate = 0.3    // Voice is modelled as concentrated near this zcr
	CentroidScale          = 3000.0 // Centroid at which spectral confidence saturates

	EnergyWeight       = 0.5
	ZeroCrossingWeight = 0.3
	SpectralWeight     = 0.2
)

// Classifier fuses frame features into an instantaneous decision and a probability.
// It holds no state.
type Classifier struct{}

// Classify returns the instantaneous speech decision and the fused probability
// for features under the given energy threshold.
func (Classifier) Classify(f Features, energyThreshold float64) (bool, float64) {
	instant := f.Energy > energyThreshold &&
		f.ZeroCrossingRate < MaxVoiceZeroCrossingRate &&
		f.SpectralCentroid > MinVoiceCentroid

	return instant, Probability(f, energyThreshold)
}

// Probability returns the weighted fusion of energy, zero-crossing and spectral
// confidences, each clamped to [0, 1], with the sum clamped to [0, 1].
func Probability(f Features, energyThreshold float64) float64 {
	energyConf := 0.0
	if energyThreshold > 0 {
		energyConf = clamp01(f.Energy / energyThreshold)
	}

	zcrConf := clamp01(1.0 - math.Abs(f.ZeroCrossingRate-TargetZeroCrossingRate)/TargetZeroCrossingRate)
	spectralConf := clamp01(f.SpectralCentroid / CentroidScale)

	return clamp01(EnergyWeight*energyConf + ZeroCrossingWeight*zcrConf + SpectralWeight*spectralConf)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
