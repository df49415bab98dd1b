package vad

// AudioState is the coarse level reported to clients alongside decisions
type AudioState string

const (
	AudioSilent   AudioState = "SILENT"
	AudioSpeaking AudioState = "SPEAKING"
	AudioNoise    AudioState = "NOISE"
)

const (
	// DefaultSpeakingThreshold is the probability above which voiced frames count as speaking
	DefaultSpeakingThreshold = 0.5

	// noiseFraction of the speaking threshold separates noise from silence
	noiseFraction = 0.3
)

// AudioStateFor maps a decision to SPEAKING, NOISE or SILENT.
// A non-positive threshold falls back to DefaultSpeakingThreshold.
func AudioStateFor(d Decision, threshold float64) AudioState {
	if threshold <= 0 {
		threshold = DefaultSpeakingThreshold
	}

	switch {
	case d.Voice && d.Probability > threshold:
		return AudioSpeaking
	case d.Probability > threshold*noiseFraction:
		return AudioNoise
	default:
		return AudioSilent
	}
}
