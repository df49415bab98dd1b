package vad

const (
	DefaultVoiceConfirmFrames   = 3 // Consecutive voiced frames needed to enter VOICE
	DefaultSilenceConfirmFrames = 5 // Consecutive unvoiced frames needed to enter SILENCE
)

// State is the stable output of the hysteresis state machine
type State int

const (
	StateSilence State = iota
	StateVoice
)

func (s State) String() string {
	if s == StateVoice {
		return "VOICE"
	}
	return "SILENCE"
}

// Hysteresis debounces instantaneous decisions: the stable state flips only
// after a run of confirming frames and otherwise holds.
type Hysteresis struct {
	voiceConfirm   int
	silenceConfirm int

	state        State
	voiceCount   int
	silenceCount int
}

// NewHysteresis creates a state machine in SILENCE with both counters at zero
func NewHysteresis(voiceConfirm, silenceConfirm int) *Hysteresis {
	if voiceConfirm < 1 {
		voiceConfirm = DefaultVoiceConfirmFrames
	}
	if silenceConfirm < 1 {
		silenceConfirm = DefaultSilenceConfirmFrames
	}
	return &Hysteresis{
		voiceConfirm:   voiceConfirm,
		silenceConfirm: silenceConfirm,
		state:          StateSilence,
	}
}

// Update feeds one instantaneous decision and returns the stable decision
func (h *Hysteresis) Update(instant bool) bool {
	if instant {
		h.voiceCount++
		h.silenceCount = 0

		if h.voiceCount >= h.voiceConfirm {
			h.state = StateVoice
		}
	} else {
		h.silenceCount++
		h.voiceCount = 0

		if h.silenceCount >= h.silenceConfirm {
			h.state = StateSilence
		}
	}

	return h.state == StateVoice
}

// State returns the current stable state
func (h *Hysteresis) State() State {
	return h.state
}

// Counts returns the consecutive voice and silence run lengths
func (h *Hysteresis) Counts() (voice, silence int) {
	return h.voiceCount, h.silenceCount
}

// Reset returns to SILENCE and clears both counters
func (h *Hysteresis) Reset() {
	h.state = StateSilence
	h.voiceCount = 0
	h.silenceCount = 0
}
