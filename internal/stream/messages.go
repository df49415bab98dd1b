package stream

// Inbound event names
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
)

// Outbound event names
const (
	EventDecision    = "decision"
	EventSpeechStart = "speech_start"
	EventSpeechEnd   = "speech_end"
	EventTranscript  = "transcript"
)

// InboundMessage represents a message from an audio stream client
type InboundMessage struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Stop      *StopPayload  `json:"stop,omitempty"`
}

// StartPayload describes the audio format of the stream
type StartPayload struct {
	StreamSid        string                 `json:"streamSid"`
	SampleRate       int                    `json:"sampleRate"`
	Encoding         string                 `json:"encoding"` // pcm16 or mulaw
	CustomParameters map[string]interface{} `json:"customParameters,omitempty"`
}

// MediaPayload carries one chunk of audio
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"` // Base64 encoded audio
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload,omitempty"` // Alternative field name for chunk
}

// StopPayload represents the stop event payload
type StopPayload struct {
	StreamSid string `json:"streamSid"`
}

// OutboundMessage is sent to the client for every detector or recognizer event
type OutboundMessage struct {
	Event      string             `json:"event"`
	StreamSid  string             `json:"streamSid,omitempty"`
	Decision   *DecisionPayload   `json:"decision,omitempty"`
	Segment    *SegmentPayload    `json:"segment,omitempty"`
	Transcript *TranscriptPayload `json:"transcript,omitempty"`
}

// DecisionPayload reports a stable state change
type DecisionPayload struct {
	Frame            int64   `json:"frame"`
	State            string  `json:"state"` // VOICE or SILENCE
	Voice            bool    `json:"voice"`
	Probability      float64 `json:"probability"`
	AudioState       string  `json:"audio_state"` // SILENT, SPEAKING or NOISE
	Level            float64 `json:"level"`       // RMS of the frame
	Energy           float64 `json:"energy"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
	SpectralCentroid float64 `json:"spectral_centroid"`
}

// SegmentPayload describes a speech segment boundary
type SegmentPayload struct {
	Index    int     `json:"index"`
	Frame    int64   `json:"frame"`
	Samples  int     `json:"samples,omitempty"`
	Duration float64 `json:"duration,omitempty"` // seconds
	Forced   bool    `json:"forced,omitempty"`
}

// TranscriptPayload carries a recognizer result
type TranscriptPayload struct {
	Text       string  `json:"text"`
	IsFinal    bool    `json:"is_final"`
	Confidence float64 `json:"confidence,omitempty"`
	Start      float64 `json:"start,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Backend    string  `json:"backend"`
}
