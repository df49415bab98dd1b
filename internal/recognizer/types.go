// Package recognizer turns finished speech segments into text.
//
// Segments arrive as conditioned mono linear16 audio at the detector's
// canonical rate. Results are delivered asynchronously on Transcriptions.
package recognizer

import (
	"context"
	"errors"
)

// ErrNotActive is returned when audio is sent to a client that is not started
var ErrNotActive = errors.New("recognizer client is not active")

// Result represents a transcription result
type Result struct {
	// Text is the transcribed text; empty when the segment held no speech
	Text string `json:"text"`

	// IsFinal indicates if this is a final transcription (true) or interim (false)
	IsFinal bool `json:"is_final"`

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64 `json:"confidence,omitempty"`

	// StartTime is the start time of the utterance in seconds
	StartTime float64 `json:"start,omitempty"`

	// Duration is the duration of the utterance in seconds
	Duration float64 `json:"duration,omitempty"`
}

// Client is the interface for speech recognizer backends
type Client interface {
	// Start begins a new recognition session
	Start(ctx context.Context) error

	// SendAudio sends one speech segment as linear16 bytes
	SendAudio(audio []byte) error

	// Transcriptions returns the channel results are delivered on.
	// It is closed by Close.
	Transcriptions() <-chan Result

	// Stop ends the session, flushing any pending audio
	Stop() error

	// Close stops the session and releases resources
	Close() error

	// Backend names the implementation, e.g. "stub" or "deepgram"
	Backend() string
}
