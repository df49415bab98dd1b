package recognizer

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/vad-gateway/internal/audio"
	"github.com/lexiqai/vad-gateway/internal/config"
	"github.com/lexiqai/vad-gateway/internal/vad"
)

const (
	// MinStubSamples is the shortest segment the stub will transcribe
	MinStubSamples = 1000

	// MinStubEnergy is the mean squared amplitude below which a segment counts as silence
	MinStubEnergy = 0.001
)

// stubPhrases are returned by the stub recognizer, picked by segment energy
var stubPhrases = []string{
	"hello",
	"what is the weather like today",
	"tell me a joke",
	"what time is it",
	"thanks for your help",
	"play some music",
	"set an alarm",
}

// StubTranscript returns the placeholder transcript for a segment:
// empty for short or silent segments, otherwise a phrase chosen by energy.
func StubTranscript(samples []float64) string {
	if len(samples) < MinStubSamples {
		return ""
	}

	energy := vad.CalculateEnergy(samples)
	if energy < MinStubEnergy {
		return ""
	}

	return stubPhrases[int(energy*1000)%len(stubPhrases)]
}

// StubClient is an offline recognizer producing deterministic placeholder text.
// Every SendAudio call is treated as one complete segment.
type StubClient struct {
	sampleRate int
	logger     zerolog.Logger

	mu      sync.Mutex
	active  bool
	closed  bool
	results chan Result
	elapsed float64 // seconds of audio received, used as the next start time
}

// NewStubClient creates a stub recognizer for audio at sampleRate
func NewStubClient(sampleRate int, logger zerolog.Logger) *StubClient {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultTargetSampleRate
	}
	return &StubClient{
		sampleRate: sampleRate,
		logger:     logger,
		results:    make(chan Result, 100),
	}
}

// Start begins a session
func (s *StubClient) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotActive
	}
	s.active = true
	return nil
}

// SendAudio transcribes one linear16 segment and queues the final result
func (s *StubClient) SendAudio(data []byte) error {
	samples, err := audio.PCM16ToFloat(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return ErrNotActive
	}

	duration := float64(len(samples)) / float64(s.sampleRate)
	result := Result{
		Text:       StubTranscript(samples),
		IsFinal:    true,
		Confidence: 1.0,
		StartTime:  s.elapsed,
		Duration:   duration,
	}
	s.elapsed += duration

	select {
	case s.results <- result:
		s.logger.Debug().Str("text", result.Text).Float64("duration", duration).Msg("Stub transcription")
	default:
		s.logger.Warn().Msg("Transcript channel full, dropping transcription")
	}
	return nil
}

// Transcriptions returns the result channel
func (s *StubClient) Transcriptions() <-chan Result {
	return s.results
}

// Stop ends the session
func (s *StubClient) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	return nil
}

// Close ends the session and closes the result channel
func (s *StubClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
	if !s.closed {
		s.closed = true
		close(s.results)
	}
	return nil
}

// Backend returns "stub"
func (s *StubClient) Backend() string {
	return config.BackendStub
}
