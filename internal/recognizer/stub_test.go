package recognizer

import (
	"context"
	"math"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/lexiqai/vad-gateway/internal/audio"
)

func tone(n int, amplitude float64) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*440*float64(i)/16000)
	}
	return samples
}

func TestStubTranscript(t *testing.T) {
	is := is.New(t)

	is.Equal(StubTranscript(tone(999, 0.5)), "")   // too short
	is.Equal(StubTranscript(tone(4000, 0.01)), "") // too quiet
	is.True(StubTranscript(tone(4000, 0.5)) != "") // speech-like

	// Deterministic for the same input
	is.Equal(StubTranscript(tone(4000, 0.5)), StubTranscript(tone(4000, 0.5)))
}

func TestStubClient_SendAudio(t *testing.T) {
	is := is.New(t)

	client := NewStubClient(16000, zerolog.Nop())
	is.NoErr(client.Start(context.Background()))

	segment := audio.FloatToPCM16(tone(8000, 0.5))
	is.NoErr(client.SendAudio(segment))
	is.NoErr(client.SendAudio(audio.FloatToPCM16(tone(500, 0.5))))

	first := <-client.Transcriptions()
	is.True(first.IsFinal)
	is.True(first.Text != "")
	is.Equal(first.Duration, 0.5)
	is.Equal(first.StartTime, 0.0)

	second := <-client.Transcriptions()
	is.Equal(second.Text, "") // short segment yields no text
	is.Equal(second.StartTime, 0.5)

	is.Equal(client.Backend(), "stub")
}

func TestStubClient_NotStarted(t *testing.T) {
	is := is.New(t)

	client := NewStubClient(16000, zerolog.Nop())
	err := client.SendAudio(audio.FloatToPCM16(tone(2000, 0.5)))
	is.Equal(err, ErrNotActive)

	is.True(client.SendAudio([]byte{1}) != nil) // odd-length PCM
}

func TestStubClient_Close(t *testing.T) {
	is := is.New(t)

	client := NewStubClient(16000, zerolog.Nop())
	is.NoErr(client.Start(context.Background()))
	is.NoErr(client.Close())
	is.NoErr(client.Close()) // idempotent

	_, open := <-client.Transcriptions()
	is.True(!open)
	is.Equal(client.Start(context.Background()), ErrNotActive)
}
