package recognizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/lexiqai/vad-gateway/internal/resilience"
)

type fakeConn struct {
	mu       sync.Mutex
	written  [][]byte
	writeErr error
	finished bool
}

func (f *fakeConn) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written = append(f.written, p)
	return len(p), nil
}

func (f *fakeConn) Finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
}

func newTestDeepgram(conn *fakeConn, dialErr error) (*DeepgramClient, *int) {
	dials := 0
	client := NewDeepgramClient(DeepgramConfig{
		APIKey:     "test-key",
		Model:      "nova-2",
		Language:   "en",
		SampleRate: 16000,
		Retry:      &resilience.RetryConfig{MaxAttempts: 1},
		Reconnect:  &resilience.ReconnectConfig{MaxAttempts: 1, Backoff: time.Millisecond, Multiplier: 1, MaxBackoff: time.Millisecond},
	}, resilience.NewCircuitBreaker("deepgram", 2, time.Hour), zerolog.Nop())

	client.dial = func(ctx context.Context, cfg DeepgramConfig, cb msginterfaces.LiveMessageCallback) (liveConn, error) {
		dials++
		if dials > 1 || dialErr != nil {
			if dialErr == nil {
				dialErr = errors.New("connection refused")
			}
			return nil, dialErr
		}
		return conn, nil
	}
	return client, &dials
}

func TestDeepgramClient_StartAndSend(t *testing.T) {
	is := is.New(t)

	conn := &fakeConn{}
	client, _ := newTestDeepgram(conn, nil)

	is.NoErr(client.Start(context.Background()))
	is.True(client.IsActive())
	is.True(client.Start(context.Background()) != nil) // already active

	is.NoErr(client.SendAudio([]byte{1, 2, 3, 4}))
	is.Equal(len(conn.written), 1)

	is.NoErr(client.Stop())
	is.True(conn.finished)
	is.True(!client.IsActive())
	is.Equal(client.Backend(), "deepgram")
}

func TestDeepgramClient_SendNotActive(t *testing.T) {
	is := is.New(t)

	client, _ := newTestDeepgram(&fakeConn{}, nil)
	is.True(errors.Is(client.SendAudio([]byte{0, 0}), ErrNotActive))
}

func TestDeepgramClient_DialFailureOpensCircuit(t *testing.T) {
	is := is.New(t)

	client, dials := newTestDeepgram(&fakeConn{}, errors.New("connection refused"))

	is.True(client.Start(context.Background()) != nil)
	is.True(client.Start(context.Background()) != nil)

	// Two failures open the shared breaker; the third start is shed without dialing
	err := client.Start(context.Background())
	is.True(errors.Is(err, resilience.ErrCircuitOpen))
	is.Equal(*dials, 2)
}

func newRetryingDeepgram(conn *fakeConn, dialErrs ...error) (*DeepgramClient, *int) {
	dials := 0
	client := NewDeepgramClient(DeepgramConfig{
		APIKey:     "test-key",
		SampleRate: 16000,
		Retry: &resilience.RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        time.Millisecond,
			BackoffMultiplier: 1,
		},
	}, resilience.NewCircuitBreaker("deepgram", 1, time.Hour), zerolog.Nop())

	client.dial = func(ctx context.Context, cfg DeepgramConfig, cb msginterfaces.LiveMessageCallback) (liveConn, error) {
		dials++
		if dials <= len(dialErrs) {
			return nil, dialErrs[dials-1]
		}
		return conn, nil
	}
	return client, &dials
}

func TestDeepgramClient_RetriesTransientDialFailure(t *testing.T) {
	is := is.New(t)

	client, dials := newRetryingDeepgram(&fakeConn{},
		resilience.NewRetryableError(errors.New("failed to connect to Deepgram")))

	is.NoErr(client.Start(context.Background()))
	is.True(client.IsActive())
	is.Equal(*dials, 2)

	// The retried failure never reaches the breaker
	is.Equal(client.breaker.GetState(), resilience.StateClosed)
	is.Equal(client.breaker.GetStats().Failures, int64(0))
}

func TestDeepgramClient_PermanentDialFailureNotRetried(t *testing.T) {
	is := is.New(t)

	client, dials := newRetryingDeepgram(&fakeConn{}, errors.New("invalid credentials"))

	is.True(client.Start(context.Background()) != nil)
	is.Equal(*dials, 1)
	is.Equal(client.breaker.GetState(), resilience.StateOpen)
}

func TestDeepgramClient_RetriesExhausted(t *testing.T) {
	is := is.New(t)

	refused := errors.New("dial tcp: connection refused")
	client, dials := newRetryingDeepgram(&fakeConn{}, refused, refused, refused)

	err := client.Start(context.Background())
	is.True(errors.Is(err, refused))
	is.Equal(*dials, 3)
	is.True(!client.IsActive())
}

func TestDeepgramClient_HandleMessage(t *testing.T) {
	is := is.New(t)

	client, _ := newTestDeepgram(&fakeConn{}, nil)

	client.handleMessage(nil)
	client.handleMessage(&msginterfaces.MessageResponse{Type: "Metadata"})
	client.handleMessage(&msginterfaces.MessageResponse{
		Type:    "Results",
		IsFinal: true,
		Channel: msginterfaces.Channel{
			Alternatives: []msginterfaces.Alternative{{Transcript: ""}},
		},
	})
	client.handleMessage(&msginterfaces.MessageResponse{
		Type:     "Results",
		IsFinal:  true,
		Start:    1.5,
		Duration: 0.75,
		Channel: msginterfaces.Channel{
			Alternatives: []msginterfaces.Alternative{{Transcript: "hello there", Confidence: 0.92}},
		},
	})

	select {
	case result := <-client.Transcriptions():
		is.Equal(result.Text, "hello there")
		is.True(result.IsFinal)
		is.Equal(result.Confidence, 0.92)
		is.Equal(result.StartTime, 1.5)
		is.Equal(result.Duration, 0.75)
	default:
		t.Fatal("Expected a transcription to be delivered")
	}

	select {
	case extra := <-client.Transcriptions():
		t.Fatalf("Expected empty and non-result messages to be dropped, got %+v", extra)
	default:
	}
}

func TestDeepgramClient_Close(t *testing.T) {
	is := is.New(t)

	conn := &fakeConn{}
	client, _ := newTestDeepgram(conn, nil)
	is.NoErr(client.Start(context.Background()))
	is.NoErr(client.Close())
	is.NoErr(client.Close())

	_, open := <-client.Transcriptions()
	is.True(!open)
	is.True(conn.finished)

	// Late results after close are dropped rather than panicking
	client.deliver(Result{Text: "late"})
}
