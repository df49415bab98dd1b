package recognizer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/vad-gateway/internal/config"
	"github.com/lexiqai/vad-gateway/internal/observability"
	"github.com/lexiqai/vad-gateway/internal/resilience"
)

// DeepgramConfig holds the settings for a Deepgram live session
type DeepgramConfig struct {
	APIKey     string
	Model      string // nova-2, enhanced, base
	Language   string
	SampleRate int // Rate of the linear16 segments sent

	Retry     *resilience.RetryConfig     // Dial attempts within one connect
	Reconnect *resilience.ReconnectConfig // Background reconnects after a dropped session
}

// liveConn is the part of the Deepgram websocket client the recognizer uses
type liveConn interface {
	Write(p []byte) (int, error)
	Finish()
}

// dialFunc opens a live session delivering callbacks to cb
type dialFunc func(ctx context.Context, cfg DeepgramConfig, cb msginterfaces.LiveMessageCallback) (liveConn, error)

// messageCallbackHandler implements the LiveMessageCallback interface
// It embeds the default handler and overrides only the methods we need to customize
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	handler      func(*msginterfaces.MessageResponse)
	errorHandler func(*msginterfaces.ErrorResponse) error
}

// Message forwards transcription results
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.handler(message)
	return nil
}

// Error overrides the default handler to use our custom error handling
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if m.errorHandler != nil {
		return m.errorHandler(errorResponse)
	}
	return m.DefaultCallbackHandler.Error(errorResponse)
}

// dialDeepgram opens a Deepgram live websocket for mono linear16 audio
func dialDeepgram(ctx context.Context, cfg DeepgramConfig, cb msginterfaces.LiveMessageCallback) (liveConn, error) {
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          cfg.Model,
		Language:       cfg.Language,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: false, // segments arrive complete
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     cfg.SampleRate,
	}

	client, err := listenClient.NewWSUsingCallback(ctx, cfg.APIKey, nil, tOptions, cb)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		return nil, resilience.NewRetryableError(fmt.Errorf("failed to connect to Deepgram"))
	}
	return client, nil
}

// DeepgramClient implements Client using Deepgram's streaming API
type DeepgramClient struct {
	cfg     DeepgramConfig
	logger  zerolog.Logger
	breaker *resilience.CircuitBreaker
	dial    dialFunc

	mu      sync.RWMutex
	conn    liveConn
	active  bool
	closed  bool
	results chan Result
	ctx     context.Context
	cancel  context.CancelFunc

	reconnecting atomic.Bool
}

// NewDeepgramClient creates a Deepgram client. The breaker may be shared
// across sessions so a failing backend is shed for every stream at once.
func NewDeepgramClient(cfg DeepgramConfig, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *DeepgramClient {
	if cfg.Retry == nil {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.Reconnect == nil {
		cfg.Reconnect = resilience.DefaultReconnectConfig()
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(config.BackendDeepgram, 5, resilience.DefaultReconnectConfig().MaxBackoff)
	}
	return &DeepgramClient{
		cfg:     cfg,
		logger:  logger.With().Str("component", "deepgram").Logger(),
		breaker: breaker,
		dial:    dialDeepgram,
		results: make(chan Result, 100),
	}
}

// Start opens the live session
func (d *DeepgramClient) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrNotActive
	}
	if d.active {
		return fmt.Errorf("deepgram client is already active")
	}
	if d.ctx == nil {
		d.ctx, d.cancel = context.WithCancel(ctx)
	}

	return d.connectLocked()
}

// connectLocked dials through the circuit breaker, retrying transient
// failures; the breaker sees one outcome per connect. d.mu must be held.
func (d *DeepgramClient) connectLocked() error {
	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler:                d.handleMessage,
		errorHandler:           d.handleError,
	}

	var conn liveConn
	err := d.breaker.Call(func() error {
		return resilience.Retry(d.ctx, func(ctx context.Context) error {
			var dialErr error
			conn, dialErr = d.dial(ctx, d.cfg, callback)
			if dialErr != nil {
				d.logger.Warn().Err(dialErr).Msg("Deepgram dial failed")
			}
			return dialErr
		}, d.cfg.Retry, resilience.IsRetryableNetworkError)
	})
	if err != nil {
		if err != resilience.ErrCircuitOpen {
			observability.IncrementCircuitBreakerFailures(config.BackendDeepgram)
		}
		return err
	}

	d.conn = conn
	d.active = true

	d.logger.Info().
		Str("model", d.cfg.Model).
		Str("language", d.cfg.Language).
		Int("sample_rate", d.cfg.SampleRate).
		Msg("Deepgram streaming client started")
	return nil
}

// handleError records a backend failure and reconnects in the background
func (d *DeepgramClient) handleError(errorResponse *msginterfaces.ErrorResponse) error {
	d.logger.Error().Interface("error", errorResponse).Msg("Deepgram error")

	d.breaker.RecordResult(false)
	observability.IncrementCircuitBreakerFailures(config.BackendDeepgram)

	d.mu.Lock()
	d.active = false
	d.mu.Unlock()

	go d.attemptReconnect()
	return nil
}

// handleMessage converts Deepgram results into Results
func (d *DeepgramClient) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}

	switch msg.Type {
	case "Results", "Message":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}

		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}

		startTime := msg.Start
		duration := msg.Duration
		if len(alt.Words) > 0 && duration == 0 {
			startTime = alt.Words[0].Start
			duration = alt.Words[len(alt.Words)-1].End - startTime
		}

		d.deliver(Result{
			Text:       alt.Transcript,
			IsFinal:    msg.IsFinal,
			Confidence: alt.Confidence,
			StartTime:  startTime,
			Duration:   duration,
		})

	default:
		d.logger.Debug().Str("type", msg.Type).Msg("Deepgram: ignoring message")
	}
}

// deliver queues a result without blocking the SDK's read loop
func (d *DeepgramClient) deliver(result Result) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}

	select {
	case d.results <- result:
		d.logger.Debug().Bool("final", result.IsFinal).Str("text", result.Text).Msg("Deepgram transcription")
	default:
		d.logger.Warn().Msg("Transcript channel full, dropping transcription")
	}
}

// SendAudio sends one linear16 segment to Deepgram
func (d *DeepgramClient) SendAudio(data []byte) error {
	err := d.breaker.Call(func() error {
		d.mu.RLock()
		active := d.active
		conn := d.conn
		d.mu.RUnlock()

		if !active || conn == nil {
			return ErrNotActive
		}

		if _, err := conn.Write(data); err != nil {
			d.mu.Lock()
			d.active = false
			d.mu.Unlock()

			go d.attemptReconnect()
			return fmt.Errorf("failed to send audio to Deepgram: %w", err)
		}
		return nil
	})

	if err != nil && err != resilience.ErrCircuitOpen {
		observability.IncrementCircuitBreakerFailures(config.BackendDeepgram)
	}
	return err
}

// attemptReconnect re-dials with backoff; concurrent calls collapse into one
func (d *DeepgramClient) attemptReconnect() {
	if !d.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer d.reconnecting.Store(false)

	d.mu.RLock()
	ctx := d.ctx
	skip := d.active || d.closed || ctx == nil
	d.mu.RUnlock()
	if skip {
		return
	}

	err := resilience.Reconnect(ctx, d.logger, func(ctx context.Context) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.closed {
			return nil
		}
		if d.active {
			return nil
		}
		return d.connectLocked()
	}, d.cfg.Reconnect)

	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to reconnect Deepgram client")
	}
}

// Transcriptions returns the result channel
func (d *DeepgramClient) Transcriptions() <-chan Result {
	return d.results
}

// Stop asks Deepgram to flush and ends the session
func (d *DeepgramClient) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	d.conn.Finish()
	d.conn = nil
	d.active = false
	d.logger.Info().Msg("Deepgram streaming client stopped")
	return nil
}

// Close stops the session, cancels reconnection and closes the result channel
func (d *DeepgramClient) Close() error {
	if err := d.Stop(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
	if !d.closed {
		d.closed = true
		close(d.results)
	}
	return nil
}

// IsActive returns whether the client is currently connected
func (d *DeepgramClient) IsActive() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active
}

// Backend returns "deepgram"
func (d *DeepgramClient) Backend() string {
	return config.BackendDeepgram
}
