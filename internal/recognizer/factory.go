package recognizer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lexiqai/vad-gateway/internal/config"
	"github.com/lexiqai/vad-gateway/internal/observability"
	"github.com/lexiqai/vad-gateway/internal/resilience"
)

// Factory builds per-stream recognizer clients for the configured backend.
// Deepgram clients share one circuit breaker.
type Factory struct {
	cfg     *config.Config
	breaker *resilience.CircuitBreaker
}

// NewFactory creates a factory for cfg.RecognizerBackend
func NewFactory(cfg *config.Config) *Factory {
	breaker := resilience.NewCircuitBreaker(
		cfg.RecognizerBackend,
		cfg.CircuitBreakerMaxFailures,
		cfg.CircuitBreakerResetDuration(),
	)
	breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(to))
	})
	observability.UpdateCircuitBreakerState(breaker.Name(), int(resilience.StateClosed))

	return &Factory{cfg: cfg, breaker: breaker}
}

// New creates a recognizer client for one stream
func (f *Factory) New(logger zerolog.Logger) (Client, error) {
	switch f.cfg.RecognizerBackend {
	case config.BackendStub:
		return NewStubClient(f.cfg.VADSampleRate, logger), nil

	case config.BackendDeepgram:
		return NewDeepgramClient(DeepgramConfig{
			APIKey:     f.cfg.DeepgramAPIKey,
			Model:      f.cfg.DeepgramModel,
			Language:   f.cfg.DeepgramLanguage,
			SampleRate: f.cfg.VADSampleRate,
			Retry: &resilience.RetryConfig{
				MaxAttempts:       f.cfg.RetryMaxAttempts,
				InitialBackoff:    f.cfg.RetryInitialBackoffDuration(),
				MaxBackoff:        resilience.DefaultRetryConfig().MaxBackoff,
				BackoffMultiplier: 2.0,
				Jitter:            true,
			},
			Reconnect: &resilience.ReconnectConfig{
				MaxAttempts: f.cfg.ReconnectMaxAttempts,
				Backoff:     f.cfg.ReconnectBackoffDuration(),
				Multiplier:  2.0,
				MaxBackoff:  resilience.DefaultReconnectConfig().MaxBackoff,
			},
		}, f.breaker, logger), nil

	default:
		return nil, fmt.Errorf("unknown recognizer backend %q", f.cfg.RecognizerBackend)
	}
}

// Backend returns the configured backend name
func (f *Factory) Backend() string {
	return f.cfg.RecognizerBackend
}

// Check reports the backend unusable while its circuit is open.
// Suitable as a readiness check.
func (f *Factory) Check(ctx context.Context) (bool, error) {
	if state := f.breaker.GetState(); state == resilience.StateOpen {
		return false, fmt.Errorf("%s: %w", f.cfg.RecognizerBackend, resilience.ErrCircuitOpen)
	}
	return true, nil
}

// New creates a single recognizer client for cfg
func New(cfg *config.Config, logger zerolog.Logger) (Client, error) {
	return NewFactory(cfg).New(logger)
}
