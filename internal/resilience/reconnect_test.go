package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestReconnect_EventualSuccess(t *testing.T) {
	attempts := 0
	err := Reconnect(context.Background(), zerolog.Nop(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, &ReconnectConfig{MaxAttempts: 5, Backoff: time.Millisecond, Multiplier: 2, MaxBackoff: 4 * time.Millisecond})

	if err != nil {
		t.Errorf("Expected reconnect to succeed, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestReconnect_Exhausted(t *testing.T) {
	cause := errors.New("connection refused")
	attempts := 0
	err := Reconnect(context.Background(), zerolog.Nop(), func(ctx context.Context) error {
		attempts++
		return cause
	}, &ReconnectConfig{MaxAttempts: 3, Backoff: time.Millisecond, Multiplier: 2, MaxBackoff: 2 * time.Millisecond})

	if !errors.Is(err, cause) {
		t.Errorf("Expected error wrapping the last failure, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestReconnect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Reconnect(ctx, zerolog.Nop(), func(ctx context.Context) error {
		t.Error("Expected no attempt on a cancelled context")
		return nil
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
