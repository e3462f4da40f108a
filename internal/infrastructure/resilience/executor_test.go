package resilience

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func newTestExecutor(cfg Config) *Executor {
	return NewExecutor(cfg, slog.New(slog.DiscardHandler))
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	cfg.BreakerEnabled = false
	return cfg
}

func TestExecuteRetriesRetryableErrors(t *testing.T) {
	executor := newTestExecutor(fastConfig())

	attempts := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteStopsOnNonRetryableError(t *testing.T) {
	executor := newTestExecutor(fastConfig())

	attempts := 0
	wantErr := errors.New("bad request")
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return wantErr
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt, got %d", attempts)
	}
}

func TestExecuteHonorsMaxAttempts(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 2
	executor := newTestExecutor(cfg)

	attempts := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errors.New("still failing")
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestBreakerOpensAfterFailureRatio(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	executor := newTestExecutor(cfg)

	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	var lastErr error
	for i := 0; i < 10; i++ {
		lastErr = executor.Execute(context.Background(), "flaky", func(context.Context) error {
			return errors.New("down")
		}, classifier)
	}
	if !IsCircuitOpen(lastErr) {
		t.Fatalf("expected open circuit, got %v", lastErr)
	}
}

func TestBreakerIgnoresNonRecordedFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	executor := newTestExecutor(cfg)

	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var lastErr error
	for i := 0; i < 10; i++ {
		lastErr = executor.Execute(context.Background(), "caller-error", func(context.Context) error {
			return errors.New("bad input")
		}, classifier)
	}
	if IsCircuitOpen(lastErr) {
		t.Fatalf("caller errors must not trip the breaker")
	}
}

func TestExecuteStopsWhenContextCancelled(t *testing.T) {
	executor := newTestExecutor(fastConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := executor.Execute(ctx, "op", func(context.Context) error {
		t.Fatal("callback must not run on a cancelled context")
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
