package nats

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/infrastructure/resilience"
)

func TestNewWithOptionsCarriesResilienceExecutor(t *testing.T) {
	executor := resilience.NewExecutor(resilience.DefaultConfig(), slog.New(slog.DiscardHandler))

	// RetryOnFailedConnect makes Connect return without a reachable server.
	q, err := NewWithOptions("nats://127.0.0.1:1", "compliance.checks", Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	defer q.Close()

	if q.executor == nil {
		t.Fatalf("publishes must run through the resilience executor")
	}
}

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		name          string
		err           error
		retryable     bool
		recordFailure bool
	}{
		{"cancelled context", context.Canceled, false, false},
		{"no servers", nats.ErrNoServers, true, true},
		{"timeout", nats.ErrTimeout, true, true},
		{"connection closed", nats.ErrConnectionClosed, true, true},
		{"unknown", errors.New("boom"), false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := classifyNATSError(tc.err)
			if class.Retryable != tc.retryable || class.RecordFailure != tc.recordFailure {
				t.Fatalf("classifyNATSError(%v) = %+v", tc.err, class)
			}
		})
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded(nats.ErrTimeout); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("transient broker error must surface as temporary, got %v", err)
	}
	plain := errors.New("marshal check record")
	if err := wrapTemporaryIfNeeded(plain); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("non-transient error must not be wrapped, got %v", err)
	}
	if err := wrapTemporaryIfNeeded(nil); err != nil {
		t.Fatalf("nil must stay nil, got %v", err)
	}
}
