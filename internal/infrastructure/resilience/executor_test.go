package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2.0,
		BreakerEnabled:      false,
	}
}

func retryAll(error) ErrorClassification {
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	err := exec.Execute(context.Background(), "ocr.analyze", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, retryAll)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestExecuteStopsAtAttemptBudget(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	failure := errors.New("still down")
	err := exec.Execute(context.Background(), "ocr.analyze", func(context.Context) error {
		calls++
		return failure
	}, retryAll)
	if !errors.Is(err, failure) {
		t.Fatalf("Execute() error = %v, want %v", err, failure)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want attempt budget 3", calls)
	}
}

func TestExecuteDoesNotRetryNonRetryable(t *testing.T) {
	exec := NewExecutor(fastConfig())

	calls := 0
	err := exec.Execute(context.Background(), "llm.classify", func(context.Context) error {
		calls++
		return errors.New("bad request")
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestExecuteHonorsCancelledContext(t *testing.T) {
	exec := NewExecutor(fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := exec.Execute(ctx, "llm.classify", func(context.Context) error {
		calls++
		return nil
	}, retryAll)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0 after cancellation", calls)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	cfg.RetryMaxAttempts = 1
	exec := NewExecutor(cfg)

	failure := errors.New("provider down")
	for i := 0; i < 3; i++ {
		_ = exec.Execute(context.Background(), "nats.publish", func(context.Context) error {
			return failure
		}, retryAll)
	}

	err := exec.Execute(context.Background(), "nats.publish", func(context.Context) error {
		return nil
	}, retryAll)
	if !IsCircuitOpen(err) {
		t.Fatalf("Execute() error = %v, want open circuit", err)
	}
}

func TestBreakersAreIsolatedByOperation(t *testing.T) {
	cfg := fastConfig()
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	cfg.RetryMaxAttempts = 1
	exec := NewExecutor(cfg)

	failure := errors.New("provider down")
	for i := 0; i < 3; i++ {
		_ = exec.Execute(context.Background(), "ocr.analyze", func(context.Context) error {
			return failure
		}, retryAll)
	}

	err := exec.Execute(context.Background(), "llm.classify", func(context.Context) error {
		return nil
	}, retryAll)
	if err != nil {
		t.Fatalf("llm.classify should be unaffected by ocr.analyze breaker, got %v", err)
	}
}

func TestClassifierControlsFailureRecording(t *testing.T) {
	cfg := fastConfig()
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	cfg.RetryMaxAttempts = 1
	exec := NewExecutor(cfg)

	// Caller errors must not trip the breaker no matter how many occur.
	callerError := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	for i := 0; i < 10; i++ {
		_ = exec.Execute(context.Background(), "llm.enrich", func(context.Context) error {
			return errors.New("invalid input")
		}, callerError)
	}

	err := exec.Execute(context.Background(), "llm.enrich", func(context.Context) error {
		return nil
	}, retryAll)
	if err != nil {
		t.Fatalf("breaker tripped on non-recorded failures: %v", err)
	}
}
