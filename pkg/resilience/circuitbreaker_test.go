package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jurisgraph/jurisgraph/pkg/fn"
)

func failing(context.Context) error { return errors.New("boom") }
func succeeding(context.Context) error { return nil }

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Call(ctx, failing); err == nil {
			t.Fatal("expected failure")
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", b.State())
	}
	if err := b.Call(ctx, succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker must reject, got %v", err)
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()

	now := time.Now()
	b.now = func() time.Time { return now }

	_ = b.Call(ctx, failing)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	now = now.Add(2 * time.Minute)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after timeout, got %s", b.State())
	}

	if err := b.Call(ctx, succeeding); err != nil {
		t.Fatalf("probe call: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("successful probe must close, got %s", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()

	now := time.Now()
	b.now = func() time.Time { return now }

	_ = b.Call(ctx, failing)
	now = now.Add(2 * time.Minute)
	_ = b.Call(ctx, failing)

	if b.State() != StateOpen {
		t.Fatalf("failed probe must reopen, got %s", b.State())
	}
}

func TestCallResult(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: time.Minute})
	ctx := context.Background()

	r := CallResult(b, ctx, func(context.Context) fn.Result[int] { return fn.Ok(7) })
	v, err := r.Unwrap()
	if err != nil || v != 7 {
		t.Fatalf("CallResult = %v, %v", v, err)
	}

	for i := 0; i < 2; i++ {
		CallResult(b, ctx, func(context.Context) fn.Result[int] {
			return fn.Errf[int]("embed failed")
		})
	}
	r = CallResult(b, ctx, func(context.Context) fn.Result[int] { return fn.Ok(1) })
	if _, err := r.Unwrap(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}
