package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/azizikri/deal-claim/internal/domain"
)

func TestRetryPolicy_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := RetryPolicy{MaxAttempts: 5}.run(context.Background(), "test", zerolog.Nop(), func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return nil
		}
		return domain.ErrTransient
	})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetryPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := RetryPolicy{}.run(context.Background(), "test", zerolog.Nop(), func(ctx context.Context) error {
		calls++
		return domain.ErrTransient
	})
	if !errors.Is(err, domain.ErrTransient) || calls != 1 {
		t.Fatalf("expected one transient attempt, got %d calls / %v", calls, err)
	}
}

func TestRetryPolicy_AttemptTimeoutIsTransient(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, AttemptTimeout: 5 * time.Millisecond}
	calls := 0
	err := p.run(context.Background(), "test", zerolog.Nop(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return fmt.Errorf("query: %w", ctx.Err())
	})
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if calls != 2 {
		t.Errorf("timeouts should be retried, got %d calls", calls)
	}
}

func TestRetryPolicy_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryPolicy{MaxAttempts: 5, Backoff: time.Hour}.run(ctx, "test", zerolog.Nop(), func(ctx context.Context) error {
		calls++
		cancel()
		return domain.ErrTransient
	})
	if !errors.Is(err, domain.ErrTransient) || calls != 1 {
		t.Fatalf("expected to stop after cancel, got %d calls / %v", calls, err)
	}
}

func TestNewRedemptionCode(t *testing.T) {
	a, b := newRedemptionCode(), newRedemptionCode()
	if len(a) != len("RDM-")+26 || a[:4] != "RDM-" {
		t.Errorf("unexpected code format %q", a)
	}
	if a == b {
		t.Error("codes must be unique")
	}
}
