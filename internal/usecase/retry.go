package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/azizikri/deal-claim/internal/domain"
	"github.com/azizikri/deal-claim/internal/metrics"
)

// RetryPolicy bounds how often a ledger transaction is re-run after a
// transient store failure. Business errors are never retried.
type RetryPolicy struct {
	MaxAttempts    int
	Backoff        time.Duration
	AttemptTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		Backoff:        25 * time.Millisecond,
		AttemptTimeout: 5 * time.Second,
	}
}

func (p RetryPolicy) run(ctx context.Context, op string, logger zerolog.Logger, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = p.attempt(ctx, fn)
		if !errors.Is(err, domain.ErrTransient) || attempt == attempts || ctx.Err() != nil {
			return err
		}

		metrics.IncTxRetry(op)
		logger.Debug().Err(err).Str("op", op).Int("attempt", attempt).Msg("retrying transaction")

		select {
		case <-time.After(p.Backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return err
		}
	}
	return err
}

func (p RetryPolicy) attempt(ctx context.Context, fn func(context.Context) error) error {
	if p.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		defer cancel()
	}

	err := fn(ctx)
	if err != nil && !errors.Is(err, domain.ErrTransient) && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	return err
}
