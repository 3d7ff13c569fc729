package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azizikri/deal-claim/internal/domain"
)

type Store interface {
	ExecTx(ctx context.Context, fn func(Querier) error) error
	GetDeal(ctx context.Context, id string) (domain.Deal, error)
	GetClaim(ctx context.Context, id string) (domain.Claim, error)
	ListClaimsByUser(ctx context.Context, userID string) ([]domain.Claim, error)
	ListDeals(ctx context.Context, f domain.DealFilter) ([]domain.Deal, int, error)
	ClaimStatusesForUser(ctx context.Context, userID string, dealIDs []string) (map[string]domain.ClaimStatus, error)
	UpsertDeal(ctx context.Context, d domain.Deal) (domain.Deal, error)
	SnapshotReader
}

// SnapshotReader resolves the deal fields shown next to a claim.
type SnapshotReader interface {
	DealSnapshots(ctx context.Context, ids []string) (map[string]domain.DealSnapshot, error)
}

// Querier is the view of the store available inside a transaction.
type Querier interface {
	GetDeal(ctx context.Context, id string) (domain.Deal, error)
	ClaimExists(ctx context.Context, userID, dealID string) (bool, error)
	InsertClaim(ctx context.Context, arg InsertClaimParams) (domain.Claim, error)
	IncrementClaimCount(ctx context.Context, dealID string) (int, error)
	GetClaim(ctx context.Context, id string) (domain.Claim, error)
	UpdateClaimStatus(ctx context.Context, arg UpdateClaimStatusParams) (domain.Claim, error)
}

type Option func(*store)

// WithLockTimeout bounds how long a transaction waits on a row lock before
// Postgres aborts it with lock_not_available.
func WithLockTimeout(d time.Duration) Option {
	return func(s *store) { s.lockTimeout = d }
}

type store struct {
	pool        *pgxpool.Pool
	queries     *Queries
	lockTimeout time.Duration
}

func New(pool *pgxpool.Pool, opts ...Option) Store {
	s := &store{
		pool:    pool,
		queries: NewQueries(pool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExecTx runs fn in a read-committed transaction. Store failures that are safe
// to retry come back wrapped in domain.ErrTransient; business errors returned
// by fn pass through untouched.
func (s *store) ExecTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return classify(fmt.Errorf("set lock timeout: %w", err))
		}
	}

	q := s.queries.WithTx(tx)
	if err := fn(q); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return classify(fmt.Errorf("tx err: %w, rollback err: %v", err, rbErr))
		}
		return classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *store) GetDeal(ctx context.Context, id string) (domain.Deal, error) {
	return s.queries.GetDeal(ctx, id)
}

func (s *store) GetClaim(ctx context.Context, id string) (domain.Claim, error) {
	return s.queries.GetClaim(ctx, id)
}

func (s *store) ListClaimsByUser(ctx context.Context, userID string) ([]domain.Claim, error) {
	return s.queries.ListClaimsByUser(ctx, userID)
}

func (s *store) ListDeals(ctx context.Context, f domain.DealFilter) ([]domain.Deal, int, error) {
	return s.queries.ListDeals(ctx, f)
}

func (s *store) ClaimStatusesForUser(ctx context.Context, userID string, dealIDs []string) (map[string]domain.ClaimStatus, error) {
	return s.queries.ClaimStatusesForUser(ctx, userID, dealIDs)
}

func (s *store) UpsertDeal(ctx context.Context, d domain.Deal) (domain.Deal, error) {
	return s.queries.UpsertDeal(ctx, d)
}

func (s *store) DealSnapshots(ctx context.Context, ids []string) (map[string]domain.DealSnapshot, error) {
	return s.queries.DealSnapshots(ctx, ids)
}
