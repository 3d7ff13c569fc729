package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/azizikri/deal-claim/internal/domain"
	"github.com/azizikri/deal-claim/internal/metrics"
	"github.com/azizikri/deal-claim/internal/policy"
	"github.com/azizikri/deal-claim/internal/repository"
)

const tracerName = "github.com/azizikri/deal-claim/internal/usecase"

type LedgerOption func(*ClaimLedger)

func WithRetryPolicy(p RetryPolicy) LedgerOption {
	return func(l *ClaimLedger) { l.retry = p }
}

func WithLogger(logger zerolog.Logger) LedgerOption {
	return func(l *ClaimLedger) { l.logger = logger }
}

func WithTracer(tracer trace.Tracer) LedgerOption {
	return func(l *ClaimLedger) { l.tracer = tracer }
}

// WithSnapshotReader replaces the store as the source of deal snapshots used
// to enrich claim listings, typically with a cache in front of it.
func WithSnapshotReader(r repository.SnapshotReader) LedgerOption {
	return func(l *ClaimLedger) { l.snapshots = r }
}

func WithClock(now func() time.Time) LedgerOption {
	return func(l *ClaimLedger) { l.now = now }
}

// ClaimLedger owns claim issuance and the claim status lifecycle.
type ClaimLedger struct {
	store     repository.Store
	snapshots repository.SnapshotReader
	retry     RetryPolicy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
	newCode   func() string
}

func NewClaimLedger(store repository.Store, opts ...LedgerOption) *ClaimLedger {
	l := &ClaimLedger{
		store:     store,
		snapshots: store,
		retry:     DefaultRetryPolicy(),
		logger:    zerolog.Nop(),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		newID:     uuid.NewString,
		newCode:   newRedemptionCode,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IssueClaim turns an available deal into a pending claim for the caller.
// The claim insert and the claim_count increment commit together or not at
// all; the unique (user, deal) index and the conditional increment keep
// concurrent callers from over-issuing.
func (l *ClaimLedger) IssueClaim(ctx context.Context, id domain.Identity, dealID string) (*domain.Claim, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.IssueClaim", trace.WithAttributes(
		attribute.String("deal.id", dealID),
		attribute.String("user.id", id.UserID),
	))
	defer span.End()

	if id.Anonymous() {
		return nil, l.reject(span, domain.ErrUnauthenticated)
	}
	if dealID == "" {
		return nil, l.reject(span, domain.ErrDealNotFound)
	}

	var claim domain.Claim
	err := l.retry.run(ctx, "issue_claim", l.logger, func(ctx context.Context) error {
		return l.store.ExecTx(ctx, func(q repository.Querier) error {
			c, err := l.issue(ctx, q, id, dealID)
			if err != nil {
				return err
			}
			claim = c
			return nil
		})
	})
	if err != nil {
		return nil, l.reject(span, err)
	}

	metrics.IncClaimIssued()
	span.SetAttributes(attribute.String("claim.id", claim.ID))
	l.logger.Info().
		Str("claim_id", claim.ID).
		Str("deal_id", dealID).
		Str("user_id", id.UserID).
		Msg("claim issued")
	return &claim, nil
}

func (l *ClaimLedger) issue(ctx context.Context, q repository.Querier, id domain.Identity, dealID string) (domain.Claim, error) {
	deal, err := q.GetDeal(ctx, dealID)
	if err != nil {
		if repository.IsNoRows(err) {
			return domain.Claim{}, domain.ErrDealNotFound
		}
		return domain.Claim{}, fmt.Errorf("get deal: %w", err)
	}
	if !deal.IsActive {
		return domain.Claim{}, domain.ErrDealNotFound
	}

	if err := policy.Decide(id.IsVerified, deal.AccessLevel, deal.IsActive).Err(); err != nil {
		return domain.Claim{}, err
	}

	exists, err := q.ClaimExists(ctx, id.UserID, dealID)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("check existing claim: %w", err)
	}
	if exists {
		return domain.Claim{}, domain.ErrAlreadyClaimed
	}

	if !deal.HasCapacity() {
		return domain.Claim{}, domain.ErrCapacityExhausted
	}

	claim, err := q.InsertClaim(ctx, repository.InsertClaimParams{
		ID:        l.newID(),
		UserID:    id.UserID,
		DealID:    dealID,
		ClaimedAt: l.now().UTC(),
		ExpiresAt: deal.Validity,
	})
	if err != nil {
		switch {
		case repository.IsNoRows(err), repository.IsUniqueViolation(err):
			return domain.Claim{}, domain.ErrAlreadyClaimed
		case repository.IsForeignKeyViolation(err):
			return domain.Claim{}, domain.ErrDealNotFound
		}
		return domain.Claim{}, fmt.Errorf("insert claim: %w", err)
	}

	if _, err := q.IncrementClaimCount(ctx, dealID); err != nil {
		if !repository.IsNoRows(err) {
			return domain.Claim{}, fmt.Errorf("increment claim count: %w", err)
		}
		// Lost the race for the last slot, or the deal was switched off
		// after we read it.
		current, gerr := q.GetDeal(ctx, dealID)
		if gerr == nil && !current.IsActive {
			return domain.Claim{}, domain.ErrDealNotFound
		}
		return domain.Claim{}, domain.ErrCapacityExhausted
	}

	return claim, nil
}

// AdvanceStatus moves a claim along pending→approved→redeemed or
// pending→rejected. Concurrent transitions on the same claim are detected
// through the version column and re-validated.
func (l *ClaimLedger) AdvanceStatus(ctx context.Context, actor domain.Identity, claimID string, target domain.ClaimStatus, notes string) (*domain.Claim, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.AdvanceStatus", trace.WithAttributes(
		attribute.String("claim.id", claimID),
		attribute.String("claim.target_status", string(target)),
	))
	defer span.End()

	switch {
	case actor.Anonymous():
		return nil, l.reject(span, domain.ErrUnauthenticated)
	case !actor.IsAdmin():
		return nil, l.reject(span, domain.ErrForbidden)
	}

	var updated domain.Claim
	err := l.retry.run(ctx, "advance_status", l.logger, func(ctx context.Context) error {
		return l.store.ExecTx(ctx, func(q repository.Querier) error {
			current, err := q.GetClaim(ctx, claimID)
			if err != nil {
				if repository.IsNoRows(err) {
					return domain.ErrNotFound
				}
				return fmt.Errorf("get claim: %w", err)
			}
			if !current.Status.CanTransitionTo(target) {
				return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, target)
			}

			var code string
			if target == domain.StatusRedeemed && current.RedemptionCode == "" {
				code = l.newCode()
			}

			c, err := q.UpdateClaimStatus(ctx, repository.UpdateClaimStatusParams{
				ID:             claimID,
				Version:        current.Version,
				Status:         target,
				RedemptionCode: code,
				Notes:          notes,
				UpdatedAt:      l.now().UTC(),
			})
			if err != nil {
				if repository.IsNoRows(err) || repository.IsUniqueViolation(err) {
					return fmt.Errorf("%w: claim %s changed concurrently", domain.ErrTransient, claimID)
				}
				return fmt.Errorf("update claim status: %w", err)
			}
			updated = c
			return nil
		})
	})
	if err != nil {
		return nil, l.reject(span, err)
	}

	metrics.IncTransition(string(target))
	l.logger.Info().
		Str("claim_id", claimID).
		Str("status", string(target)).
		Str("actor", actor.UserID).
		Msg("claim status advanced")
	return &updated, nil
}

// ListUserClaims returns the caller's claims, newest first, each with a
// snapshot of its deal resolved at read time.
func (l *ClaimLedger) ListUserClaims(ctx context.Context, id domain.Identity) ([]domain.ClaimView, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.ListUserClaims", trace.WithAttributes(
		attribute.String("user.id", id.UserID),
	))
	defer span.End()

	if id.Anonymous() {
		return nil, l.reject(span, domain.ErrUnauthenticated)
	}

	claims, err := l.store.ListClaimsByUser(ctx, id.UserID)
	if err != nil {
		return nil, l.reject(span, fmt.Errorf("list claims: %w", err))
	}

	ids := make([]string, 0, len(claims))
	seen := make(map[string]struct{}, len(claims))
	for _, c := range claims {
		if _, ok := seen[c.DealID]; !ok {
			seen[c.DealID] = struct{}{}
			ids = append(ids, c.DealID)
		}
	}

	snapshots, err := l.snapshots.DealSnapshots(ctx, ids)
	if err != nil {
		return nil, l.reject(span, fmt.Errorf("deal snapshots: %w", err))
	}

	views := make([]domain.ClaimView, 0, len(claims))
	for _, c := range claims {
		snap, ok := snapshots[c.DealID]
		if !ok {
			snap = domain.DealSnapshot{ID: c.DealID}
		}
		views = append(views, domain.ClaimView{Claim: c, Deal: snap})
	}
	return views, nil
}

// GetClaim is visible to admins and to the claim's owner. Anyone else gets
// NOT_FOUND so claim ids cannot be probed.
func (l *ClaimLedger) GetClaim(ctx context.Context, actor domain.Identity, claimID string) (*domain.Claim, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.GetClaim", trace.WithAttributes(
		attribute.String("claim.id", claimID),
	))
	defer span.End()

	if actor.Anonymous() {
		return nil, l.reject(span, domain.ErrUnauthenticated)
	}

	c, err := l.store.GetClaim(ctx, claimID)
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, l.reject(span, domain.ErrNotFound)
		}
		return nil, l.reject(span, fmt.Errorf("get claim: %w", err))
	}
	if !actor.IsAdmin() && c.UserID != actor.UserID {
		return nil, l.reject(span, domain.ErrNotFound)
	}
	return &c, nil
}

func (l *ClaimLedger) reject(span trace.Span, err error) error {
	code := domain.Code(err)
	metrics.IncClaimRejected(code)
	span.SetAttributes(attribute.String("outcome", code))
	span.RecordError(err)

	if code == domain.CodeInternal || errors.Is(err, domain.ErrTransient) {
		span.SetStatus(codes.Error, err.Error())
		l.logger.Error().Err(err).Str("code", code).Msg("ledger operation failed")
	} else {
		l.logger.Debug().Err(err).Str("code", code).Msg("ledger operation rejected")
	}
	return err
}
