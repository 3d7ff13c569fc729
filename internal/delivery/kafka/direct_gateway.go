package kafka

import (
	"context"

	"github.com/azizikri/deal-claim/internal/domain"
	"github.com/azizikri/deal-claim/internal/usecase"
)

// DirectGateway calls the ledger in process when event-driven mode is off.
type DirectGateway struct {
	ledger *usecase.ClaimLedger
}

func NewDirectGateway(ledger *usecase.ClaimLedger) usecase.ClaimGateway {
	return &DirectGateway{ledger: ledger}
}

func (g *DirectGateway) IssueClaim(ctx context.Context, id domain.Identity, dealID string) (*domain.Claim, error) {
	return g.ledger.IssueClaim(ctx, id, dealID)
}

func (g *DirectGateway) AdvanceStatus(ctx context.Context, actor domain.Identity, claimID string, target domain.ClaimStatus, notes string) (*domain.Claim, error) {
	return g.ledger.AdvanceStatus(ctx, actor, claimID, target, notes)
}

func (g *DirectGateway) ListUserClaims(ctx context.Context, id domain.Identity) ([]domain.ClaimView, error) {
	return g.ledger.ListUserClaims(ctx, id)
}

func (g *DirectGateway) GetClaim(ctx context.Context, actor domain.Identity, claimID string) (*domain.Claim, error) {
	return g.ledger.GetClaim(ctx, actor, claimID)
}
