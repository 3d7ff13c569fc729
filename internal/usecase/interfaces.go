package usecase

import (
	"context"

	"github.com/azizikri/deal-claim/internal/domain"
)

// ClaimGateway is how delivery layers reach the claim ledger, either in
// process or over Kafka request/reply.
type ClaimGateway interface {
	IssueClaim(ctx context.Context, id domain.Identity, dealID string) (*domain.Claim, error)
	AdvanceStatus(ctx context.Context, actor domain.Identity, claimID string, target domain.ClaimStatus, notes string) (*domain.Claim, error)
	ListUserClaims(ctx context.Context, id domain.Identity) ([]domain.ClaimView, error)
	GetClaim(ctx context.Context, actor domain.Identity, claimID string) (*domain.Claim, error)
}

type CatalogReader interface {
	ListDeals(ctx context.Context, id domain.Identity, f domain.DealFilter) (*domain.DealPage, error)
	GetDeal(ctx context.Context, id domain.Identity, dealID string) (*domain.DealListing, error)
}
