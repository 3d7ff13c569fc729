package usecase

import (
	"context"
	"fmt"

	"github.com/azizikri/deal-claim/internal/domain"
	"github.com/azizikri/deal-claim/internal/policy"
	"github.com/azizikri/deal-claim/internal/repository"
)

// DealCatalog serves the read side of the deal catalog. It never writes.
type DealCatalog struct {
	store repository.Store
}

func NewDealCatalog(store repository.Store) *DealCatalog {
	return &DealCatalog{store: store}
}

func (c *DealCatalog) ListDeals(ctx context.Context, id domain.Identity, f domain.DealFilter) (*domain.DealPage, error) {
	f = f.Normalize()
	if f.Category != "" && !f.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidRequest, f.Category)
	}
	if f.AccessLevel != "" && !f.AccessLevel.Valid() {
		return nil, fmt.Errorf("%w: unknown access level %q", domain.ErrInvalidRequest, f.AccessLevel)
	}

	page := &domain.DealPage{Deals: []domain.DealListing{}, Page: f.Page, Limit: f.Limit}

	// Anonymous callers only ever see public deals.
	if id.Anonymous() {
		if f.AccessLevel != "" && f.AccessLevel != domain.AccessPublic {
			return page, nil
		}
		f.AccessLevel = domain.AccessPublic
	}

	deals, total, err := c.store.ListDeals(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}

	ids := make([]string, len(deals))
	for i, d := range deals {
		ids[i] = d.ID
	}
	statuses, err := c.store.ClaimStatusesForUser(ctx, id.UserID, ids)
	if err != nil {
		return nil, fmt.Errorf("claim statuses: %w", err)
	}

	for _, d := range deals {
		st, claimed := statuses[d.ID]
		page.Deals = append(page.Deals, domain.DealListing{Deal: d, IsClaimed: claimed, ClaimStatus: st})
	}
	page.Total = total
	page.Pages = (total + f.Limit - 1) / f.Limit
	return page, nil
}

func (c *DealCatalog) GetDeal(ctx context.Context, id domain.Identity, dealID string) (*domain.DealListing, error) {
	deal, err := c.store.GetDeal(ctx, dealID)
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, domain.ErrDealNotFound
		}
		return nil, fmt.Errorf("get deal: %w", err)
	}
	if !deal.IsActive {
		return nil, domain.ErrDealNotFound
	}
	if err := policy.CanView(id, deal.AccessLevel).Err(); err != nil {
		return nil, err
	}

	listing := &domain.DealListing{Deal: deal}
	if !id.Anonymous() {
		statuses, err := c.store.ClaimStatusesForUser(ctx, id.UserID, []string{deal.ID})
		if err != nil {
			return nil, fmt.Errorf("claim statuses: %w", err)
		}
		listing.ClaimStatus, listing.IsClaimed = statuses[deal.ID]
	}
	return listing, nil
}
