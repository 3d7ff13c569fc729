package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/azizikri/deal-claim/internal/domain"
	"github.com/azizikri/deal-claim/internal/repository"
)

// mockStore follows the function-field style: every call is overridable and
// ExecTx hands the mock itself to fn as the Querier.
type mockStore struct {
	execTxFn               func(ctx context.Context, fn func(repository.Querier) error) error
	getDealFn              func(ctx context.Context, id string) (domain.Deal, error)
	claimExistsFn          func(ctx context.Context, userID, dealID string) (bool, error)
	insertClaimFn          func(ctx context.Context, arg repository.InsertClaimParams) (domain.Claim, error)
	incrementClaimCountFn  func(ctx context.Context, dealID string) (int, error)
	getClaimFn             func(ctx context.Context, id string) (domain.Claim, error)
	updateClaimStatusFn    func(ctx context.Context, arg repository.UpdateClaimStatusParams) (domain.Claim, error)
	listClaimsByUserFn     func(ctx context.Context, userID string) ([]domain.Claim, error)
	listDealsFn            func(ctx context.Context, f domain.DealFilter) ([]domain.Deal, int, error)
	claimStatusesForUserFn func(ctx context.Context, userID string, dealIDs []string) (map[string]domain.ClaimStatus, error)
	dealSnapshotsFn        func(ctx context.Context, ids []string) (map[string]domain.DealSnapshot, error)
}

func (m *mockStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	if m.execTxFn != nil {
		return m.execTxFn(ctx, fn)
	}
	return fn(m)
}

func (m *mockStore) GetDeal(ctx context.Context, id string) (domain.Deal, error) {
	if m.getDealFn != nil {
		return m.getDealFn(ctx, id)
	}
	return domain.Deal{ID: id, IsActive: true, AccessLevel: domain.AccessPublic}, nil
}

func (m *mockStore) ClaimExists(ctx context.Context, userID, dealID string) (bool, error) {
	if m.claimExistsFn != nil {
		return m.claimExistsFn(ctx, userID, dealID)
	}
	return false, nil
}

func (m *mockStore) InsertClaim(ctx context.Context, arg repository.InsertClaimParams) (domain.Claim, error) {
	if m.insertClaimFn != nil {
		return m.insertClaimFn(ctx, arg)
	}
	return domain.Claim{
		ID: arg.ID, UserID: arg.UserID, DealID: arg.DealID, Status: domain.StatusPending,
		ClaimedAt: arg.ClaimedAt, UpdatedAt: arg.ClaimedAt, ExpiresAt: arg.ExpiresAt, Version: 1,
	}, nil
}

func (m *mockStore) IncrementClaimCount(ctx context.Context, dealID string) (int, error) {
	if m.incrementClaimCountFn != nil {
		return m.incrementClaimCountFn(ctx, dealID)
	}
	return 1, nil
}

func (m *mockStore) GetClaim(ctx context.Context, id string) (domain.Claim, error) {
	if m.getClaimFn != nil {
		return m.getClaimFn(ctx, id)
	}
	return domain.Claim{}, pgx.ErrNoRows
}

func (m *mockStore) UpdateClaimStatus(ctx context.Context, arg repository.UpdateClaimStatusParams) (domain.Claim, error) {
	if m.updateClaimStatusFn != nil {
		return m.updateClaimStatusFn(ctx, arg)
	}
	return domain.Claim{ID: arg.ID, Status: arg.Status, RedemptionCode: arg.RedemptionCode, Version: arg.Version + 1}, nil
}

func (m *mockStore) ListClaimsByUser(ctx context.Context, userID string) ([]domain.Claim, error) {
	if m.listClaimsByUserFn != nil {
		return m.listClaimsByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockStore) ListDeals(ctx context.Context, f domain.DealFilter) ([]domain.Deal, int, error) {
	if m.listDealsFn != nil {
		return m.listDealsFn(ctx, f)
	}
	return nil, 0, nil
}

func (m *mockStore) ClaimStatusesForUser(ctx context.Context, userID string, dealIDs []string) (map[string]domain.ClaimStatus, error) {
	if m.claimStatusesForUserFn != nil {
		return m.claimStatusesForUserFn(ctx, userID, dealIDs)
	}
	return map[string]domain.ClaimStatus{}, nil
}

func (m *mockStore) UpsertDeal(ctx context.Context, d domain.Deal) (domain.Deal, error) {
	return d, nil
}

func (m *mockStore) DealSnapshots(ctx context.Context, ids []string) (map[string]domain.DealSnapshot, error) {
	if m.dealSnapshotsFn != nil {
		return m.dealSnapshotsFn(ctx, ids)
	}
	return map[string]domain.DealSnapshot{}, nil
}

// memStore keeps deals and claims in memory with Postgres-like guarantees:
// transactions are isolated and all-or-nothing, (user, deal) is unique and
// the claim counter only moves through a conditional increment.
type memStore struct {
	mu     sync.Mutex
	deals  map[string]domain.Deal
	claims map[string]domain.Claim
	pairs  map[[2]string]string
}

var _ repository.Store = (*memStore)(nil)

func newMemStore(deals ...domain.Deal) *memStore {
	m := &memStore{
		deals:  map[string]domain.Deal{},
		claims: map[string]domain.Claim{},
		pairs:  map[[2]string]string{},
	}
	for _, d := range deals {
		m.deals[d.ID] = d
	}
	return m
}

func (m *memStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		deals:  make(map[string]domain.Deal, len(m.deals)),
		claims: make(map[string]domain.Claim, len(m.claims)),
		pairs:  make(map[[2]string]string, len(m.pairs)),
	}
	for k, v := range m.deals {
		tx.deals[k] = v
	}
	for k, v := range m.claims {
		tx.claims[k] = v
	}
	for k, v := range m.pairs {
		tx.pairs[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}
	m.deals, m.claims, m.pairs = tx.deals, tx.claims, tx.pairs
	return nil
}

func (m *memStore) deal(id string) domain.Deal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deals[id]
}

func (m *memStore) claimsForDeal(dealID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.claims {
		if c.DealID == dealID {
			n++
		}
	}
	return n
}

func (m *memStore) GetDeal(ctx context.Context, id string) (domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	if !ok {
		return domain.Deal{}, pgx.ErrNoRows
	}
	return d, nil
}

func (m *memStore) GetClaim(ctx context.Context, id string) (domain.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return domain.Claim{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memStore) ListClaimsByUser(ctx context.Context, userID string) ([]domain.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Claim
	for _, c := range m.claims {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ClaimedAt.Equal(out[j].ClaimedAt) {
			return out[i].ClaimedAt.After(out[j].ClaimedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memStore) ListDeals(ctx context.Context, f domain.DealFilter) ([]domain.Deal, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Deal
	for _, d := range m.deals {
		if !d.IsActive {
			continue
		}
		if f.Category != "" && d.Category != f.Category {
			continue
		}
		if f.AccessLevel != "" && d.AccessLevel != f.AccessLevel {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(d.Title+" "+d.Description), strings.ToLower(f.Search)) {
			continue
		}
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Featured != all[j].Featured {
			return all[i].Featured
		}
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *memStore) ClaimStatusesForUser(ctx context.Context, userID string, dealIDs []string) (map[string]domain.ClaimStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domain.ClaimStatus{}
	for _, id := range dealIDs {
		if claimID, ok := m.pairs[[2]string{userID, id}]; ok {
			out[id] = m.claims[claimID].Status
		}
	}
	return out, nil
}

func (m *memStore) UpsertDeal(ctx context.Context, d domain.Deal) (domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.deals[d.ID]; ok {
		d.ClaimCount = existing.ClaimCount
	}
	m.deals[d.ID] = d
	return d, nil
}

func (m *memStore) DealSnapshots(ctx context.Context, ids []string) (map[string]domain.DealSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domain.DealSnapshot{}
	for _, id := range ids {
		if d, ok := m.deals[id]; ok {
			out[id] = d.Snapshot()
		}
	}
	return out, nil
}

type memTx struct {
	deals  map[string]domain.Deal
	claims map[string]domain.Claim
	pairs  map[[2]string]string
}

func (t *memTx) GetDeal(ctx context.Context, id string) (domain.Deal, error) {
	d, ok := t.deals[id]
	if !ok {
		return domain.Deal{}, pgx.ErrNoRows
	}
	return d, nil
}

func (t *memTx) ClaimExists(ctx context.Context, userID, dealID string) (bool, error) {
	_, ok := t.pairs[[2]string{userID, dealID}]
	return ok, nil
}

func (t *memTx) InsertClaim(ctx context.Context, arg repository.InsertClaimParams) (domain.Claim, error) {
	if _, ok := t.deals[arg.DealID]; !ok {
		return domain.Claim{}, &pgconn.PgError{Code: "23503"}
	}
	key := [2]string{arg.UserID, arg.DealID}
	if _, ok := t.pairs[key]; ok {
		return domain.Claim{}, pgx.ErrNoRows
	}
	c := domain.Claim{
		ID:        arg.ID,
		UserID:    arg.UserID,
		DealID:    arg.DealID,
		Status:    domain.StatusPending,
		ClaimedAt: arg.ClaimedAt,
		UpdatedAt: arg.ClaimedAt,
		ExpiresAt: arg.ExpiresAt,
		Version:   1,
	}
	t.claims[c.ID] = c
	t.pairs[key] = c.ID
	return c, nil
}

func (t *memTx) IncrementClaimCount(ctx context.Context, dealID string) (int, error) {
	d, ok := t.deals[dealID]
	if !ok || !d.IsActive || !d.HasCapacity() {
		return 0, pgx.ErrNoRows
	}
	d.ClaimCount++
	t.deals[dealID] = d
	return d.ClaimCount, nil
}

func (t *memTx) GetClaim(ctx context.Context, id string) (domain.Claim, error) {
	c, ok := t.claims[id]
	if !ok {
		return domain.Claim{}, pgx.ErrNoRows
	}
	return c, nil
}

func (t *memTx) UpdateClaimStatus(ctx context.Context, arg repository.UpdateClaimStatusParams) (domain.Claim, error) {
	c, ok := t.claims[arg.ID]
	if !ok || c.Version != arg.Version {
		return domain.Claim{}, pgx.ErrNoRows
	}
	c.Status = arg.Status
	if c.RedemptionCode == "" {
		c.RedemptionCode = arg.RedemptionCode
	}
	if arg.Notes != "" {
		c.Notes = arg.Notes
	}
	c.UpdatedAt = arg.UpdatedAt
	c.Version++
	t.claims[c.ID] = c
	return c, nil
}
