package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/azizikri/deal-claim/internal/domain"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const dealColumns = `id, title, description, long_description, partner_name, partner_logo,
	category, access_level, discount, original_price, discount_price, validity,
	eligibility_conditions, requirements, max_claims, claim_count, is_active, featured,
	tags, created_at, updated_at`

const claimColumns = `id, user_id, deal_id, status, claimed_at, updated_at,
	COALESCE(redemption_code, ''), expires_at, notes, version`

func scanDeal(row pgx.Row) (domain.Deal, error) {
	var d domain.Deal
	err := row.Scan(
		&d.ID, &d.Title, &d.Description, &d.LongDescription, &d.PartnerName, &d.PartnerLogo,
		&d.Category, &d.AccessLevel, &d.Discount, &d.OriginalPrice, &d.DiscountPrice, &d.Validity,
		&d.EligibilityConditions, &d.Requirements, &d.MaxClaims, &d.ClaimCount, &d.IsActive, &d.Featured,
		&d.Tags, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

func scanClaim(row pgx.Row) (domain.Claim, error) {
	var c domain.Claim
	err := row.Scan(
		&c.ID, &c.UserID, &c.DealID, &c.Status, &c.ClaimedAt, &c.UpdatedAt,
		&c.RedemptionCode, &c.ExpiresAt, &c.Notes, &c.Version,
	)
	return c, err
}

const getDeal = `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

func (q *Queries) GetDeal(ctx context.Context, id string) (domain.Deal, error) {
	return scanDeal(q.db.QueryRow(ctx, getDeal, id))
}

const claimExists = `SELECT EXISTS (SELECT 1 FROM claims WHERE user_id = $1 AND deal_id = $2)`

func (q *Queries) ClaimExists(ctx context.Context, userID, dealID string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, claimExists, userID, dealID).Scan(&exists)
	return exists, err
}

type InsertClaimParams struct {
	ID        string
	UserID    string
	DealID    string
	ClaimedAt time.Time
	ExpiresAt *time.Time
}

// The unique index on (user_id, deal_id) suppresses the second insert of a
// pair; callers see pgx.ErrNoRows in that case.
const insertClaim = `
INSERT INTO claims (id, user_id, deal_id, status, claimed_at, updated_at, expires_at)
VALUES ($1, $2, $3, 'pending', $4, $4, $5)
ON CONFLICT (user_id, deal_id) DO NOTHING
RETURNING ` + claimColumns

func (q *Queries) InsertClaim(ctx context.Context, arg InsertClaimParams) (domain.Claim, error) {
	return scanClaim(q.db.QueryRow(ctx, insertClaim, arg.ID, arg.UserID, arg.DealID, arg.ClaimedAt, arg.ExpiresAt))
}

// Returns pgx.ErrNoRows when the deal is full or no longer active.
const incrementClaimCount = `
UPDATE deals
   SET claim_count = claim_count + 1,
       updated_at = now()
 WHERE id = $1
   AND is_active
   AND (max_claims IS NULL OR claim_count < max_claims)
RETURNING claim_count`

func (q *Queries) IncrementClaimCount(ctx context.Context, dealID string) (int, error) {
	var count int
	err := q.db.QueryRow(ctx, incrementClaimCount, dealID).Scan(&count)
	return count, err
}

const getClaim = `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`

func (q *Queries) GetClaim(ctx context.Context, id string) (domain.Claim, error) {
	return scanClaim(q.db.QueryRow(ctx, getClaim, id))
}

type UpdateClaimStatusParams struct {
	ID             string
	Version        int
	Status         domain.ClaimStatus
	RedemptionCode string
	Notes          string
	UpdatedAt      time.Time
}

// Optimistic update: pgx.ErrNoRows means the version moved underneath us.
// An existing redemption code is never replaced.
const updateClaimStatus = `
UPDATE claims
   SET status = $3,
       redemption_code = COALESCE(redemption_code, NULLIF($4, '')),
       notes = CASE WHEN $5 = '' THEN notes ELSE $5 END,
       updated_at = $6,
       version = version + 1
 WHERE id = $1
   AND version = $2
RETURNING ` + claimColumns

func (q *Queries) UpdateClaimStatus(ctx context.Context, arg UpdateClaimStatusParams) (domain.Claim, error) {
	return scanClaim(q.db.QueryRow(ctx, updateClaimStatus,
		arg.ID, arg.Version, arg.Status, arg.RedemptionCode, arg.Notes, arg.UpdatedAt,
	))
}

const listClaimsByUser = `SELECT ` + claimColumns + `
  FROM claims
 WHERE user_id = $1
 ORDER BY claimed_at DESC, id DESC`

func (q *Queries) ListClaimsByUser(ctx context.Context, userID string) ([]domain.Claim, error) {
	rows, err := q.db.Query(ctx, listClaimsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

const dealSnapshots = `
SELECT id, title, partner_name, category, discount
  FROM deals
 WHERE id = ANY($1)`

func (q *Queries) DealSnapshots(ctx context.Context, ids []string) (map[string]domain.DealSnapshot, error) {
	out := make(map[string]domain.DealSnapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.db.Query(ctx, dealSnapshots, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.DealSnapshot
		if err := rows.Scan(&s.ID, &s.Title, &s.PartnerName, &s.Category, &s.Discount); err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

const claimStatusesForUser = `
SELECT deal_id, status
  FROM claims
 WHERE user_id = $1 AND deal_id = ANY($2)`

func (q *Queries) ClaimStatusesForUser(ctx context.Context, userID string, dealIDs []string) (map[string]domain.ClaimStatus, error) {
	out := make(map[string]domain.ClaimStatus, len(dealIDs))
	if userID == "" || len(dealIDs) == 0 {
		return out, nil
	}

	rows, err := q.db.Query(ctx, claimStatusesForUser, userID, dealIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var dealID string
		var status domain.ClaimStatus
		if err := rows.Scan(&dealID, &status); err != nil {
			return nil, err
		}
		out[dealID] = status
	}
	return out, rows.Err()
}

// dealFilterSQL renders the WHERE clause shared by the listing and its count.
func dealFilterSQL(f domain.DealFilter) (string, []any) {
	conds := []string{"is_active"}
	var args []any

	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.AccessLevel != "" {
		args = append(args, f.AccessLevel)
		conds = append(conds, fmt.Sprintf("access_level = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, s)
		conds = append(conds, fmt.Sprintf(
			"to_tsvector('english', title || ' ' || description) @@ plainto_tsquery('english', $%d)", len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (q *Queries) ListDeals(ctx context.Context, f domain.DealFilter) ([]domain.Deal, int, error) {
	where, args := dealFilterSQL(f)

	var total int
	if err := q.db.QueryRow(ctx, "SELECT count(*) FROM deals"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset())
	query := fmt.Sprintf(
		"SELECT %s FROM deals%s ORDER BY featured DESC, created_at DESC, id LIMIT $%d OFFSET $%d",
		dealColumns, where, len(args)-1, len(args),
	)
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var deals []domain.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, 0, err
		}
		deals = append(deals, d)
	}
	return deals, total, rows.Err()
}

// claim_count and created_at belong to the ledger and survive re-seeding.
const upsertDeal = `
INSERT INTO deals (id, title, description, long_description, partner_name, partner_logo,
	category, access_level, discount, original_price, discount_price, validity,
	eligibility_conditions, requirements, max_claims, is_active, featured, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	long_description = EXCLUDED.long_description,
	partner_name = EXCLUDED.partner_name,
	partner_logo = EXCLUDED.partner_logo,
	category = EXCLUDED.category,
	access_level = EXCLUDED.access_level,
	discount = EXCLUDED.discount,
	original_price = EXCLUDED.original_price,
	discount_price = EXCLUDED.discount_price,
	validity = EXCLUDED.validity,
	eligibility_conditions = EXCLUDED.eligibility_conditions,
	requirements = EXCLUDED.requirements,
	max_claims = EXCLUDED.max_claims,
	is_active = EXCLUDED.is_active,
	featured = EXCLUDED.featured,
	tags = EXCLUDED.tags,
	updated_at = now()
RETURNING ` + dealColumns

func (q *Queries) UpsertDeal(ctx context.Context, d domain.Deal) (domain.Deal, error) {
	return scanDeal(q.db.QueryRow(ctx, upsertDeal,
		d.ID, d.Title, d.Description, d.LongDescription, d.PartnerName, d.PartnerLogo,
		d.Category, d.AccessLevel, d.Discount, d.OriginalPrice, d.DiscountPrice, d.Validity,
		nonNil(d.EligibilityConditions), nonNil(d.Requirements), d.MaxClaims, d.IsActive, d.Featured, nonNil(d.Tags),
	))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
