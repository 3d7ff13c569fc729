package domain

import "time"

type Category string

const (
	CategoryCloud        Category = "cloud"
	CategoryMarketing    Category = "marketing"
	CategoryAnalytics    Category = "analytics"
	CategoryProductivity Category = "productivity"
	CategoryDevelopment  Category = "development"
	CategoryDesign       Category = "design"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryCloud, CategoryMarketing, CategoryAnalytics,
		CategoryProductivity, CategoryDevelopment, CategoryDesign:
		return true
	}
	return false
}

type AccessLevel string

const (
	AccessPublic   AccessLevel = "public"
	AccessVerified AccessLevel = "verified"
	AccessPremium  AccessLevel = "premium"
)

func (a AccessLevel) Valid() bool {
	switch a {
	case AccessPublic, AccessVerified, AccessPremium:
		return true
	}
	return false
}

type Deal struct {
	ID                    string      `json:"id" yaml:"id"`
	Title                 string      `json:"title" yaml:"title"`
	Description           string      `json:"description" yaml:"description"`
	LongDescription       string      `json:"long_description,omitempty" yaml:"long_description"`
	PartnerName           string      `json:"partner_name" yaml:"partner_name"`
	PartnerLogo           string      `json:"partner_logo,omitempty" yaml:"partner_logo"`
	Category              Category    `json:"category" yaml:"category"`
	AccessLevel           AccessLevel `json:"access_level" yaml:"access_level"`
	Discount              string      `json:"discount" yaml:"discount"`
	OriginalPrice         string      `json:"original_price,omitempty" yaml:"original_price"`
	DiscountPrice         string      `json:"discount_price,omitempty" yaml:"discount_price"`
	Validity              *time.Time  `json:"validity,omitempty" yaml:"validity"`
	EligibilityConditions []string    `json:"eligibility_conditions,omitempty" yaml:"eligibility_conditions"`
	Requirements          []string    `json:"requirements,omitempty" yaml:"requirements"`
	MaxClaims             *int        `json:"max_claims,omitempty" yaml:"max_claims"`
	ClaimCount            int         `json:"claim_count" yaml:"-"`
	IsActive              bool        `json:"is_active" yaml:"is_active"`
	Featured              bool        `json:"featured" yaml:"featured"`
	Tags                  []string    `json:"tags,omitempty" yaml:"tags"`
	CreatedAt             time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt             time.Time   `json:"updated_at" yaml:"-"`
}

// HasCapacity reports whether one more claim fits under MaxClaims.
// The answer is only a hint; the store re-checks it atomically.
func (d *Deal) HasCapacity() bool {
	return d.MaxClaims == nil || d.ClaimCount < *d.MaxClaims
}

// Snapshot returns the read-only fields shown next to a user's claim.
func (d *Deal) Snapshot() DealSnapshot {
	return DealSnapshot{
		ID:          d.ID,
		Title:       d.Title,
		PartnerName: d.PartnerName,
		Category:    d.Category,
		Discount:    d.Discount,
	}
}

type DealSnapshot struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	PartnerName string   `json:"partner_name"`
	Category    Category `json:"category"`
	Discount    string   `json:"discount"`
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

type DealFilter struct {
	Category    Category
	AccessLevel AccessLevel
	Search      string
	Page        int
	Limit       int
}

func (f DealFilter) Normalize() DealFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

func (f DealFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type DealListing struct {
	Deal
	IsClaimed   bool        `json:"is_claimed"`
	ClaimStatus ClaimStatus `json:"claim_status,omitempty"`
}

type DealPage struct {
	Deals []DealListing `json:"deals"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int           `json:"total"`
	Pages int           `json:"pages"`
}
