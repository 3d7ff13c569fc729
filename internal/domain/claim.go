package domain

import (
	"fmt"
	"time"
)

type ClaimStatus string

const (
	StatusPending  ClaimStatus = "pending"
	StatusApproved ClaimStatus = "approved"
	StatusRejected ClaimStatus = "rejected"
	StatusRedeemed ClaimStatus = "redeemed"
)

var transitions = map[ClaimStatus][]ClaimStatus{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusRedeemed},
}

func ParseClaimStatus(s string) (ClaimStatus, error) {
	switch st := ClaimStatus(s); st {
	case StatusPending, StatusApproved, StatusRejected, StatusRedeemed:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown claim status %q", ErrInvalidRequest, s)
}

func (s ClaimStatus) CanTransitionTo(target ClaimStatus) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ClaimStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

type Claim struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	DealID         string      `json:"deal_id"`
	Status         ClaimStatus `json:"status"`
	ClaimedAt      time.Time   `json:"claimed_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	RedemptionCode string      `json:"redemption_code,omitempty"`
	ExpiresAt      *time.Time  `json:"expires_at,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	Version        int         `json:"version"`
}

type ClaimView struct {
	Claim
	Deal DealSnapshot `json:"deal"`
}
