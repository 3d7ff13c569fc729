// Package policy decides whether a user may claim a deal. It has no state and
// performs no I/O.
package policy

import "github.com/azizikri/deal-claim/internal/domain"

type Decision struct {
	Allowed bool
	Reason  domain.DenyReason
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason domain.DenyReason) Decision { return Decision{Reason: reason} }

// Err returns nil for an allowed decision and a typed access-denied error otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return domain.DenyAccess(d.Reason)
}

// Decide applies the rules in order: inactive deals are closed to everyone,
// verified deals need a verified user, premium deals have no entitlement model
// yet and are always denied.
func Decide(userVerified bool, level domain.AccessLevel, dealActive bool) Decision {
	if !dealActive {
		return deny(domain.ReasonDealInactive)
	}
	switch level {
	case domain.AccessVerified:
		if !userVerified {
			return deny(domain.ReasonVerificationRequired)
		}
	case domain.AccessPremium:
		return deny(domain.ReasonPremiumNotSupported)
	}
	return allow()
}

// CanView is the read-side gate used by the catalog. Premium deals are
// visible to any signed-in user even though they cannot be claimed.
func CanView(id domain.Identity, level domain.AccessLevel) Decision {
	switch {
	case level == domain.AccessPublic:
		return allow()
	case id.Anonymous():
		return deny(domain.ReasonVerificationRequired)
	case level == domain.AccessVerified && !id.IsVerified:
		return deny(domain.ReasonVerificationRequired)
	}
	return allow()
}
