package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestClaimStatus_Transitions(t *testing.T) {
	all := []ClaimStatus{StatusPending, StatusApproved, StatusRejected, StatusRedeemed}
	legal := map[[2]ClaimStatus]bool{
		{StatusPending, StatusApproved}:  true,
		{StatusPending, StatusRejected}:  true,
		{StatusApproved, StatusRedeemed}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[[2]ClaimStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
}

func TestClaimStatus_Terminal(t *testing.T) {
	if !StatusRejected.Terminal() || !StatusRedeemed.Terminal() {
		t.Fatal("rejected and redeemed must be terminal")
	}
	if StatusPending.Terminal() || StatusApproved.Terminal() {
		t.Fatal("pending and approved must not be terminal")
	}
}

func TestParseClaimStatus(t *testing.T) {
	if st, err := ParseClaimStatus("approved"); err != nil || st != StatusApproved {
		t.Fatalf("expected approved, got %q (%v)", st, err)
	}
	if _, err := ParseClaimStatus("cancelled"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestCode_RoundTrip(t *testing.T) {
	errs := []error{
		ErrDealNotFound, ErrAlreadyClaimed, ErrCapacityExhausted, ErrInvalidTransition,
		ErrTransient, ErrNotFound, ErrUnauthenticated, ErrForbidden, ErrInvalidRequest,
	}
	for _, err := range errs {
		wrapped := fmt.Errorf("issue claim: %w", err)
		back := FromCode(Code(wrapped), "", wrapped.Error())
		if !errors.Is(back, err) {
			t.Errorf("expected %v to survive the round trip, got %v", err, back)
		}
	}
}

func TestCode_AccessDeniedKeepsReason(t *testing.T) {
	err := fmt.Errorf("issue claim: %w", DenyAccess(ReasonPremiumNotSupported))
	if Code(err) != CodeAccessDenied {
		t.Fatalf("expected %s, got %s", CodeAccessDenied, Code(err))
	}

	back := FromCode(CodeAccessDenied, ReasonOf(err), "")
	if !errors.Is(back, ErrAccessDenied) || ReasonOf(back) != ReasonPremiumNotSupported {
		t.Fatalf("expected access denied with premium reason, got %v", back)
	}
}

func TestCode_Unknown(t *testing.T) {
	if got := Code(errors.New("boom")); got != CodeInternal {
		t.Fatalf("expected %s, got %s", CodeInternal, got)
	}
}

func TestDeal_HasCapacity(t *testing.T) {
	one := 1
	d := Deal{MaxClaims: &one}
	if !d.HasCapacity() {
		t.Fatal("expected capacity with 0/1 claims")
	}
	d.ClaimCount = 1
	if d.HasCapacity() {
		t.Fatal("expected no capacity with 1/1 claims")
	}
	unlimited := Deal{ClaimCount: 1000}
	if !unlimited.HasCapacity() {
		t.Fatal("unlimited deal must always have capacity")
	}
}

func TestDealFilter_Normalize(t *testing.T) {
	f := DealFilter{Page: 0, Limit: 1000}.Normalize()
	if f.Page != 1 || f.Limit != MaxPageLimit {
		t.Fatalf("unexpected normalised filter %+v", f)
	}
	f = DealFilter{Page: 3, Limit: 0}.Normalize()
	if f.Limit != DefaultPageLimit || f.Offset() != 20 {
		t.Fatalf("unexpected normalised filter %+v offset %d", f, f.Offset())
	}
}
