package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDealNotFound      = errors.New("deal not found")
	ErrAccessDenied      = errors.New("access denied")
	ErrAlreadyClaimed    = errors.New("user has already claimed this deal")
	ErrCapacityExhausted = errors.New("deal claims exhausted")
	ErrInvalidTransition = errors.New("invalid claim status transition")
	ErrTransient         = errors.New("temporary failure, safe to retry")
	ErrNotFound          = errors.New("claim not found")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrForbidden         = errors.New("admin role required")
	ErrInvalidRequest    = errors.New("invalid request")
)

type DenyReason string

const (
	ReasonDealInactive         DenyReason = "deal_inactive"
	ReasonVerificationRequired DenyReason = "verification_required"
	ReasonPremiumNotSupported  DenyReason = "premium_not_supported"
)

// AccessDeniedError matches ErrAccessDenied and carries the policy reason.
type AccessDeniedError struct {
	Reason DenyReason
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAccessDenied, e.Reason)
}

func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

func DenyAccess(reason DenyReason) error {
	return &AccessDeniedError{Reason: reason}
}

// ReasonOf extracts the deny reason from err, or "" when err is not an access denial.
func ReasonOf(err error) DenyReason {
	var ade *AccessDeniedError
	if errors.As(err, &ade) {
		return ade.Reason
	}
	return ""
}

const (
	CodeDealNotFound      = "DEAL_NOT_FOUND"
	CodeAccessDenied      = "ACCESS_DENIED"
	CodeAlreadyClaimed    = "ALREADY_CLAIMED"
	CodeCapacityExhausted = "CAPACITY_EXHAUSTED"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeTransient         = "TRANSIENT_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInternal          = "INTERNAL_ERROR"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrDealNotFound, CodeDealNotFound},
	{ErrAccessDenied, CodeAccessDenied},
	{ErrAlreadyClaimed, CodeAlreadyClaimed},
	{ErrCapacityExhausted, CodeCapacityExhausted},
	{ErrInvalidTransition, CodeInvalidTransition},
	{ErrTransient, CodeTransient},
	{ErrNotFound, CodeNotFound},
	{ErrUnauthenticated, CodeUnauthenticated},
	{ErrForbidden, CodeForbidden},
	{ErrInvalidRequest, CodeInvalidRequest},
}

// Code returns the stable wire code for err.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// FromCode rebuilds a typed error from a wire code, so callers on the far side
// of a transport can keep using errors.Is.
func FromCode(code string, reason DenyReason, message string) error {
	if code == CodeAccessDenied {
		return DenyAccess(reason)
	}
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return errors.New(message)
}
