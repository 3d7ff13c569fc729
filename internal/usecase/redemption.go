package usecase

import "github.com/oklog/ulid/v2"

const redemptionPrefix = "RDM-"

// newRedemptionCode returns an opaque, time-ordered code. ulid.Make is safe
// for concurrent use and monotonic within the process.
func newRedemptionCode() string {
	return redemptionPrefix + ulid.Make().String()
}
