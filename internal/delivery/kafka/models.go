package kafka

import (
	"errors"

	"github.com/azizikri/deal-claim/internal/domain"
)

const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

type RequestPayload struct {
	SchemaVersion int                `json:"schema_version"`
	CorrelationID string             `json:"correlation_id"`
	ReplyTo       string             `json:"reply_to"`
	Identity      domain.Identity    `json:"identity"`
	DealID        string             `json:"deal_id,omitempty"`
	ClaimID       string             `json:"claim_id,omitempty"`
	TargetStatus  domain.ClaimStatus `json:"target_status,omitempty"`
	Notes         string             `json:"notes,omitempty"`
}

type ResponsePayload struct {
	SchemaVersion int                `json:"schema_version"`
	CorrelationID string             `json:"correlation_id"`
	Status        string             `json:"status"`
	ErrorCode     string             `json:"error_code,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	Reason        domain.DenyReason  `json:"reason,omitempty"`
	Claim         *domain.Claim      `json:"claim,omitempty"`
	Claims        []domain.ClaimView `json:"claims,omitempty"`
}

func successResponse(correlationID string) *ResponsePayload {
	return &ResponsePayload{
		SchemaVersion: SchemaVersion,
		CorrelationID: correlationID,
		Status:        StatusSuccess,
	}
}

func errorResponse(correlationID string, err error) *ResponsePayload {
	return &ResponsePayload{
		SchemaVersion: SchemaVersion,
		CorrelationID: correlationID,
		Status:        StatusError,
		ErrorCode:     domain.Code(err),
		ErrorMessage:  err.Error(),
		Reason:        domain.ReasonOf(err),
	}
}

// Err turns an error reply back into the typed domain error.
func (r *ResponsePayload) Err() error {
	if r.Status != StatusError {
		return nil
	}
	if r.ErrorCode == "" {
		return errors.New(r.ErrorMessage)
	}
	return domain.FromCode(r.ErrorCode, r.Reason, r.ErrorMessage)
}
