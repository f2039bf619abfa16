package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayoutRequestStatus string

const (
	PayoutRequestPendingApproval PayoutRequestStatus = "PENDING_APPROVAL"
	PayoutRequestApproved        PayoutRequestStatus = "APPROVED"
	PayoutRequestRejected        PayoutRequestStatus = "REJECTED"
	PayoutRequestProcessing      PayoutRequestStatus = "PROCESSING"
	PayoutRequestCompleted       PayoutRequestStatus = "COMPLETED"
	PayoutRequestFailed          PayoutRequestStatus = "FAILED"
	PayoutRequestReversed        PayoutRequestStatus = "REVERSED"
)

// IsActive indique si la demande retient encore ses paiements.
// Une demande rejetée ou échouée libère ses paiements pour un prochain lot.
func (s PayoutRequestStatus) IsActive() bool {
	return s != PayoutRequestRejected && s != PayoutRequestFailed
}

func (s PayoutRequestStatus) Valid() bool {
	switch s {
	case PayoutRequestPendingApproval, PayoutRequestApproved, PayoutRequestRejected,
		PayoutRequestProcessing, PayoutRequestCompleted, PayoutRequestFailed, PayoutRequestReversed:
		return true
	}
	return false
}

// PayoutRequest regroupe des paiements READY pour un transfert unique vers le créateur.
type PayoutRequest struct {
	ID               string              `json:"id"`
	CreatorID        string              `json:"creator_id"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	PaymentCount     int                 `json:"payment_count"`
	Currency         string              `json:"currency"`
	Status           PayoutRequestStatus `json:"status"`
	RequestedBy      string              `json:"requested_by"`
	ApprovedBy       *string             `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time          `json:"approved_at,omitempty"`
	RejectedBy       *string             `json:"rejected_by,omitempty"`
	RejectionReason  *string             `json:"rejection_reason,omitempty"`
	FailureReason    *string             `json:"failure_reason,omitempty"`
	StripeTransferID *string             `json:"stripe_transfer_id,omitempty"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
	ReversalID       *string             `json:"reversal_id,omitempty"`
	ReversalReason   *string             `json:"reversal_reason,omitempty"`
	ReversedAt       *time.Time          `json:"reversed_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}
