package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DebtKind distingue les deux sources de dette créateur.
type DebtKind string

const (
	DebtKindRefund  DebtKind = "refund"
	DebtKindDispute DebtKind = "dispute"
)

func (k DebtKind) Valid() bool {
	return k == DebtKindRefund || k == DebtKindDispute
}

type ReconciliationMethod string

const (
	ReconciledByTransferReversal ReconciliationMethod = "TRANSFER_REVERSAL"
	ReconciledByPayoutDeduction  ReconciliationMethod = "PAYOUT_DEDUCTION"
	ReconciledByManual           ReconciliationMethod = "MANUAL"
)

func (m ReconciliationMethod) Valid() bool {
	switch m {
	case ReconciledByTransferReversal, ReconciledByPayoutDeduction, ReconciledByManual:
		return true
	}
	return false
}

// Debt représente un remboursement ou un litige sur un paiement.
// CreatorDebt est figé à la création, la régularisation n'a lieu qu'une fois.
type Debt struct {
	Kind         DebtKind              `json:"kind"`
	ID           string                `json:"id"`
	PaymentID    string                `json:"payment_id"`
	CreatorID    string                `json:"creator_id"`
	Amount       decimal.Decimal       `json:"amount"`
	Status       string                `json:"status"`
	CreatorDebt  decimal.Decimal       `json:"creator_debt"`
	Reason       string                `json:"reason,omitempty"`
	ExternalID   string                `json:"external_id"`
	CreatedBy    string                `json:"created_by,omitempty"`
	Reconciled   bool                  `json:"reconciled"`
	ReconciledAt *time.Time            `json:"reconciled_at,omitempty"`
	ReconciledBy *ReconciliationMethod `json:"reconciled_by,omitempty"`
	ReversalID   *string               `json:"reversal_id,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}
