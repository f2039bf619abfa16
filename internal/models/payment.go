package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	// Remboursé intégralement avant versement : exclu de la libération et des lots.
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type PayoutStatus string

const (
	PayoutStatusHeld     PayoutStatus = "HELD"
	PayoutStatusReady    PayoutStatus = "READY"
	PayoutStatusPaid     PayoutStatus = "PAID"
	PayoutStatusReversed PayoutStatus = "REVERSED"
)

// payoutTransitions liste les seules évolutions autorisées du statut de versement.
// Un paiement ne revient jamais vers HELD.
var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusHeld:  {PayoutStatusReady},
	PayoutStatusReady: {PayoutStatusPaid, PayoutStatusReversed},
	PayoutStatusPaid:  {PayoutStatusReversed},
}

// CanTransition indique si le passage from -> to respecte le cycle de vie du versement.
func (from PayoutStatus) CanTransition(to PayoutStatus) bool {
	for _, allowed := range payoutTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Payment est l'enregistrement financier d'une réservation payée.
type Payment struct {
	ID                    string          `json:"id"`
	BookingID             string          `json:"booking_id"`
	CreatorID             string          `json:"creator_id"`
	Amount                decimal.Decimal `json:"amount"`
	PlatformFee           decimal.Decimal `json:"platform_fee"`
	CreatorAmount         decimal.Decimal `json:"creator_amount"`
	Currency              string          `json:"currency"`
	Status                PaymentStatus   `json:"status"`
	PayoutStatus          PayoutStatus    `json:"payout_status"`
	PayoutReleaseDate     time.Time       `json:"payout_release_date"`
	StripePaymentIntentID string          `json:"stripe_payment_intent_id"`
	StripeTransferID      *string         `json:"stripe_transfer_id,omitempty"`
	PayoutDate            *time.Time      `json:"payout_date,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// IsReleasable indique si la période de rétention est écoulée à l'instant now.
func (p *Payment) IsReleasable(now time.Time) bool {
	return p.PayoutStatus == PayoutStatusHeld && !p.PayoutReleaseDate.After(now)
}

// CreatorBalance résume la situation financière d'un créateur.
type CreatorBalance struct {
	CreatorID        string          `json:"creator_id"`
	Currency         string          `json:"currency"`
	Held             decimal.Decimal `json:"held"`
	Ready            decimal.Decimal `json:"ready"`
	InPayout         decimal.Decimal `json:"in_payout"`
	Paid             decimal.Decimal `json:"paid"`
	Reversed         decimal.Decimal `json:"reversed"`
	UnreconciledDebt decimal.Decimal `json:"unreconciled_debt"`
	PayoutBlocked    bool            `json:"payout_blocked"`
}
