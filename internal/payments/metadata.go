// Package payments isole le processeur de paiement (Stripe Connect).
package payments

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Clés de métadonnées posées au checkout et sur nos transferts.
const (
	MetaBookingID       = "bookingId"
	MetaPlatformFee     = "platformFee"
	MetaCreatorAmount   = "creatorAmount"
	MetaPayoutRequestID = "payoutRequestId"
	MetaCreatorID       = "creatorId"
	MetaDebtRecovery    = "debtRecovery"
	MetaDebtKind        = "debtKind"
	MetaDebtID          = "debtId"
	MetaPaymentID       = "paymentId"
	MetaReason          = "reason"
	MetaReversalReason  = "reversalReason"
)

var (
	ErrMissingMetadata = errors.New("missing metadata")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// PaymentSplit est la répartition validée d'un paiement entre plateforme et créateur.
type PaymentSplit struct {
	BookingID     string
	PlatformFee   decimal.Decimal
	CreatorAmount decimal.Decimal
}

// Total retourne platformFee + creatorAmount.
func (s PaymentSplit) Total() decimal.Decimal {
	return s.PlatformFee.Add(s.CreatorAmount)
}

// BookingIDFrom lit l'identifiant de réservation des métadonnées.
func BookingIDFrom(metadata map[string]string) (string, error) {
	id := strings.TrimSpace(metadata[MetaBookingID])
	if id == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingMetadata, MetaBookingID)
	}
	return id, nil
}

// ParsePaymentSplit valide strictement les métadonnées d'un paiement réussi.
// Aucun champ n'est deviné : absence, valeur non numérique ou négative sont rejetées.
func ParsePaymentSplit(metadata map[string]string) (PaymentSplit, error) {
	bookingID, err := BookingIDFrom(metadata)
	if err != nil {
		return PaymentSplit{}, err
	}
	fee, err := parseAmount(metadata, MetaPlatformFee)
	if err != nil {
		return PaymentSplit{}, err
	}
	creatorAmount, err := parseAmount(metadata, MetaCreatorAmount)
	if err != nil {
		return PaymentSplit{}, err
	}
	return PaymentSplit{BookingID: bookingID, PlatformFee: fee, CreatorAmount: creatorAmount}, nil
}

func parseAmount(metadata map[string]string, key string) (decimal.Decimal, error) {
	raw, ok := metadata[key]
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrMissingMetadata, key)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s=%q", ErrInvalidAmount, key, raw)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s=%q est négatif", ErrInvalidAmount, key, raw)
	}
	// "7.000" reste un montant au centime ; "7.004" ne l'est pas.
	if !amount.Equal(amount.Truncate(2)) {
		return decimal.Zero, fmt.Errorf("%w: %s=%q dépasse le centime", ErrInvalidAmount, key, raw)
	}
	return amount.Round(2), nil
}

// PayoutRequestIDFrom retourne l'identifiant de demande de versement, vide si absent.
func PayoutRequestIDFrom(metadata map[string]string) string {
	return strings.TrimSpace(metadata[MetaPayoutRequestID])
}

// IsDebtRecovery indique une annulation de transfert émise par nous pour recouvrer une dette.
func IsDebtRecovery(metadata map[string]string) bool {
	return metadata[MetaDebtRecovery] == "true"
}
