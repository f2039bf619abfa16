package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RoundCents arrondit un montant au centime (demi vers le haut).
func RoundCents(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// ToMinorUnits convertit un montant décimal en centimes pour l'API Stripe.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits convertit des centimes Stripe en montant décimal.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// WithinTolerance indique si |a - b| <= tolerance.
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// FormatAmount formate un montant pour les emails, ex: "42,50 €".
func FormatAmount(amount decimal.Decimal, currency string) string {
	value := strings.Replace(amount.StringFixed(2), ".", ",", 1)
	switch strings.ToLower(currency) {
	case "eur", "":
		return value + " €"
	case "usd":
		return "$" + amount.StringFixed(2)
	case "gbp":
		return "£" + amount.StringFixed(2)
	default:
		return fmt.Sprintf("%s %s", value, strings.ToUpper(currency))
	}
}
