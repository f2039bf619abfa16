package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"callastar_back_end/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/balance"
	"github.com/stripe/stripe-go/v83/refund"
	"github.com/stripe/stripe-go/v83/transfer"
	"github.com/stripe/stripe-go/v83/transferreversal"
)

var ErrProcessorNotConfigured = errors.New("payment processor not configured")

// FailureMessage retourne un message exploitable pour un échec d'appel Stripe.
// Les erreurs non Stripe donnent un message générique.
func FailureMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	if errors.Is(err, ErrProcessorNotConfigured) {
		return "Processeur de paiement non configuré"
	}
	return "L'appel au processeur de paiement a échoué"
}

type TransferInput struct {
	Amount         decimal.Decimal
	Currency       string
	Destination    string
	Metadata       map[string]string
	IdempotencyKey string
}

type ReversalInput struct {
	TransferID     string
	Amount         decimal.Decimal
	Metadata       map[string]string
	IdempotencyKey string
}

type RefundInput struct {
	PaymentIntentID string
	Amount          decimal.Decimal
	Reason          string
	Metadata        map[string]string
	IdempotencyKey  string
}

type RefundResult struct {
	ID     string
	Status string
}

// Processor couvre les appels sortants vers le processeur de paiement.
type Processor interface {
	CreateTransfer(ctx context.Context, in TransferInput) (string, error)
	CreateTransferReversal(ctx context.Context, in ReversalInput) (string, error)
	AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error)
	CreateRefund(ctx context.Context, in RefundInput) (*RefundResult, error)
}

// StripeProcessor appelle l'API Stripe avec la clé globale stripe.Key.
type StripeProcessor struct{}

func NewStripeProcessor(secretKey string) *StripeProcessor {
	stripe.Key = secretKey
	return &StripeProcessor{}
}

func (p *StripeProcessor) configured() error {
	if stripe.Key == "" {
		return ErrProcessorNotConfigured
	}
	return nil
}

func (p *StripeProcessor) CreateTransfer(ctx context.Context, in TransferInput) (string, error) {
	if err := p.configured(); err != nil {
		return "", err
	}
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(utils.ToMinorUnits(in.Amount)),
		Currency:    stripe.String(strings.ToLower(in.Currency)),
		Destination: stripe.String(in.Destination),
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	t, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe transfer: %w", err)
	}
	return t.ID, nil
}

func (p *StripeProcessor) CreateTransferReversal(ctx context.Context, in ReversalInput) (string, error) {
	if err := p.configured(); err != nil {
		return "", err
	}
	params := &stripe.TransferReversalParams{
		ID:     stripe.String(in.TransferID),
		Amount: stripe.Int64(utils.ToMinorUnits(in.Amount)),
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	rev, err := transferreversal.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe transfer reversal: %w", err)
	}
	return rev.ID, nil
}

// AvailableBalance retourne le solde disponible de la plateforme dans la devise donnée.
func (p *StripeProcessor) AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	if err := p.configured(); err != nil {
		return decimal.Zero, err
	}
	params := &stripe.BalanceParams{}
	params.Context = ctx

	bal, err := balance.Get(params)
	if err != nil {
		return decimal.Zero, fmt.Errorf("stripe balance: %w", err)
	}

	var cents int64
	for _, a := range bal.Available {
		if strings.EqualFold(string(a.Currency), currency) {
			cents += a.Amount
		}
	}
	return utils.FromMinorUnits(cents), nil
}

func (p *StripeProcessor) CreateRefund(ctx context.Context, in RefundInput) (*RefundResult, error) {
	if err := p.configured(); err != nil {
		return nil, err
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(in.PaymentIntentID),
		Amount:        stripe.Int64(utils.ToMinorUnits(in.Amount)),
	}
	if in.Reason != "" {
		// Stripe n'accepte que duplicate, fraudulent ou requested_by_customer.
		params.Reason = stripe.String(string(stripe.RefundReasonRequestedByCustomer))
		params.AddMetadata(MetaReason, in.Reason)
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	r, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe refund: %w", err)
	}
	return &RefundResult{ID: r.ID, Status: string(r.Status)}, nil
}
