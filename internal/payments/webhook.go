package payments

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// Types d'événements traités.
const (
	EventPaymentIntentSucceeded stripe.EventType = "payment_intent.succeeded"
	EventTransferCreated        stripe.EventType = "transfer.created"
	EventTransferUpdated        stripe.EventType = "transfer.updated"
	EventTransferReversed       stripe.EventType = "transfer.reversed"
	EventDisputeClosed          stripe.EventType = "charge.dispute.closed"
)

var (
	ErrWebhookSecretMissing = errors.New("webhook secret not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
)

// VerifyEvent contrôle la signature Stripe et décode l'événement.
func VerifyEvent(payload []byte, signatureHeader, secret string) (stripe.Event, error) {
	if secret == "" {
		return stripe.Event{}, ErrWebhookSecretMissing
	}
	if signatureHeader == "" {
		return stripe.Event{}, fmt.Errorf("%w: en-tête Stripe-Signature absent", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// DecodeObject décode event.Data.Raw dans l'objet Stripe attendu.
func DecodeObject[T any](event stripe.Event) (*T, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("événement %s sans data", event.ID)
	}
	var obj T
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("décodage %s: %w", event.Type, err)
	}
	return &obj, nil
}

// LatestReversal retourne la dernière annulation listée sur le transfert.
func LatestReversal(t *stripe.Transfer) *stripe.TransferReversal {
	if t == nil || t.Reversals == nil || len(t.Reversals.Data) == 0 {
		return nil
	}
	latest := t.Reversals.Data[0]
	for _, r := range t.Reversals.Data[1:] {
		if r.Created > latest.Created {
			latest = r
		}
	}
	return latest
}
