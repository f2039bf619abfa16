package ledger

import (
	"context"
	"fmt"

	"callastar_back_end/internal/payments"

	"github.com/stripe/stripe-go/v83"
)

// Outcome résume le sort d'un événement webhook.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeSkipped   Outcome = "skipped"
)

// HandleEvent applique un événement Stripe vérifié au grand livre.
// Une erreur n'est retournée que pour une défaillance transitoire du stockage :
// l'appelant répond alors en 5xx pour que Stripe relivre l'événement.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event, payload []byte) (Outcome, error) {
	log := s.logger.With("event_id", event.ID, "event_type", event.Type)

	if s.deduper != nil && event.ID != "" {
		seen, err := s.deduper.IsEventProcessed(ctx, event.ID)
		if err != nil {
			log.Warn("⚠️ Déduplication Redis indisponible", "error", err)
		} else if seen {
			log.Info("🔁 Événement déjà traité, ignoré")
			return OutcomeDuplicate, nil
		}
	}

	if s.archiver != nil && len(payload) > 0 {
		s.sideEffect(ctx, "webhook_archive", func(ctx context.Context) error {
			return s.archiver.ArchiveWebhook(ctx, event.ID, string(event.Type), payload)
		})
	}

	log.Info("📥 Événement Stripe reçu")

	var (
		outcome Outcome
		err     error
	)
	switch event.Type {
	case payments.EventPaymentIntentSucceeded:
		outcome, err = s.handlePaymentSucceeded(ctx, event)
	case payments.EventTransferCreated:
		outcome, err = s.handleTransferCreated(ctx, event)
	case payments.EventTransferReversed:
		outcome, err = s.handleTransferReversed(ctx, event)
	case payments.EventDisputeClosed:
		outcome, err = s.handleDisputeClosed(ctx, event)
	case payments.EventTransferUpdated:
		log.Info("ℹ️ transfer.updated journalisé, aucun changement d'état")
		outcome = OutcomeIgnored
	default:
		log.Info("ℹ️ Événement ignoré")
		outcome = OutcomeIgnored
	}
	if err != nil {
		log.Error("❌ Échec traitement événement", "error", err)
		return outcome, fmt.Errorf("traitement %s: %w", event.Type, err)
	}

	if s.deduper != nil && event.ID != "" {
		if markErr := s.deduper.MarkEventProcessed(ctx, event.ID); markErr != nil {
			log.Warn("⚠️ Impossible de marquer l'événement comme traité", "error", markErr)
		}
	}
	log.Info("✅ Événement traité", "outcome", outcome)
	return outcome, nil
}
