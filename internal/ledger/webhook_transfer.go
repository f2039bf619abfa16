package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"callastar_back_end/internal/events"
	"callastar_back_end/internal/models"
	"callastar_back_end/internal/payments"
	"callastar_back_end/internal/store"
	"callastar_back_end/internal/utils"

	"github.com/stripe/stripe-go/v83"
)

const defaultReversalReason = "Transfert annulé par le processeur de paiement"

// payoutRequestForTransfer retrouve la demande de versement d'un transfert.
// nil sans erreur quand le transfert n'est pas suivi par le grand livre.
func (s *Service) payoutRequestForTransfer(ctx context.Context, t *stripe.Transfer) (*models.PayoutRequest, error) {
	requestID := payments.PayoutRequestIDFrom(t.Metadata)
	if requestID == "" {
		s.logger.Info("ℹ️ Transfert sans payoutRequestId, ignoré", "transfer_id", t.ID)
		return nil, nil
	}
	req, err := s.repo.FindPayoutRequestByID(ctx, requestID)
	if errors.Is(err, store.ErrPayoutRequestNotFound) {
		s.logger.Warn("⚠️ Demande de versement introuvable pour le transfert", "transfer_id", t.ID, "payout_request_id", requestID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lecture demande %s: %w", requestID, err)
	}
	return req, nil
}

func (s *Service) handleTransferCreated(ctx context.Context, event stripe.Event) (Outcome, error) {
	t, err := payments.DecodeObject[stripe.Transfer](event)
	if err != nil {
		s.logger.Warn("⚠️ transfert illisible, ignoré", "event_id", event.ID, "error", err)
		return OutcomeSkipped, nil
	}
	req, err := s.payoutRequestForTransfer(ctx, t)
	if err != nil || req == nil {
		return OutcomeIgnored, err
	}
	if req.Status == models.PayoutRequestCompleted {
		return OutcomeDuplicate, nil
	}

	completed, err := s.repo.CompletePayoutRequest(ctx, req.ID, t.ID, s.now())
	if errors.Is(err, store.ErrInvalidTransition) {
		s.logger.Warn("⚠️ transfer.created sur une demande non complétable", "payout_request_id", req.ID, "status", req.Status)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return OutcomeProcessed, fmt.Errorf("complétion demande %s: %w", req.ID, err)
	}

	s.logger.Info("✅ Versement complété", "payout_request_id", completed.ID, "transfer_id", t.ID)
	s.emit(ctx, events.Event{Type: events.PayoutCompleted, EntityType: "payout_request", EntityID: completed.ID,
		CreatorID: completed.CreatorID, Actor: SystemActor, Amount: completed.TotalAmount, Currency: completed.Currency,
		Attributes: map[string]string{"transfer_id": t.ID, "payment_count": fmt.Sprint(completed.PaymentCount)}})

	if creator := s.loadCreator(ctx, completed.CreatorID); creator != nil {
		s.notifyCreator(ctx, creator, models.NotificationPayoutCompleted,
			"Versement effectué",
			fmt.Sprintf("Votre versement de %s a été envoyé.", utils.FormatAmount(completed.TotalAmount, completed.Currency)),
			"/dashboard/creator/payouts/"+completed.ID,
			utils.PayoutCompletedEmail(creator, completed, s.cfg.AppURL),
			s.payoutStatement(ctx, creator, completed)...)
	}
	return OutcomeProcessed, nil
}

// payoutStatement génère le relevé PDF joint à l'email de versement, si configuré.
func (s *Service) payoutStatement(ctx context.Context, creator *models.Creator, req *models.PayoutRequest) []utils.Attachment {
	if s.statements == nil {
		return nil
	}
	var attachments []utils.Attachment
	s.sideEffect(ctx, "payout_statement", func(ctx context.Context) error {
		linked, err := s.repo.ListPayoutRequestPayments(ctx, req.ID)
		if err != nil {
			return err
		}
		pdf, err := s.statements.GeneratePayoutStatement(ctx, creator, req, linked)
		if err != nil {
			return err
		}
		attachments = append(attachments, utils.Attachment{Name: utils.StatementFileName(req, s.now()), Data: pdf})
		return nil
	})
	return attachments
}

func (s *Service) handleTransferReversed(ctx context.Context, event stripe.Event) (Outcome, error) {
	t, err := payments.DecodeObject[stripe.Transfer](event)
	if err != nil {
		s.logger.Warn("⚠️ transfert illisible, ignoré", "event_id", event.ID, "error", err)
		return OutcomeSkipped, nil
	}

	latest := payments.LatestReversal(t)
	if latest != nil && payments.IsDebtRecovery(latest.Metadata) {
		s.logger.Info("ℹ️ Annulation de recouvrement de dette, pas d'annulation de versement",
			"transfer_id", t.ID, "reversal_id", latest.ID,
			"debt_kind", latest.Metadata[payments.MetaDebtKind], "debt_id", latest.Metadata[payments.MetaDebtID])
		return OutcomeIgnored, nil
	}

	req, err := s.payoutRequestForTransfer(ctx, t)
	if err != nil || req == nil {
		return OutcomeIgnored, err
	}
	if req.Status == models.PayoutRequestReversed {
		return OutcomeDuplicate, nil
	}

	reversalID, reason := reversalDetails(t, latest)
	reversed, err := s.repo.ReversePayoutRequest(ctx, req.ID, reversalID, reason, s.now())
	if errors.Is(err, store.ErrInvalidTransition) {
		s.logger.Warn("⚠️ transfer.reversed sur une demande non annulable", "payout_request_id", req.ID, "status", req.Status)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return OutcomeProcessed, fmt.Errorf("annulation demande %s: %w", req.ID, err)
	}

	s.logger.Warn("🚨 Versement annulé", "payout_request_id", reversed.ID, "transfer_id", t.ID, "reason", reason)
	s.emit(ctx, events.Event{Type: events.PayoutReversed, EntityType: "payout_request", EntityID: reversed.ID,
		CreatorID: reversed.CreatorID, Actor: SystemActor, Amount: reversed.TotalAmount, Currency: reversed.Currency,
		Attributes: map[string]string{"transfer_id": t.ID, "reversal_id": reversalID, "reason": reason}})

	if creator := s.loadCreator(ctx, reversed.CreatorID); creator != nil {
		s.notifyCreator(ctx, creator, models.NotificationPayoutReversed,
			"⚠️ Versement annulé",
			fmt.Sprintf("Votre versement de %s a été annulé. Motif : %s. Merci de contacter le support.",
				utils.FormatAmount(reversed.TotalAmount, reversed.Currency), reason),
			"/dashboard/creator/payouts/"+reversed.ID,
			utils.PayoutReversedEmail(creator, reversed, reason, s.cfg.AppURL))
	}
	return OutcomeProcessed, nil
}

// reversalDetails extrait l'identifiant et le motif de l'annulation.
func reversalDetails(t *stripe.Transfer, latest *stripe.TransferReversal) (id, reason string) {
	if latest != nil {
		id = latest.ID
		reason = strings.TrimSpace(latest.Metadata[payments.MetaReason])
	}
	if reason == "" {
		reason = strings.TrimSpace(t.Metadata[payments.MetaReversalReason])
	}
	if reason == "" {
		reason = defaultReversalReason
	}
	return id, reason
}

func (s *Service) handleDisputeClosed(ctx context.Context, event stripe.Event) (Outcome, error) {
	dispute, err := payments.DecodeObject[stripe.Dispute](event)
	if err != nil {
		s.logger.Warn("⚠️ litige illisible, ignoré", "event_id", event.ID, "error", err)
		return OutcomeSkipped, nil
	}
	log := s.logger.With("dispute_id", dispute.ID, "dispute_status", dispute.Status)
	if dispute.Status != stripe.DisputeStatusLost {
		log.Info("ℹ️ Litige clos sans perte, aucune dette")
		return OutcomeIgnored, nil
	}
	if dispute.PaymentIntent == nil || dispute.PaymentIntent.ID == "" {
		log.Warn("⚠️ Litige sans payment intent, ignoré")
		return OutcomeSkipped, nil
	}

	payment, err := s.repo.FindPaymentByIntentID(ctx, dispute.PaymentIntent.ID)
	if errors.Is(err, store.ErrPaymentNotFound) {
		log.Warn("⚠️ Paiement introuvable pour le litige", "payment_intent", dispute.PaymentIntent.ID)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return OutcomeProcessed, fmt.Errorf("lecture paiement: %w", err)
	}

	reason := string(dispute.Reason)
	if reason == "" {
		reason = "Litige perdu"
	}
	_, outcome, err := s.recordDebt(ctx, models.DebtKindDispute, payment, utils.FromMinorUnits(dispute.Amount),
		string(dispute.Status), reason, dispute.ID, SystemActor)
	return outcome, err
}
