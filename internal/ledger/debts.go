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

	"github.com/shopspring/decimal"
)

// recordDebt enregistre un remboursement ou un litige, tente le recouvrement puis vérifie le blocage.
// Une dette déjà enregistrée (même identifiant externe) n'est pas dupliquée : seul le recouvrement est retenté.
func (s *Service) recordDebt(ctx context.Context, kind models.DebtKind, payment *models.Payment, amount decimal.Decimal, status, reason, externalID, createdBy string) (*models.Debt, Outcome, error) {
	amount = utils.RoundCents(amount)
	debt := &models.Debt{
		Kind:        kind,
		ID:          s.newID(),
		PaymentID:   payment.ID,
		CreatorID:   payment.CreatorID,
		Amount:      amount,
		Status:      status,
		CreatorDebt: s.CalculateCreatorDebt(amount),
		Reason:      reason,
		ExternalID:  externalID,
		CreatedBy:   createdBy,
		CreatedAt:   s.now(),
	}

	outcome := OutcomeProcessed
	err := s.repo.CreateDebt(ctx, debt)
	switch {
	case errors.Is(err, store.ErrDuplicateDebt):
		existing, findErr := s.repo.FindDebtByExternalID(ctx, kind, externalID)
		if findErr != nil {
			return nil, OutcomeProcessed, fmt.Errorf("lecture %s %s: %w", kind, externalID, findErr)
		}
		s.logger.Info("🔁 Dette déjà enregistrée", "kind", kind, "debt_id", existing.ID, "reconciled", existing.Reconciled)
		debt = existing
		outcome = OutcomeDuplicate
		if debt.Reconciled {
			return debt, outcome, nil
		}
	case err != nil:
		return nil, OutcomeProcessed, fmt.Errorf("enregistrement %s: %w", kind, err)
	default:
		s.logger.Warn("💸 Dette créateur enregistrée", "kind", kind, "debt_id", debt.ID, "payment_id", payment.ID,
			"amount", amount.StringFixed(2), "creator_debt", debt.CreatorDebt.StringFixed(2))
		s.emit(ctx, events.Event{Type: events.DebtRecorded, EntityType: string(kind), EntityID: debt.ID,
			CreatorID: debt.CreatorID, Actor: createdBy, Amount: debt.CreatorDebt, Currency: payment.Currency,
			Attributes: map[string]string{"payment_id": payment.ID, "external_id": externalID, "amount": amount.StringFixed(2)}})
	}

	if err := s.recoverDebt(ctx, debt, payment); err != nil {
		return debt, outcome, err
	}
	if _, err := s.CheckAndBlockPayouts(ctx, debt.CreatorID); err != nil {
		return debt, outcome, err
	}
	return debt, outcome, nil
}

// canReverse indique si la part créateur du paiement peut encore être reprise sur son transfert.
func (s *Service) canReverse(payment *models.Payment) bool {
	if payment.PayoutStatus != models.PayoutStatusPaid || payment.StripeTransferID == nil || *payment.StripeTransferID == "" {
		return false
	}
	if payment.PayoutDate == nil {
		return false
	}
	return s.now().Sub(*payment.PayoutDate) <= s.cfg.ReversalWindow
}

// recoverDebt tente de recouvrer la dette : déduction sur la part non versée si le paiement
// n'est pas encore parti, sinon annulation partielle du transfert d'origine.
// Un échec côté processeur laisse la dette ouverte pour déduction ou régularisation manuelle.
// Seule une erreur d'écriture en base est retournée.
func (s *Service) recoverDebt(ctx context.Context, debt *models.Debt, payment *models.Payment) error {
	log := s.logger.With("kind", debt.Kind, "debt_id", debt.ID, "payment_id", payment.ID)
	if payment.PayoutStatus == models.PayoutStatusHeld || payment.PayoutStatus == models.PayoutStatusReady {
		return s.deductUnpaid(ctx, debt, payment)
	}
	if s.processor == nil || !s.canReverse(payment) {
		log.Info("ℹ️ Annulation de transfert impossible, dette conservée pour déduction",
			"payout_status", payment.PayoutStatus)
		return nil
	}

	reversalID, err := s.processor.CreateTransferReversal(ctx, payments.ReversalInput{
		TransferID: *payment.StripeTransferID,
		Amount:     debt.CreatorDebt,
		Metadata: map[string]string{
			payments.MetaDebtRecovery: "true",
			payments.MetaDebtKind:     string(debt.Kind),
			payments.MetaDebtID:       debt.ID,
			payments.MetaPaymentID:    payment.ID,
			payments.MetaCreatorID:    payment.CreatorID,
		},
		IdempotencyKey: fmt.Sprintf("debt-recovery-%s-%s", debt.Kind, debt.ID),
	})
	if err != nil {
		log.Warn("⚠️ Annulation de transfert refusée, dette conservée", "error", err)
		return nil
	}

	reconciled, err := s.repo.ReconcileDebt(ctx, store.ReconcileInput{
		Kind:       debt.Kind,
		ID:         debt.ID,
		Method:     models.ReconciledByTransferReversal,
		ReversalID: &reversalID,
		At:         s.now(),
	})
	if errors.Is(err, store.ErrAlreadyReconciled) {
		log.Info("🔁 Dette déjà régularisée")
		return nil
	}
	if err != nil {
		return fmt.Errorf("régularisation %s %s: %w", debt.Kind, debt.ID, err)
	}
	*debt = *reconciled

	log.Info("✅ Dette recouvrée par annulation de transfert", "reversal_id", reversalID)
	s.emit(ctx, events.Event{Type: events.DebtReconciled, EntityType: string(debt.Kind), EntityID: debt.ID,
		CreatorID: debt.CreatorID, Actor: SystemActor, Amount: debt.CreatorDebt, Currency: payment.Currency,
		Attributes: map[string]string{"method": string(models.ReconciledByTransferReversal), "reversal_id": reversalID}})
	return nil
}

// refundedBeforePayoutReason motive le rejet d'une demande contenant un paiement remboursé.
const refundedBeforePayoutReason = "Paiement remboursé ou contesté avant versement"

// deductUnpaid retire la dette de la part créateur d'un paiement encore HELD ou READY.
// Une demande en attente d'approbation qui contient le paiement est rejetée pour libérer ses liens.
// Un paiement déjà engagé dans un transfert garde sa dette ouverte.
func (s *Service) deductUnpaid(ctx context.Context, debt *models.Debt, payment *models.Payment) error {
	log := s.logger.With("kind", debt.Kind, "debt_id", debt.ID, "payment_id", payment.ID)

	req, err := s.repo.FindActivePayoutRequestForPayment(ctx, payment.ID)
	switch {
	case errors.Is(err, store.ErrPayoutRequestNotFound):
	case err != nil:
		return fmt.Errorf("demande active du paiement %s: %w", payment.ID, err)
	case req.Status == models.PayoutRequestPendingApproval:
		if _, err := s.RejectPayout(ctx, req.ID, SystemActor, refundedBeforePayoutReason); err != nil {
			if errors.Is(err, store.ErrInvalidTransition) {
				log.Warn("⚠️ Demande déjà engagée, dette conservée", "payout_request_id", req.ID)
				return nil
			}
			return fmt.Errorf("rejet demande %s: %w", req.ID, err)
		}
	default:
		log.Info("ℹ️ Paiement en cours de versement, dette conservée", "payout_request_id", req.ID, "status", req.Status)
		return nil
	}

	updated, err := s.repo.DeductUnpaidPayment(ctx, store.UnpaidDeduction{
		PaymentID: payment.ID,
		Amount:    debt.CreatorDebt,
		Refunded:  debt.Amount.GreaterThanOrEqual(payment.Amount),
		At:        s.now(),
	})
	if errors.Is(err, store.ErrPaymentNotDeductible) {
		log.Warn("⚠️ Paiement engagé entre-temps, dette conservée")
		return nil
	}
	if err != nil {
		return fmt.Errorf("déduction paiement %s: %w", payment.ID, err)
	}
	*payment = *updated

	reconciled, err := s.repo.ReconcileDebt(ctx, store.ReconcileInput{
		Kind:   debt.Kind,
		ID:     debt.ID,
		Method: models.ReconciledByPayoutDeduction,
		At:     s.now(),
	})
	if errors.Is(err, store.ErrAlreadyReconciled) {
		log.Info("🔁 Dette déjà régularisée")
		return nil
	}
	if err != nil {
		return fmt.Errorf("régularisation %s %s: %w", debt.Kind, debt.ID, err)
	}
	*debt = *reconciled

	log.Info("✅ Dette déduite de la part non versée", "creator_amount", updated.CreatorAmount.StringFixed(2),
		"status", updated.Status)
	s.emit(ctx, events.Event{Type: events.DebtReconciled, EntityType: string(debt.Kind), EntityID: debt.ID,
		CreatorID: debt.CreatorID, Actor: SystemActor, Amount: debt.CreatorDebt, Currency: payment.Currency,
		Attributes: map[string]string{"method": string(models.ReconciledByPayoutDeduction), "payment_id": payment.ID,
			"payment_status": string(updated.Status)}})
	return nil
}

// CheckAndBlockPayouts bloque les versements du créateur quand sa dette non régularisée atteint le seuil.
func (s *Service) CheckAndBlockPayouts(ctx context.Context, creatorID string) (bool, error) {
	total, err := s.repo.SumUnreconciledDebt(ctx, creatorID)
	if err != nil {
		return false, fmt.Errorf("dette créateur %s: %w", creatorID, err)
	}
	if total.LessThan(s.cfg.DebtBlockThreshold) {
		return false, nil
	}

	creator, err := s.repo.FindCreatorByID(ctx, creatorID)
	if err != nil {
		return false, fmt.Errorf("lecture créateur %s: %w", creatorID, err)
	}
	if creator.PayoutBlocked {
		return false, nil
	}

	reason := fmt.Sprintf("Dette non régularisée de %s (seuil %s)",
		utils.FormatAmount(total, s.cfg.Currency), utils.FormatAmount(s.cfg.DebtBlockThreshold, s.cfg.Currency))
	changed, err := s.repo.SetCreatorPayoutBlock(ctx, creatorID, true, reason, s.now())
	if err != nil {
		return false, fmt.Errorf("blocage créateur %s: %w", creatorID, err)
	}
	if !changed {
		return false, nil
	}

	s.logger.Warn("🚫 Versements bloqués", "creator_id", creatorID, "unreconciled_debt", total.StringFixed(2))
	s.emit(ctx, events.Event{Type: events.CreatorPayoutsBlocked, EntityType: "creator", EntityID: creatorID,
		CreatorID: creatorID, Actor: SystemActor, Amount: total, Currency: s.cfg.Currency,
		Attributes: map[string]string{"reason": reason}})

	s.notifyCreator(ctx, creator, models.NotificationPayoutsBlocked,
		"⚠️ Versements suspendus", reason+". Merci de contacter le support.",
		"/dashboard/creator/payouts",
		utils.PayoutsBlockedEmail(creator, total, s.cfg.Currency, s.cfg.AppURL))

	admins, err := s.repo.ListAdmins(ctx)
	if err != nil {
		s.logger.Warn("⚠️ Administrateurs non notifiés", "creator_id", creatorID, "error", err)
		return true, nil
	}
	for i := range admins {
		admin := &admins[i]
		s.notifyInApp(ctx, admin.ID, models.NotificationPayoutsBlocked,
			"Créateur bloqué", fmt.Sprintf("Versements de %s bloqués : %s", creator.Name, reason),
			"/dashboard/admin/creators/"+creatorID)
		s.sendEmail(ctx, admin.Email, utils.PayoutsBlockedAdminEmail(admin, creator, total, s.cfg.Currency, s.cfg.AppURL))
	}
	return true, nil
}

// CheckAndUnblockPayouts lève le blocage quand la dette non régularisée est entièrement soldée.
func (s *Service) CheckAndUnblockPayouts(ctx context.Context, creatorID string) (bool, error) {
	total, err := s.repo.SumUnreconciledDebt(ctx, creatorID)
	if err != nil {
		return false, fmt.Errorf("dette créateur %s: %w", creatorID, err)
	}
	if !total.IsZero() {
		return false, nil
	}

	changed, err := s.repo.SetCreatorPayoutBlock(ctx, creatorID, false, "", s.now())
	if err != nil {
		return false, fmt.Errorf("déblocage créateur %s: %w", creatorID, err)
	}
	if !changed {
		return false, nil
	}

	s.logger.Info("✅ Versements débloqués", "creator_id", creatorID)
	s.emit(ctx, events.Event{Type: events.CreatorPayoutsUnlocked, EntityType: "creator", EntityID: creatorID,
		CreatorID: creatorID, Actor: SystemActor})

	if creator := s.loadCreator(ctx, creatorID); creator != nil {
		s.notifyCreator(ctx, creator, models.NotificationPayoutsUnblocked,
			"Versements rétablis", "Votre dette est régularisée, vos versements reprennent.",
			"/dashboard/creator/payouts",
			utils.PayoutsUnblockedEmail(creator, s.cfg.AppURL))
	}
	return true, nil
}

// ReconcileDebt régularise une dette à la main (déduction sur versement ou accord manuel).
func (s *Service) ReconcileDebt(ctx context.Context, kind models.DebtKind, id string, method models.ReconciliationMethod, adminID string) (*models.Debt, error) {
	if !kind.Valid() {
		return nil, ErrInvalidDebtKind
	}
	if method != models.ReconciledByPayoutDeduction && method != models.ReconciledByManual {
		return nil, ErrInvalidReconciliationMethod
	}

	debt, err := s.repo.ReconcileDebt(ctx, store.ReconcileInput{Kind: kind, ID: id, Method: method, At: s.now()})
	if err != nil {
		return debt, err
	}

	s.logger.Info("✅ Dette régularisée", "kind", kind, "debt_id", id, "method", method, "admin_id", adminID)
	s.emit(ctx, events.Event{Type: events.DebtReconciled, EntityType: string(kind), EntityID: id,
		CreatorID: debt.CreatorID, Actor: adminID, Amount: debt.CreatorDebt,
		Attributes: map[string]string{"method": string(method)}})

	if _, err := s.CheckAndUnblockPayouts(ctx, debt.CreatorID); err != nil {
		s.logger.Warn("⚠️ Vérification du déblocage échouée", "creator_id", debt.CreatorID, "error", err)
	}
	return debt, nil
}

// RefundPayment rembourse un paiement (totalement si amount est nil) et enregistre la dette créateur.
// idempotencyKey identifie l'action côté client : une relance avec la même clé rejoue le même
// remboursement. Vide, chaque appel est un remboursement distinct.
func (s *Service) RefundPayment(ctx context.Context, paymentID string, amount *decimal.Decimal, reason, adminID, idempotencyKey string) (*models.Debt, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	payment, err := s.repo.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusSucceeded {
		return nil, ErrPaymentNotRefundable
	}

	refundAmount := payment.Amount
	if amount != nil {
		refundAmount = utils.RoundCents(*amount)
	}
	if !refundAmount.IsPositive() || refundAmount.GreaterThan(payment.Amount) {
		return nil, ErrInvalidRefundAmount
	}
	if s.processor == nil {
		return nil, ErrProcessorUnavailable
	}

	result, err := s.processor.CreateRefund(ctx, payments.RefundInput{
		PaymentIntentID: payment.StripePaymentIntentID,
		Amount:          refundAmount,
		Reason:          reason,
		Metadata: map[string]string{
			payments.MetaPaymentID: payment.ID,
			payments.MetaCreatorID: payment.CreatorID,
		},
		IdempotencyKey: refundKey(payment.ID, idempotencyKey, s.newID),
	})
	if err != nil {
		s.logger.Error("❌ Remboursement refusé", "payment_id", payment.ID, "error", err)
		return nil, fmt.Errorf("%w: %s", ErrRefundFailed, payments.FailureMessage(err))
	}

	debt, _, err := s.recordDebt(ctx, models.DebtKindRefund, payment, refundAmount, result.Status, reason, result.ID, adminID)
	return debt, err
}

func refundKey(paymentID, clientKey string, newID func() string) string {
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		return "refund-" + newID()
	}
	return fmt.Sprintf("refund-%s-%s", paymentID, clientKey)
}

func (s *Service) ListDebts(ctx context.Context, f store.DebtFilter) ([]models.Debt, error) {
	return s.repo.ListDebts(ctx, f)
}
