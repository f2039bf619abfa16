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

// RequestPayout regroupe les paiements READY du créateur dans une nouvelle demande de versement.
// En mode automatique la demande est approuvée aussitôt ; un échec d'approbation la laisse en attente.
func (s *Service) RequestPayout(ctx context.Context, creatorID, requestedBy string) (*models.PayoutRequest, error) {
	creator, err := s.repo.FindCreatorByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if creator.PayoutBlocked {
		return nil, ErrPayoutsBlocked
	}

	req, err := s.repo.CreatePayoutRequest(ctx, store.NewPayoutRequest{
		ID:          s.newID(),
		CreatorID:   creatorID,
		Status:      models.PayoutRequestPendingApproval,
		RequestedBy: requestedBy,
		Currency:    s.cfg.Currency,
		MinAmount:   s.cfg.MinPayoutAmount,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("📤 Demande de versement créée", "payout_request_id", req.ID, "creator_id", creatorID,
		"total", req.TotalAmount.StringFixed(2), "payments", req.PaymentCount)
	s.emit(ctx, events.Event{Type: events.PayoutRequested, EntityType: "payout_request", EntityID: req.ID,
		CreatorID: creatorID, Actor: requestedBy, Amount: req.TotalAmount, Currency: req.Currency,
		Attributes: map[string]string{"payment_count": fmt.Sprint(req.PaymentCount)}})

	if !s.cfg.AutoApprove {
		return req, nil
	}
	approved, err := s.ApprovePayout(ctx, req.ID, SystemActor)
	if err != nil {
		s.logger.Warn("⚠️ Approbation automatique impossible", "payout_request_id", req.ID, "error", err)
		if approved != nil {
			return approved, nil
		}
		return req, nil
	}
	return approved, nil
}

// ApprovePayout approuve la demande puis lance le transfert vers le compte connecté du créateur.
// Solde plateforme insuffisant : aucune transition. Échec du transfert : demande FAILED, paiements libérés.
func (s *Service) ApprovePayout(ctx context.Context, requestID, adminID string) (*models.PayoutRequest, error) {
	req, err := s.repo.FindPayoutRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.PayoutRequestPendingApproval {
		return nil, store.ErrInvalidTransition
	}

	creator, err := s.repo.FindCreatorByID(ctx, req.CreatorID)
	if err != nil {
		return nil, err
	}
	if creator.PayoutBlocked {
		return nil, ErrPayoutsBlocked
	}
	if !creator.HasConnectedAccount() {
		return nil, ErrNoConnectedAccount
	}
	if s.processor == nil {
		return nil, ErrProcessorUnavailable
	}

	available, err := s.processor.AvailableBalance(ctx, req.Currency)
	if err != nil {
		s.logger.Error("❌ Lecture du solde plateforme impossible", "error", err)
		return nil, ErrProcessorUnavailable
	}
	if available.LessThan(req.TotalAmount) {
		s.logger.Warn("⚠️ Solde plateforme insuffisant", "payout_request_id", req.ID,
			"available", available.StringFixed(2), "required", req.TotalAmount.StringFixed(2))
		return nil, ErrInsufficientBalance
	}

	now := s.now()
	approved, err := s.repo.TransitionPayoutRequest(ctx, req.ID,
		[]models.PayoutRequestStatus{models.PayoutRequestPendingApproval}, models.PayoutRequestApproved,
		store.PayoutRequestUpdate{ApprovedBy: &adminID, ApprovedAt: &now, At: now})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.Event{Type: events.PayoutApproved, EntityType: "payout_request", EntityID: approved.ID,
		CreatorID: approved.CreatorID, Actor: adminID, Amount: approved.TotalAmount, Currency: approved.Currency})

	processing, err := s.repo.TransitionPayoutRequest(ctx, req.ID,
		[]models.PayoutRequestStatus{models.PayoutRequestApproved}, models.PayoutRequestProcessing,
		store.PayoutRequestUpdate{At: s.now()})
	if err != nil {
		return approved, fmt.Errorf("passage en traitement: %w", err)
	}

	transferID, err := s.processor.CreateTransfer(ctx, payments.TransferInput{
		Amount:      processing.TotalAmount,
		Currency:    processing.Currency,
		Destination: *creator.StripeAccountID,
		Metadata: map[string]string{
			payments.MetaPayoutRequestID: processing.ID,
			payments.MetaCreatorID:       processing.CreatorID,
		},
		IdempotencyKey: "payout-request-" + processing.ID,
	})
	if err != nil {
		return s.failPayout(ctx, processing, creator, err)
	}

	if err := s.repo.SetPayoutRequestTransferID(ctx, processing.ID, transferID); err != nil {
		s.logger.Error("❌ Transfert créé mais identifiant non enregistré", "payout_request_id", processing.ID,
			"transfer_id", transferID, "error", err)
	} else if processing.StripeTransferID == nil {
		processing.StripeTransferID = &transferID
	}
	s.logger.Info("💸 Transfert envoyé", "payout_request_id", processing.ID, "transfer_id", transferID,
		"amount", processing.TotalAmount.StringFixed(2))
	return processing, nil
}

func (s *Service) failPayout(ctx context.Context, req *models.PayoutRequest, creator *models.Creator, cause error) (*models.PayoutRequest, error) {
	reason := payments.FailureMessage(cause)
	s.logger.Error("❌ Transfert refusé", "payout_request_id", req.ID, "error", cause)

	failed, err := s.repo.TransitionPayoutRequest(ctx, req.ID,
		[]models.PayoutRequestStatus{models.PayoutRequestProcessing}, models.PayoutRequestFailed,
		store.PayoutRequestUpdate{FailureReason: &reason, At: s.now()})
	if err != nil {
		return req, fmt.Errorf("%w: %s (statut non mis à jour: %v)", ErrTransferFailed, reason, err)
	}

	s.emit(ctx, events.Event{Type: events.PayoutFailed, EntityType: "payout_request", EntityID: failed.ID,
		CreatorID: failed.CreatorID, Actor: SystemActor, Amount: failed.TotalAmount, Currency: failed.Currency,
		Attributes: map[string]string{"reason": reason}})
	s.notifyCreator(ctx, creator, models.NotificationPayoutFailed,
		"Versement échoué",
		fmt.Sprintf("Le versement de %s n'a pas pu être envoyé.", utils.FormatAmount(failed.TotalAmount, failed.Currency)),
		"/dashboard/creator/payouts/"+failed.ID,
		utils.PayoutFailedEmail(creator, failed, s.cfg.AppURL))
	return failed, fmt.Errorf("%w: %s", ErrTransferFailed, reason)
}

// RejectPayout refuse une demande en attente ; ses paiements redeviennent disponibles.
func (s *Service) RejectPayout(ctx context.Context, requestID, adminID, reason string) (*models.PayoutRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	rejected, err := s.repo.TransitionPayoutRequest(ctx, requestID,
		[]models.PayoutRequestStatus{models.PayoutRequestPendingApproval}, models.PayoutRequestRejected,
		store.PayoutRequestUpdate{RejectedBy: &adminID, RejectionReason: &reason, At: s.now()})
	if err != nil {
		return nil, err
	}

	s.logger.Info("🛑 Demande de versement rejetée", "payout_request_id", rejected.ID, "admin_id", adminID)
	s.emit(ctx, events.Event{Type: events.PayoutRejected, EntityType: "payout_request", EntityID: rejected.ID,
		CreatorID: rejected.CreatorID, Actor: adminID, Amount: rejected.TotalAmount, Currency: rejected.Currency,
		Attributes: map[string]string{"reason": reason}})

	if creator := s.loadCreator(ctx, rejected.CreatorID); creator != nil {
		s.notifyCreator(ctx, creator, models.NotificationPayoutRejected,
			"Demande de versement refusée", "Motif : "+reason,
			"/dashboard/creator/payouts/"+rejected.ID,
			utils.PayoutRejectedEmail(creator, rejected, reason, s.cfg.AppURL))
	}
	return rejected, nil
}

// RunPayoutSweep crée une demande par créateur ayant des paiements READY.
func (s *Service) RunPayoutSweep(ctx context.Context) (int, error) {
	creatorIDs, err := s.repo.ListCreatorsWithReadyPayments(ctx)
	if err != nil {
		return 0, fmt.Errorf("créateurs éligibles: %w", err)
	}

	created := 0
	for _, creatorID := range creatorIDs {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		_, err := s.RequestPayout(ctx, creatorID, SystemActor)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrPayoutsBlocked), errors.Is(err, store.ErrNoReadyPayments), errors.Is(err, store.ErrBelowMinimum):
			s.logger.Info("ℹ️ Créateur ignoré par le versement planifié", "creator_id", creatorID, "reason", err)
		default:
			s.logger.Warn("⚠️ Versement planifié échoué", "creator_id", creatorID, "error", err)
		}
	}
	s.logger.Info("📅 Versements planifiés", "creators", len(creatorIDs), "created", created)
	return created, nil
}

func (s *Service) CreatorForUser(ctx context.Context, userID string) (*models.Creator, error) {
	return s.repo.FindCreatorByUserID(ctx, userID)
}

func (s *Service) CreatorBalance(ctx context.Context, creatorID string) (*models.CreatorBalance, error) {
	return s.repo.CreatorBalance(ctx, creatorID)
}

func (s *Service) ListCreatorPayments(ctx context.Context, creatorID string, limit, offset int) ([]models.Payment, error) {
	return s.repo.ListPaymentsByCreator(ctx, creatorID, limit, offset)
}

func (s *Service) ListPayoutRequests(ctx context.Context, f store.PayoutRequestFilter) ([]models.PayoutRequest, error) {
	return s.repo.ListPayoutRequests(ctx, f)
}

// PayoutRequestDetail retourne la demande et les paiements qu'elle regroupe.
func (s *Service) PayoutRequestDetail(ctx context.Context, requestID string) (*models.PayoutRequest, []models.Payment, error) {
	req, err := s.repo.FindPayoutRequestByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	linked, err := s.repo.ListPayoutRequestPayments(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	return req, linked, nil
}

// PlatformBalance retourne le solde disponible de la plateforme chez le processeur.
func (s *Service) PlatformBalance(ctx context.Context) (decimal.Decimal, error) {
	if s.processor == nil {
		return decimal.Zero, ErrProcessorUnavailable
	}
	return s.processor.AvailableBalance(ctx, s.cfg.Currency)
}
