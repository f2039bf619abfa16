package handlers

import (
	"errors"
	"net/http"

	"callastar_back_end/internal/ledger"
	"callastar_back_end/internal/services"
	"callastar_back_end/internal/store"

	"github.com/gin-gonic/gin"
)

type apiError struct {
	status  int
	message string
}

// Erreurs métier connues et leur traduction HTTP. Les autres erreurs deviennent des 500 génériques.
var knownErrors = []struct {
	err error
	apiError
}{
	{store.ErrBookingNotFound, apiError{http.StatusNotFound, "Réservation introuvable"}},
	{store.ErrUserNotFound, apiError{http.StatusNotFound, "Utilisateur introuvable"}},
	{store.ErrCreatorNotFound, apiError{http.StatusNotFound, "Créateur introuvable"}},
	{store.ErrPaymentNotFound, apiError{http.StatusNotFound, "Paiement introuvable"}},
	{store.ErrPayoutRequestNotFound, apiError{http.StatusNotFound, "Demande de versement introuvable"}},
	{store.ErrDebtNotFound, apiError{http.StatusNotFound, "Dette introuvable"}},
	{services.ErrObjectNotFound, apiError{http.StatusNotFound, "Relevé indisponible"}},

	{store.ErrInvalidTransition, apiError{http.StatusConflict, "Statut incompatible avec cette action"}},
	{store.ErrPaymentAlreadyBundled, apiError{http.StatusConflict, "Paiement déjà inclus dans une demande active"}},
	{store.ErrAlreadyReconciled, apiError{http.StatusConflict, "Dette déjà régularisée"}},
	{ledger.ErrPayoutsBlocked, apiError{http.StatusConflict, "Versements bloqués pour ce créateur (dette non régularisée)"}},
	{ledger.ErrInsufficientBalance, apiError{http.StatusConflict, "Solde plateforme insuffisant"}},
	{ledger.ErrPaymentNotRefundable, apiError{http.StatusConflict, "Ce paiement ne peut pas être remboursé"}},

	{store.ErrNoReadyPayments, apiError{http.StatusUnprocessableEntity, "Aucun paiement disponible pour un versement"}},
	{store.ErrBelowMinimum, apiError{http.StatusUnprocessableEntity, "Montant disponible inférieur au minimum de versement"}},
	{ledger.ErrNoConnectedAccount, apiError{http.StatusUnprocessableEntity, "Compte Stripe Connect non configuré"}},

	{ledger.ErrReasonRequired, apiError{http.StatusBadRequest, "Motif requis"}},
	{ledger.ErrInvalidRefundAmount, apiError{http.StatusBadRequest, "Montant de remboursement invalide"}},
	{ledger.ErrInvalidReconciliationMethod, apiError{http.StatusBadRequest, "Méthode de régularisation invalide"}},
	{ledger.ErrInvalidDebtKind, apiError{http.StatusBadRequest, "Type de dette invalide"}},

	{ledger.ErrProcessorUnavailable, apiError{http.StatusServiceUnavailable, "Processeur de paiement indisponible"}},
	{ledger.ErrTransferFailed, apiError{http.StatusBadGateway, "Le transfert a été refusé par le processeur de paiement"}},
	{ledger.ErrRefundFailed, apiError{http.StatusBadGateway, "Le remboursement a été refusé par le processeur de paiement"}},
}

func classify(err error) apiError {
	for _, k := range knownErrors {
		if errors.Is(err, k.err) {
			return k.apiError
		}
	}
	return apiError{http.StatusInternalServerError, "Erreur interne"}
}

// respondError journalise l'erreur et répond {"error": ...} sans exposer le détail interne.
func (h *Handler) respondError(c *gin.Context, op string, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		h.logger.Error("❌ "+op, "error", err, "path", c.FullPath())
	} else {
		h.logger.Info("ℹ️ "+op+" refusé", "error", err, "status", e.status)
	}
	c.JSON(e.status, gin.H{"error": e.message})
}
