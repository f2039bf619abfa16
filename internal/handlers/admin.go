package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"callastar_back_end/internal/events"
	"callastar_back_end/internal/ledger"
	"callastar_back_end/internal/middleware"
	"callastar_back_end/internal/models"
	"callastar_back_end/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ListPayouts liste les demandes de versement, filtrables par statut et créateur.
func (h *Handler) ListPayouts(c *gin.Context) {
	status := models.PayoutRequestStatus(strings.ToUpper(c.Query("status")))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Statut invalide"})
		return
	}
	limit, offset := pagination(c)
	list, err := h.ledger.ListPayoutRequests(c.Request.Context(), store.PayoutRequestFilter{
		CreatorID: c.Query("creator_id"),
		Status:    status,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.respondError(c, "Liste versements", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout_requests": nonNil(list), "limit": limit, "offset": offset})
}

func (h *Handler) GetPayout(c *gin.Context) {
	req, linked, err := h.ledger.PayoutRequestDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Lecture demande de versement", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout_request": req, "payments": nonNil(linked)})
}

// ApprovePayout approuve et envoie le transfert. Un refus du processeur renvoie la demande FAILED.
func (h *Handler) ApprovePayout(c *gin.Context) {
	req, err := h.ledger.ApprovePayout(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if errors.Is(err, ledger.ErrTransferFailed) && req != nil {
		h.logger.Warn("⚠️ Transfert refusé", "payout_request_id", req.ID, "error", err)
		body := gin.H{"error": "Le transfert a été refusé par le processeur de paiement", "payout_request": req}
		if req.FailureReason != nil {
			body["failure_reason"] = *req.FailureReason
		}
		c.JSON(http.StatusBadGateway, body)
		return
	}
	if err != nil {
		h.respondError(c, "Approbation versement", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout_request": req})
}

type reasonInput struct {
	Reason string `json:"reason"`
}

func (h *Handler) RejectPayout(c *gin.Context) {
	var in reasonInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	req, err := h.ledger.RejectPayout(c.Request.Context(), c.Param("id"), middleware.UserID(c), in.Reason)
	if err != nil {
		h.respondError(c, "Refus versement", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout_request": req})
}

// CreateCreatorPayout crée une demande pour le compte d'un créateur.
func (h *Handler) CreateCreatorPayout(c *gin.Context) {
	req, err := h.ledger.RequestPayout(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.respondError(c, "Création versement", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payout_request": req})
}

func (h *Handler) ReleasePayments(c *gin.Context) {
	n, err := h.ledger.ReleaseHeldPayments(c.Request.Context())
	if err != nil {
		h.respondError(c, "Libération paiements", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": n})
}

type refundInput struct {
	Amount *string `json:"amount"`
	Reason string  `json:"reason"`
}

// RefundPayment rembourse tout ou partie d'un paiement et retourne la dette créateur enregistrée.
func (h *Handler) RefundPayment(c *gin.Context) {
	var in refundInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	var amount *decimal.Decimal
	if in.Amount != nil {
		parsed, err := decimal.NewFromString(strings.TrimSpace(*in.Amount))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Montant de remboursement invalide"})
			return
		}
		amount = &parsed
	}

	debt, err := h.ledger.RefundPayment(c.Request.Context(), c.Param("id"), amount, in.Reason,
		middleware.UserID(c), c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.respondError(c, "Remboursement", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"debt": debt})
}

func (h *Handler) ListDebts(c *gin.Context) {
	kind := models.DebtKind(strings.ToLower(c.Query("kind")))
	if kind != "" && !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type de dette invalide"})
		return
	}
	limit, _ := pagination(c)
	unreconciled, _ := strconv.ParseBool(c.Query("unreconciled"))
	list, err := h.ledger.ListDebts(c.Request.Context(), store.DebtFilter{
		CreatorID:        c.Query("creator_id"),
		Kind:             kind,
		UnreconciledOnly: unreconciled,
		Limit:            limit,
	})
	if err != nil {
		h.respondError(c, "Liste dettes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"debts": nonNil(list)})
}

type reconcileInput struct {
	Method string `json:"method" binding:"required"`
}

func (h *Handler) ReconcileDebt(c *gin.Context) {
	var in reconcileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Méthode de régularisation requise"})
		return
	}
	debt, err := h.ledger.ReconcileDebt(c.Request.Context(),
		models.DebtKind(strings.ToLower(c.Param("kind"))), c.Param("id"),
		models.ReconciliationMethod(strings.ToUpper(in.Method)), middleware.UserID(c))
	if err != nil {
		h.respondError(c, "Régularisation dette", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"debt": debt})
}

// CheckPayoutBlock réévalue le blocage d'un créateur dans les deux sens.
func (h *Handler) CheckPayoutBlock(c *gin.Context) {
	ctx := c.Request.Context()
	creatorID := c.Param("id")
	blocked, err := h.ledger.CheckAndBlockPayouts(ctx, creatorID)
	if err != nil {
		h.respondError(c, "Contrôle blocage", err)
		return
	}
	unblocked, err := h.ledger.CheckAndUnblockPayouts(ctx, creatorID)
	if err != nil {
		h.respondError(c, "Contrôle déblocage", err)
		return
	}
	balance, err := h.ledger.CreatorBalance(ctx, creatorID)
	if err != nil {
		h.respondError(c, "Lecture solde créateur", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"blocked":           blocked,
		"unblocked":         unblocked,
		"payout_blocked":    balance.PayoutBlocked,
		"unreconciled_debt": balance.UnreconciledDebt,
	})
}

func (h *Handler) GetPlatformBalance(c *gin.Context) {
	available, err := h.ledger.PlatformBalance(c.Request.Context())
	if err != nil {
		h.respondError(c, "Solde plateforme", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": available, "currency": h.ledger.Config().Currency})
}

// SearchLedgerEvents interroge l'index Elasticsearch des événements du grand livre.
func (h *Handler) SearchLedgerEvents(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Recherche d'événements indisponible"})
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))
	found, err := h.searcher.Search(c.Request.Context(), events.SearchQuery{
		CreatorID: c.Query("creator_id"),
		EntityID:  c.Query("entity_id"),
		Type:      c.Query("type"),
		Size:      size,
	})
	if err != nil {
		h.respondError(c, "Recherche événements", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": nonNil(found)})
}
