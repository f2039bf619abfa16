package handlers

import (
	"errors"
	"net/http"

	"callastar_back_end/internal/cache"
	"callastar_back_end/internal/middleware"
	"callastar_back_end/internal/models"
	"callastar_back_end/internal/store"

	"github.com/gin-gonic/gin"
)

// currentCreator résout le profil créateur de l'utilisateur authentifié.
func (h *Handler) currentCreator(c *gin.Context) (*models.Creator, bool) {
	creator, err := h.ledger.CreatorForUser(c.Request.Context(), middleware.UserID(c))
	if errors.Is(err, store.ErrCreatorNotFound) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Profil créateur requis"})
		return nil, false
	}
	if err != nil {
		h.respondError(c, "Lecture profil créateur", err)
		return nil, false
	}
	return creator, true
}

// GetMyBalance retourne le résumé financier du créateur, via le cache Redis si disponible.
func (h *Handler) GetMyBalance(c *gin.Context) {
	creator, ok := h.currentCreator(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	key := cache.CreatorBalanceKey(creator.ID)

	if h.cache != nil {
		var cached models.CreatorBalance
		err := h.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			h.logger.Warn("⚠️ Cache solde indisponible", "creator_id", creator.ID, "error", err)
		}
	}

	balance, err := h.ledger.CreatorBalance(ctx, creator.ID)
	if err != nil {
		h.respondError(c, "Lecture solde créateur", err)
		return
	}
	if h.cache != nil {
		if err := h.cache.SetJSON(ctx, key, balance, balanceCacheTTL); err != nil {
			h.logger.Warn("⚠️ Mise en cache du solde échouée", "creator_id", creator.ID, "error", err)
		}
	}
	c.JSON(http.StatusOK, balance)
}

func (h *Handler) ListMyPayments(c *gin.Context) {
	creator, ok := h.currentCreator(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)
	list, err := h.ledger.ListCreatorPayments(c.Request.Context(), creator.ID, limit, offset)
	if err != nil {
		h.respondError(c, "Liste paiements créateur", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": nonNil(list), "limit": limit, "offset": offset})
}

func (h *Handler) ListMyPayouts(c *gin.Context) {
	creator, ok := h.currentCreator(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)
	list, err := h.ledger.ListPayoutRequests(c.Request.Context(), store.PayoutRequestFilter{
		CreatorID: creator.ID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.respondError(c, "Liste versements créateur", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout_requests": nonNil(list), "limit": limit, "offset": offset})
}

// RequestMyPayout regroupe les paiements READY du créateur dans une nouvelle demande.
func (h *Handler) RequestMyPayout(c *gin.Context) {
	creator, ok := h.currentCreator(c)
	if !ok {
		return
	}
	req, err := h.ledger.RequestPayout(c.Request.Context(), creator.ID, middleware.UserID(c))
	if err != nil {
		h.respondError(c, "Demande de versement", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payout_request": req})
}

// GetMyPayoutStatement retourne un lien temporaire vers le relevé PDF d'un versement terminé.
func (h *Handler) GetMyPayoutStatement(c *gin.Context) {
	creator, ok := h.currentCreator(c)
	if !ok {
		return
	}
	if h.statements == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Relevés indisponibles"})
		return
	}

	ctx := c.Request.Context()
	req, _, err := h.ledger.PayoutRequestDetail(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, "Lecture demande de versement", err)
		return
	}
	// Une demande d'un autre créateur est traitée comme introuvable.
	if req.CreatorID != creator.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Demande de versement introuvable"})
		return
	}
	if req.Status != models.PayoutRequestCompleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Relevé disponible uniquement pour un versement terminé"})
		return
	}

	url, err := h.statements.StatementURL(ctx, creator.ID, req.ID, statementURLTTL)
	if err != nil {
		h.respondError(c, "Lien relevé", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int(statementURLTTL.Seconds())})
}

// nonNil évite de sérialiser une liste vide en null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
