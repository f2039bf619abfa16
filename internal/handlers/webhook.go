package handlers

import (
	"errors"
	"net/http"

	"callastar_back_end/internal/payments"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = int64(65536)

// StripeWebhook vérifie la signature puis délègue au grand livre.
// Seule une écriture en base échouée produit une réponse autre que 200 après vérification.
func (h *Handler) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)

	payload, err := c.GetRawData()
	if err != nil {
		h.logger.Warn("❌ Lecture payload échouée", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Échec lecture body"})
		return
	}

	event, err := payments.VerifyEvent(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		if errors.Is(err, payments.ErrWebhookSecretMissing) {
			h.logger.Error("❌ STRIPE_WEBHOOK_SECRET non configuré")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook non configuré"})
			return
		}
		h.logger.Warn("❌ Signature Stripe invalide", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
		return
	}

	h.logger.Info("📥 Événement Stripe reçu", "event_id", event.ID, "type", event.Type)
	outcome, err := h.ledger.HandleEvent(c.Request.Context(), event, payload)
	if err != nil {
		h.logger.Error("❌ Traitement webhook échoué", "event_id", event.ID, "type", event.Type, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur de traitement"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}
