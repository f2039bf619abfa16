package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// Demandes de versement par créateur
	PayoutRequestMaxAttempts = 5
	PayoutRequestWindow      = time.Hour
)

// RateCounter incrémente un compteur à fenêtre fixe (Redis).
type RateCounter interface {
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimit limite le nombre de requêtes par utilisateur authentifié (ou par IP à défaut).
// Sans compteur, ou si Redis est injoignable, la requête passe.
func RateLimit(counter RateCounter, prefix string, max int64, window time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil {
			c.Next()
			return
		}

		subject := UserID(c)
		if subject == "" {
			subject = c.ClientIP()
		}
		key := prefix + ":" + subject

		count, err := counter.IncrementRateLimit(c.Request.Context(), key, window)
		if err != nil {
			logger.Warn("⚠️ Rate limit indisponible", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", max))
		remaining := max - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > max {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("Trop de demandes. Réessayez dans %d minutes", int(window.Minutes())),
				"retry_after": int(window.Seconds()),
			})
			return
		}
		c.Next()
	}
}
