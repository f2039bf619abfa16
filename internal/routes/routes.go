package routes

import (
	"log/slog"
	"net/http"
	"time"

	"callastar_back_end/internal/handlers"
	"callastar_back_end/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Options configure les middlewares communs.
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	RateCounter    middleware.RateCounter
	Logger         *slog.Logger
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// Stripe signe le corps : pas d'authentification JWT.
	api.POST("/webhooks/stripe", h.StripeWebhook)

	auth := middleware.AuthRequired(opts.JWTSecret, logger)

	// Espace créateur
	me := api.Group("/creators/me", auth)
	{
		me.GET("/balance", h.GetMyBalance)
		me.GET("/payments", h.ListMyPayments)
		me.GET("/payouts", h.ListMyPayouts)
		me.POST("/payouts",
			middleware.RateLimit(opts.RateCounter, "payout_requests",
				middleware.PayoutRequestMaxAttempts, middleware.PayoutRequestWindow, logger),
			h.RequestMyPayout)
		me.GET("/payouts/:id/statement", h.GetMyPayoutStatement)
	}

	// Back-office
	admin := api.Group("/admin", auth, middleware.RequireAdmin)
	{
		admin.GET("/payouts", h.ListPayouts)
		admin.GET("/payouts/:id", h.GetPayout)
		admin.POST("/payouts/:id/approve", h.ApprovePayout)
		admin.POST("/payouts/:id/reject", h.RejectPayout)
		admin.POST("/creators/:id/payouts", h.CreateCreatorPayout)
		admin.POST("/creators/:id/payout-block/check", h.CheckPayoutBlock)
		admin.POST("/payments/release", h.ReleasePayments)
		admin.POST("/payments/:id/refund", h.RefundPayment)
		admin.GET("/debts", h.ListDebts)
		admin.POST("/debts/:kind/:id/reconcile", h.ReconcileDebt)
		admin.GET("/balance", h.GetPlatformBalance)
		admin.GET("/ledger/events", h.SearchLedgerEvents)
	}
}
