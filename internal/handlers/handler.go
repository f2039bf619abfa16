// Package handlers expose le grand livre en HTTP (webhook Stripe, espace créateur, back-office).
package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"callastar_back_end/internal/events"
	"callastar_back_end/internal/ledger"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	balanceCacheTTL = 30 * time.Second
	statementURLTTL = 15 * time.Minute
)

// BalanceCache met en cache le solde créateur (Redis).
type BalanceCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// StatementLinker signe un lien temporaire vers le relevé PDF d'un versement.
type StatementLinker interface {
	StatementURL(ctx context.Context, creatorID, requestID string, duration time.Duration) (string, error)
}

// Deps regroupe les collaborateurs des handlers. Cache, Searcher et Statements sont optionnels.
type Deps struct {
	Ledger        *ledger.Service
	WebhookSecret string
	Cache         BalanceCache
	Searcher      events.Searcher
	Statements    StatementLinker
	Logger        *slog.Logger
}

type Handler struct {
	ledger        *ledger.Service
	webhookSecret string
	cache         BalanceCache
	searcher      events.Searcher
	statements    StatementLinker
	logger        *slog.Logger
}

func New(d Deps) *Handler {
	h := &Handler{
		ledger:        d.Ledger,
		webhookSecret: d.WebhookSecret,
		cache:         d.Cache,
		searcher:      d.Searcher,
		statements:    d.Statements,
		logger:        d.Logger,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// pagination lit limit/offset en les bornant.
func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err = strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
