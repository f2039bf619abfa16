// Package ledger porte la machine à états paiements / versements et le registre des dettes créateur.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"callastar_back_end/internal/events"
	"callastar_back_end/internal/models"
	"callastar_back_end/internal/payments"
	"callastar_back_end/internal/store"
	"callastar_back_end/internal/utils"
	"callastar_back_end/internal/video"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SystemActor identifie les actions déclenchées par le planificateur.
const SystemActor = "system"

// Config regroupe les paramètres métier du grand livre.
type Config struct {
	HoldPeriod         time.Duration
	CreatorShare       decimal.Decimal
	FeeTolerance       decimal.Decimal
	DebtBlockThreshold decimal.Decimal
	ReversalWindow     time.Duration
	MinPayoutAmount    decimal.Decimal
	Currency           string
	AutoApprove        bool
	SideEffectTimeout  time.Duration
	AppURL             string
}

func DefaultConfig() Config {
	return Config{
		HoldPeriod:         7 * 24 * time.Hour,
		CreatorShare:       decimal.RequireFromString("0.85"),
		FeeTolerance:       decimal.RequireFromString("0.02"),
		DebtBlockThreshold: decimal.NewFromInt(100),
		ReversalWindow:     180 * 24 * time.Hour,
		MinPayoutAmount:    decimal.Zero,
		Currency:           "eur",
		SideEffectTimeout:  10 * time.Second,
		AppURL:             "http://localhost:3000",
	}
}

// EventDeduper court-circuite les événements Stripe déjà traités.
type EventDeduper interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string) error
}

// WebhookArchiver conserve le corps brut des webhooks reçus.
type WebhookArchiver interface {
	ArchiveWebhook(ctx context.Context, eventID, eventType string, payload []byte) error
}

// StatementGenerator produit le relevé PDF d'un versement.
type StatementGenerator interface {
	GeneratePayoutStatement(ctx context.Context, creator *models.Creator, request *models.PayoutRequest, payments []models.Payment) ([]byte, error)
}

// Deps sont les collaborateurs du service. Deduper, Archiver et Statements sont optionnels.
type Deps struct {
	Repo       store.Repository
	Processor  payments.Processor
	Rooms      video.RoomProvider
	Mailer     utils.Mailer
	Emitter    events.Emitter
	Deduper    EventDeduper
	Archiver   WebhookArchiver
	Statements StatementGenerator
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

type Service struct {
	repo       store.Repository
	processor  payments.Processor
	rooms      video.RoomProvider
	mailer     utils.Mailer
	emitter    events.Emitter
	deduper    EventDeduper
	archiver   WebhookArchiver
	statements StatementGenerator
	logger     *slog.Logger
	cfg        Config
	now        func() time.Time
	newID      func() string
}

func NewService(deps Deps, cfg Config) *Service {
	s := &Service{
		repo:       deps.Repo,
		processor:  deps.Processor,
		rooms:      deps.Rooms,
		mailer:     deps.Mailer,
		emitter:    deps.Emitter,
		deduper:    deps.Deduper,
		archiver:   deps.Archiver,
		statements: deps.Statements,
		logger:     deps.Logger,
		cfg:        cfg,
		now:        deps.Now,
		newID:      deps.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.cfg.SideEffectTimeout <= 0 {
		s.cfg.SideEffectTimeout = 10 * time.Second
	}
	return s
}

func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) emit(ctx context.Context, e events.Event) {
	if s.emitter == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	s.emitter.Emit(ctx, e)
}

// CalculateCreatorDebt retourne la part créateur d'un montant remboursé ou contesté, arrondie au centime.
func (s *Service) CalculateCreatorDebt(amount decimal.Decimal) decimal.Decimal {
	return utils.RoundCents(amount.Mul(s.cfg.CreatorShare))
}
