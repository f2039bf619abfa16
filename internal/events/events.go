// Package events est le point d'émission unique des transitions du grand livre.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	PaymentCreated         Type = "payment.created"
	PaymentSucceeded       Type = "payment.succeeded"
	PaymentSkipped         Type = "payment.skipped"
	PaymentFeeMismatch     Type = "payment.fee_mismatch"
	PaymentsReleased       Type = "payments.released"
	PayoutRequested        Type = "payout.requested"
	PayoutApproved         Type = "payout.approved"
	PayoutRejected         Type = "payout.rejected"
	PayoutFailed           Type = "payout.failed"
	PayoutCompleted        Type = "payout.completed"
	PayoutReversed         Type = "payout.reversed"
	DebtRecorded           Type = "debt.recorded"
	DebtReconciled         Type = "debt.reconciled"
	CreatorPayoutsBlocked  Type = "creator.payouts_blocked"
	CreatorPayoutsUnlocked Type = "creator.payouts_unblocked"
)

// Event décrit une transition du grand livre.
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	CreatorID  string            `json:"creator_id,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	Amount     decimal.Decimal   `json:"amount"`
	Currency   string            `json:"currency,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Emitter reçoit les événements du grand livre.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// Sink est une destination d'événements (journal, audit, broker, index).
type Sink interface {
	Name() string
	Write(ctx context.Context, e Event) error
}

// QueueSize borne la file des sinks asynchrones.
const QueueSize = 1024

// Bus diffuse chaque événement à tous les sinks. Un sink en échec est journalisé
// et n'empêche ni les autres sinks ni l'appelant.
// Le journal est écrit dans la goroutine de l'appelant ; les autres sinks (audit, broker,
// index, cache) sont servis par un worker à partir d'une file bornée. File pleine ou bus
// fermé : l'écriture se fait en direct, aucun événement n'est perdu.
type Bus struct {
	inline  []Sink
	async   []Sink
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

type queued struct {
	ctx context.Context
	e   Event
}

func NewBus(logger *slog.Logger, timeout time.Duration, sinks ...Sink) *Bus {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	b := &Bus{logger: logger, timeout: timeout, done: make(chan struct{})}
	for _, sink := range sinks {
		if _, ok := sink.(*LogSink); ok {
			b.inline = append(b.inline, sink)
		} else {
			b.async = append(b.async, sink)
		}
	}
	if len(b.async) == 0 {
		close(b.done)
		return b
	}
	b.queue = make(chan queued, QueueSize)
	go b.run()
	return b
}

func (b *Bus) run() {
	defer close(b.done)
	for q := range b.queue {
		b.write(q.ctx, b.async, q.e)
	}
}

func (b *Bus) Emit(ctx context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	ctx = context.WithoutCancel(ctx)

	b.write(ctx, b.inline, e)
	if len(b.async) == 0 {
		return
	}

	b.mu.RLock()
	if !b.closed {
		select {
		case b.queue <- queued{ctx: ctx, e: e}:
			b.mu.RUnlock()
			return
		default:
			b.logger.Warn("⚠️ File d'événements pleine, écriture directe", "type", e.Type, "entity_id", e.EntityID)
		}
	}
	b.mu.RUnlock()
	b.write(ctx, b.async, e)
}

func (b *Bus) write(ctx context.Context, sinks []Sink, e Event) {
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, b.timeout)
		if err := sink.Write(sinkCtx, e); err != nil {
			b.logger.Warn("⚠️ Échec émission événement", "sink", sink.Name(), "type", e.Type, "entity_id", e.EntityID, "error", err)
		}
		cancel()
	}
}

// Close ferme la file et attend que le worker l'ait vidée, ou l'expiration de ctx.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		if b.queue != nil {
			close(b.queue)
		}
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSink écrit les événements dans le journal structuré.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(ctx context.Context, e Event) error {
	attrs := []any{
		"event_id", e.ID,
		"type", e.Type,
		"entity_type", e.EntityType,
		"entity_id", e.EntityID,
	}
	if e.CreatorID != "" {
		attrs = append(attrs, "creator_id", e.CreatorID)
	}
	if e.Actor != "" {
		attrs = append(attrs, "actor", e.Actor)
	}
	if !e.Amount.IsZero() {
		attrs = append(attrs, "amount", e.Amount.StringFixed(2), "currency", e.Currency)
	}
	for k, v := range e.Attributes {
		attrs = append(attrs, k, v)
	}

	level := slog.LevelInfo
	switch e.Type {
	case PaymentSkipped, PaymentFeeMismatch, PayoutFailed, PayoutReversed, CreatorPayoutsBlocked:
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "📒 Grand livre: "+string(e.Type), attrs...)
	return nil
}

// Recorder garde les événements en mémoire (tests).
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	r.Events = append(r.Events, e)
}

// OfType retourne les événements enregistrés d'un type donné.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
