package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Ledger regroupe les opérations planifiées du grand livre.
type Ledger interface {
	ReleaseHeldPayments(ctx context.Context) (int64, error)
	RunPayoutSweep(ctx context.Context) (int, error)
}

// Jobs contient les tâches planifiées.
type Jobs struct {
	ledger  Ledger
	logger  *slog.Logger
	timeout time.Duration
}

func NewJobs(ledger Ledger, logger *slog.Logger, timeout time.Duration) *Jobs {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Jobs{ledger: ledger, logger: logger, timeout: timeout}
}

// ReleaseHeldPayments passe HELD -> READY les paiements arrivés à échéance.
func (j *Jobs) ReleaseHeldPayments() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	released, err := j.ledger.ReleaseHeldPayments(ctx)
	if err != nil {
		j.logger.Error("❌ Libération des paiements échouée", "error", err)
		return
	}
	j.logger.Info("⏱️ Libération des paiements terminée", "released", released)
}

// RunPayoutSweep crée (et approuve) une demande de versement par créateur éligible.
func (j *Jobs) RunPayoutSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	created, err := j.ledger.RunPayoutSweep(ctx)
	if err != nil {
		j.logger.Error("❌ Versements planifiés échoués", "error", err, "created", created)
		return
	}
	j.logger.Info("⏱️ Versements planifiés terminés", "created", created)
}
