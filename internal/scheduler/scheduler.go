// Package scheduler déclenche les balayages périodiques du grand livre.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Config porte les expressions cron des tâches.
type Config struct {
	ReleaseSchedule string
	PayoutSchedule  string
	// AutomaticPayouts active le balayage des versements.
	AutomaticPayouts bool
}

type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config Config
}

func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Register enregistre les tâches sans démarrer le planificateur.
func (s *Scheduler) Register() error {
	if _, err := s.cron.AddFunc(s.config.ReleaseSchedule, s.jobs.ReleaseHeldPayments); err != nil {
		s.logger.Error("❌ Planification libération impossible", "schedule", s.config.ReleaseSchedule, "error", err)
		return err
	}
	s.logger.Info("📅 Libération des paiements planifiée", "schedule", s.config.ReleaseSchedule)

	if !s.config.AutomaticPayouts {
		s.logger.Info("ℹ️ Mode manuel : pas de versement planifié")
		return nil
	}
	if _, err := s.cron.AddFunc(s.config.PayoutSchedule, s.jobs.RunPayoutSweep); err != nil {
		s.logger.Error("❌ Planification versements impossible", "schedule", s.config.PayoutSchedule, "error", err)
		return err
	}
	s.logger.Info("📅 Versements automatiques planifiés", "schedule", s.config.PayoutSchedule)
	return nil
}

// Entries retourne le nombre de tâches enregistrées.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop arrête le planificateur ; le contexte retourné se termine quand les tâches en cours ont fini.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
