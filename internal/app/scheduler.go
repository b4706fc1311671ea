/**
 * @description
 * Cron scheduler for the periodic reminder sweep.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/invoiceflow/reminder-service/internal/config"
	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	logger  *slog.Logger
	config  config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(service *Service, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:    c,
		service: service,
		logger:  logger,
		config:  cfg,
	}
}

// Start registers the sweep job and starts the cron scheduler.
// Overlapping runs are tolerated: every state transition downstream is
// conditional, so a slow sweep racing the next one cannot double-send.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.SweepSchedule, s.runSweep); err != nil {
		s.logger.Error("failed to schedule reminder sweep", "error", err)
	} else {
		s.logger.Info("scheduled reminder sweep", "schedule", s.config.SweepSchedule)
	}

	s.cron.Start()
}

func (s *Scheduler) runSweep() {
	s.logger.Info("starting reminder sweep job")
	ctx := context.Background()

	if _, err := s.service.RunSweep(ctx); err != nil {
		s.logger.Error("reminder sweep failed", "error", err)
		return
	}

	s.logger.Info("reminder sweep job finished")
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
