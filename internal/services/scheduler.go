package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic auto-save and the time-limit sweep
type Scheduler struct {
	cron    *cron.Cron
	service AttemptSessionService
	logger  *slog.Logger
	timeout time.Duration
}

func NewScheduler(service AttemptSessionService, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		service: service,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Start registers both jobs and starts the cron runner. A zero interval disables its job.
func (s *Scheduler) Start(autosave, expirySweep time.Duration) error {
	if autosave > 0 {
		if _, err := s.cron.AddFunc(every(autosave), s.runAutosave); err != nil {
			return fmt.Errorf("failed to schedule auto-save: %w", err)
		}
	}
	if expirySweep > 0 {
		if _, err := s.cron.AddFunc(every(expirySweep), s.runExpirySweep); err != nil {
			return fmt.Errorf("failed to schedule expiry sweep: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("Session scheduler started", "autosave", autosave, "expiry_sweep", expirySweep)
	return nil
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Session scheduler stopped")
}

func (s *Scheduler) runAutosave() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if saved := s.service.AutoSaveDirty(ctx); saved > 0 {
		s.logger.Debug("Auto-save completed", "saved", saved)
	}
}

func (s *Scheduler) runExpirySweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if submitted := s.service.SubmitExpired(ctx); submitted > 0 {
		s.logger.Info("Submitted timed-out attempts", "count", submitted)
	}
}

func every(d time.Duration) string {
	return "@every " + d.String()
}
