package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"guestwatch/internal/config"
	"guestwatch/internal/database"
)

// Scheduler runs periodic retention cleanup over alerts and notifications
type Scheduler struct {
	config           *config.Config
	logger           *slog.Logger
	cron             *cron.Cron
	alertRepo        *database.AlertRepository
	notificationRepo *database.NotificationRepository
}

// NewScheduler creates a new scheduler
func NewScheduler(
	cfg *config.Config,
	logger *slog.Logger,
	alertRepo *database.AlertRepository,
	notificationRepo *database.NotificationRepository,
) *Scheduler {
	return &Scheduler{
		config:           cfg,
		logger:           logger,
		cron:             cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		alertRepo:        alertRepo,
		notificationRepo: notificationRepo,
	}
}

// Start registers the cleanup jobs and starts the cron loop
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.config.Scheduler.CleanupSchedule, s.runCleanup)
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "cleanup_schedule", s.config.Scheduler.CleanupSchedule)
	return nil
}

// Stop stops the cron loop and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// runCleanup purges resolved alerts and read notifications past retention
func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.alertRepo.Cleanup(ctx, s.config.Scheduler.AlertRetentionDays); err != nil {
		s.logger.Error("Alert cleanup failed", "error", err)
	}

	if _, err := s.notificationRepo.Cleanup(ctx, s.config.Scheduler.NotificationRetentionDays); err != nil {
		s.logger.Error("Notification cleanup failed", "error", err)
	}
}
