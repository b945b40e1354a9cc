package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DraftPurger removes persisted drafts not written since cutoff. Only storage without
// native expiry implements it.
type DraftPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron     *cron.Cron
	sessions *SessionManager
	purger   DraftPurger
	draftTTL time.Duration
	logger   *logrus.Logger
}

// NewCronService creates a new CronService. purger may be nil.
func NewCronService(sessions *SessionManager, purger DraftPurger, draftTTL time.Duration, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:     cron.New(cron.WithSeconds()),
		sessions: sessions,
		purger:   purger,
		draftTTL: draftTTL,
		logger:   logger,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	// Cron format: second minute hour day month weekday
	if _, err := s.cron.AddFunc("0 * * * * *", s.sweepIdleSessionsJob); err != nil {
		return fmt.Errorf("failed to schedule idle session sweep: %w", err)
	}

	if s.purger != nil && s.draftTTL > 0 {
		// 3:30 AM every day
		if _, err := s.cron.AddFunc("0 30 3 * * *", s.purgeStaleDraftsJob); err != nil {
			return fmt.Errorf("failed to schedule stale draft purge: %w", err)
		}
	}

	s.cron.Start()
	s.logger.WithField("jobs", len(s.cron.Entries())).Info("Cron service started")
	return nil
}

// Stop stops all cron jobs and waits for running ones
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) sweepIdleSessionsJob() {
	s.sessions.SweepIdle(time.Now())
}

func (s *CronService) purgeStaleDraftsJob() {
	if _, err := s.PurgeStaleDraftsNow(context.Background()); err != nil {
		s.logger.WithError(err).Error("[CRON] Stale draft purge failed")
	}
}

// PurgeStaleDraftsNow deletes drafts older than the draft TTL immediately
func (s *CronService) PurgeStaleDraftsNow(ctx context.Context) (int64, error) {
	if s.purger == nil || s.draftTTL <= 0 {
		return 0, nil
	}
	start := time.Now()
	removed, err := s.purger.PurgeOlderThan(ctx, start.Add(-s.draftTTL))
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{
		"removed":  removed,
		"duration": time.Since(start).String(),
	}).Info("[CRON] Purged stale drafts")
	return removed, nil
}
