// Package scheduler runs the periodic weather refresh for tracked cities.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"citywatch/internal/tracker"
)

// Scheduler refreshes every tracked city's weather snapshot on a fixed
// interval through the shared cache. A refresh in flight never blocks
// user-triggered operations.
type Scheduler struct {
	cron     *cron.Cron
	tracker  *tracker.Tracker
	interval time.Duration
	logger   *zap.Logger
}

func New(t *tracker.Tracker, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		tracker:  t,
		interval: interval,
		logger:   logger,
	}
}

func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.refresh); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Refresh scheduler started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) refresh() {
	start := time.Now()
	s.logger.Debug("Starting scheduled weather refresh")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s.tracker.RefreshAll(ctx)

	s.logger.Info("Scheduled weather refresh completed",
		zap.Duration("duration", time.Since(start)))
}

// Stop releases the refresh timer so no job fires after teardown.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Refresh scheduler stopped")
}
