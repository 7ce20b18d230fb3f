package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/meshcore-heatmap/internal/logging"
)

// Pruner deletes samples older than a retention window.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Scheduler periodically prunes samples that fall out of the retention window.
type Scheduler struct {
	scheduler *gocron.Scheduler
	pruner    Pruner
	retention time.Duration
	interval  time.Duration
}

// New creates a new Scheduler. A zero retention disables pruning.
func New(retention, interval time.Duration, pruner Pruner) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		pruner:    pruner,
		retention: retention,
		interval:  interval,
	}
}

// Start schedules the prune job and starts the underlying scheduler. The job
// also runs once immediately.
func (s *Scheduler) Start() error {
	if s.retention <= 0 {
		log := logging.WithComponent("scheduler")
		log.Info().Msg("sample retention disabled; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	if _, err := s.scheduler.Every(minutes).Minutes().Do(s.RunOnce); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	log := logging.WithComponent("scheduler")
	log.Info().Dur("retention", s.retention).Int("every_minutes", minutes).Msg("prune job started")
	return nil
}

// RunOnce prunes expired samples.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log := logging.WithComponent("scheduler")
	n, err := s.pruner.Prune(ctx, s.retention)
	if err != nil {
		log.Error().Err(err).Msg("prune failed")
		return
	}
	log.Info().Int64("deleted", n).Msg("prune completed")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
