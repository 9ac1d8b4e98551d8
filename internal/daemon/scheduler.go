package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler wraps gocron for periodic rebuild jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates an idle scheduler.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// SchedulePeriodicBuild registers a rebuild every interval. The enqueue
// function absorbs backlog rejections; a full queue just means a build is
// already pending.
func (s *Scheduler) SchedulePeriodicBuild(interval time.Duration, enqueue func(requesterID string) error) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := enqueue("scheduler"); err != nil {
				slog.Debug("Scheduled build not enqueued", "err", err)
			}
		}),
		gocron.WithName("periodic-build"),
	)
	if err != nil {
		return fmt.Errorf("schedule periodic build: %w", err)
	}
	return nil
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
