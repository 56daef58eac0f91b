package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"cheesecave/internal/logger"
)

// Housekeeping wraps a gocron scheduler for fixed-cadence maintenance jobs
// that are not part of the control loop, such as history retention.
type Housekeeping struct {
	scheduler gocron.Scheduler
	log       *logger.Logger
}

// NewHousekeeping creates a scheduler driven by clock.
func NewHousekeeping(clock clockwork.Clock, log *logger.Logger) (*Housekeeping, error) {
	s, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}
	return &Housekeeping{scheduler: s, log: log}, nil
}

// Every registers job to run every interval. Job errors are logged; the job
// stays scheduled.
func (h *Housekeeping) Every(name string, interval time.Duration, job func(ctx context.Context) error) (string, error) {
	j, err := h.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			if err := job(ctx); err != nil {
				h.log.Errorw("housekeeping_job_failed", "job", name, "err", err)
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("schedule %s: %w", name, err)
	}
	return j.ID().String(), nil
}

// Start begins running registered jobs.
func (h *Housekeeping) Start() {
	h.log.Infow("housekeeping_started", "jobs", len(h.scheduler.Jobs()))
	h.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running jobs.
func (h *Housekeeping) Stop() error {
	return h.scheduler.Shutdown()
}
