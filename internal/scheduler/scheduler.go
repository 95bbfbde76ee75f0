package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	job      *RecurringJob
	schedule string
	logger   zerolog.Logger
}

// New creates a scheduler that fires job on schedule, evaluated in loc.
func New(job *RecurringJob, schedule string, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.With().Str("component", "scheduler").Logger()
	cronLogger := cron.PrintfLogger(&logger)
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:     c,
		job:      job,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the recurring job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.job.Run); err != nil {
		return fmt.Errorf("schedule recurring job %q: %w", s.schedule, err)
	}
	s.logger.Info().Str("schedule", s.schedule).Msg("scheduled recurring generation job")

	s.cron.Start()
	return nil
}

// Stop halts the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
