package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/punchamoorthee/bizfin/internal/lock"
	"github.com/punchamoorthee/bizfin/internal/recurring"
	"github.com/rs/zerolog"
)

// BatchRunner expands every active recurring template.
type BatchRunner interface {
	RunBatchReport(ctx context.Context) (recurring.Report, error)
}

// RecurringJob runs one generation batch while holding the run lease, so
// overlapping triggers across instances never run concurrently.
type RecurringJob struct {
	runner BatchRunner
	locker lock.Locker
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

func NewRecurringJob(runner BatchRunner, locker lock.Locker, key string, ttl time.Duration, logger zerolog.Logger) *RecurringJob {
	return &RecurringJob{
		runner: runner,
		locker: locker,
		key:    key,
		ttl:    ttl,
		logger: logger.With().Str("job", "recurring_generation").Logger(),
	}
}

// Run is the cron entry point.
func (j *RecurringJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.ttl)
	defer cancel()

	if _, err := j.RunContext(ctx); err != nil && !errors.Is(err, lock.ErrHeld) {
		j.logger.Error().Err(err).Msg("recurring generation job failed")
	}
}

// RunContext acquires the lease and runs one batch. It returns lock.ErrHeld
// when another run owns the lease.
func (j *RecurringJob) RunContext(ctx context.Context) (recurring.Report, error) {
	release, err := j.locker.Acquire(ctx, j.key, j.ttl)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			j.logger.Info().Str("lock_key", j.key).Msg("recurring generation already running, skipping")
		}
		return recurring.Report{}, err
	}
	defer func() {
		// The job context may already be spent; release on a fresh one.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(relCtx); err != nil {
			j.logger.Warn().Err(err).Str("lock_key", j.key).Msg("failed to release run lock")
		}
	}()

	j.logger.Info().Msg("starting recurring generation job")
	started := time.Now()

	rep, err := j.runner.RunBatchReport(ctx)
	if err != nil {
		return rep, err
	}

	j.logger.Info().
		Int("generated", rep.Generated).
		Int("failed", rep.Failed).
		Dur("elapsed", time.Since(started)).
		Msg("recurring generation job finished")
	return rep, nil
}
