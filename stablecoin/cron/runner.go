package cron

import (
	"context"
	"time"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/runtime"
)

// Job is one scheduled run.
type Job func(ctx context.Context) error

// Runner calls a Job on a Schedule until its context is done. Runs never
// overlap: a run that overruns the next slot delays it.
type Runner struct {
	name     string
	schedule Schedule
	job      Job
	logger   log.Logger
	now      func() time.Time
}

// NewRunner returns a Runner named name.
func NewRunner(name string, schedule Schedule, job Job, logger log.Logger) *Runner {
	return &Runner{name: name, schedule: schedule, job: job, logger: log.OrNop(logger), now: time.Now}
}

// Run blocks until ctx is done or the schedule has no next time.
func (r *Runner) Run(ctx context.Context) error {
	for {
		next, err := r.schedule.Next(r.now())
		if err != nil {
			return err
		}

		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		r.runOnce(ctx)
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	var err error

	defer runtime.RecoverToError(ctx, r.logger, "cron", r.name, &err)

	start := r.now()

	err = r.job(ctx)
	if err != nil {
		r.logger.Log(ctx, log.LevelError, "scheduled job failed", log.String("job", r.name), log.Err(err))
		return
	}

	r.logger.Log(ctx, log.LevelDebug, "scheduled job finished", log.String("job", r.name), log.Duration("elapsed", time.Since(start)))
}
