// Package schedule runs periodic background jobs.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"pinbot/cmd/internal/metrics"
)

// Job is one periodic task.
type Job struct {
	Name  string
	Every time.Duration
	// Immediate runs the job once when the runner starts instead of after the first interval.
	Immediate bool
	Run       func(ctx context.Context) error
}

// Runner runs jobs until its context is cancelled.
type Runner struct {
	log  *slog.Logger
	jobs []Job
	wg   sync.WaitGroup
}

// NewRunner returns a Runner. Jobs with a non-positive interval are skipped.
func NewRunner(log *slog.Logger, jobs ...Job) *Runner {
	if log == nil {
		log = slog.Default()
	}
	r := &Runner{log: log}
	for _, j := range jobs {
		if j.Every <= 0 || j.Run == nil {
			log.Info("schedule.job.disabled", "job", j.Name)
			continue
		}
		r.jobs = append(r.jobs, j)
	}
	return r
}

// Jobs returns the names of the enabled jobs.
func (r *Runner) Jobs() []string {
	out := make([]string, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Name)
	}
	return out
}

// Start launches one goroutine per job and returns immediately.
func (r *Runner) Start(ctx context.Context) {
	for _, j := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, j)
	}
	r.log.Info("schedule.start", "jobs", r.Jobs())
}

// Wait blocks until every job loop has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Run is Start followed by Wait.
func (r *Runner) Run(ctx context.Context) {
	r.Start(ctx)
	r.Wait()
}

func (r *Runner) loop(ctx context.Context, j Job) {
	defer r.wg.Done()

	if j.Immediate {
		r.runOnce(ctx, j)
	}
	t := time.NewTicker(j.Every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.runOnce(ctx, j)
		}
	}
}

// ErrPanic marks a job run that panicked.
var ErrPanic = errors.New("job panicked")

// runOnce executes j, converting a panic into ErrPanic.
func (r *Runner) runOnce(ctx context.Context, j Job) (err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
			r.log.Error("schedule.job.panic", "job", j.Name, "panic", rec, "stack", string(debug.Stack()))
		}

		result := "ok"
		switch {
		case errors.Is(err, ErrPanic):
			result = "panic"
		case err != nil:
			result = "error"
			r.log.Error("schedule.job.fail", "job", j.Name, "err", err)
		}
		metrics.JobRuns.WithLabelValues(j.Name, result).Inc()
		r.log.Debug("schedule.job", "job", j.Name, "result", result, "duration_ms", time.Since(start).Milliseconds())
	}()

	return j.Run(ctx)
}
