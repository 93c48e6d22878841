// Package scheduling runs named periodic tasks on a cron expression or a fixed interval.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	dErrors "dataguard/pkg/domain-errors"
)

// Runner schedules tasks. A task never overlaps with itself; a tick that fires
// while the previous run is still going is skipped.
type Runner struct {
	cron        *cron.Cron
	logger      *slog.Logger
	taskTimeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewRunner creates a Runner. taskTimeout bounds each individual run.
func NewRunner(logger *slog.Logger, taskTimeout time.Duration) *Runner {
	return &Runner{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		logger:      logger,
		taskTimeout: taskTimeout,
	}
}

// ParseSchedule accepts a five-field cron expression, a descriptor such as
// "@daily", or a Go duration such as "30m".
func ParseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "empty schedule")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if sched, err := parser.Parse(schedule); err == nil {
		return sched, nil
	}
	d, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("not a valid cron expression or duration: %q", schedule))
	}
	if d <= 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("duration must be positive: %q", schedule))
	}
	return constantDelay(d), nil
}

// Add registers fn under name.
func (r *Runner) Add(name, schedule string, fn func(ctx context.Context) error) error {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}

	r.cron.Schedule(sched, cron.FuncJob(func() {
		r.mu.Lock()
		parent := r.ctx
		r.mu.Unlock()
		if parent == nil || parent.Err() != nil {
			return
		}

		ctx := parent
		if r.taskTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parent, r.taskTimeout)
			defer cancel()
		}

		start := time.Now()
		if err := fn(ctx); err != nil {
			r.logger.WarnContext(ctx, "scheduled task failed",
				"task", name,
				"error", err,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return
		}
		r.logger.InfoContext(ctx, "scheduled task completed",
			"task", name,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}))

	r.logger.Info("task scheduled", "task", name, "schedule", schedule)
	return nil
}

// Start begins firing tasks. Cancelling ctx interrupts running tasks.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.cron.Start()
	r.started = true
}

// Stop cancels running tasks and waits for them to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.started = false
	r.mu.Unlock()

	<-r.cron.Stop().Done()
}

type constantDelay time.Duration

func (d constantDelay) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}
