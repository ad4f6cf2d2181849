// Package scheduler runs Cove's recurring background jobs, currently just
// the stalled-lead nudge sweep.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a started cron runner. Jobs are registered with 5-field
// cron expressions (minute, hour, day of month, month, day of week).
type Scheduler struct {
	runner *cron.Cron
}

// New builds and starts a scheduler. Panicking jobs are recovered so one
// bad sweep cannot take the runner down.
func New() *Scheduler {
	spec := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	runner := cron.New(cron.WithParser(spec), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	runner.Start()
	return &Scheduler{runner: runner}
}

// Schedule registers a named job on the given cron expression.
func (s *Scheduler) Schedule(name, expr string, job func()) error {
	id, err := s.runner.AddFunc(expr, job)
	if err != nil {
		return fmt.Errorf("failed to schedule %s on %q: %w", name, expr, err)
	}
	slog.Info("Scheduler.Schedule: job registered", "job", name, "expr", expr, "entry_id", id)
	return nil
}

// Stop halts scheduling. Jobs already running are left to finish.
func (s *Scheduler) Stop() {
	s.runner.Stop()
}
