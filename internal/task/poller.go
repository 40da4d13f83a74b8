// Package task waits on asynchronous restore tasks until they settle.
package task

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coveworks/bulk-restore/internal/api"
	apperrors "github.com/coveworks/bulk-restore/internal/errors"
)

// Policy bounds one polling session. The interval is fixed with no backoff so
// the worst-case detection latency for a finished task stays at one interval.
type Policy struct {
	Timeout  time.Duration
	Interval time.Duration
}

// DefaultPolicy matches the cadence of the restore backend: tasks run for
// minutes, so a 20s probe against a 10m budget is plenty.
var DefaultPolicy = Policy{
	Timeout:  600 * time.Second,
	Interval: 20 * time.Second,
}

// Reader reads the current state of a task.
type Reader interface {
	ReadTask(ctx context.Context, id string) (api.Task, error)
}

// Poll reads the task until it settles or the budget runs out. It returns the
// last observed task state alongside the outcome: nil for completed, TaskError
// for failed or aborted, TimeoutError when the budget is exhausted while the
// task is still running. Read errors propagate as-is; the client has already
// retried transient ones.
func Poll(ctx context.Context, r Reader, id string, p Policy) (api.Task, error) {
	if p.Timeout <= 0 {
		p.Timeout = DefaultPolicy.Timeout
	}
	if p.Interval <= 0 {
		p.Interval = DefaultPolicy.Interval
	}

	started := time.Now()
	deadline := started.Add(p.Timeout)
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	var last api.Task
	for attempt := 1; ; attempt++ {
		task, err := r.ReadTask(ctx, id)
		if err != nil {
			return last, err
		}
		last = task

		switch task.Status {
		case api.TaskCompleted:
			log.Info().
				Str("action", "task_poll").
				Str("task_id", id).
				Dur("elapsed", time.Since(started)).
				Int("attempt", attempt).
				Msg("task completed")
			return task, nil

		case api.TaskFailed, api.TaskAborted:
			log.Warn().
				Str("action", "task_poll").
				Str("task_id", id).
				Str("status", task.Status).
				Int("attempt", attempt).
				Msg("task settled in failure")
			return task, apperrors.NewTaskError(id, task.Status)
		}

		log.Debug().
			Str("action", "task_poll").
			Str("task_id", id).
			Str("status", task.Status).
			Int("attempt", attempt).
			Msg("task still running")

		// Stop when no full interval of budget remains. The outcome is
		// indeterminate, so the caller may poll again with a fresh budget.
		if time.Now().Add(p.Interval).After(deadline) {
			return last, apperrors.NewTimeoutError(id, last.Status, p.Timeout)
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
