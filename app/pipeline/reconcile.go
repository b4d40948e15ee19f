package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/bulletin-comb/app/database"
	"github.com/lysyi3m/bulletin-comb/app/errs"
	"github.com/lysyi3m/bulletin-comb/app/lock"
)

// Reconcile marks runs that can no longer finish as errors: running runs
// whose source lock is free (the process executing them died) and pending
// runs older than the lock TTL that are not waiting in this process's task
// queue. It returns the number of runs closed.
func (o *Orchestrator) Reconcile(ctx context.Context) (int, error) {
	closed := 0

	running, err := o.runs.ListByStatus(database.RunRunning)
	if err != nil {
		return 0, err
	}

	for i := range running {
		run := &running[i]

		held, err := o.locker.Acquire(ctx, runLockKey(run.SourceID), o.lockTTL)
		if errors.Is(err, lock.ErrNotAcquired) {
			continue
		}
		if err != nil {
			return closed, err
		}

		if o.close(run, interruptedMessage) {
			closed++
		}

		if err := held.Release(ctx); err != nil {
			slog.Warn("Failed to release run lock", "source_id", run.SourceID, "error", err)
		}
	}

	pending, err := o.runs.ListByStatus(database.RunPending)
	if err != nil {
		return closed, err
	}

	cutoff := time.Now().Add(-o.lockTTL)
	for i := range pending {
		run := &pending[i]
		if run.CreatedAt.After(cutoff) || o.isQueued(run.ID) {
			continue
		}
		if o.close(run, abandonedMessage) {
			closed++
		}
	}

	if closed > 0 {
		slog.Info("Stale runs reconciled", "count", closed)
	}

	return closed, nil
}

// reconcileSource closes the running runs of a source. The caller must
// hold the source's run lock, so none of them can still be executing.
func (o *Orchestrator) reconcileSource(sourceID string) {
	running, err := o.runs.ListByStatus(database.RunRunning)
	if err != nil {
		slog.Warn("Failed to list running runs", "source_id", sourceID, "error", err)
		return
	}

	for i := range running {
		if running[i].SourceID == sourceID {
			o.close(&running[i], interruptedMessage)
		}
	}
}

// Abandon closes a pending run that will never be executed.
func (o *Orchestrator) Abandon(runID, reason string) error {
	run, err := o.runs.GetByID(runID)
	if err != nil {
		return err
	}
	if run == nil || run.Status != database.RunPending {
		return fmt.Errorf("run %s is not pending: %w", runID, errs.ErrNotFound)
	}

	o.setQueued(runID, false)

	if !o.close(run, reason) {
		return fmt.Errorf("failed to close run %s", runID)
	}
	return nil
}

func (o *Orchestrator) close(run *database.Run, reason string) bool {
	now := time.Now()
	run.Status = database.RunError
	run.FinishedAt = &now
	run.Errors = append(run.Errors, reason)
	if run.StartedAt != nil {
		run.DurationMs = now.Sub(*run.StartedAt).Milliseconds()
	}

	if err := o.runs.Finish(run); err != nil {
		slog.Warn("Failed to close stale run", "run_id", run.ID, "error", err)
		return false
	}

	if err := o.sources.RecordRun(run.SourceID, database.RunError, reason, 0, now); err != nil {
		slog.Warn("Failed to record run on source", "source_id", run.SourceID, "error", err)
	}

	slog.Warn("Stale run closed", "run_id", run.ID, "source", run.SourceName, "reason", reason)
	return true
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
