package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/bulletin-comb/app/database"
	"github.com/lysyi3m/bulletin-comb/app/event"
)

// MaintenanceTask closes stale runs and prunes old runs and events.
type MaintenanceTask struct {
	Task
	executor         RunExecutor
	runRepo          database.RunRepository
	eventRepo        database.EventRepository
	logRetentionDays int
	staleAfterDays   int
	now              func() time.Time
}

func NewMaintenanceTask(executor RunExecutor, runRepo database.RunRepository, eventRepo database.EventRepository,
	logRetentionDays, staleAfterDays int) *MaintenanceTask {
	task := NewTask(TaskTypeMaintenance, "")
	task.MaxRetries = 1

	return &MaintenanceTask{
		Task:             task,
		executor:         executor,
		runRepo:          runRepo,
		eventRepo:        eventRepo,
		logRetentionDays: logRetentionDays,
		staleAfterDays:   staleAfterDays,
		now:              time.Now,
	}
}

func (t *MaintenanceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	closed, err := t.executor.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("failed to reconcile runs: %w", err)
	}

	now := t.now()
	var prunedRuns, deactivated, prunedEvents int64

	if t.staleAfterDays > 0 {
		before := now.AddDate(0, 0, -t.staleAfterDays).Format(event.DateLayout)

		deactivated, err = t.eventRepo.DeactivatePast(before)
		if err != nil {
			return fmt.Errorf("failed to deactivate past events: %w", err)
		}
	}

	if t.logRetentionDays > 0 {
		cutoff := now.AddDate(0, 0, -t.logRetentionDays)

		prunedRuns, err = t.runRepo.DeleteBefore(cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune runs: %w", err)
		}

		prunedEvents, err = t.eventRepo.DeleteInactiveBefore(cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune inactive events: %w", err)
		}
	}

	slog.Info("Task completed", "type", "Maintenance",
		"closed_runs", closed,
		"pruned_runs", prunedRuns,
		"deactivated_events", deactivated,
		"pruned_events", prunedEvents,
		"duration", t.GetDuration())

	return nil
}
