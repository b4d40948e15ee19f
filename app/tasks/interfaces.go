package tasks

import (
	"context"

	"github.com/lysyi3m/bulletin-comb/app/database"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the admin API to run work in the background.
// Example usage:
//
//	scheduler := NewScheduler(registry, sourceRepo, eventRepo, runRepo, orchestrator, settings)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewExtractEventsTask(sourceKey, runID, orchestrator))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// RunExecutor executes prepared runs and closes stale ones.
type RunExecutor interface {
	Execute(ctx context.Context, runID string) (*database.Run, error)
	Reconcile(ctx context.Context) (int, error)
}
