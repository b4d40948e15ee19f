package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type ExtractEventsTask struct {
	Task
	RunID    string
	executor RunExecutor
}

// NewExtractEventsTask executes a prepared run. The run itself records
// failures, so the task is never retried.
func NewExtractEventsTask(sourceKey, runID string, executor RunExecutor) *ExtractEventsTask {
	task := NewTask(TaskTypeExtractEvents, sourceKey)
	task.MaxRetries = 0

	return &ExtractEventsTask{
		Task:     task,
		RunID:    runID,
		executor: executor,
	}
}

func (t *ExtractEventsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	run, err := t.executor.Execute(ctx, t.RunID)
	if err != nil {
		return fmt.Errorf("run %s failed: %w", t.RunID, err)
	}

	slog.Info("Task completed", "type", "ExtractEvents", "source", t.SourceKey, "run_id", run.ID, "status", run.Status, "duration", t.GetDuration())

	return nil
}
