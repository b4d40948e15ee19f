package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/bulletin-comb/app/database"
	"github.com/lysyi3m/bulletin-comb/app/source"
)

type SyncSourceTask struct {
	Task
	Definition *source.Definition
	sourceRepo database.SourceRepository
}

func NewSyncSourceTask(def *source.Definition, sourceRepo database.SourceRepository) *SyncSourceTask {
	return &SyncSourceTask{
		Task:       NewTask(TaskTypeSyncSource, def.Key),
		Definition: def,
		sourceRepo: sourceRepo,
	}
}

func (t *SyncSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	def := t.Definition
	src, created, err := t.sourceRepo.UpsertDefinition(def.Key, def.Name, string(def.Type), def.URL, def.Enabled)
	if err != nil {
		return fmt.Errorf("failed to sync source definition: %w", err)
	}

	if created {
		slog.Info("Source created from definition", "source", def.Key, "id", src.ID)
	}

	slog.Info("Task completed", "type", "SyncSource", "source", t.SourceKey, "duration", t.GetDuration())

	return nil
}
