package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/bulletin-comb/app/database"
	"github.com/lysyi3m/bulletin-comb/app/event"
	"github.com/lysyi3m/bulletin-comb/app/source"
)

// RefilterSourceTask deactivates stored events that the source's current
// filters would exclude.
type RefilterSourceTask struct {
	Task
	Definition *source.Definition
	sourceRepo database.SourceRepository
	eventRepo  database.EventRepository
	filterer   *event.Filterer
}

func NewRefilterSourceTask(def *source.Definition, sourceRepo database.SourceRepository, eventRepo database.EventRepository) *RefilterSourceTask {
	return &RefilterSourceTask{
		Task:       NewTask(TaskTypeRefilterSource, def.Key),
		Definition: def,
		sourceRepo: sourceRepo,
		eventRepo:  eventRepo,
		filterer:   event.NewFilterer(),
	}
}

func (t *RefilterSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if len(t.Definition.Filters) == 0 {
		return nil
	}

	src, err := t.sourceRepo.GetByKey(t.SourceKey)
	if err != nil {
		return fmt.Errorf("failed to get source: %w", err)
	}
	if src == nil {
		slog.Warn("Source not found, skipping refilter", "source", t.SourceKey)
		return nil
	}

	events, err := t.eventRepo.List(database.EventFilter{SourceID: src.ID})
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	excluded := 0
	for i := range events {
		ev := &events[i]
		drop, reason := t.filterer.Run(&ev.Event, t.Definition.Filters)
		if !drop {
			continue
		}

		if err := t.eventRepo.Deactivate(ev.ID); err != nil {
			return fmt.Errorf("failed to deactivate event %s: %w", ev.ID, err)
		}
		excluded++
		slog.Debug("Event deactivated by filter", "source", t.SourceKey, "event_id", ev.ID, "reason", reason)
	}

	slog.Info("Task completed", "type", "RefilterSource", "source", t.SourceKey, "events", len(events), "excluded", excluded, "duration", t.GetDuration())

	return nil
}
