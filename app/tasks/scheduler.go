package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/bulletin-comb/app/database"
	"github.com/lysyi3m/bulletin-comb/app/metrics"
	"github.com/lysyi3m/bulletin-comb/app/source"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const queueSize = 300

type Settings struct {
	Interval         time.Duration
	WorkerCount      int
	TaskTimeout      time.Duration
	LogRetentionDays int
	StaleAfterDays   int
}

type Scheduler struct {
	registry   *source.Registry
	sourceRepo database.SourceRepository
	eventRepo  database.EventRepository
	runRepo    database.RunRepository
	executor   RunExecutor
	settings   Settings
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	taskQueue  chan TaskInterface
}

func NewScheduler(registry *source.Registry, sourceRepo database.SourceRepository, eventRepo database.EventRepository,
	runRepo database.RunRepository, executor RunExecutor, settings Settings) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if settings.WorkerCount < 1 {
		settings.WorkerCount = 1
	}
	if settings.TaskTimeout <= 0 {
		settings.TaskTimeout = 5 * time.Minute
	}

	return &Scheduler{
		registry:   registry,
		sourceRepo: sourceRepo,
		eventRepo:  eventRepo,
		runRepo:    runRepo,
		executor:   executor,
		settings:   settings,
		ctx:        ctx,
		cancel:     cancel,
		taskQueue:  make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.settings.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.enqueueStartupTasks()

		if s.settings.Interval <= 0 {
			return
		}

		ticker := time.NewTicker(s.settings.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		metrics.SetQueueDepth(len(s.taskQueue))
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	defs := s.registry.Definitions()
	if len(defs) == 0 {
		slog.Debug("No source definitions found")
	}

	slog.Debug("Processing source definitions", "count", len(defs))

	for _, def := range defs {
		syncTask := NewSyncSourceTask(def, s.sourceRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncSourceTask", "source", def.Key, "error", err)
			continue
		}

		if len(def.Filters) == 0 {
			continue
		}

		refilterTask := NewRefilterSourceTask(def, s.sourceRepo, s.eventRepo)
		if err := s.EnqueueTask(refilterTask); err != nil {
			slog.Warn("Failed to enqueue RefilterSourceTask", "source", def.Key, "error", err)
		}
	}

	s.enqueueTasks()
}

func (s *Scheduler) enqueueTasks() {
	task := NewMaintenanceTask(s.executor, s.runRepo, s.eventRepo, s.settings.LogRetentionDays, s.settings.StaleAfterDays)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue MaintenanceTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			metrics.SetQueueDepth(len(s.taskQueue))
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.settings.TaskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			delay := retryDelay(task.GetRetryCount())

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceKey(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

			go func() {
				timer := time.NewTimer(delay)
				defer timer.Stop()

				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
				case <-timer.C:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}

func retryDelay(retryCount int) time.Duration {
	delay := time.Duration(1<<uint(retryCount-1)) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}
