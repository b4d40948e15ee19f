package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/bulletin-comb/app/database"
	"github.com/lysyi3m/bulletin-comb/app/document"
	"github.com/lysyi3m/bulletin-comb/app/errs"
	"github.com/lysyi3m/bulletin-comb/app/event"
	"github.com/lysyi3m/bulletin-comb/app/llm"
	"github.com/lysyi3m/bulletin-comb/app/lock"
	"github.com/lysyi3m/bulletin-comb/app/metrics"
	"github.com/lysyi3m/bulletin-comb/app/source"
)

const (
	interruptedMessage = "run interrupted before completion"
	abandonedMessage   = "run was never started"
	conflictMessage    = "another run for this source was in progress"
)

type TextExtractor interface {
	Run(ctx context.Context, doc document.Document) (*document.Text, error)
}

type EventExtractor interface {
	Run(ctx context.Context, prompt string) (string, error)
	Provider() string
}

type PromptResolver interface {
	Resolve(key string) (*source.Prompt, error)
}

type Dependencies struct {
	Sources   database.SourceRepository
	Events    database.EventRepository
	Runs      database.RunRepository
	Prompts   PromptResolver
	Documents TextExtractor
	LLM       EventExtractor
	Locker    lock.Locker
}

// Request names the source to run and, optionally, the document to read.
// Without a document the source's last upload is used, then its URL.
type Request struct {
	SourceKey    string
	DocumentPath string
}

// Orchestrator drives a run through pending, running and one of the
// terminal states. At most one run per source executes at a time.
type Orchestrator struct {
	sources    database.SourceRepository
	events     database.EventRepository
	runs       database.RunRepository
	prompts    PromptResolver
	documents  TextExtractor
	llm        EventExtractor
	locker     lock.Locker
	normalizer *event.Normalizer
	filterer   *event.Filterer

	lockTTL       time.Duration
	maxInputChars int

	// pending runs prepared here and still waiting for Execute or Abandon
	mu     sync.Mutex
	queued map[string]bool
}

func New(deps Dependencies, lockTTL time.Duration, maxInputChars int) *Orchestrator {
	return &Orchestrator{
		sources:       deps.Sources,
		events:        deps.Events,
		runs:          deps.Runs,
		prompts:       deps.Prompts,
		documents:     deps.Documents,
		llm:           deps.LLM,
		locker:        deps.Locker,
		normalizer:    event.NewNormalizer(),
		filterer:      event.NewFilterer(),
		lockTTL:       lockTTL,
		maxInputChars: maxInputChars,
		queued:        make(map[string]bool),
	}
}

// Run executes a run synchronously. Failures inside the run are recorded on
// the returned run; the error is reserved for configuration problems,
// conflicts and storage failures.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*database.Run, error) {
	src, prompt, err := o.resolveSource(req.SourceKey)
	if err != nil {
		return nil, err
	}

	doc, err := resolveDocument(src, req.DocumentPath)
	if err != nil {
		return nil, err
	}

	held, err := o.acquire(ctx, src)
	if err != nil {
		return nil, err
	}
	defer o.release(held, src)

	o.reconcileSource(src.ID)

	run := &database.Run{SourceID: src.ID, SourceName: src.Name, DocumentPath: documentRef(doc)}
	if err := o.runs.Create(run); err != nil {
		return nil, &errs.PersistenceError{Op: "create run", Err: err}
	}

	return o.execute(ctx, src, prompt, doc, run)
}

// Prepare validates a request and records a pending run for later execution.
func (o *Orchestrator) Prepare(req Request) (*database.Run, error) {
	src, _, err := o.resolveSource(req.SourceKey)
	if err != nil {
		return nil, err
	}

	doc, err := resolveDocument(src, req.DocumentPath)
	if err != nil {
		return nil, err
	}

	run := &database.Run{SourceID: src.ID, SourceName: src.Name, DocumentPath: documentRef(doc)}
	if err := o.runs.Create(run); err != nil {
		return nil, &errs.PersistenceError{Op: "create run", Err: err}
	}

	o.setQueued(run.ID, true)

	slog.Debug("Run prepared", "source", src.Key, "run_id", run.ID)
	return run, nil
}

// Execute runs a previously prepared run. A conflicting run in progress
// finishes the prepared run as an error.
func (o *Orchestrator) Execute(ctx context.Context, runID string) (*database.Run, error) {
	o.setQueued(runID, false)

	run, err := o.runs.GetByID(runID)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "load run", Err: err}
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", runID, errs.ErrNotFound)
	}
	if run.Status != database.RunPending {
		return run, fmt.Errorf("run %s is %s, expected pending", run.ID, run.Status)
	}

	src, err := o.sources.GetByID(run.SourceID)
	if err != nil {
		return nil, &errs.PersistenceError{Op: "load source", Err: err}
	}
	if src == nil {
		o.abort(run, nil, "source no longer exists")
		return run, errs.Configuration("source %s no longer exists", run.SourceID)
	}

	prompt, err := o.prompts.Resolve(src.PromptKey)
	if err != nil {
		o.abort(run, src, err.Error())
		return run, err
	}

	doc, err := resolveDocument(src, documentPathOf(run))
	if err != nil {
		o.abort(run, src, err.Error())
		return run, err
	}

	held, err := o.acquire(ctx, src)
	if err != nil {
		o.abort(run, src, conflictMessage)
		return run, err
	}
	defer o.release(held, src)

	o.reconcileSource(src.ID)

	return o.execute(ctx, src, prompt, doc, run)
}

func (o *Orchestrator) execute(ctx context.Context, src *database.Source, prompt *source.Prompt, doc document.Document, run *database.Run) (*database.Run, error) {
	started := time.Now()

	if err := o.runs.MarkRunning(run.ID, started); err != nil {
		return run, &errs.PersistenceError{Op: "mark run running", Err: err}
	}
	run.Status = database.RunRunning
	run.StartedAt = &started

	slog.Info("Run started", "source", src.Key, "run_id", run.ID, "document", run.DocumentPath, "provider", o.llm.Provider())

	status, failure := o.process(ctx, src, prompt, doc, run)
	if failure != nil {
		run.Errors = append(run.Errors, failure.Error())
	}

	return o.finish(src, run, status, started, failure)
}

// process fills in the run counters and returns the terminal status. A
// non-nil error means the run failed as a whole.
func (o *Orchestrator) process(ctx context.Context, src *database.Source, prompt *source.Prompt, doc document.Document, run *database.Run) (database.RunStatus, error) {
	text, err := o.documents.Run(ctx, doc)
	if err != nil {
		return database.RunError, fmt.Errorf("failed to extract text: %w", err)
	}

	period := event.DetectPeriod(text.Title + "\n" + text.Content)
	if !period.IsZero() {
		slog.Debug("Document period detected", "source", src.Key, "months", len(period.Months))
	}

	reply, err := o.llm.Run(ctx, prompt.Render(text.Content, o.maxInputChars))
	if err != nil {
		return database.RunError, err
	}

	candidates, problems, err := llm.Parse(reply, prompt.FieldMapping)
	if err != nil {
		return database.RunError, err
	}

	run.Extracted = len(candidates) + len(problems)
	for _, p := range problems {
		run.Dropped++
		run.Errors = append(run.Errors, p.Error())
		slog.Warn("Candidate dropped", "source", src.Key, "run_id", run.ID, "error", p.Error())
	}

	defaults := prompt.Defaults.Defaults()
	seen := event.Seen{}

	for _, raw := range candidates {
		ev, err := o.normalizer.Run(raw.Index, raw, defaults, period)
		if err != nil {
			run.Dropped++
			run.Errors = append(run.Errors, err.Error())
			slog.Warn("Candidate dropped", "source", src.Key, "run_id", run.ID, "error", err)
			continue
		}

		if excluded, reason := o.filterer.Run(ev, prompt.Filters); excluded {
			run.Filtered++
			slog.Debug("Candidate filtered", "source", src.Key, "title", ev.Title, "reason", reason)
			continue
		}

		ev.Fingerprint = event.Fingerprint(ev.Title, ev.StartDate, src.ID)

		if !seen.Add(ev.Fingerprint) {
			run.Duplicates++
			slog.Warn("Duplicate candidate in run skipped", "source", src.Key, "run_id", run.ID, "title", ev.Title, "date", ev.StartDate)
			continue
		}

		if err := o.store(src, run, ev); err != nil {
			return database.RunError, err
		}
	}

	survivors := run.New + run.Updated + run.Duplicates + run.Filtered
	switch {
	case run.Extracted > 0 && survivors == 0:
		return database.RunError, fmt.Errorf("none of the %d candidates could be used", run.Extracted)
	case run.Dropped > 0:
		return database.RunWarning, nil
	default:
		return database.RunSuccess, nil
	}
}

// store classifies one normalized event against the stored events and
// writes it. Any error is a *errs.PersistenceError.
func (o *Orchestrator) store(src *database.Source, run *database.Run, ev *event.Event) error {
	existing, err := o.events.FindActive(src.ID, ev.Fingerprint)
	if err != nil {
		return &errs.PersistenceError{Op: "find event", Err: err}
	}

	var stored *event.Event
	if existing != nil {
		stored = &existing.Event
	}

	switch event.Classify(ev, stored) {
	case event.ClassNew:
		record := &database.Event{
			Event:        *ev,
			SourceID:     src.ID,
			SourceName:   src.Name,
			DocumentPath: run.DocumentPath,
		}
		if err := o.events.Insert(record); err != nil {
			return &errs.PersistenceError{Op: "insert event", Err: err}
		}
		run.New++
	case event.ClassUpdate:
		event.Merge(&existing.Event, ev)
		existing.DocumentPath = run.DocumentPath
		existing.SourceName = src.Name
		if err := o.events.Update(existing); err != nil {
			return &errs.PersistenceError{Op: "update event", Err: err}
		}
		run.Updated++
	case event.ClassDuplicate:
		run.Duplicates++
	}

	return nil
}

func (o *Orchestrator) finish(src *database.Source, run *database.Run, status database.RunStatus, started time.Time, failure error) (*database.Run, error) {
	finished := time.Now()
	duration := finished.Sub(started)

	run.Status = status
	run.FinishedAt = &finished
	run.DurationMs = duration.Milliseconds()

	var result error
	if err := o.runs.Finish(run); err != nil {
		slog.Error("Failed to finalize run", "source", src.Key, "run_id", run.ID, "error", err)
		result = &errs.PersistenceError{Op: "finish run", Err: err}
	}

	if err := o.sources.RecordRun(src.ID, status, summary(run), run.New+run.Updated+run.Duplicates, finished); err != nil {
		slog.Error("Failed to record run on source", "source", src.Key, "run_id", run.ID, "error", err)
	}

	metrics.RecordRun(src.Key, string(status), duration)
	metrics.RecordEvents(src.Key, string(event.ClassNew), run.New)
	metrics.RecordEvents(src.Key, string(event.ClassUpdate), run.Updated)
	metrics.RecordEvents(src.Key, string(event.ClassDuplicate), run.Duplicates)
	metrics.RecordEvents(src.Key, "dropped", run.Dropped)
	metrics.RecordEvents(src.Key, "filtered", run.Filtered)

	logArgs := []any{
		"source", src.Key,
		"run_id", run.ID,
		"status", status,
		"extracted", run.Extracted,
		"new", run.New,
		"updated", run.Updated,
		"duplicates", run.Duplicates,
		"dropped", run.Dropped,
		"filtered", run.Filtered,
		"duration", duration,
	}
	if failure != nil {
		slog.Error("Run failed", append(logArgs, "error", failure)...)
	} else {
		slog.Info("Run completed", logArgs...)
	}

	// a failed persistence write is reported to the caller as well
	var perr *errs.PersistenceError
	if result == nil && errors.As(failure, &perr) {
		result = failure
	}

	return run, result
}

// abort finishes a run that could not be started.
func (o *Orchestrator) abort(run *database.Run, src *database.Source, reason string) {
	now := time.Now()
	run.Status = database.RunError
	run.FinishedAt = &now
	run.Errors = append(run.Errors, reason)

	if err := o.runs.Finish(run); err != nil {
		slog.Error("Failed to abort run", "run_id", run.ID, "error", err)
	}
	if src != nil {
		if err := o.sources.RecordRun(src.ID, database.RunError, reason, 0, now); err != nil {
			slog.Error("Failed to record run on source", "source", src.Key, "error", err)
		}
		metrics.RecordRun(src.Key, string(database.RunError), 0)
	}

	slog.Warn("Run aborted", "run_id", run.ID, "reason", reason)
}

func (o *Orchestrator) resolveSource(key string) (*database.Source, *source.Prompt, error) {
	src, err := o.sources.GetByKey(key)
	if err != nil {
		return nil, nil, &errs.PersistenceError{Op: "load source", Err: err}
	}
	if src == nil {
		return nil, nil, errs.Configuration("unknown source '%s'", key)
	}

	prompt, err := o.prompts.Resolve(src.PromptKey)
	if err != nil {
		return nil, nil, err
	}

	return src, prompt, nil
}

func (o *Orchestrator) acquire(ctx context.Context, src *database.Source) (lock.Lock, error) {
	held, err := o.locker.Acquire(ctx, runLockKey(src.ID), o.lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		slog.Warn("Run rejected, another run is in progress", "source", src.Key)
		return nil, errs.ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return held, nil
}

func (o *Orchestrator) release(held lock.Lock, src *database.Source) {
	if err := held.Release(context.Background()); err != nil {
		slog.Warn("Failed to release run lock", "source", src.Key, "error", err)
	}
}

func runLockKey(sourceID string) string {
	return "run:" + sourceID
}

func resolveDocument(src *database.Source, path string) (document.Document, error) {
	if path == "" {
		path = src.DocumentPath
	}
	if path != "" {
		return document.Document{Path: path, Kind: document.KindFromPath(path)}, nil
	}
	if src.URL != "" {
		return document.Document{URL: src.URL, Kind: kindForType(src.Type)}, nil
	}
	return document.Document{}, errs.Configuration("source '%s' has no uploaded document or URL", src.Key)
}

func kindForType(sourceType string) document.Kind {
	switch source.Type(sourceType) {
	case source.TypePDF:
		return document.KindPDF
	case source.TypeFeed:
		return document.KindFeed
	default:
		return document.KindHTML
	}
}

func documentRef(doc document.Document) string {
	if doc.Path != "" {
		return doc.Path
	}
	return doc.URL
}

// documentPathOf returns the local path recorded on a prepared run. URL
// runs are resolved from the source again.
func documentPathOf(run *database.Run) string {
	if isURL(run.DocumentPath) {
		return ""
	}
	return run.DocumentPath
}

func summary(run *database.Run) string {
	switch len(run.Errors) {
	case 0:
		return ""
	case 1:
		return run.Errors[0]
	default:
		return fmt.Sprintf("%s (and %d more)", run.Errors[0], len(run.Errors)-1)
	}
}

func (o *Orchestrator) setQueued(runID string, queued bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if queued {
		o.queued[runID] = true
	} else {
		delete(o.queued, runID)
	}
}

func (o *Orchestrator) isQueued(runID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.queued[runID]
}
