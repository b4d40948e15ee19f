package api

import (
	"context"
	"time"

	"github.com/lysyi3m/bulletin-comb/app/auth"
	"github.com/lysyi3m/bulletin-comb/app/database"
	"github.com/lysyi3m/bulletin-comb/app/document"
	"github.com/lysyi3m/bulletin-comb/app/event"
	"github.com/lysyi3m/bulletin-comb/app/pipeline"
	"github.com/lysyi3m/bulletin-comb/app/source"
	"github.com/lysyi3m/bulletin-comb/app/tasks"
)

// Runner starts runs. It is satisfied by *pipeline.Orchestrator.
type Runner interface {
	tasks.RunExecutor
	Run(ctx context.Context, req pipeline.Request) (*database.Run, error)
	Prepare(req pipeline.Request) (*database.Run, error)
	Abandon(runID, reason string) error
}

var _ Runner = (*pipeline.Orchestrator)(nil)

type Pinger interface {
	Ping() error
}

type Dependencies struct {
	Sources   database.SourceRepository
	Events    database.EventRepository
	Runs      database.RunRepository
	Registry  *source.Registry
	Runner    Runner
	Scheduler tasks.TaskSchedulerInterface
	Store     *document.Store
	Auth      *auth.Authenticator // nil disables the admin API
	DB        Pinger
}

type Handler struct {
	sources   database.SourceRepository
	events    database.EventRepository
	runs      database.RunRepository
	registry  *source.Registry
	runner    Runner
	scheduler tasks.TaskSchedulerInterface
	store     *document.Store
	auth      *auth.Authenticator
	db        Pinger
	generator *RSSGenerator
	version   string
	now       func() time.Time
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sourceRequest struct {
	Key       string `json:"clave" binding:"required,max=64"`
	Name      string `json:"nombre" binding:"required,max=200"`
	PromptKey string `json:"prompt" binding:"omitempty,max=64"`
	Type      string `json:"tipo" binding:"omitempty,oneof=pdf html feed"`
	URL       string `json:"url" binding:"omitempty,url"`
	Active    *bool  `json:"activa"`
}

type extractRequest struct {
	FilePath string `json:"file_path"`
}

type eventResponse struct {
	ID string `json:"id"`
	event.Event
	SourceID     string    `json:"fuente_id"`
	SourceName   string    `json:"fuente"`
	DocumentPath string    `json:"documento,omitempty"`
	Active       bool      `json:"activo"`
	CreatedAt    time.Time `json:"creado_en"`
	UpdatedAt    time.Time `json:"actualizado_en"`
}

type sourceResponse struct {
	ID             string     `json:"id"`
	Key            string     `json:"clave"`
	Name           string     `json:"nombre"`
	PromptKey      string     `json:"prompt"`
	Type           string     `json:"tipo"`
	URL            string     `json:"url,omitempty"`
	Active         bool       `json:"activa"`
	DocumentPath   string     `json:"documento,omitempty"`
	LastRunAt      *time.Time `json:"ultima_ejecucion,omitempty"`
	LastStatus     string     `json:"ultimo_estado,omitempty"`
	LastError      string     `json:"ultimo_error,omitempty"`
	LastEventCount int        `json:"ultimos_eventos"`
	Events         *int       `json:"eventos,omitempty"`
	CreatedAt      time.Time  `json:"creada_en"`
	UpdatedAt      time.Time  `json:"actualizada_en"`
}

type runResponse struct {
	ID           string     `json:"id"`
	SourceID     string     `json:"fuente_id"`
	SourceName   string     `json:"fuente"`
	DocumentPath string     `json:"documento,omitempty"`
	Status       string     `json:"estado"`
	CreatedAt    time.Time  `json:"creado_en"`
	StartedAt    *time.Time `json:"iniciado_en,omitempty"`
	FinishedAt   *time.Time `json:"finalizado_en,omitempty"`
	Extracted    int        `json:"extraidos"`
	New          int        `json:"nuevos"`
	Updated      int        `json:"actualizados"`
	Duplicates   int        `json:"duplicados"`
	Dropped      int        `json:"descartados"`
	Filtered     int        `json:"filtrados"`
	Errors       []string   `json:"errores"`
	DurationMs   int64      `json:"duracion_ms"`
}

type categoryResponse struct {
	Name   string `json:"nombre"`
	Events int    `json:"eventos"`
}

func newEventResponse(ev *database.Event) eventResponse {
	return eventResponse{
		ID:           ev.ID,
		Event:        ev.Event,
		SourceID:     ev.SourceID,
		SourceName:   ev.SourceName,
		DocumentPath: ev.DocumentPath,
		Active:       ev.Active,
		CreatedAt:    ev.CreatedAt,
		UpdatedAt:    ev.UpdatedAt,
	}
}

func newEventResponses(events []database.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for i := range events {
		out = append(out, newEventResponse(&events[i]))
	}
	return out
}

func newSourceResponse(s *database.Source) sourceResponse {
	return sourceResponse{
		ID:             s.ID,
		Key:            s.Key,
		Name:           s.Name,
		PromptKey:      s.PromptKey,
		Type:           s.Type,
		URL:            s.URL,
		Active:         s.Active,
		DocumentPath:   s.DocumentPath,
		LastRunAt:      s.LastRunAt,
		LastStatus:     s.LastStatus,
		LastError:      s.LastError,
		LastEventCount: s.LastEventCount,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func newRunResponse(r *database.Run) runResponse {
	errors := r.Errors
	if errors == nil {
		errors = []string{}
	}

	return runResponse{
		ID:           r.ID,
		SourceID:     r.SourceID,
		SourceName:   r.SourceName,
		DocumentPath: r.DocumentPath,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Extracted:    r.Extracted,
		New:          r.New,
		Updated:      r.Updated,
		Duplicates:   r.Duplicates,
		Dropped:      r.Dropped,
		Filtered:     r.Filtered,
		Errors:       errors,
		DurationMs:   r.DurationMs,
	}
}

func newRunResponses(runs []database.Run) []runResponse {
	out := make([]runResponse, 0, len(runs))
	for i := range runs {
		out = append(out, newRunResponse(&runs[i]))
	}
	return out
}
