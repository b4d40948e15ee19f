package database

import (
	"time"

	"github.com/lysyi3m/bulletin-comb/app/event"
)

type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunWarning RunStatus = "warning"
	RunError   RunStatus = "error"
)

func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunWarning || s == RunError
}

type Source struct {
	ID             string // Database UUID
	Key            string // Slug from the definition filename, used in URLs
	Name           string
	PromptKey      string // Registry key of the prompt template, defaults to Key
	Type           string // pdf, html or feed
	URL            string
	Active         bool
	DocumentPath   string // Last uploaded document
	LastRunAt      *time.Time
	LastStatus     string
	LastError      string
	LastEventCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Event struct {
	event.Event

	ID           string
	SourceID     string
	SourceName   string
	DocumentPath string // Document the event was extracted from
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Run struct {
	ID           string
	SourceID     string
	SourceName   string
	DocumentPath string
	Status       RunStatus
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	Extracted    int // Candidates returned by the LLM
	New          int
	Updated      int
	Duplicates   int
	Dropped      int // Candidates rejected by parsing or normalization
	Filtered     int // Candidates skipped by source filters
	Errors       []string
	DurationMs   int64
}

type EventFilter struct {
	Category        string
	SourceID        string
	From            string // Inclusive lower bound on the event's end (or start) date
	Limit           int
	IncludeInactive bool
}

type CategoryCount struct {
	Category string
	Count    int
}
