package database

import (
	"time"
)

type SourceRepository interface {
	Create(source *Source) error
	Update(source *Source) error
	Delete(id string) error
	GetByID(id string) (*Source, error)
	GetByKey(key string) (*Source, error)
	List() ([]Source, error)
	Count() (int, error)

	UpsertDefinition(key, name, sourceType, url string, active bool) (*Source, bool, error)
	SetDocument(id, path string) error
	RecordRun(id string, status RunStatus, errMsg string, eventCount int, at time.Time) error
}

type EventRepository interface {
	FindActive(sourceID, fingerprint string) (*Event, error)
	Insert(ev *Event) error
	Update(ev *Event) error

	GetByID(id string) (*Event, error)
	List(filter EventFilter) ([]Event, error)
	CategoryCounts(from string) ([]CategoryCount, error)
	Count(sourceID string) (int, error)

	Deactivate(id string) error
	DeleteByDocument(path string) (int64, error)
	DeactivatePast(before string) (int64, error)
	DeleteInactiveBefore(before time.Time) (int64, error)
}

type RunRepository interface {
	Create(run *Run) error
	MarkRunning(id string, at time.Time) error
	Finish(run *Run) error

	GetByID(id string) (*Run, error)
	List(sourceID string, limit int) ([]Run, error)
	ListByStatus(status RunStatus) ([]Run, error)
	DeleteBefore(before time.Time) (int64, error)
}
