package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/bulletin-comb/app/errs"
)

const sourceColumns = `id, key, name, prompt_key, type, url, active, document_path,
	last_run_at, last_status, last_error, last_event_count, created_at, updated_at`

// SourceRepositoryImpl handles database operations for sources
type SourceRepositoryImpl struct {
	db *DB
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(db *DB) SourceRepository {
	return &SourceRepositoryImpl{db: db}
}

// Create inserts a new source, assigning an id and a prompt key when missing
func (r *SourceRepositoryImpl) Create(s *Source) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.PromptKey == "" {
		s.PromptKey = s.Key
	}
	if s.Type == "" {
		s.Type = "pdf"
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO sources (id, key, name, prompt_key, type, url, active, document_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Key, s.Name, s.PromptKey, s.Type, s.URL, boolToInt(s.Active), s.DocumentPath,
		formatTime(now), formatTime(now))

	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	return nil
}

// Update saves the editable fields of a source
func (r *SourceRepositoryImpl) Update(s *Source) error {
	s.UpdatedAt = time.Now().UTC()

	res, err := r.db.Exec(`
		UPDATE sources
		SET name = ?, prompt_key = ?, type = ?, url = ?, active = ?, document_path = ?, updated_at = ?
		WHERE id = ?
	`, s.Name, s.PromptKey, s.Type, s.URL, boolToInt(s.Active), s.DocumentPath, formatTime(s.UpdatedAt), s.ID)

	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}

	return expectAffected(res, "source")
}

// Delete removes a source together with its events and runs
func (r *SourceRepositoryImpl) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return expectAffected(res, "source")
}

// GetByID returns nil when no source has the given id
func (r *SourceRepositoryImpl) GetByID(id string) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	return r.scanOne(row)
}

// GetByKey returns nil when no source has the given key
func (r *SourceRepositoryImpl) GetByKey(key string) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE key = ?`, key)
	return r.scanOne(row)
}

func (r *SourceRepositoryImpl) List() ([]Source, error) {
	rows, err := r.db.Query(`SELECT ` + sourceColumns + ` FROM sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *SourceRepositoryImpl) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sources`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

// UpsertDefinition inserts or updates a source from its definition file.
// The active flag is only set on insert so admin toggles survive restarts.
// The boolean result reports whether a new row was created.
func (r *SourceRepositoryImpl) UpsertDefinition(key, name, sourceType, url string, active bool) (*Source, bool, error) {
	existing, err := r.GetByKey(key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check existing source: %w", err)
	}

	if existing == nil {
		s := &Source{
			Key:       key,
			Name:      name,
			PromptKey: key,
			Type:      sourceType,
			URL:       url,
			Active:    active,
		}
		if err := r.Create(s); err != nil {
			return nil, false, err
		}
		return s, true, nil
	}

	existing.Name = name
	existing.Type = sourceType
	existing.URL = url
	if existing.PromptKey == "" {
		existing.PromptKey = key
	}
	if err := r.Update(existing); err != nil {
		return nil, false, err
	}

	return existing, false, nil
}

// SetDocument records the last uploaded document of a source
func (r *SourceRepositoryImpl) SetDocument(id, path string) error {
	res, err := r.db.Exec(`
		UPDATE sources SET document_path = ?, updated_at = ? WHERE id = ?
	`, path, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to set source document: %w", err)
	}
	return expectAffected(res, "source")
}

// RecordRun stores the outcome of the latest run on the source row
func (r *SourceRepositoryImpl) RecordRun(id string, status RunStatus, errMsg string, eventCount int, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET last_run_at = ?, last_status = ?, last_error = ?, last_event_count = ?, updated_at = ?
		WHERE id = ?
	`, formatTime(at), string(status), errMsg, eventCount, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to record source run: %w", err)
	}
	return nil
}

func (r *SourceRepositoryImpl) scanOne(row *sql.Row) (*Source, error) {
	s, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (*Source, error) {
	var s Source
	var active int
	var lastRunAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&s.ID, &s.Key, &s.Name, &s.PromptKey, &s.Type, &s.URL, &active, &s.DocumentPath,
		&lastRunAt, &s.LastStatus, &s.LastError, &s.LastEventCount, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Active = active == 1
	s.LastRunAt = parseNullableTime(lastRunAt)
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)

	return &s, nil
}

func expectAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %w", entity, errs.ErrNotFound)
	}
	return nil
}
