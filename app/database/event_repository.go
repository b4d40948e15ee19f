package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const eventColumns = `id, source_id, source_name, document_path, title, start_date, end_date,
	category, price, location, link, description, extra_data, fingerprint, active, created_at, updated_at`

// effectiveEnd is the last day an event is still relevant.
const effectiveEnd = `COALESCE(NULLIF(end_date, ''), start_date)`

// EventRepositoryImpl handles database operations for events
type EventRepositoryImpl struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) EventRepository {
	return &EventRepositoryImpl{db: db}
}

// FindActive returns the active event of a source with the given
// fingerprint, or nil when there is none
func (r *EventRepositoryImpl) FindActive(sourceID, fingerprint string) (*Event, error) {
	row := r.db.QueryRow(`
		SELECT `+eventColumns+`
		FROM events
		WHERE source_id = ? AND fingerprint = ? AND active = 1
	`, sourceID, fingerprint)

	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active event: %w", err)
	}
	return ev, nil
}

// Insert stores a new active event
func (r *EventRepositoryImpl) Insert(ev *Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	ev.Active = true

	extra, err := encodeExtra(ev.Extra)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO events (
			id, source_id, source_name, document_path, title, start_date, end_date,
			category, price, location, link, description, extra_data, fingerprint,
			active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, ev.ID, ev.SourceID, ev.SourceName, ev.DocumentPath, ev.Title, ev.StartDate, ev.EndDate,
		ev.Category, ev.Price, ev.Location, ev.Link, ev.Description, extra, ev.Fingerprint,
		formatTime(now), formatTime(now))

	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// Update overwrites the mutable fields of an event in place. The id,
// title, start date, fingerprint and creation time are kept.
func (r *EventRepositoryImpl) Update(ev *Event) error {
	ev.UpdatedAt = time.Now().UTC()

	extra, err := encodeExtra(ev.Extra)
	if err != nil {
		return err
	}

	res, err := r.db.Exec(`
		UPDATE events
		SET end_date = ?, category = ?, price = ?, location = ?, link = ?, description = ?,
		    extra_data = ?, document_path = ?, source_name = ?, updated_at = ?
		WHERE id = ?
	`, ev.EndDate, ev.Category, ev.Price, ev.Location, ev.Link, ev.Description,
		extra, ev.DocumentPath, ev.SourceName, formatTime(ev.UpdatedAt), ev.ID)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	return expectAffected(res, "event")
}

// GetByID returns nil when no event has the given id
func (r *EventRepositoryImpl) GetByID(id string) (*Event, error) {
	row := r.db.QueryRow(`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)

	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return ev, nil
}

// List returns events ordered by start date
func (r *EventRepositoryImpl) List(filter EventFilter) ([]Event, error) {
	var conditions []string
	var args []any

	if !filter.IncludeInactive {
		conditions = append(conditions, "active = 1")
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.SourceID != "" {
		conditions = append(conditions, "source_id = ?")
		args = append(args, filter.SourceID)
	}
	if filter.From != "" {
		conditions = append(conditions, effectiveEnd+" >= ?")
		args = append(args, filter.From)
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_date, title"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, *ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return events, nil
}

// CategoryCounts returns the number of active events per category that are
// still relevant on or after from
func (r *EventRepositoryImpl) CategoryCounts(from string) ([]CategoryCount, error) {
	rows, err := r.db.Query(`
		SELECT category, COUNT(*)
		FROM events
		WHERE active = 1 AND `+effectiveEnd+` >= ?
		GROUP BY category
		ORDER BY category
	`, from)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by category: %w", err)
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return counts, nil
}

// Count returns the number of active events, for one source when sourceID
// is set
func (r *EventRepositoryImpl) Count(sourceID string) (int, error) {
	var count int
	var err error
	if sourceID == "" {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM events WHERE active = 1`).Scan(&count)
	} else {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM events WHERE active = 1 AND source_id = ?`, sourceID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get event count: %w", err)
	}
	return count, nil
}

// Deactivate hides an event without deleting it
func (r *EventRepositoryImpl) Deactivate(id string) error {
	res, err := r.db.Exec(`
		UPDATE events SET active = 0, updated_at = ? WHERE id = ? AND active = 1
	`, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate event: %w", err)
	}
	return expectAffected(res, "event")
}

// DeleteByDocument removes the events extracted from a document
func (r *EventRepositoryImpl) DeleteByDocument(path string) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM events WHERE document_path = ?`, path)
	if err != nil {
		return 0, fmt.Errorf("failed to delete events by document: %w", err)
	}
	return res.RowsAffected()
}

// DeactivatePast deactivates events that ended before the given date
func (r *EventRepositoryImpl) DeactivatePast(before string) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE events SET active = 0, updated_at = ?
		WHERE active = 1 AND `+effectiveEnd+` < ?
	`, formatTime(time.Now()), before)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate past events: %w", err)
	}
	return res.RowsAffected()
}

// DeleteInactiveBefore removes inactive events last touched before the cutoff
func (r *EventRepositoryImpl) DeleteInactiveBefore(before time.Time) (int64, error) {
	res, err := r.db.Exec(`
		DELETE FROM events WHERE active = 0 AND updated_at < ?
	`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive events: %w", err)
	}
	return res.RowsAffected()
}

func scanEvent(row scanner) (*Event, error) {
	var ev Event
	var extra string
	var active int
	var createdAt, updatedAt string

	err := row.Scan(
		&ev.ID, &ev.SourceID, &ev.SourceName, &ev.DocumentPath, &ev.Title, &ev.StartDate, &ev.EndDate,
		&ev.Category, &ev.Price, &ev.Location, &ev.Link, &ev.Description, &extra, &ev.Fingerprint,
		&active, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if extra != "" && extra != "{}" && extra != "null" {
		if err := json.Unmarshal([]byte(extra), &ev.Extra); err != nil {
			return nil, fmt.Errorf("failed to decode extra data: %w", err)
		}
	}

	ev.Active = active == 1
	ev.CreatedAt = parseTime(createdAt)
	ev.UpdatedAt = parseTime(updatedAt)

	return &ev, nil
}

func encodeExtra(extra map[string]any) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("failed to encode extra data: %w", err)
	}
	return string(data), nil
}
