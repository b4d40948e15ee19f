package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/bulletin-comb/app/errs"
)

const runColumns = `id, source_id, source_name, document_path, status, created_at, started_at, finished_at,
	extracted, new_events, updated_events, duplicates, dropped, filtered, errors, duration_ms`

// RunRepositoryImpl handles database operations for run logs
type RunRepositoryImpl struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) RunRepository {
	return &RunRepositoryImpl{db: db}
}

// Create inserts a pending run
func (r *RunRepositoryImpl) Create(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.Status = RunPending
	run.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO runs (id, source_id, source_name, document_path, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.SourceID, run.SourceName, run.DocumentPath, string(run.Status), formatTime(run.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// MarkRunning moves a pending run to running. Any other state is rejected.
func (r *RunRepositoryImpl) MarkRunning(id string, at time.Time) error {
	res, err := r.db.Exec(`
		UPDATE runs SET status = ?, started_at = ? WHERE id = ? AND status = ?
	`, string(RunRunning), formatTime(at), id, string(RunPending))
	if err != nil {
		return fmt.Errorf("failed to mark run as running: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s is not pending: %w", id, errs.ErrNotFound)
	}
	return nil
}

// Finish stores the final state and counters of a run. Runs that already
// reached a terminal state are left untouched.
func (r *RunRepositoryImpl) Finish(run *Run) error {
	if !run.Status.Terminal() {
		return fmt.Errorf("run status %s is not terminal", run.Status)
	}

	errorsJSON, err := json.Marshal(nonNil(run.Errors))
	if err != nil {
		return fmt.Errorf("failed to encode run errors: %w", err)
	}

	res, err := r.db.Exec(`
		UPDATE runs
		SET status = ?, finished_at = ?, extracted = ?, new_events = ?, updated_events = ?,
		    duplicates = ?, dropped = ?, filtered = ?, errors = ?, duration_ms = ?, document_path = ?
		WHERE id = ? AND status IN (?, ?)
	`, string(run.Status), formatNullableTime(run.FinishedAt), run.Extracted, run.New, run.Updated,
		run.Duplicates, run.Dropped, run.Filtered, string(errorsJSON), run.DurationMs, run.DocumentPath,
		run.ID, string(RunPending), string(RunRunning))
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s is already finished: %w", run.ID, errs.ErrNotFound)
	}
	return nil
}

// GetByID returns nil when no run has the given id
func (r *RunRepositoryImpl) GetByID(id string) (*Run, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List returns the newest runs first, for one source when sourceID is set
func (r *RunRepositoryImpl) List(sourceID string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if sourceID != "" {
		query += ` WHERE source_id = ?`
		args = append(args, sourceID)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return r.query(query, args...)
}

func (r *RunRepositoryImpl) ListByStatus(status RunStatus) ([]Run, error) {
	return r.query(`SELECT `+runColumns+` FROM runs WHERE status = ? ORDER BY created_at`, string(status))
}

// DeleteBefore removes finished runs created before the cutoff
func (r *RunRepositoryImpl) DeleteBefore(before time.Time) (int64, error) {
	res, err := r.db.Exec(`
		DELETE FROM runs WHERE created_at < ? AND status IN (?, ?, ?)
	`, formatTime(before), string(RunSuccess), string(RunWarning), string(RunError))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	return res.RowsAffected()
}

func (r *RunRepositoryImpl) query(query string, args ...any) ([]Run, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var status, createdAt, errorsJSON string
	var startedAt, finishedAt sql.NullString

	err := row.Scan(
		&run.ID, &run.SourceID, &run.SourceName, &run.DocumentPath, &status, &createdAt, &startedAt, &finishedAt,
		&run.Extracted, &run.New, &run.Updated, &run.Duplicates, &run.Dropped, &run.Filtered, &errorsJSON, &run.DurationMs,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
		return nil, fmt.Errorf("failed to decode run errors: %w", err)
	}

	run.Status = RunStatus(status)
	run.CreatedAt = parseTime(createdAt)
	run.StartedAt = parseNullableTime(startedAt)
	run.FinishedAt = parseNullableTime(finishedAt)

	return &run, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
