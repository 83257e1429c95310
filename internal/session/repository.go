package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/heimdex/repcut/internal/db"
	"github.com/heimdex/repcut/internal/timeline"
)

type Repository interface {
	SaveSession(ctx context.Context, rec *Record) error
	GetSession(ctx context.Context, id string) (*Record, error)
	ListSessions(ctx context.Context) ([]*Record, error)
	DeleteSession(ctx context.Context, id string) error

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	IncrementJobAttempts(ctx context.Context, id string) (int, error)
	SetJobResult(ctx context.Context, id, result string) error

	GetTags(ctx context.Context) (timeline.Tags, error)
	ReplaceTags(ctx context.Context, tags timeline.Tags) error
	AddTags(ctx context.Context, tags timeline.Tags) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveSession inserts or replaces a session and its snapshot.
func (r *SQLiteRepository) SaveSession(ctx context.Context, rec *Record) error {
	snap, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, video_url, duration, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			video_url = excluded.video_url,
			duration = excluded.duration,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, rec.ID, rec.VideoURL, rec.Duration, string(snap),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, video_url, duration, snapshot, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	rec, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (r *SQLiteRepository) ListSessions(ctx context.Context) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, video_url, duration, snapshot, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Record, error) {
	var rec Record
	var snap, createdAt, updatedAt string
	if err := row.Scan(&rec.ID, &rec.VideoURL, &rec.Duration, &snap, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(snap), &rec.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot of session %s: %w", rec.ID, err)
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

// DeleteSession removes a session; its jobs go with it.
func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM jobs WHERE session_id = ?", id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
		return err
	})
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, session_id, progress, attempts, error, result, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.SessionID), j.Progress, j.Attempts,
		nullString(j.Error), nullString(j.Result),
		j.CreatedAt.UTC().Format(time.RFC3339Nano), j.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

const jobColumns = `id, type, status, session_id, progress, attempts, error, result, created_at, updated_at`

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var sessionID, errMsg, result sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.Type, &j.Status, &sessionID, &j.Progress, &j.Attempts, &errMsg, &result, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	j.SessionID = sessionID.String
	j.Error = errMsg.String
	j.Result = result.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = datetime('now') WHERE id = ?
	`, progress, id)
	return err
}

// IncrementJobAttempts bumps the attempt counter and returns the new value.
func (r *SQLiteRepository) IncrementJobAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE jobs SET attempts = attempts + 1, updated_at = datetime('now') WHERE id = ?
		RETURNING attempts
	`, id).Scan(&attempts)
	return attempts, err
}

func (r *SQLiteRepository) SetJobResult(ctx context.Context, id, result string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE jobs SET result = ? WHERE id = ?`, nullString(result), id)
	return err
}

const (
	tagKindMuscleGroup = "muscle_group"
	tagKindEquipment   = "equipment"
)

// GetTags returns the cached vocabulary in insertion order.
func (r *SQLiteRepository) GetTags(ctx context.Context) (timeline.Tags, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, value FROM tags ORDER BY kind, position`)
	if err != nil {
		return timeline.Tags{}, err
	}
	defer rows.Close()

	var tags timeline.Tags
	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			return timeline.Tags{}, err
		}
		switch kind {
		case tagKindMuscleGroup:
			tags.MuscleGroups = append(tags.MuscleGroups, value)
		case tagKindEquipment:
			tags.Equipment = append(tags.Equipment, value)
		}
	}
	return tags, rows.Err()
}

// ReplaceTags swaps the cached vocabulary for tags.
func (r *SQLiteRepository) ReplaceTags(ctx context.Context, tags timeline.Tags) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags`); err != nil {
			return err
		}
		return insertTags(ctx, tx, tags)
	})
}

// AddTags appends values not already cached.
func (r *SQLiteRepository) AddTags(ctx context.Context, tags timeline.Tags) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return insertTags(ctx, tx, tags)
	})
}

func insertTags(ctx context.Context, tx *sql.Tx, tags timeline.Tags) error {
	groups := []struct {
		kind   string
		values []string
	}{
		{tagKindMuscleGroup, tags.MuscleGroups},
		{tagKindEquipment, tags.Equipment},
	}
	for _, g := range groups {
		for _, v := range g.values {
			if v == "" {
				continue
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO tags (kind, value, position)
				VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM tags WHERE kind = ?))
				ON CONFLICT(kind, value) DO NOTHING
			`, g.kind, v, g.kind)
			if err != nil {
				return fmt.Errorf("insert tag %s=%q: %w", g.kind, v, err)
			}
		}
	}
	return nil
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// parseTime accepts both our RFC3339 timestamps and sqlite's datetime('now').
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.DateTime, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
