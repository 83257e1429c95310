// Package session hosts timeline editing sessions: it keeps open editors in
// memory, persists their drafts to SQLite and queues saves to the library
// backend.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/repcut/internal/timeline"
)

// Record is a persisted editing session.
type Record struct {
	ID        string         `json:"id"`
	VideoURL  string         `json:"video_url"`
	Duration  float64        `json:"duration"`
	Snapshot  timeline.State `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Summary is the list view of a session.
type Summary struct {
	ID            string    `json:"id"`
	VideoURL      string    `json:"video_url"`
	Duration      float64   `json:"duration"`
	CutPointCount int       `json:"cut_point_count"`
	TaggedCount   int       `json:"tagged_count"`
	Open          bool      `json:"open"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const (
	JobTypeSave = "save"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"

	// MaxSaveAttempts bounds retries of a save job on retryable errors.
	MaxSaveAttempts = 3
)

type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	SessionID string    `json:"session_id,omitempty"`
	Progress  int       `json:"progress"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	Result    string    `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNothingTagged   = errors.New("no tagged segments to save")
	ErrNotConfirmed    = errors.New("destructive operation requires confirmation")
	ErrNoBackend       = errors.New("library backend not configured")
)

// NewID returns a time-ordered unique ID.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
