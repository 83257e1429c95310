package api

import (
	"time"

	"github.com/heimdex/repcut/internal/session"
	"github.com/heimdex/repcut/internal/timeline"
)

type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	UptimeS      int64  `json:"uptime_s"`
	OpenSessions int    `json:"open_sessions"`
	PendingSaves int    `json:"pending_saves"`
	SavesPaused  bool   `json:"saves_paused"`
}

type CreateSessionRequest struct {
	VideoURL      string    `json:"video_url"`
	Duration      float64   `json:"duration"`
	SuggestedCuts []float64 `json:"suggested_cuts"`
}

type DetectRequest struct {
	VideoPath      string  `json:"video_path"`
	Threshold      float64 `json:"threshold,omitempty"`
	MinSceneLength float64 `json:"min_scene_length,omitempty"`
}

type ReprocessRequest struct {
	Confirm        bool    `json:"confirm"`
	Threshold      float64 `json:"threshold,omitempty"`
	MinSceneLength float64 `json:"min_scene_length,omitempty"`
}

type CutRequest struct {
	Time *float64 `json:"time"`
}

type DetailsRequest struct {
	Name         string   `json:"name"`
	MuscleGroups []string `json:"muscle_groups"`
	Equipment    []string `json:"equipment"`
	RemoveAudio  bool     `json:"remove_audio"`
}

type PlaybackRequest struct {
	CurrentTime *float64 `json:"current_time,omitempty"`
	Playing     *bool    `json:"playing,omitempty"`
}

// ZoomRequest sets an absolute level or steps "in"/"out".
type ZoomRequest struct {
	Level *float64 `json:"level,omitempty"`
	Step  string   `json:"step,omitempty"`
}

type SessionResponse struct {
	ID         string         `json:"id"`
	Phase      string         `json:"phase"`
	State      timeline.State `json:"state"`
	View       *timeline.View `json:"view,omitempty"`
	CutPointID string         `json:"cut_point_id,omitempty"`
}

type SessionsResponse struct {
	Sessions []session.Summary `json:"sessions"`
}

type SaveResponse struct {
	JobID string `json:"job_id"`
}

type TagsResponse struct {
	MuscleGroups []string `json:"muscle_groups"`
	Equipment    []string `json:"equipment"`
}

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	Progress  int    `json:"progress"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
	Result    string `json:"result,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func NewSessionResponse(id string, st timeline.State) SessionResponse {
	return SessionResponse{
		ID:    id,
		Phase: timeline.PhaseOf(st, timeline.Gesture{}).String(),
		State: st,
	}
}

func TagsToResponse(t timeline.Tags) TagsResponse {
	resp := TagsResponse{MuscleGroups: t.MuscleGroups, Equipment: t.Equipment}
	if resp.MuscleGroups == nil {
		resp.MuscleGroups = []string{}
	}
	if resp.Equipment == nil {
		resp.Equipment = []string{}
	}
	return resp
}

func JobToResponse(j *session.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		SessionID: j.SessionID,
		Progress:  j.Progress,
		Attempts:  j.Attempts,
		Error:     j.Error,
		Result:    j.Result,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}
