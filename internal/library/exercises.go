package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrInvalidExercise  = errors.New("invalid exercise")
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

var exerciseSortFields = []string{"created_at", "duration", "exercise_name"}

// Exercise is one saved segment in the exercise library.
type Exercise struct {
	ID           int64    `json:"id"`
	VideoURL     string   `json:"video_url"`
	Name         string   `json:"exercise_name"`
	Duration     float64  `json:"duration"`
	StartTime    float64  `json:"start_time"`
	EndTime      float64  `json:"end_time"`
	RemoveAudio  bool     `json:"remove_audio"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
	MuscleGroups []string `json:"muscle_groups"`
	Equipment    []string `json:"equipment"`
}

// Query filters and pages the exercise library. A filter list matches
// exercises carrying any of its values; the name search is a
// case-insensitive substring match done by the backend.
type Query struct {
	Search       string
	MuscleGroups []string
	Equipment    []string
	Page         int
	PerPage      int
	SortBy       string
	Descending   bool
}

// Normalize applies the backend's paging limits and sort defaults.
func (q Query) Normalize() Query {
	q.Search = strings.TrimSpace(q.Search)
	q.Page = max(q.Page, 1)
	if q.PerPage <= 0 {
		q.PerPage = DefaultPerPage
	}
	q.PerPage = min(q.PerPage, MaxPerPage)
	if !slices.Contains(exerciseSortFields, q.SortBy) {
		q.SortBy = "created_at"
		q.Descending = true
	}
	return q
}

// Values encodes the query as /api/exercises parameters.
func (q Query) Values() url.Values {
	q = q.Normalize()
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if len(q.MuscleGroups) > 0 {
		v.Set("muscle_groups", strings.Join(q.MuscleGroups, ","))
	}
	if len(q.Equipment) > 0 {
		v.Set("equipment", strings.Join(q.Equipment, ","))
	}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("per_page", strconv.Itoa(q.PerPage))
	v.Set("sort_by", q.SortBy)
	order := "asc"
	if q.Descending {
		order = "desc"
	}
	v.Set("sort_order", order)
	return v
}

type Pagination struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ExercisePage is one page of results plus the full filter vocabulary.
type ExercisePage struct {
	Exercises    []Exercise `json:"exercises"`
	MuscleGroups []string   `json:"muscle_groups"`
	Equipment    []string   `json:"equipment"`
	Pagination   Pagination `json:"pagination"`
}

// ExerciseUpdate replaces an exercise's name and tags.
type ExerciseUpdate struct {
	Name         string   `json:"exercise_name"`
	MuscleGroups []string `json:"muscle_groups"`
	Equipment    []string `json:"equipment"`
	RemoveAudio  *bool    `json:"remove_audio,omitempty"`
}

// Validate mirrors the backend's rules so bad edits fail before a round trip.
func (u ExerciseUpdate) Validate() error {
	switch {
	case strings.TrimSpace(u.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidExercise)
	case len(u.MuscleGroups) == 0:
		return fmt.Errorf("%w: at least one muscle group is required", ErrInvalidExercise)
	case len(u.Equipment) == 0:
		return fmt.Errorf("%w: at least one equipment is required", ErrInvalidExercise)
	}
	return nil
}

type exerciseResponse struct {
	Exercise Exercise `json:"exercise"`
}

type mutationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Exercises searches the exercise library.
func (c *Client) Exercises(ctx context.Context, q Query) (*ExercisePage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/exercises?"+q.Values().Encode(), nil)
	if err != nil {
		return nil, err
	}
	var page ExercisePage
	if err := c.do(req, "list exercises", &page); err != nil {
		return nil, err
	}
	if page.Exercises == nil {
		page.Exercises = []Exercise{}
	}
	return &page, nil
}

// Exercise fetches a single exercise.
func (c *Client) Exercise(ctx context.Context, id int64) (*Exercise, error) {
	req, err := c.newRequest(ctx, http.MethodGet, exercisePath(id), nil)
	if err != nil {
		return nil, err
	}
	var resp exerciseResponse
	if err := c.do(req, "get exercise", &resp); err != nil {
		return nil, exerciseError(id, err)
	}
	return &resp.Exercise, nil
}

// UpdateExercise renames and retags an exercise.
func (c *Client) UpdateExercise(ctx context.Context, id int64, u ExerciseUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	u.Name = strings.TrimSpace(u.Name)
	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal exercise update: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, exercisePath(id), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp mutationResponse
	if err := c.do(req, "update exercise", &resp); err != nil {
		return exerciseError(id, err)
	}
	c.logger.Info("exercise updated", "exercise_id", id, "name", u.Name)
	return nil
}

// DeleteExercise removes an exercise and its stored clip.
func (c *Client) DeleteExercise(ctx context.Context, id int64) error {
	req, err := c.newRequest(ctx, http.MethodDelete, exercisePath(id), nil)
	if err != nil {
		return err
	}
	var resp mutationResponse
	if err := c.do(req, "delete exercise", &resp); err != nil {
		return exerciseError(id, err)
	}
	c.logger.Info("exercise deleted", "exercise_id", id)
	return nil
}

func exercisePath(id int64) string {
	return "/api/exercises/" + strconv.FormatInt(id, 10)
}

// exerciseError turns a backend 404 into ErrExerciseNotFound.
func exerciseError(id int64, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("exercise %d: %w", id, ErrExerciseNotFound)
	}
	return err
}
