package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/heimdex/repcut/internal/library"
	"github.com/heimdex/repcut/internal/timeline"
)

// Backend is the subset of the library client the service needs.
type Backend interface {
	Detect(ctx context.Context, videoPath string, s library.Settings) (*library.DetectResult, error)
	Reprocess(ctx context.Context, videoURL string, s library.Settings) (*library.ReprocessResult, error)
	Tags(ctx context.Context) (timeline.Tags, error)
	SaveTimeline(ctx context.Context, payload library.TimelinePayload) (*library.SaveResult, error)
}

// Editor is one open session. All access to the store and controller goes
// through the editor's lock.
type Editor struct {
	ID string

	mu        sync.Mutex
	store     *timeline.Store
	ctrl      *timeline.Controller
	width     float64
	createdAt time.Time
	deleted   bool
}

func newEditor(id string, createdAt time.Time) *Editor {
	e := &Editor{
		ID:        id,
		store:     timeline.NewStore(),
		createdAt: createdAt,
	}
	e.ctrl = timeline.NewController(e.store, func() float64 { return e.width })
	return e
}

// State returns a snapshot of the editor's timeline.
func (e *Editor) State() timeline.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.State()
}

// Subscribe registers fn for every applied change of this editor.
func (e *Editor) Subscribe(fn func(timeline.State)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Subscribe(fn)
}

type Service struct {
	repo    Repository
	backend Backend
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	editors map[string]*Editor
}

// NewService returns a session service. backend may be nil, in which case
// detection, reprocessing and vocabulary refresh report ErrNoBackend.
func NewService(repo Repository, backend Backend, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		backend: backend,
		logger:  logger,
		now:     time.Now,
		editors: make(map[string]*Editor),
	}
}

// Open starts a new session on a video with suggested cut times.
func (s *Service) Open(ctx context.Context, videoURL string, duration float64, suggested []float64) (*Editor, error) {
	now := s.now()
	e := newEditor(NewID(), now)

	if out := e.store.LoadVideo(videoURL, duration, suggested); !out.Ok() {
		return nil, fmt.Errorf("load video: %w", out.Err())
	}
	if tags, err := s.repo.GetTags(ctx); err == nil {
		e.store.LoadExistingTags(tags)
	}
	if err := s.persist(ctx, e); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.editors[e.ID] = e
	s.mu.Unlock()

	s.logInfo("session opened", "session_id", e.ID, "video_url", videoURL, "duration", duration, "cut_points", len(suggested))
	return e, nil
}

// Detect uploads a local video to the detector and opens a session on the
// result.
func (s *Service) Detect(ctx context.Context, videoPath string, settings library.Settings) (*Editor, error) {
	if s.backend == nil {
		return nil, ErrNoBackend
	}
	res, err := s.backend.Detect(ctx, videoPath, settings)
	if err != nil {
		return nil, fmt.Errorf("detect scenes: %w", err)
	}
	return s.Open(ctx, res.VideoURL, res.VideoDuration, res.SuggestedCuts)
}

// Get returns an open editor, restoring the draft from the database when it
// is not in memory.
func (s *Service) Get(ctx context.Context, id string) (*Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.editors[id]; ok {
		return e, nil
	}

	rec, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if rec == nil {
		return nil, ErrSessionNotFound
	}

	e := newEditor(rec.ID, rec.CreatedAt)
	e.store.Restore(rec.Snapshot)
	if tags, err := s.repo.GetTags(ctx); err == nil {
		e.store.AddTags(tags)
	}
	s.editors[id] = e

	s.logInfo("session restored", "session_id", id, "cut_points", len(rec.Snapshot.CutPoints))
	return e, nil
}

// Apply runs fn under the editor's lock and autosaves when it applied.
func (s *Service) Apply(ctx context.Context, id string, fn func(c *timeline.Controller) timeline.Outcome) (timeline.State, timeline.Outcome, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return timeline.State{}, timeline.NotFound, err
	}
	return s.applyTo(ctx, e, fn)
}

func (s *Service) applyTo(ctx context.Context, e *Editor, fn func(c *timeline.Controller) timeline.Outcome) (timeline.State, timeline.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Delete may have won the race after Get returned this editor.
	if e.deleted {
		return e.store.State(), timeline.NotFound, ErrSessionNotFound
	}
	out := fn(e.ctrl)
	if out.Ok() {
		if err := s.persistLocked(ctx, e); err != nil {
			return e.store.State(), out, err
		}
	}
	return e.store.State(), out, nil
}

// View builds the rendered timeline for a viewport of width pixels.
func (s *Service) View(ctx context.Context, id string, width float64) (timeline.View, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return timeline.View{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.width = width
	return e.ctrl.BuildView(), nil
}

// UpdateDetails tags the segment at index and records any values missing
// from the vocabulary.
func (s *Service) UpdateDetails(ctx context.Context, id string, index int, details *timeline.SegmentDetails) (timeline.State, timeline.Outcome, error) {
	st, out, err := s.Apply(ctx, id, func(c *timeline.Controller) timeline.Outcome {
		out := c.Store().UpdateSegmentDetails(index, details)
		if out.Ok() && details != nil {
			c.Store().AddTags(timeline.Tags{MuscleGroups: details.MuscleGroups, Equipment: details.Equipment})
		}
		return out
	})
	if err != nil || !out.Ok() || details == nil {
		return st, out, err
	}

	adhoc := timeline.Tags{MuscleGroups: details.MuscleGroups, Equipment: details.Equipment}
	if err := s.repo.AddTags(ctx, adhoc); err != nil {
		s.logWarn("failed to persist tags", "session_id", id, "error", err)
	}
	return st, out, nil
}

// Reset empties the session's timeline. The vocabulary is reloaded since
// the store forgets it.
func (s *Service) Reset(ctx context.Context, id string) (timeline.State, error) {
	tags, _ := s.repo.GetTags(ctx)
	st, _, err := s.Apply(ctx, id, func(c *timeline.Controller) timeline.Outcome {
		c.Cancel()
		c.Store().Reset()
		return c.Store().LoadExistingTags(tags)
	})
	return st, err
}

// ClearAll removes every cut point. confirm must be set.
func (s *Service) ClearAll(ctx context.Context, id string, confirm bool) (timeline.State, timeline.Outcome, error) {
	if !confirm {
		return timeline.State{}, timeline.NotFound, ErrNotConfirmed
	}
	return s.Apply(ctx, id, func(c *timeline.Controller) timeline.Outcome {
		c.Cancel()
		return c.Store().ClearAllCutPoints()
	})
}

// Reprocess re-runs detection with new settings and replaces the timeline
// wholesale. confirm must be set since every edit is lost.
func (s *Service) Reprocess(ctx context.Context, id string, settings library.Settings, confirm bool) (timeline.State, error) {
	if !confirm {
		return timeline.State{}, ErrNotConfirmed
	}
	if s.backend == nil {
		return timeline.State{}, ErrNoBackend
	}
	e, err := s.Get(ctx, id)
	if err != nil {
		return timeline.State{}, err
	}
	cur := e.State()

	res, err := s.backend.Reprocess(ctx, cur.VideoURL, settings)
	if err != nil {
		return timeline.State{}, fmt.Errorf("reprocess: %w", err)
	}

	st, out, err := s.Apply(ctx, id, func(c *timeline.Controller) timeline.Outcome {
		c.Cancel()
		return c.Store().LoadVideo(cur.VideoURL, cur.Duration, res.SuggestedCuts)
	})
	if err != nil {
		return st, err
	}
	if !out.Ok() {
		return st, out.Err()
	}
	s.logInfo("session reprocessed", "session_id", id, "scene_count", res.SceneCount)
	return st, nil
}

// Close persists and forgets an open editor. The draft stays on disk.
func (s *Service) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.editors[id]
	delete(s.editors, id)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return s.persist(ctx, e)
}

// Delete removes a session from memory and disk.
func (s *Service) Delete(ctx context.Context, id string) error {
	rec, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	e, open := s.editors[id]
	delete(s.editors, id)
	s.mu.Unlock()

	if rec == nil && !open {
		return ErrSessionNotFound
	}
	if open {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.deleted = true
	}
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logInfo("session deleted", "session_id", id)
	return nil
}

// List summarizes all drafts, most recently edited first.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	recs, err := s.repo.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	open := make(map[string]*Editor, len(s.editors))
	for id, e := range s.editors {
		open[id] = e
	}
	s.mu.Unlock()

	out := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		st := rec.Snapshot
		e, isOpen := open[rec.ID]
		if isOpen {
			st = e.State()
		}
		out = append(out, Summary{
			ID:            rec.ID,
			VideoURL:      st.VideoURL,
			Duration:      st.Duration,
			CutPointCount: len(st.CutPoints),
			TaggedCount:   len(st.TaggedSegments()),
			Open:          isOpen,
			UpdatedAt:     rec.UpdatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// OpenCount returns the number of editors in memory.
func (s *Service) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.editors)
}

// Snapshot returns the latest state of a session, live when it is open.
func (s *Service) Snapshot(ctx context.Context, id string) (timeline.State, error) {
	s.mu.Lock()
	e, ok := s.editors[id]
	s.mu.Unlock()
	if ok {
		return e.State(), nil
	}

	rec, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return timeline.State{}, err
	}
	if rec == nil {
		return timeline.State{}, ErrSessionNotFound
	}
	return rec.Snapshot, nil
}

// QueueSave creates a pending save job for the session's tagged segments.
func (s *Service) QueueSave(ctx context.Context, id string) (*Job, error) {
	st, err := s.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := library.NewTimelinePayload(st); !ok {
		return nil, ErrNothingTagged
	}

	now := s.now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypeSave,
		Status:    JobStatusPending,
		SessionID: id,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create save job: %w", err)
	}
	s.logInfo("save queued", "session_id", id, "job_id", job.ID, "tagged", len(st.TaggedSegments()))
	return job, nil
}

// Vocabulary returns the cached tag vocabulary, fetching it from the backend
// the first time.
func (s *Service) Vocabulary(ctx context.Context) (timeline.Tags, error) {
	tags, err := s.repo.GetTags(ctx)
	if err != nil {
		return timeline.Tags{}, err
	}
	if len(tags.MuscleGroups) > 0 || len(tags.Equipment) > 0 || s.backend == nil {
		return tags, nil
	}
	return s.RefreshVocabulary(ctx)
}

// RefreshVocabulary pulls the vocabulary from the backend, merges it into
// the cache and pushes it to every open editor.
func (s *Service) RefreshVocabulary(ctx context.Context) (timeline.Tags, error) {
	if s.backend == nil {
		return timeline.Tags{}, ErrNoBackend
	}
	fetched, err := s.backend.Tags(ctx)
	if err != nil {
		return timeline.Tags{}, fmt.Errorf("fetch tags: %w", err)
	}
	if err := s.repo.AddTags(ctx, fetched); err != nil {
		return timeline.Tags{}, fmt.Errorf("cache tags: %w", err)
	}
	tags, err := s.repo.GetTags(ctx)
	if err != nil {
		return timeline.Tags{}, err
	}

	s.mu.Lock()
	editors := make([]*Editor, 0, len(s.editors))
	for _, e := range s.editors {
		editors = append(editors, e)
	}
	s.mu.Unlock()

	for _, e := range editors {
		e.mu.Lock()
		e.store.AddTags(tags)
		e.mu.Unlock()
	}

	s.logInfo("vocabulary refreshed", "muscle_groups", len(tags.MuscleGroups), "equipment", len(tags.Equipment))
	return tags, nil
}

// SaveAll persists every open editor. Used on shutdown.
func (s *Service) SaveAll(ctx context.Context) error {
	s.mu.Lock()
	editors := make([]*Editor, 0, len(s.editors))
	for _, e := range s.editors {
		editors = append(editors, e)
	}
	s.mu.Unlock()

	var errs []error
	for _, e := range editors {
		if err := s.persist(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) persist(ctx context.Context, e *Editor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return s.persistLocked(ctx, e)
}

func (s *Service) persistLocked(ctx context.Context, e *Editor) error {
	if e.deleted {
		return nil
	}
	st := e.store.State()
	rec := &Record{
		ID:        e.ID,
		VideoURL:  st.VideoURL,
		Duration:  st.Duration,
		Snapshot:  st,
		CreatedAt: e.createdAt,
		UpdatedAt: s.now(),
	}
	if err := s.repo.SaveSession(ctx, rec); err != nil {
		return fmt.Errorf("autosave session %s: %w", e.ID, err)
	}
	return nil
}

func (s *Service) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Service) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// Handle binds one session for callers that drive a single editor, such as
// the terminal UI.
type Handle struct {
	svc *Service
	ctx context.Context
	ID  string
}

func (s *Service) Handle(ctx context.Context, id string) Handle {
	return Handle{svc: s, ctx: ctx, ID: id}
}

func (h Handle) Apply(fn func(c *timeline.Controller) timeline.Outcome) (timeline.State, timeline.Outcome, error) {
	return h.svc.Apply(h.ctx, h.ID, fn)
}

func (h Handle) UpdateDetails(index int, details *timeline.SegmentDetails) (timeline.State, timeline.Outcome, error) {
	return h.svc.UpdateDetails(h.ctx, h.ID, index, details)
}

func (h Handle) ClearAll() (timeline.State, timeline.Outcome, error) {
	return h.svc.ClearAll(h.ctx, h.ID, true)
}

func (h Handle) View(width float64) (timeline.View, error) {
	return h.svc.View(h.ctx, h.ID, width)
}
