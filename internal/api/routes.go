package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/repcut/internal/library"
	"github.com/heimdex/repcut/internal/media"
	"github.com/heimdex/repcut/internal/playback"
	"github.com/heimdex/repcut/internal/session"
	"github.com/heimdex/repcut/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORS(cfg.AllowedOrigins))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/sessions", listSessionsHandler(cfg))
		r.Post("/sessions", createSessionHandler(cfg))
		r.Post("/sessions/detect", detectHandler(cfg))

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", getSessionHandler(cfg))
			r.Delete("/", deleteSessionHandler(cfg))
			r.Post("/reset", resetHandler(cfg))
			r.Post("/reprocess", reprocessHandler(cfg))

			r.Post("/cuts", addCutHandler(cfg))
			r.Delete("/cuts", clearCutsHandler(cfg))
			r.Patch("/cuts/{cutID}", moveCutHandler(cfg))
			r.Delete("/cuts/{cutID}", deleteCutHandler(cfg))

			r.Put("/selection", selectionHandler(cfg))
			r.Put("/segments/{index}/details", detailsHandler(cfg))
			r.Put("/playback", playbackStateHandler(cfg))
			r.Put("/zoom", zoomHandler(cfg))

			r.Post("/save", saveHandler(cfg))
			r.Get("/export.edl", exportEDLHandler(cfg))
			r.Get("/video", videoHandler(cfg))
		})

		r.Get("/tags", tagsHandler(cfg))
		r.Post("/tags/refresh", refreshTagsHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))

		r.Route("/library/exercises", libraryRoutes(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:       "ok",
			Version:      cfg.Version,
			UptimeS:      int64(time.Since(cfg.StartTime).Seconds()),
			OpenSessions: cfg.Sessions.OpenCount(),
		}
		if cfg.Runner != nil {
			resp.PendingSaves = cfg.Runner.PendingCount(r.Context())
			resp.SavesPaused = cfg.Runner.IsPaused()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.Sessions.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list sessions", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, SessionsResponse{Sessions: list})
	}
}

func createSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.VideoURL == "" {
			WriteError(w, http.StatusBadRequest, "video_url is required", "BAD_REQUEST")
			return
		}

		duration := req.Duration
		if duration <= 0 {
			duration = probeDuration(r, cfg, req.VideoURL)
		}

		e, err := cfg.Sessions.Open(r.Context(), req.VideoURL, duration, req.SuggestedCuts)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, NewSessionResponse(e.ID, e.State()))
	}
}

func detectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DetectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.VideoPath == "" {
			WriteError(w, http.StatusBadRequest, "video_path is required", "BAD_REQUEST")
			return
		}

		settings := cfg.detectSettings(req.Threshold, req.MinSceneLength)
		e, err := cfg.Sessions.Detect(r.Context(), req.VideoPath, settings)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, NewSessionResponse(e.ID, e.State()))
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		e, err := cfg.Sessions.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := NewSessionResponse(id, e.State())
		if raw := r.URL.Query().Get("width"); raw != "" {
			width, err := strconv.ParseFloat(raw, 64)
			if err != nil || width <= 0 {
				WriteError(w, http.StatusBadRequest, "width must be a positive number", "BAD_REQUEST")
				return
			}
			view, err := cfg.Sessions.View(r.Context(), id, width)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			resp.View = &view
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func deleteSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func resetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		st, err := cfg.Sessions.Reset(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, NewSessionResponse(id, st))
	}
}

func reprocessHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReprocessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		settings := cfg.detectSettings(req.Threshold, req.MinSceneLength)
		st, err := cfg.Sessions.Reprocess(r.Context(), id, settings, req.Confirm)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, NewSessionResponse(id, st))
	}
}

func addCutHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Time == nil {
			WriteError(w, http.StatusBadRequest, "time is required", "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		var cutID string
		st, out, err := cfg.Sessions.Apply(r.Context(), id, func(c *timeline.Controller) timeline.Outcome {
			var out timeline.Outcome
			out, cutID = c.Store().AddCutPoint(*req.Time)
			return out
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if !out.Ok() {
			writeOutcome(w, out)
			return
		}
		resp := NewSessionResponse(id, st)
		resp.CutPointID = cutID
		WriteJSON(w, http.StatusCreated, resp)
	}
}

func moveCutHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Time == nil {
			WriteError(w, http.StatusBadRequest, "time is required", "BAD_REQUEST")
			return
		}
		cutID := chi.URLParam(r, "cutID")
		applyAndRespond(cfg, w, r, func(c *timeline.Controller) timeline.Outcome {
			return c.Store().UpdateCutPoint(cutID, *req.Time)
		})
	}
}

func deleteCutHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cutID := chi.URLParam(r, "cutID")
		applyAndRespond(cfg, w, r, func(c *timeline.Controller) timeline.Outcome {
			return c.Store().DeleteCutPoint(cutID)
		})
	}
}

func clearCutsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
		st, out, err := cfg.Sessions.ClearAll(r.Context(), id, confirm)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if !out.Ok() {
			writeOutcome(w, out)
			return
		}
		WriteJSON(w, http.StatusOK, NewSessionResponse(id, st))
	}
}

// selectionHandler applies whichever of cut_point_id and segment_index are
// present; an explicit null clears that selection.
func selectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		cutRaw, hasCut := raw["cut_point_id"]
		segRaw, hasSeg := raw["segment_index"]
		if !hasCut && !hasSeg {
			WriteError(w, http.StatusBadRequest, "cut_point_id or segment_index is required", "BAD_REQUEST")
			return
		}

		var cutID *string
		var segIndex *int
		if hasCut {
			if err := json.Unmarshal(cutRaw, &cutID); err != nil {
				WriteError(w, http.StatusBadRequest, "cut_point_id must be a string or null", "BAD_REQUEST")
				return
			}
		}
		if hasSeg {
			if err := json.Unmarshal(segRaw, &segIndex); err != nil {
				WriteError(w, http.StatusBadRequest, "segment_index must be an integer or null", "BAD_REQUEST")
				return
			}
		}

		applyAndRespond(cfg, w, r, func(c *timeline.Controller) timeline.Outcome {
			st := c.Store().State()
			if hasCut && cutID != nil {
				if _, ok := c.Store().CutPoint(*cutID); !ok {
					return timeline.NotFound
				}
			}
			if hasSeg && segIndex != nil && (*segIndex < 0 || *segIndex >= len(st.Segments)) {
				return timeline.NotFound
			}
			// Both targets are known to exist, so neither setter can fail.
			if hasCut {
				c.Store().SelectCutPoint(cutID)
			}
			if hasSeg {
				c.Store().SelectSegment(segIndex)
			}
			return timeline.Applied
		})
	}
}

func detailsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "segment index must be an integer", "BAD_REQUEST")
			return
		}

		var req *DetailsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var details *timeline.SegmentDetails
		if req != nil {
			if strings.TrimSpace(req.Name) == "" {
				WriteError(w, http.StatusBadRequest, "exercise name is required", "BAD_REQUEST")
				return
			}
			details = &timeline.SegmentDetails{
				Name:         strings.TrimSpace(req.Name),
				MuscleGroups: req.MuscleGroups,
				Equipment:    req.Equipment,
				RemoveAudio:  req.RemoveAudio,
			}
		}

		id := chi.URLParam(r, "id")
		st, out, err := cfg.Sessions.UpdateDetails(r.Context(), id, index, details)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if !out.Ok() {
			writeOutcome(w, out)
			return
		}
		WriteJSON(w, http.StatusOK, NewSessionResponse(id, st))
	}
}

func playbackStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlaybackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		applyAndRespond(cfg, w, r, func(c *timeline.Controller) timeline.Outcome {
			if req.CurrentTime != nil {
				c.Store().SetCurrentTime(*req.CurrentTime)
			}
			if req.Playing != nil {
				c.Store().SetPlaying(*req.Playing)
			}
			return timeline.Applied
		})
	}
}

func zoomHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ZoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var op func(s *timeline.Store) timeline.Outcome
		switch {
		case req.Level != nil:
			level := *req.Level
			op = func(s *timeline.Store) timeline.Outcome { return s.SetZoomLevel(level) }
		case req.Step == "in":
			op = (*timeline.Store).ZoomIn
		case req.Step == "out":
			op = (*timeline.Store).ZoomOut
		default:
			WriteError(w, http.StatusBadRequest, `level or step ("in"/"out") is required`, "BAD_REQUEST")
			return
		}

		applyAndRespond(cfg, w, r, func(c *timeline.Controller) timeline.Outcome {
			return op(c.Store())
		})
	}
}

func saveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Sessions.QueueSave(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, SaveResponse{JobID: job.ID})
	}
}

func videoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		st, err := cfg.Sessions.Snapshot(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		err = cfg.Playback.ServeVideo(w, r, st.VideoURL)
		switch {
		case err == nil:
		case errors.Is(err, playback.ErrNoVideo):
			WriteError(w, http.StatusNotFound, "session has no video", "NO_VIDEO")
		case errors.Is(err, playback.ErrVideoNotExists):
			WriteError(w, http.StatusNotFound, "video file not found", "NOT_FOUND")
		case errors.Is(err, playback.ErrOutsideMedia):
			WriteError(w, http.StatusForbidden, err.Error(), "FORBIDDEN")
		default:
			cfg.Logger.Error("playback error", "error", err, "session_id", id)
			WriteError(w, http.StatusInternalServerError, "playback failed", "INTERNAL_ERROR")
		}
	}
}

func tagsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := cfg.Sessions.Vocabulary(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TagsToResponse(tags))
	}
}

func refreshTagsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := cfg.Sessions.RefreshVocabulary(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TagsToResponse(tags))
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Repository.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

// applyAndRespond runs fn on the session in the URL and writes the new
// state, or the rejection.
func applyAndRespond(cfg ServerConfig, w http.ResponseWriter, r *http.Request, fn func(c *timeline.Controller) timeline.Outcome) {
	id := chi.URLParam(r, "id")
	st, out, err := cfg.Sessions.Apply(r.Context(), id, fn)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !out.Ok() {
		writeOutcome(w, out)
		return
	}
	WriteJSON(w, http.StatusOK, NewSessionResponse(id, st))
}

func writeOutcome(w http.ResponseWriter, out timeline.Outcome) {
	switch out {
	case timeline.RejectedAtBoundary:
		WriteError(w, http.StatusUnprocessableEntity, out.Err().Error(), "AT_BOUNDARY")
	case timeline.RejectedTooCloseToNeighbor:
		WriteError(w, http.StatusUnprocessableEntity, out.Err().Error(), "TOO_CLOSE")
	case timeline.RejectedNoVideo:
		WriteError(w, http.StatusUnprocessableEntity, out.Err().Error(), "NO_VIDEO")
	case timeline.NotFound:
		WriteError(w, http.StatusNotFound, out.Err().Error(), "NOT_FOUND")
	default:
		WriteError(w, http.StatusInternalServerError, "unexpected outcome "+out.String(), "INTERNAL_ERROR")
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	var apiErr *library.APIError
	var transportErr *library.TransportError

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "SESSION_NOT_FOUND")
	case errors.Is(err, session.ErrNotConfirmed):
		WriteError(w, http.StatusConflict, err.Error(), "CONFIRMATION_REQUIRED")
	case errors.Is(err, session.ErrNothingTagged):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "NOTHING_TAGGED")
	case errors.Is(err, session.ErrNoBackend):
		WriteError(w, http.StatusServiceUnavailable, err.Error(), "BACKEND_UNAVAILABLE")
	case errors.Is(err, timeline.ErrNoVideo):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "NO_VIDEO")
	case errors.Is(err, library.ErrExerciseNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "EXERCISE_NOT_FOUND")
	case errors.Is(err, library.ErrInvalidExercise):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, library.ErrInvalidVideoURL):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.As(err, &apiErr), errors.As(err, &transportErr):
		WriteError(w, http.StatusBadGateway, err.Error(), "BACKEND_ERROR")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

// detectSettings fills unset request knobs from the configured defaults.
func (cfg ServerConfig) detectSettings(threshold, minSceneLength float64) library.Settings {
	s := cfg.DetectDefaults
	if threshold != 0 {
		s.Threshold = threshold
	}
	if minSceneLength != 0 {
		s.MinSceneLength = minSceneLength
	}
	return s.Clamp()
}

// probeDuration reads the duration of a local video, or returns 0 when the
// video is remote or cannot be probed.
func probeDuration(r *http.Request, cfg ServerConfig, videoURL string) float64 {
	if cfg.Prober == nil || cfg.Playback == nil {
		return 0
	}
	src, err := cfg.Playback.Resolve(videoURL)
	if err != nil || src.Path == "" {
		return 0
	}
	d, err := media.Duration(r.Context(), cfg.Prober, src.Path)
	if err != nil {
		cfg.Logger.Warn("failed to probe video duration", "video_url", videoURL, "error", err)
		return 0
	}
	return d
}
