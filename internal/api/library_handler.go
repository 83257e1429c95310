package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/repcut/internal/library"
)

// ExerciseLibrary is the saved-exercise side of the backend.
type ExerciseLibrary interface {
	Exercises(ctx context.Context, q library.Query) (*library.ExercisePage, error)
	Exercise(ctx context.Context, id int64) (*library.Exercise, error)
	UpdateExercise(ctx context.Context, id int64, u library.ExerciseUpdate) error
	DeleteExercise(ctx context.Context, id int64) error
}

func libraryRoutes(cfg ServerConfig) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(requireLibrary(cfg))
		r.Get("/", listExercisesHandler(cfg))
		r.Get("/{exerciseID}", getExerciseHandler(cfg))
		r.Put("/{exerciseID}", updateExerciseHandler(cfg))
		r.Delete("/{exerciseID}", deleteExerciseHandler(cfg))
	}
}

func requireLibrary(cfg ServerConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Library == nil {
				WriteError(w, http.StatusServiceUnavailable, "no backend configured", "BACKEND_UNAVAILABLE")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func listExercisesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseExerciseQuery(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		page, err := cfg.Library.Exercises(r.Context(), q)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, page)
	}
}

func getExerciseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		ex, err := cfg.Library.Exercise(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ex)
	}
}

// updateExerciseHandler applies the edit and returns the stored exercise.
func updateExerciseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		var req library.ExerciseUpdate
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.Library.UpdateExercise(r.Context(), id, req); err != nil {
			writeServiceError(w, err)
			return
		}
		ex, err := cfg.Library.Exercise(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ex)
	}
}

func deleteExerciseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		if confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !confirm {
			WriteError(w, http.StatusConflict, "deleting an exercise requires confirm=true", "CONFIRMATION_REQUIRED")
			return
		}
		if err := cfg.Library.DeleteExercise(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func exerciseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "exerciseID"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "exercise id must be a positive integer", "BAD_REQUEST")
		return 0, false
	}
	return id, true
}

// parseExerciseQuery reads search, muscle_groups, equipment (comma separated
// or repeated), page, per_page, sort_by and sort_order.
func parseExerciseQuery(r *http.Request) (library.Query, error) {
	v := r.URL.Query()
	q := library.Query{
		Search:       v.Get("search"),
		MuscleGroups: listParam(v["muscle_groups"]),
		Equipment:    listParam(v["equipment"]),
		SortBy:       v.Get("sort_by"),
		Descending:   !strings.EqualFold(v.Get("sort_order"), "asc"),
	}
	for name, dst := range map[string]*int{"page": &q.Page, "per_page": &q.PerPage} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return library.Query{}, errBadParam(name)
		}
		*dst = n
	}
	return q.Normalize(), nil
}

func listParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

type errBadParam string

func (e errBadParam) Error() string { return string(e) + " must be an integer" }
