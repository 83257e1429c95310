package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/repcut/internal/export"
)

// exportEDLHandler renders the session's tagged segments as an EDL. With
// ?save=true the file is written to the export dir, otherwise it is sent as
// a download.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		q := r.URL.Query()

		frameRate := export.DefaultFrameRate
		if raw := q.Get("fps"); raw != "" {
			fps, err := strconv.ParseFloat(raw, 64)
			if err != nil || fps <= 0 || fps > 240 {
				WriteError(w, http.StatusBadRequest, "fps must be between 0 and 240", "BAD_REQUEST")
				return
			}
			frameRate = fps
		}

		projectName := export.SanitizeName(q.Get("title"), 120)
		if projectName == "" {
			projectName = "repcut_" + id
		}

		st, err := cfg.Sessions.Snapshot(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		mediaPath := st.VideoURL
		if cfg.Playback != nil {
			if src, err := cfg.Playback.Resolve(st.VideoURL); err == nil && src.Path != "" {
				mediaPath = src.Path
			}
		}

		clips := export.ClipsFromState(st, mediaPath)
		if len(clips) == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "no tagged segments to export", "NOTHING_TAGGED")
			return
		}
		edl := export.GenerateEDL(clips, projectName, frameRate)

		if save, _ := strconv.ParseBool(q.Get("save")); save {
			outputPath, err := export.WriteEDL(cfg.ExportDir, projectName, edl)
			if err != nil {
				cfg.Logger.Error("failed to write export", "session_id", id, "error", err)
				WriteError(w, http.StatusInternalServerError, err.Error(), "EXPORT_FAILED")
				return
			}
			WriteJSON(w, http.StatusOK, export.Response{
				Status:     "ok",
				OutputPath: outputPath,
				ClipCount:  len(clips),
			})
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(projectName, ".edl")))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(edl))
	}
}
