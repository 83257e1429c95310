package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/heimdex/repcut/internal/db"
	"github.com/heimdex/repcut/internal/library"
	"github.com/heimdex/repcut/internal/media"
	"github.com/heimdex/repcut/internal/playback"
	"github.com/heimdex/repcut/internal/session"
)

type testEnv struct {
	cfg     ServerConfig
	handler http.Handler
	repo    *session.SQLiteRepository
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tmp := t.TempDir()
	database, err := db.New(filepath.Join(tmp, "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := session.NewRepository(database.Conn())
	svc := session.NewService(repo, nil, logger)

	mediaDir := filepath.Join(tmp, "media")
	os.MkdirAll(filepath.Join(mediaDir, "abc"), 0o755)
	os.WriteFile(filepath.Join(mediaDir, "abc", "v.mp4"), []byte("0123456789"), 0o644)

	cfg := ServerConfig{
		Sessions:   svc,
		Repository: repo,
		Runner:     session.NewRunner(svc, repo, nil, logger, time.Second),
		Playback:   playback.NewServer(mediaDir, "", logger),
		ExportDir:  filepath.Join(tmp, "exports"),
		Logger:     logger,
		StartTime:  time.Now(),
		Version:    "test",
	}
	os.MkdirAll(cfg.ExportDir, 0o755)
	return &testEnv{cfg: cfg, handler: NewRouter(cfg), repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatal(err)
			}
			r = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

// openSession creates a 60s session with cuts at 20 and 40.
func (e *testEnv) openSession(t *testing.T) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/sessions", CreateSessionRequest{
		VideoURL:      "/download/abc/v.mp4",
		Duration:      60,
		SuggestedCuts: []float64{20, 40},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create session status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp SessionResponse
	decodeInto(t, rr, &resp)
	return resp.ID
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	decodeInto(t, rr, &resp)
	return resp
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)
	env.openSession(t)

	rr := env.do(t, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp HealthResponse
	decodeInto(t, rr, &resp)
	if resp.Status != "ok" || resp.OpenSessions != 1 || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
}

func TestCreateSession(t *testing.T) {
	env := setupTestEnv(t)

	rr := env.do(t, http.MethodPost, "/sessions", CreateSessionRequest{VideoURL: "/download/abc/v.mp4", Duration: 60, SuggestedCuts: []float64{30}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp SessionResponse
	decodeInto(t, rr, &resp)
	if resp.Phase != "loaded" || len(resp.State.Segments) != 2 || resp.State.CutPoints[0].ID != "auto_0" {
		t.Errorf("response = %+v", resp)
	}

	tests := []struct {
		name string
		body any
		code int
		want string
	}{
		{"bad json", "{", http.StatusBadRequest, "BAD_REQUEST"},
		{"missing url", CreateSessionRequest{Duration: 60}, http.StatusBadRequest, "BAD_REQUEST"},
		{"zero duration", CreateSessionRequest{VideoURL: "/download/abc/v.mp4"}, http.StatusUnprocessableEntity, "NO_VIDEO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/sessions", tt.body)
			if rr.Code != tt.code || decodeError(t, rr).Code != tt.want {
				t.Errorf("status = %d body = %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestGetSession(t *testing.T) {
	env := setupTestEnv(t)
	id := env.openSession(t)

	rr := env.do(t, http.MethodGet, "/sessions/"+id+"?width=600", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp SessionResponse
	decodeInto(t, rr, &resp)
	if resp.View == nil || len(resp.View.Spans) != 3 || resp.View.Markers[0].X != 200 {
		t.Errorf("view = %+v", resp.View)
	}

	if rr := env.do(t, http.MethodGet, "/sessions/"+id+"?width=-1", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("negative width status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/sessions/nope", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d", rr.Code)
	}
}

func TestAddCut(t *testing.T) {
	env := setupTestEnv(t)
	id := env.openSession(t)

	tests := []struct {
		name string
		body any
		code int
		want string
	}{
		{"applied", map[string]float64{"time": 30}, http.StatusCreated, ""},
		{"boundary", map[string]float64{"time": 0.05}, http.StatusUnprocessableEntity, "AT_BOUNDARY"},
		{"too close", map[string]float64{"time": 20.3}, http.StatusUnprocessableEntity, "TOO_CLOSE"},
		{"missing time", map[string]string{}, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/sessions/"+id+"/cuts", tt.body)
			if rr.Code != tt.code {
				t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
			}
			if tt.want != "" {
				if got := decodeError(t, rr).Code; got != tt.want {
					t.Errorf("code = %q, want %q", got, tt.want)
				}
				return
			}
			var resp SessionResponse
			decodeInto(t, rr, &resp)
			if !strings.HasPrefix(resp.CutPointID, "manual_") || len(resp.State.CutPoints) != 3 {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestMoveAndDeleteCut(t *testing.T) {
	env := setupTestEnv(t)
	id := env.openSession(t)

	rr := env.do(t, http.MethodPatch, "/sessions/"+id+"/cuts/auto_0", map[string]float64{"time": 25})
	if rr.Code != http.StatusOK {
		t.Fatalf("move status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp SessionResponse
	decodeInto(t, rr, &resp)
	if resp.State.CutPoints[0].Time != 25 {
		t.Errorf("cut points = %+v", resp.State.CutPoints)
	}

	if rr := env.do(t, http.MethodPatch, "/sessions/"+id+"/cuts/nope", map[string]float64{"time": 25}); rr.Code != http.StatusNotFound {
		t.Errorf("move unknown status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/sessions/"+id+"/cuts/auto_1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	decodeInto(t, rr, &resp)
	if len(resp.State.CutPoints) != 1 || len(resp.State.Segments) != 2 {
		t.Errorf("state = %+v", resp.State)
	}
}

func TestClearCutsRequiresConfirm(t *testing.T) {
	env := setupTestEnv(t)
	id := env.openSession(t)

	rr := env.do(t, http.MethodDelete, "/sessions/"+id+"/cuts", nil)
	if rr.Code != http.StatusConflict || decodeError(t, rr).Code != "CONFIRMATION_REQUIRED" {
		t.Fatalf("unconfirmed clear status = %d body = %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodDelete, "/sessions/"+id+"/cuts?confirm=true", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("confirmed clear status = %d", rr.Code)
	}
	var resp SessionResponse
	decodeInto(t, rr, &resp)
	if len(resp.State.CutPoints) != 0 || len(resp.State.Segments) != 1 {
		t.Errorf("state = %+v", resp.State)
	}
}

func TestSelection(t *testing.T) {
	env := setupTestEnv(t)
	id := env.openSession(t)

	rr := env.do(t, http.MethodPut, "/sessions/"+id+"/selection", `{"cut_point_id":"auto_1","segment_index":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp SessionResponse
	decodeInto(t, rr, &resp)
	if resp.State.SelectedCutPointID == nil || *resp.State.SelectedCutPointID != "auto_1" {
		t.Errorf("selected cut = %v", resp.State.SelectedCutPointID)
	}
	if resp.State.SelectedSegmentIndex == nil || *resp.State.SelectedSegmentIndex != 2 {
		t.Errorf("selected segment = %v", resp.State.SelectedSegmentIndex)
	}

	rr = env.do(t, http.MethodPut, "/sessions/"+id+"/selection", `{"segment_index":null}`)
	decodeInto(t, rr, &resp)
	if resp.State.SelectedSegmentIndex != nil || resp.State.SelectedCutPointID == nil {
		t.Errorf("clearing segment touched cut selection: %+v", resp.State)
	}

	if rr := env.do(t, http.MethodPut, "/sessions/"+id+"/selection", `{"segment_index":9}`); rr.Code != http.StatusNotFound {
		t.Errorf("out of range status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPut, "/sessions/"+id+"/selection", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d", rr.Code)
	}
}

func TestSelection_RejectsWholeBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"valid cut, bad segment", `{"cut_point_id":"auto_0","segment_index":99}`},
		{"bad cut, valid segment", `{"cut_point_id":"nope","segment_index":0}`},
		{"negative segment", `{"cut_point_id":"auto_0","segment_index":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			id := env.openSession(t)

			rr := env.do(t, http.MethodPut, "/sessions/"+id+"/selection", tt.body)
			if rr.Code != http.StatusNotFound {
				t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
			}

			rr = env.do(t, http.MethodGet, "/sessions/"+id, nil)
			var resp SessionResponse
			decodeInto(t, rr, &resp)
			if resp.State.SelectedCutPointID != nil || resp.State.SelectedSegmentIndex != nil {
				t.Errorf("selection changed: cut=%v segment=%v", resp.State.SelectedCutPointID, resp.State.SelectedSegmentIndex)
			}
		})
	}
}

func TestSegmentDetails(t *testing.T) {
	env := setupTestEnv(t)
	id := env.openSession(t)

	rr := env.do(t, http.MethodPut, "/sessions/"+id+"/segments/1/details", DetailsRequest{
		Name:         "Squat",
		MuscleGroups: []string{"Legs"},
		Equipment:    []string{"Barbell"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp SessionResponse
	decodeInto(t, rr, &resp)
	if d := resp.State.Segments[1].Details; d == nil || d.Name != "Squat" {
		t.Errorf("details = %+v", d)
	}

	rr = env.do(t, http.MethodGet, "/tags", nil)
	var tags TagsResponse
	decodeInto(t, rr, &tags)
	if len(tags.MuscleGroups) != 1 || tags.Equipment[0] != "Barbell" {
		t.Errorf("tags = %+v", tags)
	}

	rr = env.do(t, http.MethodPut, "/sessions/"+id+"/segments/1/details", "null")
	decodeInto(t, rr, &resp)
	if resp.State.Segments[1].Details != nil {
		t.Error("null body should clear details")
	}

	if rr := env.do(t, http.MethodPut, "/sessions/"+id+"/segments/x/details", "null"); rr.Code != http.StatusBadRequest {
		t.Errorf("non-integer index status = %d", rr.Code)
	}
}

func TestSegmentDetails_RequiresName(t *testing.T) {
	env := setupTestEnv(t)
	id := env.openSession(t)

	for _, name := range []string{"", "   "} {
		rr := env.do(t, http.MethodPut, "/sessions/"+id+"/segments/0/details", DetailsRequest{Name: name, Equipment: []string{"Cable"}})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("name %q: status = %d", name, rr.Code)
		}
		if got := decodeError(t, rr).Code; got != "BAD_REQUEST" {
			t.Errorf("name %q: code = %q", name, got)
		}
	}

	rr := env.do(t, http.MethodGet, "/sessions/"+id, nil)
	var resp SessionResponse
	decodeInto(t, rr, &resp)
	if resp.State.Segments[0].Details != nil {
		t.Errorf("details stored: %+v", resp.State.Segments[0].Details)
	}

	rr = env.do(t, http.MethodPut, "/sessions/"+id+"/segments/0/details", DetailsRequest{Name: "  Row "})
	decodeInto(t, rr, &resp)
	if d := resp.State.Segments[0].Details; d == nil || d.Name != "Row" {
		t.Errorf("details = %+v", d)
	}
}

func TestPlaybackAndZoom(t *testing.T) {
	env := setupTestEnv(t)
	id := env.openSession(t)

	rr := env.do(t, http.MethodPut, "/sessions/"+id+"/playback", `{"current_time":12.5,"playing":true}`)
	var resp SessionResponse
	decodeInto(t, rr, &resp)
	if resp.State.CurrentTime != 12.5 || !resp.State.Playing {
		t.Errorf("playback state = %+v", resp.State)
	}

	rr = env.do(t, http.MethodPut, "/sessions/"+id+"/zoom", `{"level":10}`)
	decodeInto(t, rr, &resp)
	if resp.State.ZoomLevel != 3 {
		t.Errorf("zoom = %v, want clamped 3", resp.State.ZoomLevel)
	}

	rr = env.do(t, http.MethodPut, "/sessions/"+id+"/zoom", `{"step":"out"}`)
	decodeInto(t, rr, &resp)
	if resp.State.ZoomLevel != 2.5 {
		t.Errorf("zoom = %v, want 2.5", resp.State.ZoomLevel)
	}

	if rr := env.do(t, http.MethodPut, "/sessions/"+id+"/zoom", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty zoom status = %d", rr.Code)
	}
}

func TestSaveQueuesJob(t *testing.T) {
	env := setupTestEnv(t)
	id := env.openSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+id+"/save", nil)
	if rr.Code != http.StatusUnprocessableEntity || decodeError(t, rr).Code != "NOTHING_TAGGED" {
		t.Fatalf("untagged save status = %d body = %s", rr.Code, rr.Body.String())
	}

	env.do(t, http.MethodPut, "/sessions/"+id+"/segments/0/details", DetailsRequest{Name: "Warmup"})
	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/save", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("save status = %d", rr.Code)
	}
	var save SaveResponse
	decodeInto(t, rr, &save)

	rr = env.do(t, http.MethodGet, "/jobs/"+save.JobID, nil)
	var job JobResponse
	decodeInto(t, rr, &job)
	if job.Status != session.JobStatusPending || job.SessionID != id {
		t.Errorf("job = %+v", job)
	}

	rr = env.do(t, http.MethodGet, "/jobs", nil)
	var jobs JobsResponse
	decodeInto(t, rr, &jobs)
	if len(jobs.Jobs) != 1 {
		t.Errorf("jobs = %d", len(jobs.Jobs))
	}

	if rr := env.do(t, http.MethodGet, "/jobs/nope", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d", rr.Code)
	}
}

func TestReprocessWithoutBackend(t *testing.T) {
	env := setupTestEnv(t)
	id := env.openSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+id+"/reprocess", ReprocessRequest{})
	if rr.Code != http.StatusConflict {
		t.Errorf("unconfirmed status = %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/reprocess", ReprocessRequest{Confirm: true})
	if rr.Code != http.StatusServiceUnavailable || decodeError(t, rr).Code != "BACKEND_UNAVAILABLE" {
		t.Errorf("status = %d body = %s", rr.Code, rr.Body.String())
	}
}

func TestResetAndDelete(t *testing.T) {
	env := setupTestEnv(t)
	id := env.openSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+id+"/reset", nil)
	var resp SessionResponse
	decodeInto(t, rr, &resp)
	if resp.Phase != "empty" || len(resp.State.CutPoints) != 0 {
		t.Errorf("reset = %+v", resp)
	}

	rr = env.do(t, http.MethodPost, "/sessions/"+id+"/cuts", map[string]float64{"time": 10})
	if rr.Code != http.StatusUnprocessableEntity || decodeError(t, rr).Code != "NO_VIDEO" {
		t.Errorf("add cut after reset status = %d", rr.Code)
	}

	if rr := env.do(t, http.MethodDelete, "/sessions/"+id, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/sessions/"+id, nil); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", rr.Code)
	}
}

func TestListSessions(t *testing.T) {
	env := setupTestEnv(t)
	env.openSession(t)
	env.openSession(t)

	rr := env.do(t, http.MethodGet, "/sessions", nil)
	var resp SessionsResponse
	decodeInto(t, rr, &resp)
	if len(resp.Sessions) != 2 || !resp.Sessions[0].Open {
		t.Errorf("sessions = %+v", resp.Sessions)
	}
}

func TestVideo(t *testing.T) {
	env := setupTestEnv(t)
	id := env.openSession(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/video", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Range", "bytes=0-3")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusPartialContent || rr.Body.String() != "0123" {
		t.Errorf("status = %d body = %q", rr.Code, rr.Body.String())
	}
}

func TestVocabularyWithoutBackend(t *testing.T) {
	env := setupTestEnv(t)

	rr := env.do(t, http.MethodGet, "/tags", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var tags TagsResponse
	decodeInto(t, rr, &tags)
	if tags.MuscleGroups == nil || len(tags.MuscleGroups) != 0 {
		t.Errorf("tags = %+v, want empty lists", tags)
	}

	if rr := env.do(t, http.MethodPost, "/tags/refresh", nil); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("refresh status = %d", rr.Code)
	}
}

func TestDetectSettings(t *testing.T) {
	cfg := ServerConfig{DetectDefaults: library.Settings{Threshold: 30, MinSceneLength: 1}}

	tests := []struct {
		name          string
		threshold     float64
		minSceneLen   float64
		wantThreshold float64
		wantMinScene  float64
	}{
		{"defaults", 0, 0, 30, 1},
		{"override", 12, 2, 12, 2},
		{"clamped", 99, 0.1, 50, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.detectSettings(tt.threshold, tt.minSceneLen)
			if got.Threshold != tt.wantThreshold || got.MinSceneLength != tt.wantMinScene {
				t.Errorf("detectSettings() = %+v", got)
			}
		})
	}
}

type fakeProber struct {
	duration float64
	paths    []string
}

func (p *fakeProber) Probe(_ context.Context, path string) (*media.ProbeResult, error) {
	p.paths = append(p.paths, path)
	return &media.ProbeResult{Duration: p.duration}, nil
}

func TestCreateSession_ProbesDuration(t *testing.T) {
	env := setupTestEnv(t)
	prober := &fakeProber{duration: 42}
	env.cfg.Prober = prober
	env.handler = NewRouter(env.cfg)

	rr := env.do(t, http.MethodPost, "/sessions", CreateSessionRequest{VideoURL: "/download/abc/v.mp4", SuggestedCuts: []float64{10}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp SessionResponse
	decodeInto(t, rr, &resp)
	if resp.State.Duration != 42 {
		t.Errorf("duration = %v, want 42", resp.State.Duration)
	}
	if len(prober.paths) != 1 || filepath.Base(prober.paths[0]) != "v.mp4" {
		t.Errorf("probed paths = %v", prober.paths)
	}

	// Remote videos are not probed.
	rr = env.do(t, http.MethodPost, "/sessions", CreateSessionRequest{VideoURL: "https://cdn.example.com/v.mp4"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("remote without duration status = %d", rr.Code)
	}
	if len(prober.paths) != 1 {
		t.Errorf("remote video was probed: %v", prober.paths)
	}
}
