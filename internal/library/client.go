// Package library talks to the scene detection and exercise library
// backend over HTTP.
package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/heimdex/repcut/internal/timeline"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and rate limiting.
// Other client errors are permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is worth retrying: retryable API errors
// and transport failures are, everything else is not.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var netErr *TransportError
	return errors.As(err, &netErr)
}

// TransportError wraps a failure to reach the backend at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "http request failed: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ErrInvalidVideoURL is returned when a video URL is not a backend download
// path.
var ErrInvalidVideoURL = errors.New("invalid video URL")

const (
	maxErrorBody = 4096
	// uploads can be large; detection runs synchronously on the backend
	detectTimeout  = 30 * time.Minute
	defaultTimeout = 60 * time.Second
)

// Client is the backend HTTP client. Requests are rate limited so a busy
// editor cannot flood the backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: detectTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(750*time.Millisecond), 1),
		logger:  logger,
	}
}

// Detect uploads a local video for scene detection.
func (c *Client) Detect(ctx context.Context, videoPath string, s Settings) (*DetectResult, error) {
	s = s.Clamp()

	f, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer f.Close()

	// Stream the multipart body instead of buffering whole videos.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("video", filepath.Base(videoPath))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.WriteField("threshold", formatFloat(s.Threshold))
		}
		if err == nil {
			err = mw.WriteField("min_scene_length", formatFloat(s.MinSceneLength))
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/process", pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Info("uploading video for scene detection",
		"file", filepath.Base(videoPath),
		"threshold", s.Threshold,
		"min_scene_length", s.MinSceneLength,
	)

	var result DetectResult
	if err := c.do(req, "detect", &result); err != nil {
		return nil, err
	}
	c.logger.Info("scene detection finished",
		"video_url", result.VideoURL,
		"scene_count", result.SceneCount,
		"duration", result.VideoDuration,
	)
	return &result, nil
}

// Reprocess re-runs detection on a video the backend already stores.
func (c *Client) Reprocess(ctx context.Context, videoURL string, s Settings) (*ReprocessResult, error) {
	s = s.Clamp()
	path, err := ReprocessPath(videoURL)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("path", path)
	q.Set("threshold", formatFloat(s.Threshold))
	q.Set("min_scene_length", formatFloat(s.MinSceneLength))

	req, err := c.newRequest(ctx, http.MethodGet, "/reprocess?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result ReprocessResult
	if err := c.do(req, "reprocess", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Tags fetches the muscle group and equipment vocabulary.
func (c *Client) Tags(ctx context.Context) (timeline.Tags, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/get-tags", nil)
	if err != nil {
		return timeline.Tags{}, err
	}
	var resp tagsResponse
	if err := c.do(req, "get tags", &resp); err != nil {
		return timeline.Tags{}, err
	}
	return timeline.Tags{MuscleGroups: resp.MuscleGroups, Equipment: resp.Equipment}, nil
}

// SaveTimeline hands tagged segments to the exercise library.
func (c *Client) SaveTimeline(ctx context.Context, payload TimelinePayload) (*SaveResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal timeline payload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/timeline/save", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("saving timeline",
		"video_url", payload.VideoURL,
		"segment_count", len(payload.Segments),
		"body_bytes", len(body),
	)

	var result SaveResult
	if err := c.do(req, "save timeline", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

// do waits for the limiter, sends req and decodes a 2xx JSON body into out.
func (c *Client) do(req *http.Request, op string, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return fmt.Errorf("%s: rate limiter: %w", op, err)
	}

	// Only the upload may take long; everything else gets a short deadline.
	if op != "detect" {
		ctx, cancel := context.WithTimeout(req.Context(), defaultTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// ReprocessPath converts a backend download URL (/download/<folder>/<file>)
// into the server-side path the reprocess endpoint expects.
func ReprocessPath(videoURL string) (string, error) {
	u, err := url.Parse(videoURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidVideoURL, err)
	}
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) < 3 || parts[0] != "download" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidVideoURL, videoURL)
	}
	return "output/" + parts[1] + "/" + parts[2], nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
