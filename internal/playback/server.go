// Package playback streams session videos to the editor.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNoVideo        = errors.New("session has no video")
	ErrOutsideMedia   = errors.New("video path is outside the media directory")
	ErrVideoNotExists = errors.New("video file not found")
)

// Source is where a session's video can be fetched from.
type Source struct {
	// Path is set for files under the media directory.
	Path string
	// RedirectURL is set for videos served elsewhere.
	RedirectURL string
}

type Server struct {
	mediaDir   string
	backendURL string
	logger     *slog.Logger
}

// NewServer serves local files from mediaDir. Backend download URLs not
// mirrored locally are redirected to backendURL.
func NewServer(mediaDir, backendURL string, logger *slog.Logger) *Server {
	return &Server{
		mediaDir:   mediaDir,
		backendURL: strings.TrimRight(backendURL, "/"),
		logger:     logger,
	}
}

// Resolve maps a session video URL to a Source.
func (s *Server) Resolve(videoURL string) (Source, error) {
	if videoURL == "" {
		return Source{}, ErrNoVideo
	}

	u, err := url.Parse(videoURL)
	if err != nil {
		return Source{}, fmt.Errorf("parse video url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return Source{RedirectURL: videoURL}, nil
	case "file":
		return s.local(u.Path)
	case "":
	default:
		return Source{}, fmt.Errorf("unsupported video url scheme %q", u.Scheme)
	}

	// /download/<folder>/<file> is the backend's output; prefer a local
	// mirror under the media dir.
	if rest, ok := strings.CutPrefix(u.Path, "/download/"); ok {
		if src, err := s.local(rest); err == nil {
			return src, nil
		}
		if s.backendURL == "" {
			return Source{}, ErrVideoNotExists
		}
		return Source{RedirectURL: s.backendURL + u.Path}, nil
	}
	return s.local(u.Path)
}

func (s *Server) local(p string) (Source, error) {
	if s.mediaDir == "" {
		return Source{}, ErrOutsideMedia
	}
	root, err := filepath.Abs(s.mediaDir)
	if err != nil {
		return Source{}, err
	}

	full := filepath.FromSlash(p)
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Source{}, ErrOutsideMedia
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return Source{}, ErrVideoNotExists
	}
	return Source{Path: full}, nil
}

// ServeVideo writes the video for videoURL. Range requests are honored for
// local files; remote videos are redirected.
func (s *Server) ServeVideo(w http.ResponseWriter, r *http.Request, videoURL string) error {
	src, err := s.Resolve(videoURL)
	if err != nil {
		return err
	}
	if src.RedirectURL != "" {
		http.Redirect(w, r, src.RedirectURL, http.StatusTemporaryRedirect)
		return nil
	}

	file, err := os.Open(src.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrVideoNotExists
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if ct := contentType(src.Path); ct != "" {
		w.Header().Set("Content-Type", ct)
	}

	if s.logger != nil {
		s.logger.Debug("serving video", "path", filepath.Base(src.Path), "range", r.Header.Get("Range"))
	}
	http.ServeContent(w, r, stat.Name(), stat.ModTime(), file)
	return nil
}

// mime's builtin table lacks video types on hosts without mime.types.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}
