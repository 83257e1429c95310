package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/repcut/internal/library"
	"github.com/heimdex/repcut/internal/media"
	"github.com/heimdex/repcut/internal/playback"
	"github.com/heimdex/repcut/internal/session"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Sessions       *session.Service
	Repository     session.Repository
	Runner         *session.Runner
	Library        ExerciseLibrary
	Playback       *playback.Server
	Prober         media.Prober
	ExportDir      string
	DetectDefaults library.Settings
	AllowedOrigins []string
	Logger         *slog.Logger
	StartTime      time.Time
	Version        string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler: router,
			// detection uploads stream for minutes; no write deadline
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
