package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/repcut/internal/api"
	"github.com/heimdex/repcut/internal/config"
	"github.com/heimdex/repcut/internal/db"
	"github.com/heimdex/repcut/internal/library"
	"github.com/heimdex/repcut/internal/logging"
	"github.com/heimdex/repcut/internal/media"
	"github.com/heimdex/repcut/internal/playback"
	"github.com/heimdex/repcut/internal/session"
	"github.com/heimdex/repcut/internal/ui"
)

type serveOptions struct {
	headless bool
	apiToken string
}

var serveFlags = &serveOptions{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the editor API, save runner and tray",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(serveFlags)
	},
}

func init() {
	for _, fs := range []*cobra.Command{rootCmd, serveCmd} {
		fs.Flags().BoolVar(&serveFlags.headless, "headless", false, "run without the system tray")
		fs.Flags().StringVar(&serveFlags.apiToken, "api-token", "", "require this bearer token on API requests")
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(opts *serveOptions) error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.MediaDir(), cfg.ExportDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger, logCloser, err := logging.NewFileLogger(cfg.LogLevel(), cfg.LogFile())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logCloser.Close()
	logger.Info("starting repcut", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := session.NewRepository(database.Conn())

	if opts.apiToken != "" {
		if err := repo.SetConfig(context.Background(), api.AuthTokenKey, opts.apiToken); err != nil {
			return fmt.Errorf("failed to store api token: %w", err)
		}
	}
	authToken, err := repo.GetConfig(context.Background(), api.AuthTokenKey)
	if err != nil {
		return fmt.Errorf("failed to read api token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  REPCUT %-50s║\n", "v"+config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:  http://127.0.0.1:%-29d ║\n", cfg.Port())
	fmt.Printf("║  Backend:  %-46s ║\n", cfg.BackendURL())
	if authToken != "" {
		fmt.Printf("║  Auth:     %-46s ║\n", "bearer "+logging.SanitizeToken(authToken))
	} else {
		fmt.Printf("║  Auth:     %-46s ║\n", "loopback only")
	}
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	var backend session.Backend
	var exercises api.ExerciseLibrary
	if cfg.BackendURL() != "" {
		client := library.NewClient(cfg.BackendURL(), cfg.BackendToken(), logging.WithComponent(logger, "library"))
		backend, exercises = client, client
	} else {
		logger.Warn("no backend configured, detection and saving disabled")
	}

	sessions := session.NewService(repo, backend, logging.WithComponent(logger, "session"))
	runner := session.NewRunner(sessions, repo, backend, logging.WithComponent(logger, "runner"), cfg.SavePollInterval())
	playbackSvc := playback.NewServer(cfg.MediaDir(), cfg.BackendURL(), logger)

	var prober media.Prober
	if ff, err := media.NewFFprobe("", logging.WithComponent(logger, "media")); err != nil {
		logger.Warn("ffprobe unavailable, sessions need an explicit duration", "error", err)
	} else {
		prober = ff
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if backend != nil {
		go func() {
			if _, err := sessions.RefreshVocabulary(ctx); err != nil {
				logger.Warn("initial vocabulary refresh failed", "error", err)
			}
		}()
	}

	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Sessions:       sessions,
		Repository:     repo,
		Runner:         runner,
		Library:        exercises,
		Playback:       playbackSvc,
		Prober:         prober,
		ExportDir:      cfg.ExportDir(),
		DetectDefaults: library.Settings{Threshold: cfg.DetectThreshold(), MinSceneLength: cfg.DetectMinSceneLen()},
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger,
		StartTime:      startTime,
		Version:        config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless() || opts.headless {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Sessions: sessions,
			Runner:   runner,
			Logger:   logger,
			APIURL:   "http://" + apiServer.Addr(),
			OnOpenEditor: func() error {
				logger.Info("open editor requested from tray", "api", apiServer.Addr())
				return nil
			},
			OnQuit: quit,
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := sessions.SaveAll(shutdownCtx); err != nil {
		logger.Error("failed to flush drafts", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
