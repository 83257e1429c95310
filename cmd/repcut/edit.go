package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/heimdex/repcut/internal/config"
	"github.com/heimdex/repcut/internal/db"
	"github.com/heimdex/repcut/internal/logging"
	"github.com/heimdex/repcut/internal/media"
	"github.com/heimdex/repcut/internal/session"
	"github.com/heimdex/repcut/internal/timeline"
	"github.com/heimdex/repcut/internal/tui"
)

type editOptions struct {
	duration  float64
	cuts      []float64
	videoURL  string
	sessionID string
	save      bool
}

var editFlags = &editOptions{}

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit a timeline in the terminal",
	Long: `Edit a timeline in the terminal.

With --session the draft is loaded from the local database and every change
is saved back. Otherwise a timeline is built from --duration and --cuts; pass
--save to keep it as a new draft. When --video names a local file and no
duration is given, the duration is read with ffprobe.`,
	Example: `  repcut edit --duration 300 --cuts 12.5,30,61
  repcut edit --video ./workout.mp4 --cuts 45,90 --save
  repcut edit --session 0190f1c2-...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit(cmd.Context(), editFlags)
	},
}

func init() {
	f := editCmd.Flags()
	f.Float64Var(&editFlags.duration, "duration", 0, "video duration in seconds")
	f.Float64SliceVar(&editFlags.cuts, "cuts", nil, "suggested cut times in seconds")
	f.StringVar(&editFlags.videoURL, "video", "", "video URL")
	f.StringVar(&editFlags.sessionID, "session", "", "resume a saved draft")
	f.BoolVar(&editFlags.save, "save", false, "store the new timeline as a draft")
	editCmd.MarkFlagsMutuallyExclusive("session", "duration")
	rootCmd.AddCommand(editCmd)
}

func runEdit(ctx context.Context, opts *editOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.sessionID == "" && opts.duration <= 0 && opts.videoURL != "" {
		d, err := probeDuration(ctx, opts.videoURL)
		if err != nil {
			return fmt.Errorf("no --duration given and probing %s failed: %w", opts.videoURL, err)
		}
		opts.duration = d
	}
	if opts.sessionID == "" && !opts.save {
		return editLocal(opts)
	}

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// Logs would draw over the editor.
	logger := logging.Discard()

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	sessions := session.NewService(session.NewRepository(database.Conn()), nil, logger)

	id := opts.sessionID
	if id == "" {
		e, err := sessions.Open(ctx, opts.videoURL, opts.duration, opts.cuts)
		if err != nil {
			return err
		}
		id = e.ID
		fmt.Println("draft", id)
	}

	e, err := sessions.Get(ctx, id)
	if errors.Is(err, session.ErrSessionNotFound) {
		return fmt.Errorf("no draft %q", id)
	}
	if err != nil {
		return err
	}

	if err := tui.Run(sessions.Handle(ctx, id), e.State().VideoURL); err != nil {
		return err
	}
	return sessions.Close(ctx, id)
}

func editLocal(opts *editOptions) error {
	store := timeline.NewStore()
	if out := store.LoadVideo(opts.videoURL, opts.duration, opts.cuts); !out.Ok() {
		return fmt.Errorf("--duration must be a positive number of seconds: %w", out.Err())
	}
	return tui.Run(tui.NewLocalEditor(store), opts.videoURL)
}

// probeDuration reads the duration of a local video file.
func probeDuration(ctx context.Context, videoURL string) (float64, error) {
	path := strings.TrimPrefix(videoURL, "file://")
	ff, err := media.NewFFprobe("", logging.Discard())
	if err != nil {
		return 0, err
	}
	return media.Duration(ctx, ff, path)
}
