package ui

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"
	"github.com/heimdex/repcut/internal/session"
)

//go:embed icon.png
var iconBytes []byte

const refreshInterval = 5 * time.Second

// StatusSource is what the tray reports on.
type StatusSource interface {
	OpenCount() int
}

// SaveQueue is the save runner as seen by the tray.
type SaveQueue interface {
	Pause()
	Resume()
	IsPaused() bool
	PendingCount(ctx context.Context) int
}

type Tray struct {
	sessions StatusSource
	runner   SaveQueue
	logger   *slog.Logger
	apiURL   string

	statusItem   *systray.MenuItem
	sessionsItem *systray.MenuItem
	pauseItem    *systray.MenuItem

	mu   sync.Mutex
	done chan struct{}

	onOpenEditor func() error
	onQuit       func()
}

type TrayConfig struct {
	Sessions     *session.Service
	Runner       *session.Runner
	Logger       *slog.Logger
	APIURL       string
	OnOpenEditor func() error
	OnQuit       func()
}

func NewTray(cfg TrayConfig) *Tray {
	t := &Tray{
		logger:       cfg.Logger,
		apiURL:       cfg.APIURL,
		done:         make(chan struct{}),
		onOpenEditor: cfg.OnOpenEditor,
		onQuit:       cfg.OnQuit,
	}
	// Leave the interfaces nil rather than holding typed nil pointers.
	if cfg.Sessions != nil {
		t.sessions = cfg.Sessions
	}
	if cfg.Runner != nil {
		t.runner = cfg.Runner
	}
	return t
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Repcut")
	systray.SetTooltip("Repcut timeline editor")

	t.statusItem = systray.AddMenuItem("Saves: idle", "Background save status")
	t.statusItem.Disable()

	t.sessionsItem = systray.AddMenuItem("Sessions: 0", "Open editing sessions")
	t.sessionsItem.Disable()

	if t.apiURL != "" {
		apiItem := systray.AddMenuItem("API: "+t.apiURL, "Local editor API")
		apiItem.Disable()
	}

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause saving", "Pause background saves")

	openItem := systray.AddMenuItem("Open Editor...", "Open the timeline editor")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Repcut")

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-openItem.ClickedCh:
				t.handleOpenEditor()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	go t.watch()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	close(t.done)
	t.logger.Info("system tray exiting")
}

// watch keeps the status items current until the tray exits.
func (t *Tray) watch() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	t.Refresh(context.Background())
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.Refresh(context.Background())
		}
	}
}

// Refresh re-reads the session and save counts.
func (t *Tray) Refresh(ctx context.Context) {
	open, pending, paused := 0, 0, false
	if t.sessions != nil {
		open = t.sessions.OpenCount()
	}
	if t.runner != nil {
		pending = t.runner.PendingCount(ctx)
		paused = t.runner.IsPaused()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.statusItem == nil {
		return
	}
	t.statusItem.SetTitle(saveStatus(pending, paused))
	t.sessionsItem.SetTitle(fmt.Sprintf("Sessions: %d", open))
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	paused := !t.runner.IsPaused()
	if paused {
		t.runner.Pause()
	} else {
		t.runner.Resume()
	}
	if t.pauseItem == nil {
		return
	}

	title := "Pause saving"
	if paused {
		title = "Resume saving"
	}
	t.pauseItem.SetTitle(title)
	t.statusItem.SetTitle(saveStatus(0, paused))
}

func (t *Tray) handleOpenEditor() {
	if t.onOpenEditor != nil {
		if err := t.onOpenEditor(); err != nil {
			t.logger.Error("failed to open editor", "error", err)
		}
	}
}

func saveStatus(pending int, paused bool) string {
	switch {
	case paused && pending > 0:
		return fmt.Sprintf("Saves: paused (%d waiting)", pending)
	case paused:
		return "Saves: paused"
	case pending > 0:
		return fmt.Sprintf("Saves: %d pending", pending)
	default:
		return "Saves: idle"
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}
