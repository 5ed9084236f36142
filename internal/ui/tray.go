// Package ui shows the capture session in the system tray.
package ui

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/eurogig/webtimelapse/internal/schedule"
)

type Tray struct {
	logger *slog.Logger

	statusItem *systray.MenuItem
	shotsItem  *systray.MenuItem
	lastItem   *systray.MenuItem
	stopItem   *systray.MenuItem

	mu          sync.Mutex
	ready       bool
	pending     *schedule.Status
	quitPending bool
	quit        func()

	onStop func()
	onQuit func()
}

type TrayConfig struct {
	Logger *slog.Logger
	OnStop func()
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		logger: cfg.Logger,
		onStop: cfg.OnStop,
		onQuit: cfg.OnQuit,
		quit:   systray.Quit,
	}
}

// Run blocks until Quit is called. It must run on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Timelapse")
	systray.SetTooltip("webtimelapse")

	t.statusItem = systray.AddMenuItem("Status: starting", "Current session state")
	t.statusItem.Disable()

	t.shotsItem = systray.AddMenuItem("Shots: 0", "Screenshots taken")
	t.shotsItem.Disable()

	t.lastItem = systray.AddMenuItem("Last: none", "Most recent capture")
	t.lastItem.Disable()

	systray.AddSeparator()

	t.stopItem = systray.AddMenuItem("Stop capture", "Stop after the current screenshot and assemble the video")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Stop capturing and exit")

	pending, quit := t.markReady()
	if quit {
		t.logger.Debug("quit arrived before the tray was ready")
		t.quit()
		return
	}
	if pending != nil {
		t.Update(*pending)
	}

	go func() {
		for {
			select {
			case <-t.stopItem.ClickedCh:
				t.logger.Info("stop requested from tray")
				t.stopItem.Disable()
				if t.onStop != nil {
					t.onStop()
				}
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

// markReady flips the tray to ready and hands back what arrived before it:
// the latest held status and whether Quit was already called.
func (t *Tray) markReady() (*schedule.Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ready = true
	pending := t.pending
	t.pending = nil
	return pending, t.quitPending
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

// Update refreshes the menu from a status snapshot. Updates arriving before
// the tray is ready are held until it is.
func (t *Tray) Update(s schedule.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready {
		t.pending = &s
		return
	}

	t.statusItem.SetTitle(StatusLine(s))
	t.shotsItem.SetTitle(ShotsLine(s))
	t.lastItem.SetTitle(LastLine(s))
	systray.SetTooltip(fmt.Sprintf("webtimelapse: %s", s.URL))
	if s.StopRequested || s.State == schedule.StateAssembling || s.State == schedule.StateDone {
		t.stopItem.Disable()
	}
}

// Quit ends Run. Called before the tray is ready, it is deferred until
// then so Run still returns.
func (t *Tray) Quit() {
	t.mu.Lock()
	if !t.ready {
		t.quitPending = true
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.quit()
}

func StatusLine(s schedule.Status) string {
	line := "Status: " + string(s.State)
	if s.StopRequested && s.State == schedule.StateCapturing {
		line += " (stopping)"
	}
	return line
}

func ShotsLine(s schedule.Status) string {
	var line string
	if s.ExpectedShots > 0 {
		line = fmt.Sprintf("Shots: %d/%d", s.Succeeded, s.ExpectedShots)
	} else {
		line = fmt.Sprintf("Shots: %d", s.Succeeded)
	}
	if s.Failed > 0 {
		line += fmt.Sprintf(", %d failed", s.Failed)
	}
	return line
}

func LastLine(s schedule.Status) string {
	if s.LastAt.IsZero() {
		return "Last: none"
	}
	return "Last: " + s.LastAt.Format(time.TimeOnly)
}
