package ui

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/eurogig/webtimelapse/internal/logging"
	"github.com/eurogig/webtimelapse/internal/schedule"
)

func TestMenuLines(t *testing.T) {
	last := time.Date(2026, 3, 4, 13, 5, 9, 0, time.Local)

	tests := []struct {
		name      string
		in        schedule.Status
		wantState string
		wantShots string
		wantLast  string
	}{
		{
			name:      "fresh",
			in:        schedule.Status{State: schedule.StateStarting, ExpectedShots: 10},
			wantState: "Status: starting",
			wantShots: "Shots: 0/10",
			wantLast:  "Last: none",
		},
		{
			name: "capturing with failures",
			in: schedule.Status{
				State: schedule.StateCapturing, ExpectedShots: 10,
				Succeeded: 4, Failed: 1, LastAt: last,
			},
			wantState: "Status: capturing",
			wantShots: "Shots: 4/10, 1 failed",
			wantLast:  "Last: 13:05:09",
		},
		{
			name:      "stopping",
			in:        schedule.Status{State: schedule.StateCapturing, StopRequested: true, Succeeded: 2},
			wantState: "Status: capturing (stopping)",
			wantShots: "Shots: 2",
			wantLast:  "Last: none",
		},
		{
			name:      "assembling",
			in:        schedule.Status{State: schedule.StateAssembling, StopRequested: true, ExpectedShots: 3, Succeeded: 3},
			wantState: "Status: assembling",
			wantShots: "Shots: 3/3",
			wantLast:  "Last: none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusLine(tt.in); got != tt.wantState {
				t.Errorf("StatusLine() = %q, want %q", got, tt.wantState)
			}
			if got := ShotsLine(tt.in); got != tt.wantShots {
				t.Errorf("ShotsLine() = %q, want %q", got, tt.wantShots)
			}
			if got := LastLine(tt.in); got != tt.wantLast {
				t.Errorf("LastLine() = %q, want %q", got, tt.wantLast)
			}
		})
	}
}

func TestUpdateBeforeReadyIsHeld(t *testing.T) {
	tray := NewTray(TrayConfig{Logger: logging.Discard()})

	tray.Update(schedule.Status{State: schedule.StateCapturing, Succeeded: 1})
	tray.Update(schedule.Status{State: schedule.StateCapturing, Succeeded: 2})

	if tray.pending == nil || tray.pending.Succeeded != 2 {
		t.Errorf("pending = %+v, want the latest status", tray.pending)
	}
}

func TestQuitBeforeReadyIsDeferred(t *testing.T) {
	tray := NewTray(TrayConfig{Logger: logging.Discard()})
	quits := 0
	tray.quit = func() { quits++ }

	tray.Quit()
	if quits != 0 {
		t.Fatalf("quit ran before the tray was ready")
	}

	_, quit := tray.markReady()
	if !quit {
		t.Error("markReady() should report the early quit")
	}

	tray.Quit()
	if quits != 1 {
		t.Errorf("quits = %d after ready, want 1", quits)
	}
}

func TestMarkReadyHandsBackPending(t *testing.T) {
	tray := NewTray(TrayConfig{Logger: logging.Discard()})
	tray.Update(schedule.Status{State: schedule.StateCapturing, Succeeded: 3})

	pending, quit := tray.markReady()
	if quit {
		t.Error("no quit was requested")
	}
	if pending == nil || pending.Succeeded != 3 {
		t.Errorf("pending = %+v, want the held status", pending)
	}
	if tray.pending != nil {
		t.Error("pending should be cleared once handed back")
	}
}

func TestIconIsPNG(t *testing.T) {
	cfg, err := png.DecodeConfig(bytes.NewReader(iconBytes))
	if err != nil {
		t.Fatalf("icon is not a PNG: %v", err)
	}
	if cfg.Width != 22 || cfg.Height != 22 {
		t.Errorf("icon = %dx%d, want 22x22", cfg.Width, cfg.Height)
	}
}
