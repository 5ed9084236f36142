package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/eurogig/webtimelapse/internal/config"
	"github.com/eurogig/webtimelapse/internal/schedule"
)

// writeTimeout bounds each journal write so a locked database never stalls
// the capture loop.
const writeTimeout = 5 * time.Second

// ConfigKeyLastVideo stores the path of the most recently assembled video.
const ConfigKeyLastVideo = "last_video"

// Recorder journals one session. It implements schedule.Observer. Journal
// errors are logged and otherwise ignored.
type Recorder struct {
	repo      Repository
	sessionID string
	logger    *slog.Logger

	attempted, succeeded, failed int
}

// NewRecorder returns a Recorder for sessionID.
func NewRecorder(repo Repository, sessionID string, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, sessionID: sessionID, logger: logger}
}

// Start writes the session row.
func (r *Recorder) Start(s config.Session, startedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := r.repo.CreateSession(ctx, &Session{
		ID:        r.sessionID,
		URL:       s.URL,
		OutDir:    s.OutDir,
		Mode:      string(s.Mode()),
		Interval:  s.Interval,
		Shots:     s.Shots,
		Duration:  s.Duration,
		Width:     s.Width,
		Height:    s.Height,
		FullPage:  s.FullPage,
		FPS:       s.FPS,
		VideoName: s.VideoName,
		Status:    SessionStatusRunning,
		StartedAt: startedAt,
	})
	if err != nil {
		r.logger.Warn("journal: failed to record session", "error", err)
	}
}

// Observe implements schedule.Observer.
func (r *Recorder) Observe(ev schedule.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	c := &Capture{
		SessionID:  r.sessionID,
		Iteration:  ev.Index,
		Sequence:   ev.Sequence,
		CapturedAt: ev.Time,
		Filename:   ev.Name,
		Bytes:      ev.Bytes,
		Latency:    ev.Latency,
	}
	r.attempted++
	if ev.Err != nil {
		c.Error = ev.Err.Error()
		r.failed++
	} else {
		r.succeeded++
	}

	if err := r.repo.RecordCapture(ctx, c); err != nil {
		r.logger.Warn("journal: failed to record capture", "iteration", ev.Index, "error", err)
		return
	}
	if err := r.repo.UpdateSessionCounts(ctx, r.sessionID, r.attempted, r.succeeded, r.failed); err != nil {
		r.logger.Warn("journal: failed to update session counts", "error", err)
	}
}

// Finish closes the session row with its final status.
func (r *Recorder) Finish(status, videoPath, errorMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.FinishSession(ctx, r.sessionID, status, videoPath, errorMsg); err != nil {
		r.logger.Warn("journal: failed to finish session", "error", err)
	}
	if videoPath != "" {
		if err := r.repo.SetConfig(ctx, ConfigKeyLastVideo, videoPath); err != nil {
			r.logger.Warn("journal: failed to store last video", "error", err)
		}
	}
}
