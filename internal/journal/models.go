// Package journal records sessions and their capture events in sqlite. The
// journal is informational: the output directory stays the source of truth
// for which screenshots exist.
package journal

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionStatusRunning     = "running"
	SessionStatusCompleted   = "completed"
	SessionStatusInterrupted = "interrupted"
	SessionStatusFailed      = "failed"
)

type Session struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	OutDir    string        `json:"out_dir"`
	Mode      string        `json:"mode"`
	Interval  time.Duration `json:"interval"`
	Shots     int           `json:"shots,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	FullPage  bool          `json:"full_page"`
	FPS       int           `json:"fps"`
	VideoName string        `json:"video_name"`

	Status     string     `json:"status"`
	Attempted  int        `json:"attempted"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	VideoPath  string     `json:"video_path,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type Capture struct {
	ID         int64         `json:"id"`
	SessionID  string        `json:"session_id"`
	Iteration  int           `json:"iteration"`
	Sequence   int           `json:"sequence"`
	CapturedAt time.Time     `json:"captured_at"`
	Filename   string        `json:"filename,omitempty"`
	Bytes      int           `json:"bytes"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
}

// OK reports whether the capture produced a screenshot.
func (c Capture) OK() bool {
	return c.Error == ""
}

// NewID returns a random session ID.
func NewID() string {
	return uuid.NewString()
}
