package api

import (
	"time"

	"github.com/eurogig/webtimelapse/internal/artifacts"
	"github.com/eurogig/webtimelapse/internal/encoder"
	"github.com/eurogig/webtimelapse/internal/journal"
	"github.com/eurogig/webtimelapse/internal/schedule"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	UptimeS   int64  `json:"uptime_s"`
	SessionID string `json:"session_id"`
}

type StatusResponse struct {
	schedule.Status
	Encoder *EncoderResponse `json:"encoder,omitempty"`
}

type EncoderResponse struct {
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type CaptureResponse struct {
	Name     string `json:"name"`
	Sequence int    `json:"sequence"`
	Size     int64  `json:"size"`
	ModTime  string `json:"mod_time"`
}

type CapturesResponse struct {
	Captures []CaptureResponse `json:"captures"`
}

type SessionResponse struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	Attempted  int    `json:"attempted"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	VideoPath  string `json:"video_path,omitempty"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type StopResponse struct {
	Stopping bool `json:"stopping"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func CaptureToResponse(a artifacts.Artifact) CaptureResponse {
	return CaptureResponse{
		Name:     a.Name,
		Sequence: a.Sequence,
		Size:     a.Size,
		ModTime:  a.ModTime.UTC().Format(time.RFC3339),
	}
}

func SessionToResponse(s *journal.Session) SessionResponse {
	resp := SessionResponse{
		ID:        s.ID,
		URL:       s.URL,
		Mode:      s.Mode,
		Status:    s.Status,
		Attempted: s.Attempted,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		VideoPath: s.VideoPath,
		Error:     s.Error,
		StartedAt: s.StartedAt.UTC().Format(time.RFC3339),
	}
	if s.FinishedAt != nil {
		resp.FinishedAt = s.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func EncoderToResponse(c *encoder.Capabilities) *EncoderResponse {
	if c == nil {
		return nil
	}
	resp := &EncoderResponse{Available: c.Available, Version: c.Version}
	if !c.ProbedAt.IsZero() {
		resp.LastProbeAt = c.ProbedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
