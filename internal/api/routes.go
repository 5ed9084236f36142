package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eurogig/webtimelapse/internal/artifacts"
	"github.com/eurogig/webtimelapse/internal/playback"
)

const sessionsListLimit = 50

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())
	r.Use(middleware.GetHead)

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Token, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/captures", listCapturesHandler(cfg))
		r.Get("/captures/latest", latestCaptureHandler(cfg))
		r.Get("/captures/{name}", captureFileHandler(cfg))
		r.Get("/video", videoHandler(cfg))
		r.Get("/sessions", listSessionsHandler(cfg))
		r.Post("/stop", stopHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Version:   cfg.Version,
			UptimeS:   int64(time.Since(cfg.StartTime).Seconds()),
			SessionID: cfg.SessionID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{Status: cfg.Status.Snapshot()}
		if cfg.Probe != nil {
			resp.Encoder = EncoderToResponse(cfg.Probe.Get(r.Context()))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listCapturesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cfg.Artifacts.List()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list captures", "INTERNAL_ERROR")
			return
		}

		resp := CapturesResponse{Captures: make([]CaptureResponse, len(list))}
		for i, a := range list {
			resp.Captures[i] = CaptureToResponse(a)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// latestCaptureHandler serves the newest screenshot. ?thumb=N scales it
// down to N pixels wide.
func latestCaptureHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, err := cfg.Artifacts.Latest()
		if errors.Is(err, artifacts.ErrEmpty) {
			WriteError(w, http.StatusNotFound, "no captures yet", "NOT_FOUND")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list captures", "INTERNAL_ERROR")
			return
		}

		thumb := r.URL.Query().Get("thumb")
		if thumb == "" {
			serveNamed(cfg, w, r, latest.Name)
			return
		}

		width, err := strconv.Atoi(thumb)
		if err != nil || width <= 0 {
			WriteError(w, http.StatusBadRequest, "thumb must be a positive integer", "BAD_REQUEST")
			return
		}
		data, err := playback.Thumbnail(latest.Path, width)
		if err != nil {
			cfg.Logger.Error("thumbnail failed", "error", err, "name", latest.Name)
			WriteError(w, http.StatusInternalServerError, "failed to build thumbnail", "INTERNAL_ERROR")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("X-Capture-Name", latest.Name)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func captureFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveNamed(cfg, w, r, chi.URLParam(r, "name"))
	}
}

func videoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveNamed(cfg, w, r, cfg.VideoName)
	}
}

func serveNamed(cfg ServerConfig, w http.ResponseWriter, r *http.Request, name string) {
	if err := cfg.Files.ServeFile(w, r, name); err != nil {
		cfg.Logger.Error("playback error", "error", err, "name", name)
		WriteError(w, http.StatusInternalServerError, "failed to serve file", "INTERNAL_ERROR")
	}
}

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Sessions == nil {
			WriteError(w, http.StatusNotFound, "journal is disabled", "NOT_FOUND")
			return
		}

		sessions, err := cfg.Sessions.ListSessions(r.Context(), sessionsListLimit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list sessions", "INTERNAL_ERROR")
			return
		}

		resp := SessionsResponse{Sessions: make([]SessionResponse, len(sessions))}
		for i, s := range sessions {
			resp.Sessions[i] = SessionToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// stopHandler asks the capture loop to stop after the current iteration.
// The video is still assembled.
func stopHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Stop == nil {
			WriteError(w, http.StatusConflict, "nothing to stop", "CONFLICT")
			return
		}
		cfg.Stop()
		WriteJSON(w, http.StatusAccepted, StopResponse{Stopping: true})
	}
}
