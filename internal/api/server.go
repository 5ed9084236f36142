// Package api is the optional local HTTP surface: session status, the
// screenshots taken so far, the assembled video and a stop control.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/eurogig/webtimelapse/internal/artifacts"
	"github.com/eurogig/webtimelapse/internal/encoder"
	"github.com/eurogig/webtimelapse/internal/journal"
	"github.com/eurogig/webtimelapse/internal/playback"
	"github.com/eurogig/webtimelapse/internal/schedule"
)

// StatusSource provides the live session status.
type StatusSource interface {
	Snapshot() schedule.Status
}

// ArtifactLister lists the screenshots in the output directory.
type ArtifactLister interface {
	List() ([]artifacts.Artifact, error)
	Latest() (artifacts.Artifact, error)
}

type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

type ServerConfig struct {
	Addr      string
	Token     string
	Status    StatusSource
	Artifacts ArtifactLister
	Files     playback.FileServer
	VideoName string
	Probe     *encoder.CachedProbe // optional
	Sessions  journal.Repository   // optional
	Stop      func()               // requests a graceful stop
	Logger    *slog.Logger
	StartTime time.Time
	SessionID string
	Version   string
}

// NewServer builds the server. Addr must be a loopback address.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := CheckLoopback(cfg.Addr); err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("api token is required")
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewRouter(cfg),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}, nil
}

// Listen binds the listen address so that a port already in use is
// reported before the server is announced.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	return nil
}

// Start serves until Shutdown. It binds first if Listen was not called.
func (s *Server) Start() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("starting HTTP server", "addr", s.Addr())
	err := s.httpServer.Serve(s.listener)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the bound address once listening, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// CheckLoopback rejects listen addresses that are not bound to loopback.
func CheckLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("listen address %q must be a loopback address", addr)
	}
	return nil
}
