// Package config provides configuration management for webtimelapse.
// A session is assembled from defaults, an optional YAML file, environment
// variables and command-line flags, then validated before anything is launched.
package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// Session defaults
	DefaultOutDir    = "./captures"
	DefaultInterval  = 300 * time.Second
	DefaultWidth     = 1280
	DefaultHeight    = 800
	DefaultLoadWait  = 3 * time.Second
	DefaultFPS       = 12
	DefaultVideoName = "timelapse.mp4"

	// Runtime defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// Environment variable names
	EnvLogLevel  = "WEBTIMELAPSE_LOG_LEVEL"
	EnvLogFormat = "WEBTIMELAPSE_LOG_FORMAT"
	EnvFFmpeg    = "WEBTIMELAPSE_FFMPEG"
	EnvChromeBin = "WEBTIMELAPSE_CHROME_BIN"
	EnvAPIToken  = "WEBTIMELAPSE_API_TOKEN"

	// JournalFilename is the sqlite journal kept next to the screenshots.
	JournalFilename = "webtimelapse.db"
)

// StopMode identifies which stop condition a session uses.
type StopMode string

const (
	StopByShots    StopMode = "shots"
	StopByDuration StopMode = "duration"
)

// Session is the immutable description of one capture session.
type Session struct {
	URL       string
	OutDir    string
	Interval  time.Duration
	Shots     int
	Duration  time.Duration
	Width     int
	Height    int
	FullPage  bool
	LoadWait  time.Duration
	FPS       int
	VideoName string
}

// Runtime holds process-level settings that do not change what is captured.
type Runtime struct {
	LogLevel     string
	LogFormat    string
	FFmpegPath   string
	ChromeBin    string
	BrowserURL   string
	Stealth      bool
	NoSandbox    bool
	Listen       string
	APIToken     string
	Tray         bool
	Journal      bool
	AssembleOnly bool
}

// Config is the full configuration of one process run.
type Config struct {
	Session Session
	Runtime Runtime
}

// Defaults returns a session populated with the documented defaults. No stop
// condition is set; callers must choose one.
func Defaults() Session {
	return Session{
		OutDir:    DefaultOutDir,
		Interval:  DefaultInterval,
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		LoadWait:  DefaultLoadWait,
		FPS:       DefaultFPS,
		VideoName: DefaultVideoName,
	}
}

// New returns a Config with session and runtime defaults.
func New() *Config {
	return &Config{
		Session: Defaults(),
		Runtime: Runtime{
			LogLevel:  DefaultLogLevel,
			LogFormat: DefaultLogFormat,
			Journal:   true,
		},
	}
}

// ApplyEnv overrides runtime settings from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Runtime.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Runtime.LogFormat = v
	}
	if v := os.Getenv(EnvFFmpeg); v != "" {
		c.Runtime.FFmpegPath = v
	}
	if v := os.Getenv(EnvChromeBin); v != "" {
		c.Runtime.ChromeBin = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.Runtime.APIToken = v
	}
}

// Mode reports the active stop condition. It is only meaningful on a
// validated session.
func (s Session) Mode() StopMode {
	if s.Shots > 0 {
		return StopByShots
	}
	return StopByDuration
}

// ExpectedShots estimates how many iterations the session will attempt. For
// duration sessions it is the number of interval slots that start before the
// deadline.
func (s Session) ExpectedShots() int {
	if s.Mode() == StopByShots {
		return s.Shots
	}
	if s.Interval <= 0 {
		return 0
	}
	return int(math.Ceil(float64(s.Duration) / float64(s.Interval)))
}

// VideoPath returns where the assembled video is written.
func (s Session) VideoPath() string {
	return filepath.Join(s.OutDir, s.VideoName)
}

// JournalPath returns the sqlite journal location for this session.
func (s Session) JournalPath() string {
	return filepath.Join(s.OutDir, JournalFilename)
}

// Validate checks every field of the session. Capture sessions need a URL and
// exactly one stop condition.
func (s Session) Validate() error {
	if err := s.ValidateForAssembly(); err != nil {
		return err
	}

	if strings.TrimSpace(s.URL) == "" {
		return &ConfigurationError{Field: "url", Reason: "is required"}
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file") || (u.Scheme != "file" && u.Host == "") {
		return &ConfigurationError{Field: "url", Reason: fmt.Sprintf("%q is not an absolute http(s) or file URL", s.URL)}
	}

	switch {
	case s.Shots < 0:
		return &ConfigurationError{Field: "shots", Reason: "must be positive"}
	case s.Duration < 0:
		return &ConfigurationError{Field: "duration", Reason: "must be positive"}
	case s.Shots > 0 && s.Duration > 0:
		return &ConfigurationError{Field: "shots/duration", Reason: "are mutually exclusive; set only one"}
	case s.Shots == 0 && s.Duration == 0:
		return &ConfigurationError{Field: "shots/duration", Reason: "one of them is required"}
	}

	if s.Interval <= 0 {
		return &ConfigurationError{Field: "interval", Reason: "must be positive"}
	}
	if s.Width <= 0 {
		return &ConfigurationError{Field: "width", Reason: "must be positive"}
	}
	if s.Height <= 0 {
		return &ConfigurationError{Field: "height", Reason: "must be positive"}
	}
	if s.LoadWait < 0 {
		return &ConfigurationError{Field: "load-wait", Reason: "must not be negative"}
	}
	return nil
}

// ValidateForAssembly checks only the fields the video step needs.
func (s Session) ValidateForAssembly() error {
	if strings.TrimSpace(s.OutDir) == "" {
		return &ConfigurationError{Field: "out", Reason: "is required"}
	}
	for _, part := range strings.Split(filepath.ToSlash(s.OutDir), "/") {
		if part == ".." {
			return &ConfigurationError{Field: "out", Reason: "must not contain '..' segments"}
		}
	}
	if s.FPS <= 0 {
		return &ConfigurationError{Field: "fps", Reason: "must be positive"}
	}
	if s.Width <= 0 {
		return &ConfigurationError{Field: "width", Reason: "must be positive"}
	}
	name := strings.TrimSpace(s.VideoName)
	if name == "" {
		return &ConfigurationError{Field: "video", Reason: "is required"}
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return &ConfigurationError{Field: "video", Reason: "must be a file name, not a path"}
	}
	if filepath.Ext(name) == "" {
		return &ConfigurationError{Field: "video", Reason: "needs an extension such as .mp4"}
	}
	return nil
}

// ConfigurationError reports an invalid or missing setting. It is always
// fatal and is raised before any browser is launched.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
