package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File mirrors the command-line flags for sessions described in YAML.
// Pointer fields distinguish "absent" from a zero value so that a file only
// overrides what it mentions.
type File struct {
	URL        *string  `yaml:"url"`
	Out        *string  `yaml:"out"`
	Interval   *int     `yaml:"interval"`
	Shots      *int     `yaml:"shots"`
	Duration   *int     `yaml:"duration"`
	Width      *int     `yaml:"width"`
	Height     *int     `yaml:"height"`
	FullPage   *bool    `yaml:"fullpage"`
	LoadWait   *float64 `yaml:"load_wait"`
	FPS        *int     `yaml:"fps"`
	Video      *string  `yaml:"video"`
	Stealth    *bool    `yaml:"stealth"`
	BrowserURL *string  `yaml:"browser_url"`
	Listen     *string  `yaml:"listen"`
	Tray       *bool    `yaml:"tray"`
	Journal    *bool    `yaml:"journal"`
	LogLevel   *string  `yaml:"log_level"`
	LogFormat  *string  `yaml:"log_format"`
}

// LoadFile reads a YAML session file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigurationError{Field: "config", Reason: fmt.Sprintf("%s: %v", path, err)}
	}
	if err := f.checkStop(); err != nil {
		return nil, err
	}
	return &f, nil
}

// checkStop rejects a file that names both stop conditions, or names one
// with a non-positive value. Zero would otherwise read as "unset".
func (f *File) checkStop() error {
	if f.Shots != nil && f.Duration != nil {
		return &ConfigurationError{Field: "shots/duration", Reason: "are mutually exclusive; set only one"}
	}
	if f.Shots != nil && *f.Shots <= 0 {
		return &ConfigurationError{Field: "shots", Reason: "must be positive"}
	}
	if f.Duration != nil && *f.Duration <= 0 {
		return &ConfigurationError{Field: "duration", Reason: "must be positive"}
	}
	return nil
}

// Apply copies every setting present in the file onto c.
func (f *File) Apply(c *Config) {
	s := &c.Session
	if f.URL != nil {
		s.URL = *f.URL
	}
	if f.Out != nil {
		s.OutDir = *f.Out
	}
	if f.Interval != nil {
		s.Interval = Seconds(*f.Interval)
	}
	if f.Shots != nil {
		s.Shots = *f.Shots
	}
	if f.Duration != nil {
		s.Duration = Seconds(*f.Duration)
	}
	if f.Width != nil {
		s.Width = *f.Width
	}
	if f.Height != nil {
		s.Height = *f.Height
	}
	if f.FullPage != nil {
		s.FullPage = *f.FullPage
	}
	if f.LoadWait != nil {
		s.LoadWait = FractionalSeconds(*f.LoadWait)
	}
	if f.FPS != nil {
		s.FPS = *f.FPS
	}
	if f.Video != nil {
		s.VideoName = *f.Video
	}

	r := &c.Runtime
	if f.Stealth != nil {
		r.Stealth = *f.Stealth
	}
	if f.BrowserURL != nil {
		r.BrowserURL = *f.BrowserURL
	}
	if f.Listen != nil {
		r.Listen = *f.Listen
	}
	if f.Tray != nil {
		r.Tray = *f.Tray
	}
	if f.Journal != nil {
		r.Journal = *f.Journal
	}
	if f.LogLevel != nil {
		r.LogLevel = *f.LogLevel
	}
	if f.LogFormat != nil {
		r.LogFormat = *f.LogFormat
	}
}

// Seconds converts whole seconds to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// FractionalSeconds converts seconds with a fractional part to a duration.
func FractionalSeconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
