package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/eurogig/webtimelapse/internal/api"
	"github.com/eurogig/webtimelapse/internal/config"
)

// Exit codes.
const (
	exitOK          = 0
	exitFatal       = 1
	exitConfigError = 2
)

func init() {
	// The tray event loop must own the main OS thread on macOS.
	runtime.LockOSThread()
}

// flags holds raw command-line values. Only flags the user actually set are
// applied over the YAML file and the environment.
type flags struct {
	configPath string

	url      string
	out      string
	interval int
	shots    int
	duration int
	width    int
	height   int
	fullPage bool
	loadWait float64
	fps      int
	video    string

	logLevel     string
	logFormat    string
	stealth      bool
	browserURL   string
	chromeBin    string
	noSandbox    bool
	listen       string
	apiToken     string
	tray         bool
	noJournal    bool
	assembleOnly bool
}

func newRootCmd() (*cobra.Command, *flags) {
	f := &flags{}
	d := config.Defaults()

	cmd := &cobra.Command{
		Use:   "webtimelapse",
		Short: "Capture a webpage at fixed intervals and turn the screenshots into a video",
		Long: `webtimelapse loads a URL in headless Chrome every --interval seconds, saves a PNG
screenshot into --out, and stops after --shots captures or once --duration seconds
have passed. The screenshots are then assembled into a video with ffmpeg.

Interrupting with Ctrl-C stops capturing after the current screenshot and still
assembles the video. A second Ctrl-C aborts the video step.

Examples:
  webtimelapse --url https://example.com --shots 10 --interval 60
  webtimelapse --url https://example.com --duration 3600 --fullpage --out ./shots
  webtimelapse --config session.yaml --listen 127.0.0.1:8787
  webtimelapse --assemble-only --out ./shots --fps 24`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &config.ConfigurationError{Field: "arguments", Reason: fmt.Sprintf("unexpected %q; use --url", args)}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &config.ConfigurationError{Field: "flags", Reason: err.Error()}
	})

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML file with session settings (flags override it)")

	fl.StringVarP(&f.url, "url", "u", "", "Page to capture (http, https or file URL)")
	fl.StringVarP(&f.out, "out", "o", d.OutDir, "Output directory for screenshots and the video")
	fl.IntVarP(&f.interval, "interval", "i", int(d.Interval.Seconds()), "Seconds between capture starts")
	fl.IntVarP(&f.shots, "shots", "n", 0, "Stop after this many captures (exclusive with --duration)")
	fl.IntVarP(&f.duration, "duration", "t", 0, "Stop after this many seconds (exclusive with --shots)")
	fl.IntVar(&f.width, "width", d.Width, "Viewport width in pixels")
	fl.IntVar(&f.height, "height", d.Height, "Viewport height in pixels")
	fl.BoolVar(&f.fullPage, "fullpage", false, "Capture the full page height (capped at 20000px)")
	fl.Float64Var(&f.loadWait, "load-wait", d.LoadWait.Seconds(), "Seconds to wait after the page loads")
	fl.IntVar(&f.fps, "fps", d.FPS, "Frames per second of the output video")
	fl.StringVar(&f.video, "video", d.VideoName, "Output video file name, written inside --out")

	fl.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	fl.StringVar(&f.logFormat, "log-format", config.DefaultLogFormat, "Log format: text or json")
	fl.BoolVar(&f.stealth, "stealth", false, "Open the page with headless-detection evasions")
	fl.StringVar(&f.browserURL, "browser-url", "", "DevTools WebSocket URL of an existing Chrome instead of launching one")
	fl.StringVar(&f.chromeBin, "chrome-bin", "", "Chrome binary to launch")
	fl.BoolVar(&f.noSandbox, "no-sandbox", false, "Disable the Chrome sandbox (needed as root in containers)")
	fl.StringVar(&f.listen, "listen", "", "Serve the status API on this loopback address, e.g. 127.0.0.1:8787")
	fl.StringVar(&f.apiToken, "api-token", "", "Bearer token for the status API (generated when empty)")
	fl.BoolVar(&f.tray, "tray", false, "Show a system tray icon with a stop control")
	fl.BoolVar(&f.noJournal, "no-journal", false, "Do not record the session in "+config.JournalFilename)
	fl.BoolVar(&f.assembleOnly, "assemble-only", false, "Skip capturing and only build the video from --out")

	return cmd, f
}

// resolveConfig layers defaults, environment, the YAML file and explicitly
// set flags, then validates the result.
func resolveConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	c := config.New()
	c.ApplyEnv()

	if f.configPath != "" {
		file, err := config.LoadFile(f.configPath)
		if err != nil {
			var cfgErr *config.ConfigurationError
			if errors.As(err, &cfgErr) {
				return nil, err
			}
			return nil, &config.ConfigurationError{Field: "config", Reason: err.Error()}
		}
		file.Apply(c)
	}

	fl := cmd.Flags()
	s, r := &c.Session, &c.Runtime
	if fl.Changed("url") {
		s.URL = f.url
	}
	if fl.Changed("out") {
		s.OutDir = f.out
	}
	if fl.Changed("interval") {
		s.Interval = config.Seconds(f.interval)
	}
	if fl.Changed("shots") && fl.Changed("duration") {
		return nil, &config.ConfigurationError{Field: "shots/duration", Reason: "are mutually exclusive; set only one"}
	}
	if fl.Changed("shots") {
		if f.shots <= 0 {
			return nil, &config.ConfigurationError{Field: "shots", Reason: "must be positive"}
		}
		s.Shots, s.Duration = f.shots, 0
	}
	if fl.Changed("duration") {
		if f.duration <= 0 {
			return nil, &config.ConfigurationError{Field: "duration", Reason: "must be positive"}
		}
		s.Shots, s.Duration = 0, config.Seconds(f.duration)
	}
	if fl.Changed("width") {
		s.Width = f.width
	}
	if fl.Changed("height") {
		s.Height = f.height
	}
	if fl.Changed("fullpage") {
		s.FullPage = f.fullPage
	}
	if fl.Changed("load-wait") {
		s.LoadWait = config.FractionalSeconds(f.loadWait)
	}
	if fl.Changed("fps") {
		s.FPS = f.fps
	}
	if fl.Changed("video") {
		s.VideoName = f.video
	}

	if fl.Changed("log-level") {
		r.LogLevel = f.logLevel
	}
	if fl.Changed("log-format") {
		r.LogFormat = f.logFormat
	}
	if fl.Changed("stealth") {
		r.Stealth = f.stealth
	}
	if fl.Changed("browser-url") {
		r.BrowserURL = f.browserURL
	}
	if fl.Changed("chrome-bin") {
		r.ChromeBin = f.chromeBin
	}
	if fl.Changed("no-sandbox") {
		r.NoSandbox = f.noSandbox
	}
	if fl.Changed("listen") {
		r.Listen = f.listen
	}
	if fl.Changed("api-token") {
		r.APIToken = f.apiToken
	}
	if fl.Changed("tray") {
		r.Tray = f.tray
	}
	if fl.Changed("no-journal") {
		r.Journal = !f.noJournal
	}
	r.AssembleOnly = f.assembleOnly

	if r.AssembleOnly {
		if err := s.ValidateForAssembly(); err != nil {
			return nil, err
		}
	} else if err := s.Validate(); err != nil {
		return nil, err
	}
	if r.Listen != "" {
		if err := api.CheckLoopback(r.Listen); err != nil {
			return nil, &config.ConfigurationError{Field: "listen", Reason: err.Error()}
		}
	}
	return c, nil
}

func exitCode(err error) int {
	var cfgErr *config.ConfigurationError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &cfgErr):
		return exitConfigError
	default:
		return exitFatal
	}
}

func main() {
	cmd, _ := newRootCmd()
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "webtimelapse:", err)
	}
	os.Exit(exitCode(err))
}
