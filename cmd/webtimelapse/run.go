package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/eurogig/webtimelapse/internal/api"
	"github.com/eurogig/webtimelapse/internal/artifacts"
	"github.com/eurogig/webtimelapse/internal/capture"
	"github.com/eurogig/webtimelapse/internal/config"
	"github.com/eurogig/webtimelapse/internal/db"
	"github.com/eurogig/webtimelapse/internal/encoder"
	"github.com/eurogig/webtimelapse/internal/journal"
	"github.com/eurogig/webtimelapse/internal/logging"
	"github.com/eurogig/webtimelapse/internal/playback"
	"github.com/eurogig/webtimelapse/internal/schedule"
	"github.com/eurogig/webtimelapse/internal/ui"
)

var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// run executes one process invocation: either a full capture session or,
// with --assemble-only, just the video step.
func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.NewLogger(cfg.Runtime.LogLevel, cfg.Runtime.LogFormat)
	debug := logging.ParseLevel(cfg.Runtime.LogLevel) == slog.LevelDebug

	openStore := artifacts.Open
	if cfg.Runtime.AssembleOnly {
		openStore = artifacts.OpenExisting
	}
	store, err := openStore(cfg.Session.OutDir)
	if err != nil {
		return err
	}

	enc := encoder.NewFFmpeg(encoder.Config{
		Binary:     cfg.Runtime.FFmpegPath,
		Logger:     logging.WithComponent(logger, "encoder"),
		DebugPaths: debug,
	})

	if cfg.Runtime.AssembleOnly {
		return runAssembleOnly(ctx, cfg.Session, store, enc, logger)
	}
	return runSession(ctx, cfg, store, enc, logger)
}

func runAssembleOnly(ctx context.Context, s config.Session, store *artifacts.Store, enc *encoder.FFmpeg, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, interruptSignals...)
	defer stop()

	logger.Info("assembling existing screenshots", "out", store.Dir(), "fps", s.FPS, "video", s.VideoName)
	res, err := enc.Assemble(ctx, videoRequest(s, store))
	if err != nil {
		if errors.Is(err, encoder.ErrEncoderUnavailable) {
			logger.Warn("ffmpeg not found; run this once it is installed",
				"manual_command", encoder.ManualCommand(res, s.FPS))
		}
		return fmt.Errorf("assemble video: %w", err)
	}
	logger.Info("video written", "video", res.Video, "frames", res.Frames,
		"width", res.Width, "height", res.Height, "took", res.Run.Duration.Round(time.Millisecond))
	return nil
}

// session bundles what one capture session wires together.
type session struct {
	cfg       *config.Config
	id        string
	startedAt time.Time
	store     *artifacts.Store
	enc       *encoder.FFmpeg
	probe     *encoder.CachedProbe
	tracker   *schedule.Tracker
	recorder  *journal.Recorder
	repo      journal.Repository
	logger    *slog.Logger

	stopOnce    sync.Once
	stopCapture context.CancelFunc
}

// requestStop ends capturing after the current iteration. The video is
// still assembled.
func (s *session) requestStop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stop requested")
		s.tracker.MarkStopRequested()
		s.stopCapture()
	})
}

func runSession(ctx context.Context, cfg *config.Config, store *artifacts.Store, enc *encoder.FFmpeg, logger *slog.Logger) error {
	id := journal.NewID()
	logger = logging.WithSessionID(logger, id)
	startedAt := time.Now()

	sigCtx, stopSignals := signal.NotifyContext(ctx, interruptSignals...)
	defer stopSignals()
	captureCtx, cancelCapture := context.WithCancel(sigCtx)
	defer cancelCapture()

	sess := &session{
		cfg:         cfg,
		id:          id,
		startedAt:   startedAt,
		store:       store,
		enc:         enc,
		probe:       encoder.NewCachedProbe(enc, logging.WithComponent(logger, "encoder")),
		tracker:     schedule.NewTracker(id, cfg.Session, startedAt),
		logger:      logger,
		stopCapture: cancelCapture,
	}

	if cfg.Runtime.Journal {
		database, err := db.New(cfg.Session.JournalPath(), logging.WithComponent(logger, "db"))
		if err != nil {
			logger.Warn("session journal unavailable; continuing without it", "error", err)
		} else {
			defer database.Close()
			sess.repo = journal.NewRepository(database.Conn())
			sess.recorder = journal.NewRecorder(sess.repo, id, logging.WithComponent(logger, "journal"))
			sess.recorder.Start(cfg.Session, startedAt)
		}
	}

	if caps := sess.probe.Get(ctx); !caps.Available {
		logger.Warn("ffmpeg not found; screenshots will be kept but no video will be made")
	}

	if cfg.Runtime.Listen != "" {
		shutdown, err := sess.startAPI()
		if err != nil {
			sess.finish(journal.SessionStatusFailed, "", err)
			return err
		}
		defer shutdown()
	}

	if !cfg.Runtime.Tray {
		return sess.capture(captureCtx)
	}

	tray := ui.NewTray(ui.TrayConfig{
		Logger: logging.WithComponent(logger, "tray"),
		OnStop: sess.requestStop,
		OnQuit: sess.requestStop,
	})
	sess.tracker.OnChange(tray.Update)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.capture(captureCtx)
		tray.Quit()
	}()
	tray.Run()
	return <-errCh
}

// capture runs the loop inside a scoped browser, then assembles the video
// once the browser is gone.
func (s *session) capture(ctx context.Context) error {
	sc := s.cfg.Session
	log := s.logger

	resume, err := s.store.Resume(sc.ExpectedShots())
	if err != nil {
		s.finish(journal.SessionStatusFailed, "", err)
		return fmt.Errorf("scan output dir: %w", err)
	}

	log.Info("starting capture session",
		"url", sc.URL,
		"out", logging.SanitizePath(s.store.Dir()),
		"mode", sc.Mode(),
		"interval", sc.Interval,
		"shots", sc.Shots,
		"duration", sc.Duration,
		"viewport", fmt.Sprintf("%dx%d", sc.Width, sc.Height),
		"fullpage", sc.FullPage,
		"load_wait", sc.LoadWait,
		"fps", sc.FPS,
		"video", sc.VideoName,
		"existing_screenshots", resume.Existing,
		"first_sequence", resume.NextSequence,
	)

	observers := []schedule.Observer{s.tracker}
	if s.recorder != nil {
		observers = append(observers, s.recorder)
	}

	opts := capture.Options{
		Width:     sc.Width,
		Height:    sc.Height,
		RemoteURL: s.cfg.Runtime.BrowserURL,
		ChromeBin: s.cfg.Runtime.ChromeBin,
		Stealth:   s.cfg.Runtime.Stealth,
		NoSandbox: s.cfg.Runtime.NoSandbox,
		Logger:    logging.WithComponent(log, "browser"),
	}

	var summary schedule.Summary
	s.tracker.SetState(schedule.StateCapturing)
	err = capture.WithBrowser(ctx, opts, func(b *capture.Browser) error {
		sched := schedule.New(schedule.Options{
			Session:   sc,
			Capturer:  capture.NewDriver(b.Page(), sc, logging.WithComponent(log, "capture")),
			Writer:    s.store,
			Resume:    resume,
			Observers: observers,
			Logger:    logging.WithComponent(log, "scheduler"),
		})
		var runErr error
		summary, runErr = sched.Run(ctx)
		return runErr
	})

	switch {
	case err == nil:
	case errors.Is(err, capture.ErrBrowserLaunch) && ctx.Err() != nil:
		// Interrupted before the browser came up.
		summary.Interrupted = true
		summary.LastSequence = -1
	default:
		log.Error("capture session failed", "error", err)
		s.finish(journal.SessionStatusFailed, "", err)
		return err
	}

	video, asmErr := s.assemble()

	status := journal.SessionStatusCompleted
	if summary.Interrupted {
		status = journal.SessionStatusInterrupted
	}
	s.finish(status, video, asmErr)
	s.printSummary(summary, video)
	return nil
}

// assemble builds the video. Its failures never fail the session: the
// screenshots are already on disk.
func (s *session) assemble() (string, error) {
	sc := s.cfg.Session
	s.tracker.SetState(schedule.StateAssembling)

	// A fresh signal context: the first interrupt only stopped capturing,
	// another one aborts ffmpeg.
	ctx, stop := signal.NotifyContext(context.Background(), interruptSignals...)
	defer stop()

	res, err := s.enc.Assemble(ctx, videoRequest(sc, s.store))
	switch {
	case err == nil:
		s.tracker.SetVideo(res.Video)
		s.logger.Info("video written", "video", logging.SanitizePath(res.Video), "frames", res.Frames,
			"width", res.Width, "height", res.Height, "took", res.Run.Duration.Round(time.Millisecond))
		return res.Video, nil
	case errors.Is(err, encoder.ErrNoFrames):
		s.logger.Warn("no screenshots to assemble; skipping video", "out", logging.SanitizePath(s.store.Dir()))
	case errors.Is(err, encoder.ErrEncoderUnavailable):
		s.logger.Warn("ffmpeg not found; skipping video, run this once it is installed",
			"frames", res.Frames, "manual_command", encoder.ManualCommand(res, sc.FPS))
	default:
		s.logger.Error("video assembly failed; screenshots are kept", "error", err)
	}
	return "", err
}

func (s *session) finish(status, video string, err error) {
	s.tracker.SetState(schedule.StateDone)
	if s.recorder == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.recorder.Finish(status, video, msg)
}

func (s *session) printSummary(sum schedule.Summary, video string) {
	s.logger.Info("capture session finished",
		"attempted", sum.Attempted,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"interrupted", sum.Interrupted,
		"elapsed", sum.Elapsed.Round(time.Second),
		"video", video,
	)

	if video == "" {
		video = "(not created)"
	}
	fmt.Println()
	fmt.Println("============================================")
	fmt.Println("Timelapse session summary")
	fmt.Println("============================================")
	fmt.Printf("URL:         %s\n", s.cfg.Session.URL)
	fmt.Printf("Screenshots: %d of %d attempted (%d failed)\n", sum.Succeeded, sum.Attempted, sum.Failed)
	if sum.Succeeded > 0 {
		fmt.Printf("Sequence:    %d to %d\n", sum.FirstSequence, sum.LastSequence)
	}
	fmt.Printf("Elapsed:     %s\n", sum.Elapsed.Round(time.Second))
	if sum.Interrupted {
		fmt.Println("Stopped:     interrupted before the stop condition")
	}
	fmt.Printf("Output dir:  %s\n", s.store.Dir())
	fmt.Printf("Video:       %s\n", video)
	fmt.Println("--------------------------------------------")
}

func (s *session) startAPI() (func(), error) {
	token := s.cfg.Runtime.APIToken
	if token == "" {
		var err error
		if token, err = generateToken(); err != nil {
			return nil, fmt.Errorf("generate api token: %w", err)
		}
	}

	apiLogger := logging.WithComponent(s.logger, "api")
	srv, err := api.NewServer(api.ServerConfig{
		Addr:      s.cfg.Runtime.Listen,
		Token:     token,
		Status:    s.tracker,
		Artifacts: s.store,
		Files:     playback.NewServer(s.store.Dir(), apiLogger),
		VideoName: s.cfg.Session.VideoName,
		Probe:     s.probe,
		Sessions:  s.repo,
		Stop:      s.requestStop,
		Logger:    apiLogger,
		StartTime: s.startedAt,
		SessionID: s.id,
		Version:   config.Version,
	})
	if err != nil {
		return nil, err
	}
	if err := srv.Listen(); err != nil {
		return nil, fmt.Errorf("status api: %w", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			apiLogger.Error("HTTP server error", "error", err)
		}
	}()

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║  Status API: http://%-45s ║\n", srv.Addr())
	fmt.Printf("║  Token:      %-52s ║\n", token)
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			apiLogger.Error("failed to shutdown HTTP server", "error", err)
		}
	}, nil
}

func videoRequest(s config.Session, store *artifacts.Store) encoder.Request {
	return encoder.Request{
		Dir:    store.Dir(),
		Output: store.Path(s.VideoName),
		FPS:    s.FPS,
		Width:  s.Width,
	}
}

func generateToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
