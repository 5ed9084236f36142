// Package schedule runs the capture loop: one capture per interval slot
// until the shot count or duration is reached, or the run is interrupted.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/eurogig/webtimelapse/internal/artifacts"
	"github.com/eurogig/webtimelapse/internal/capture"
	"github.com/eurogig/webtimelapse/internal/config"
	"github.com/eurogig/webtimelapse/internal/logging"
	"github.com/eurogig/webtimelapse/internal/naming"
)

// captureGrace is added on top of the page-load timeout and load wait to
// bound a single capture.
const captureGrace = 60 * time.Second

// ErrAlreadyRunning is returned when Run is called on a busy Scheduler.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Writer persists one screenshot under name and returns its path.
type Writer interface {
	Write(name string, data []byte) (string, error)
}

// Event is the outcome of one iteration. Err is nil on success.
type Event struct {
	Index    int
	Sequence int
	Time     time.Time
	Name     string
	Path     string
	Bytes    int
	Latency  time.Duration
	Err      error
}

// Observer is told about every iteration, successful or not.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Options wires a Scheduler.
type Options struct {
	Session   config.Session
	Capturer  capture.Capturer
	Writer    Writer
	Resume    artifacts.Resume
	Clock     Clock
	Observers []Observer
	Logger    *slog.Logger
}

// Summary reports how a run went.
type Summary struct {
	Attempted     int           `json:"attempted"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Interrupted   bool          `json:"interrupted"`
	FirstSequence int           `json:"first_sequence"`
	LastSequence  int           `json:"last_sequence"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Scheduler is the capture loop for one session.
type Scheduler struct {
	session   config.Session
	capturer  capture.Capturer
	writer    Writer
	resume    artifacts.Resume
	clock     Clock
	observers []Observer
	logger    *slog.Logger
	running   atomic.Bool
}

// New builds a Scheduler. The session must already be validated.
func New(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Resume.Width == 0 {
		opts.Resume.Width = naming.Width(opts.Resume.NextSequence + opts.Session.ExpectedShots())
	}
	return &Scheduler{
		session:   opts.Session,
		capturer:  opts.Capturer,
		writer:    opts.Writer,
		resume:    opts.Resume,
		clock:     opts.Clock,
		observers: opts.Observers,
		logger:    opts.Logger,
	}
}

// Run captures until the stop condition holds or ctx is cancelled. A capture
// already in progress when ctx is cancelled is allowed to finish; the loop
// then stops without sleeping. Interruption is reported in Summary, not as an
// error.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	if s.running.Swap(true) {
		return Summary{}, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	if s.capturer == nil || s.writer == nil {
		return Summary{}, errors.New("scheduler needs a capturer and a writer")
	}

	sum := Summary{FirstSequence: s.resume.NextSequence, LastSequence: -1}
	start := s.clock.Now()
	mode := s.session.Mode()

	s.logger.Info("capture loop started",
		"url", s.session.URL,
		"mode", mode,
		"interval", s.session.Interval,
		"shots", s.session.Shots,
		"duration", s.session.Duration,
		"first_sequence", sum.FirstSequence,
	)

	for i := 0; ; i++ {
		if ctx.Err() != nil {
			sum.Interrupted = true
			break
		}

		iterStart := s.clock.Now()
		ev := s.iterate(ctx, i, iterStart)
		sum.Attempted++
		if ev.Err != nil {
			sum.Failed++
		} else {
			sum.Succeeded++
			sum.LastSequence = ev.Sequence
		}
		s.notify(ev)

		now := s.clock.Now()
		if s.done(i+1, start, iterStart, now) {
			break
		}
		if err := s.clock.Sleep(ctx, SleepFor(s.session.Interval, now.Sub(iterStart))); err != nil {
			sum.Interrupted = true
			break
		}
	}

	sum.Elapsed = s.clock.Now().Sub(start)
	s.logger.Info("capture loop finished",
		"attempted", sum.Attempted,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"interrupted", sum.Interrupted,
		"elapsed", sum.Elapsed.Round(time.Second),
	)
	return sum, nil
}

func (s *Scheduler) iterate(ctx context.Context, index int, at time.Time) Event {
	seq := s.resume.NextSequence + index
	ev := Event{Index: index, Sequence: seq, Time: at}
	log := logging.WithIteration(s.logger, index, seq, at)

	// Interruption must not cut a capture short, so the capture runs on a
	// context that ignores ctx's cancellation but keeps its own deadline.
	timeout := capture.PageLoadTimeout + s.session.LoadWait + captureGrace
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	img, err := s.capturer.Capture(cctx)
	cancel()
	if err != nil {
		ev.Err = err
		ev.Latency = s.clock.Now().Sub(at)
		log.Error("capture failed", "url", s.session.URL, "error", err)
		return ev
	}

	ev.Name = naming.Name(seq, at, s.resume.Width)
	path, err := s.writer.Write(ev.Name, img)
	ev.Latency = s.clock.Now().Sub(at)
	if err != nil {
		ev.Err = err
		log.Error("failed to save screenshot", "name", ev.Name, "error", err)
		return ev
	}
	ev.Path = path
	ev.Bytes = len(img)
	log.Info("screenshot saved", "name", ev.Name, "bytes", ev.Bytes, "latency", ev.Latency.Round(time.Millisecond))
	return ev
}

// done reports whether the loop should stop after completed iterations. In
// duration mode it stops when the next slot would start at or past the
// deadline; a late capture pushes the next slot to now.
func (s *Scheduler) done(completed int, start, iterStart, now time.Time) bool {
	if s.session.Mode() == config.StopByShots {
		return completed >= s.session.Shots
	}
	next := iterStart.Add(s.session.Interval)
	if now.After(next) {
		next = now
	}
	return next.Sub(start) >= s.session.Duration
}

func (s *Scheduler) notify(ev Event) {
	for _, o := range s.observers {
		o.Observe(ev)
	}
}

// SleepFor returns how long to wait before the next slot. A capture that
// overran the interval gets no sleep and no catch-up.
func SleepFor(interval, elapsed time.Duration) time.Duration {
	if d := interval - elapsed; d > 0 {
		return d
	}
	return 0
}
