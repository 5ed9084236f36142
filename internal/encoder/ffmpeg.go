package encoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/eurogig/webtimelapse/internal/logging"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

	defaultAssembleTimeout = 30 * time.Minute
	defaultProbeTimeout    = 10 * time.Second
)

// Config holds the encoder's configuration.
type Config struct {
	Binary          string        // ffmpeg path or name; empty = "ffmpeg" on PATH
	AssembleTimeout time.Duration // bound on one encode
	ProbeTimeout    time.Duration // bound on `ffmpeg -version`
	Logger          *slog.Logger
	DebugPaths      bool // if true, log full file paths; otherwise sanitise
}

// DefaultConfig returns production defaults.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		AssembleTimeout: defaultAssembleTimeout,
		ProbeTimeout:    defaultProbeTimeout,
		Logger:          logger,
	}
}

// FFmpeg runs ffmpeg to build videos. The binary is resolved on every call,
// so installing ffmpeg mid-session is picked up.
type FFmpeg struct {
	cfg Config
}

// NewFFmpeg creates an encoder. It never fails: a missing binary only
// surfaces as ErrEncoderUnavailable when the encoder is used.
func NewFFmpeg(cfg Config) *FFmpeg {
	if cfg.AssembleTimeout <= 0 {
		cfg.AssembleTimeout = defaultAssembleTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FFmpeg{cfg: cfg}
}

// Probe reports whether ffmpeg is usable and which version it is.
func (f *FFmpeg) Probe(ctx context.Context) (*Capabilities, error) {
	caps := &Capabilities{ProbedAt: time.Now()}

	bin, err := resolveFFmpeg(f.cfg.Binary)
	if err != nil {
		return caps, err
	}
	caps.Path = bin

	ctx, cancel := context.WithTimeout(ctx, f.cfg.ProbeTimeout)
	defer cancel()

	var stdout bytes.Buffer
	res := f.exec(ctx, bin, &stdout, "-hide_banner", "-version")
	if !res.IsSuccess() {
		return caps, fmt.Errorf("%w: %s -version: %v", ErrEncoderUnavailable, bin, &EncoderError{ExitCode: res.ExitCode, StderrTail: res.StderrTail})
	}

	caps.Available = true
	caps.Version = parseVersion(stdout.String())
	f.cfg.Logger.Info("ffmpeg probe complete", "path", f.safePath(bin), "version", caps.Version)
	return caps, nil
}

// Assemble encodes every screenshot in req.Dir, in name order, into
// req.Output at req.FPS. The video is written under a temporary name and
// renamed into place, so a failed encode leaves any previous video intact
// and a rerun overwrites rather than duplicates.
func (f *FFmpeg) Assemble(ctx context.Context, req Request) (Result, error) {
	if req.FPS <= 0 {
		return Result{}, fmt.Errorf("fps must be positive, got %d", req.FPS)
	}
	log := f.cfg.Logger

	frames, err := collectFrames(req.Dir, log)
	if err != nil {
		return Result{}, err
	}
	if len(frames) == 0 {
		return Result{}, ErrNoFrames
	}

	w, h := videoSize(frames, req.Width)
	res := Result{Video: req.Output, Frames: len(frames), Width: w, Height: h}
	manualList := filepath.Join(req.Dir, FrameListName)

	bin, err := resolveFFmpeg(f.cfg.Binary)
	if err != nil {
		if werr := os.WriteFile(manualList, []byte(concatList(frames, req.FPS)), 0644); werr != nil {
			log.Warn("failed to write frame list", "error", werr)
		} else {
			res.FrameList = manualList
		}
		return res, err
	}

	list, err := os.CreateTemp("", "webtimelapse-*.ffconcat")
	if err != nil {
		return res, fmt.Errorf("failed to create frame list: %w", err)
	}
	defer os.Remove(list.Name())
	if _, err := io.WriteString(list, concatList(frames, req.FPS)); err != nil {
		list.Close()
		return res, fmt.Errorf("failed to write frame list: %w", err)
	}
	if err := list.Close(); err != nil {
		return res, fmt.Errorf("failed to write frame list: %w", err)
	}

	// The temp name keeps the extension so ffmpeg still infers the container.
	partial := filepath.Join(filepath.Dir(req.Output), ".partial-"+filepath.Base(req.Output))
	defer os.Remove(partial)

	ctx, cancel := context.WithTimeout(ctx, f.cfg.AssembleTimeout)
	defer cancel()

	log.Info("assembling video",
		"frames", len(frames),
		"fps", req.FPS,
		"size", fmt.Sprintf("%dx%d", w, h),
		"output", f.safePath(req.Output),
	)
	res.Run = f.exec(ctx, bin, io.Discard, buildArgs(list.Name(), partial, req.FPS, w, h)...)
	if !res.Run.IsSuccess() {
		if ctx.Err() != nil {
			return res, fmt.Errorf("ffmpeg aborted: %w", ctx.Err())
		}
		return res, &EncoderError{ExitCode: res.Run.ExitCode, StderrTail: res.Run.StderrTail}
	}

	if err := os.Rename(partial, req.Output); err != nil {
		return res, fmt.Errorf("failed to move video into place: %w", err)
	}
	os.Remove(manualList)
	log.Info("video saved", "path", f.safePath(req.Output), "duration_ms", res.Run.Duration.Milliseconds())
	return res, nil
}

func buildArgs(listPath, output string, fps, w, h int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-vf", filterGraph(w, h),
		"-r", strconv.Itoa(fps),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		output,
	}
}

// ManualCommand is the ffmpeg command a user can run by hand once ffmpeg is
// installed. It reads the frame list Assemble left behind, which keeps
// screenshots in sequence order even where a shell glob would not. It is
// empty when no frame list was written.
func ManualCommand(res Result, fps int) string {
	if res.FrameList == "" {
		return ""
	}
	return fmt.Sprintf(
		`ffmpeg -f concat -safe 0 -i "%s" -vf "%s" -r %d -c:v libx264 -pix_fmt yuv420p -movflags +faststart "%s"`,
		res.FrameList, filterGraph(res.Width, res.Height), fps, res.Video,
	)
}

// exec is the core subprocess execution helper.
func (f *FFmpeg) exec(ctx context.Context, bin string, stdout io.Writer, args ...string) RunResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = stdout

	f.cfg.Logger.Debug("executing ffmpeg", "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	stderrTail := stderrBuf.String()
	if exitCode != 0 && stderrTail == "" && err != nil {
		stderrTail = err.Error()
	}

	if exitCode != 0 {
		f.cfg.Logger.Warn("ffmpeg command failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func (f *FFmpeg) safePath(path string) string {
	if f.cfg.DebugPaths {
		return path
	}
	return logging.SanitizePath(path)
}

// resolveFFmpeg finds the ffmpeg binary.
func resolveFFmpeg(preferred string) (string, error) {
	name := preferred
	if name == "" {
		name = "ffmpeg"
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q not found", ErrEncoderUnavailable, name)
	}
	return p, nil
}

// parseVersion pulls "6.1.1" out of "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(out string) string {
	sc := bufio.NewScanner(strings.NewReader(out))
	if !sc.Scan() {
		return ""
	}
	fields := strings.Fields(sc.Text())
	for i, fld := range fields {
		if fld == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
