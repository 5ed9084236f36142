// Package encoder assembles the screenshot sequence of an output directory
// into a video by running ffmpeg as a subprocess.
package encoder

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEncoderUnavailable means no ffmpeg binary could be found. Video
	// assembly is skipped; the screenshots are unaffected.
	ErrEncoderUnavailable = errors.New("ffmpeg not available")

	// ErrNoFrames means the directory holds no usable screenshots.
	ErrNoFrames = errors.New("no screenshots to assemble")
)

// RunResult captures the outcome of one ffmpeg invocation.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	StderrTail string        `json:"stderr_tail,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true if the command exited with code 0.
func (r RunResult) IsSuccess() bool {
	return r.ExitCode == 0
}

// EncoderError is a failed ffmpeg run.
type EncoderError struct {
	ExitCode   int
	StderrTail string
}

func (e *EncoderError) Error() string {
	return fmt.Sprintf("ffmpeg exited %d: %s", e.ExitCode, truncate(e.StderrTail, 512))
}

// Capabilities describes the ffmpeg found on this host.
type Capabilities struct {
	Path      string    `json:"path,omitempty"`
	Version   string    `json:"version,omitempty"`
	Available bool      `json:"available"`
	ProbedAt  time.Time `json:"probed_at"`
}

// Request asks for one video.
type Request struct {
	// Dir is the output directory holding the screenshots.
	Dir string
	// Output is the video path; any existing file is replaced.
	Output string
	FPS    int
	// Width is the video width. Zero uses the widest frame.
	Width int
}

// FrameListName is the ffconcat list left in the output directory when
// ffmpeg is missing, for use with ManualCommand.
const FrameListName = "frames.ffconcat"

// Result describes a produced video.
type Result struct {
	Video     string    `json:"video"`
	Frames    int       `json:"frames"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FrameList string    `json:"frame_list,omitempty"` // set only when ffmpeg is missing
	Run       RunResult `json:"run"`
}
