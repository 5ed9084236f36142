package encoder

import (
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/eurogig/webtimelapse/internal/artifacts"
)

// MaxVideoHeight caps the padded frame height. Taller full-page frames are
// scaled down to fit.
const MaxVideoHeight = 4096

type frame struct {
	path          string
	width, height int
}

// collectFrames lists the screenshots in dir in order and reads each one's
// dimensions. Files that are not decodable PNGs are skipped.
func collectFrames(dir string, logger *slog.Logger) ([]frame, error) {
	store, err := artifacts.OpenExisting(dir)
	if err != nil {
		return nil, err
	}
	list, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list screenshots: %w", err)
	}

	frames := make([]frame, 0, len(list))
	for _, a := range list {
		w, h, err := pngSize(a.Path)
		if err != nil {
			logger.Warn("skipping unreadable screenshot", "name", a.Name, "error", err)
			continue
		}
		frames = append(frames, frame{path: a.Path, width: w, height: h})
	}
	return frames, nil
}

func pngSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("empty image %dx%d", cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}

// videoSize picks the output dimensions: frames are scaled to width and the
// tallest scaled frame sets the height. Both are even, as yuv420p requires.
func videoSize(frames []frame, width int) (int, int) {
	if width <= 0 {
		for _, f := range frames {
			if f.width > width {
				width = f.width
			}
		}
	}
	w := even(width)

	h := 0
	for _, f := range frames {
		sh := (f.height*w + f.width - 1) / f.width
		if sh > h {
			h = sh
		}
	}
	h = even(h)
	if h > MaxVideoHeight {
		h = MaxVideoHeight
	}
	return w, h
}

func even(n int) int {
	if n < 2 {
		return 2
	}
	return (n + 1) / 2 * 2
}

// concatList renders an ffconcat script that shows each frame for 1/fps.
// The last entry is repeated so its duration is honoured.
func concatList(frames []frame, fps int) string {
	var b strings.Builder
	d := strconv.FormatFloat(1/float64(fps), 'f', 6, 64)
	b.WriteString("ffconcat version 1.0\n")
	for _, f := range frames {
		fmt.Fprintf(&b, "file %s\nduration %s\n", quote(f.path), d)
	}
	if len(frames) > 0 {
		fmt.Fprintf(&b, "file %s\n", quote(frames[len(frames)-1].path))
	}
	return b.String()
}

func quote(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

// filterGraph scales every frame into a w×h box and pads it onto black.
func filterGraph(w, h int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:0:black,setsar=1", w, h, w, h)
}
