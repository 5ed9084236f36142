package playback

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// MaxThumbnailWidth bounds the width a client may ask for.
const MaxThumbnailWidth = 1024

// Thumbnail scales the PNG at path down to at most maxWidth pixels wide,
// keeping the aspect ratio, and returns it PNG-encoded. Images already
// narrower than maxWidth are returned unscaled.
func Thumbnail(path string, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 || maxWidth > MaxThumbnailWidth {
		maxWidth = MaxThumbnailWidth
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open screenshot: %w", err)
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxWidth {
		h = max(h*maxWidth/w, 1)
		w = maxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
