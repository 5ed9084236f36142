package playback

import (
	"errors"
	"testing"
)

// A browser <video> element opens with "bytes=0-" and then seeks with open
// ended ranges; an assembled timelapse is a few megabytes.
func TestParseRange_VideoSeeking(t *testing.T) {
	const video = 4 << 20

	tests := []struct {
		name       string
		header     string
		wantRange  string
		wantLength int64
		wantNil    bool
	}{
		{name: "no header plays from the start", header: "", wantNil: true},
		{name: "initial request", header: "bytes=0-", wantRange: "bytes 0-4194303/4194304", wantLength: video},
		{name: "seek to the middle", header: "bytes=2097152-", wantRange: "bytes 2097152-4194303/4194304", wantLength: video / 2},
		{name: "moov atom at the tail", header: "bytes=-65536", wantRange: "bytes 4128768-4194303/4194304", wantLength: 65536},
		{name: "bounded chunk", header: "bytes=1048576-2097151", wantRange: "bytes 1048576-2097151/4194304", wantLength: 1 << 20},
		{name: "chunk past the end is clamped", header: "bytes=4194000-9999999", wantRange: "bytes 4194000-4194303/4194304", wantLength: 304},
		{name: "last byte", header: "bytes=4194303-", wantRange: "bytes 4194303-4194303/4194304", wantLength: 1},
		{name: "only the first of several ranges", header: "bytes=0-1023, 4096-8191", wantRange: "bytes 0-1023/4194304", wantLength: 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseRange(tt.header, video)
			if err != nil {
				t.Fatalf("ParseRange(%q) error = %v", tt.header, err)
			}
			if tt.wantNil {
				if r != nil {
					t.Errorf("ParseRange(%q) = %+v, want nil", tt.header, r)
				}
				return
			}
			if r == nil {
				t.Fatalf("ParseRange(%q) = nil", tt.header)
			}
			if got := r.ContentRange(video); got != tt.wantRange {
				t.Errorf("ContentRange() = %q, want %q", got, tt.wantRange)
			}
			if got := r.ContentLength(); got != tt.wantLength {
				t.Errorf("ContentLength() = %d, want %d", got, tt.wantLength)
			}
		})
	}
}

// Screenshots and thumbnails are small, so suffix ranges often ask for more
// than the file holds.
func TestParseRange_SmallScreenshot(t *testing.T) {
	const png = 300

	r, err := ParseRange("bytes=-1024", png)
	if err != nil {
		t.Fatalf("ParseRange() error = %v", err)
	}
	if r.Start != 0 || r.End != png-1 {
		t.Errorf("oversized suffix = %d-%d, want the whole file", r.Start, r.End)
	}

	r, err = ParseRange("bytes=0-7", png)
	if err != nil {
		t.Fatalf("ParseRange() error = %v", err)
	}
	if r.ContentLength() != 8 || r.ContentRange(png) != "bytes 0-7/300" {
		t.Errorf("signature range = %s (%d bytes)", r.ContentRange(png), r.ContentLength())
	}
}

func TestParseRange_Rejected(t *testing.T) {
	tests := []struct {
		header string
		size   int64
		want   error
	}{
		{"bytes=4194304-", 4 << 20, ErrUnsatisfiable},
		{"bytes=5000000-6000000", 4 << 20, ErrUnsatisfiable},
		{"bytes=900-100", 1000, ErrUnsatisfiable},
		{"bytes=0-", 0, ErrUnsatisfiable},
		{"frames=0-10", 1000, ErrInvalidRange},
		{"0-10", 1000, ErrInvalidRange},
		{"bytes=10", 1000, ErrInvalidRange},
		{"bytes=-0", 1000, ErrInvalidRange},
		{"bytes=x-10", 1000, ErrInvalidRange},
		{"bytes=10-y", 1000, ErrInvalidRange},
	}

	for _, tt := range tests {
		if _, err := ParseRange(tt.header, tt.size); !errors.Is(err, tt.want) {
			t.Errorf("ParseRange(%q, %d) error = %v, want %v", tt.header, tt.size, err, tt.want)
		}
	}
}
