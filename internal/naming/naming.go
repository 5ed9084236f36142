// Package naming derives screenshot file names. A name embeds a zero-padded
// sequence number followed by the capture time, so byte-wise name order is
// capture order as long as sequence numbers keep increasing across runs.
package naming

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	Prefix    = "screenshot_"
	Extension = ".png"

	// Glob matches every screenshot in a directory.
	Glob = Prefix + "*" + Extension

	// MinWidth is the minimum number of sequence digits.
	MinWidth = 6

	timestampLayout = "20060102-150405"
)

// Name returns the file name for a capture. width is the number of sequence
// digits; values below MinWidth are raised to it.
func Name(seq int, at time.Time, width int) string {
	if width < MinWidth {
		width = MinWidth
	}
	return fmt.Sprintf("%s%0*d_%s%s", Prefix, width, seq, at.Format(timestampLayout), Extension)
}

// Width returns the digit count needed to print maxSeq, never less than MinWidth.
func Width(maxSeq int) int {
	w := len(strconv.Itoa(maxSeq))
	if w < MinWidth {
		return MinWidth
	}
	return w
}

// Parsed is the information recovered from a screenshot name.
type Parsed struct {
	Sequence int
	Width    int
	Time     time.Time
}

// Parse decodes a name produced by Name. Timestamps are interpreted in loc.
func Parse(name string, loc *time.Location) (Parsed, error) {
	if !strings.HasPrefix(name, Prefix) || !strings.HasSuffix(name, Extension) {
		return Parsed{}, fmt.Errorf("naming: %q is not a screenshot name", name)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(name, Prefix), Extension)

	seqPart, tsPart, ok := strings.Cut(body, "_")
	if !ok || len(seqPart) < MinWidth {
		return Parsed{}, fmt.Errorf("naming: %q has no sequence field", name)
	}
	seq, err := strconv.Atoi(seqPart)
	if err != nil || seq < 0 {
		return Parsed{}, fmt.Errorf("naming: %q has a bad sequence field", name)
	}
	if loc == nil {
		loc = time.Local
	}
	ts, err := time.ParseInLocation(timestampLayout, tsPart, loc)
	if err != nil {
		return Parsed{}, fmt.Errorf("naming: %q has a bad timestamp: %w", name, err)
	}
	return Parsed{Sequence: seq, Width: len(seqPart), Time: ts}, nil
}

// Less orders screenshot names by sequence number, then by the remaining
// text. For names of equal width this is plain byte order; comparing the
// number keeps the order right when a later run needed more digits.
func Less(a, b string) bool {
	pa, errA := Parse(a, time.UTC)
	pb, errB := Parse(b, time.UTC)
	switch {
	case errA == nil && errB == nil:
		if pa.Sequence != pb.Sequence {
			return pa.Sequence < pb.Sequence
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
