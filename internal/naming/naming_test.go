package naming

import (
	"sort"
	"testing"
	"time"
)

func TestName_Format(t *testing.T) {
	at := time.Date(2026, 10, 15, 9, 5, 7, 0, time.UTC)

	got := Name(42, at, 6)
	want := "screenshot_000042_20261015-090507.png"
	if got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}

	if got := Name(42, at, 2); got != want {
		t.Errorf("narrow width should be raised to %d digits, got %q", MinWidth, got)
	}

	if got := Name(42, at, 8); got != "screenshot_00000042_20261015-090507.png" {
		t.Errorf("Name() with width 8 = %q", got)
	}
}

func TestWidth(t *testing.T) {
	tests := []struct {
		maxSeq int
		want   int
	}{
		{0, 6},
		{999999, 6},
		{1000000, 7},
		{123456789, 9},
	}
	for _, tt := range tests {
		if got := Width(tt.maxSeq); got != tt.want {
			t.Errorf("Width(%d) = %d, want %d", tt.maxSeq, got, tt.want)
		}
	}
}

func TestName_StrictlyIncreasingWithinRun(t *testing.T) {
	start := time.Date(2026, 1, 1, 23, 59, 58, 0, time.UTC)
	var prev string
	for i := 0; i < 50; i++ {
		// Captures less than a second apart share a timestamp; the sequence
		// number must still order them.
		at := start.Add(time.Duration(i) * 500 * time.Millisecond)
		name := Name(i, at, Width(49))
		if prev != "" && !(prev < name) {
			t.Fatalf("name(%d)=%q is not greater than previous %q", i, name, prev)
		}
		prev = name
	}
}

func TestName_IncreasingAcrossRuns(t *testing.T) {
	// The second run resumes after the highest sequence of the first run.
	run1 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	run2 := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

	var names []string
	for i := 0; i < 3; i++ {
		names = append(names, Name(i, run1.Add(time.Duration(i)*time.Minute), 6))
	}
	for i := 3; i < 6; i++ {
		names = append(names, Name(i, run2.Add(time.Duration(i)*time.Minute), 6))
	}

	for i := 1; i < len(names); i++ {
		if !(names[i-1] < names[i]) {
			t.Errorf("%q should sort before %q", names[i-1], names[i])
		}
	}
}

func TestParse_RoundTrip(t *testing.T) {
	at := time.Date(2026, 10, 15, 9, 5, 7, 0, time.UTC)
	p, err := Parse(Name(1234, at, 7), time.UTC)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Sequence != 1234 || p.Width != 7 || !p.Time.Equal(at) {
		t.Errorf("Parse() = %+v", p)
	}
}

func TestParse_Rejects(t *testing.T) {
	bad := []string{
		"timelapse.mp4",
		"screenshot_.png",
		"screenshot_12_20261015-090507.png",
		"screenshot_abcdef_20261015-090507.png",
		"screenshot_000001_yesterday.png",
		"temp_000001.png",
	}
	for _, name := range bad {
		if _, err := Parse(name, time.UTC); err == nil {
			t.Errorf("Parse(%q) should fail", name)
		}
	}
}

func TestLess_HandlesWidthGrowth(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	names := []string{
		Name(1000000, at.Add(2*time.Hour), 7),
		Name(999999, at.Add(time.Hour), 6),
		Name(5, at, 6),
	}
	sort.Slice(names, func(i, j int) bool { return Less(names[i], names[j]) })

	if names[0] != Name(5, at, 6) || names[2] != Name(1000000, at.Add(2*time.Hour), 7) {
		t.Errorf("unexpected order: %v", names)
	}
}
