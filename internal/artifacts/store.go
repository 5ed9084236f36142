// Package artifacts manages the screenshot files in a session's output
// directory. The directory is the only persistent record of a session: the
// artifact set is whatever screenshot files it holds, in name order.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/eurogig/webtimelapse/internal/naming"
)

// Artifact is one screenshot on disk.
type Artifact struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Sequence int       `json:"sequence"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

// Store reads and writes screenshots in one directory.
type Store struct {
	dir string
}

// Open creates dir if needed and returns a Store rooted there.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid output dir: %w", err)
	}
	return &Store{dir: abs}, nil
}

// OpenExisting returns a Store rooted at dir without creating it. It fails
// when dir is missing or is not a directory.
func OpenExisting(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid output dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output dir %s is not a directory", abs)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path joins name onto the output directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Write stores data under name. The file appears atomically so a listing
// never sees a half-written PNG.
func (s *Store) Write(name string, data []byte) (string, error) {
	if name != filepath.Base(name) {
		return "", fmt.Errorf("artifact name %q must not contain a directory", name)
	}

	tmp, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close screenshot: %w", err)
	}

	dest := s.Path(name)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move screenshot into place: %w", err)
	}
	if err := os.Chmod(dest, 0644); err != nil {
		return dest, fmt.Errorf("failed to set screenshot permissions: %w", err)
	}
	return dest, nil
}

// List returns every screenshot in the directory in chronological order.
// Files that only look like screenshots (matching the glob but not the
// naming scheme) sort after the real ones.
func (s *Store) List() ([]Artifact, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, naming.Glob))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Slice(names, func(i, j int) bool { return naming.Less(names[i], names[j]) })

	out := make([]Artifact, 0, len(names))
	for _, name := range names {
		info, err := os.Stat(s.Path(name))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		a := Artifact{
			Name:     name,
			Path:     s.Path(name),
			Sequence: -1,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		}
		if p, err := naming.Parse(name, time.Local); err == nil {
			a.Sequence = p.Sequence
		}
		out = append(out, a)
	}
	return out, nil
}

// Count returns the number of screenshots present.
func (s *Store) Count() (int, error) {
	list, err := s.List()
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// ErrEmpty is returned by Latest when the directory holds no screenshots.
var ErrEmpty = errors.New("no screenshots in output directory")

// Latest returns the newest screenshot.
func (s *Store) Latest() (Artifact, error) {
	list, err := s.List()
	if err != nil {
		return Artifact{}, err
	}
	if len(list) == 0 {
		return Artifact{}, ErrEmpty
	}
	return list[len(list)-1], nil
}

// Resume describes where numbering continues in a directory that may already
// hold screenshots from earlier runs.
type Resume struct {
	NextSequence int
	Width        int
	Existing     int
}

// Resume scans the directory so a new run numbers its captures after every
// existing one. expectedShots sizes the sequence field for the new run.
func (s *Store) Resume(expectedShots int) (Resume, error) {
	list, err := s.List()
	if err != nil {
		return Resume{}, err
	}

	r := Resume{Width: naming.MinWidth}
	for _, a := range list {
		if a.Sequence < 0 {
			continue
		}
		r.Existing++
		if a.Sequence+1 > r.NextSequence {
			r.NextSequence = a.Sequence + 1
		}
		if p, err := naming.Parse(a.Name, time.Local); err == nil && p.Width > r.Width {
			r.Width = p.Width
		}
	}

	last := r.NextSequence
	if expectedShots > 0 {
		last += expectedShots - 1
	}
	if w := naming.Width(last); w > r.Width {
		r.Width = w
	}
	return r, nil
}
