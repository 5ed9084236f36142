package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/eurogig/webtimelapse/internal/config"
	"github.com/eurogig/webtimelapse/internal/db"
	"github.com/eurogig/webtimelapse/internal/logging"
	"github.com/eurogig/webtimelapse/internal/schedule"
)

func setupTestDB(t *testing.T) (*db.DB, *SQLiteRepository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	return database, NewRepository(database.Conn())
}

func testSession() config.Session {
	s := config.Defaults()
	s.URL = "https://example.com/status"
	s.OutDir = "/tmp/captures"
	s.Shots = 5
	s.Interval = 30 * time.Second
	return s
}

func TestRepository_SessionLifecycle(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	started := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	s := &Session{
		ID:        NewID(),
		URL:       "https://example.com",
		OutDir:    "/tmp/c",
		Mode:      "duration",
		Interval:  4 * time.Second,
		Duration:  10 * time.Second,
		Width:     1280,
		Height:    800,
		FullPage:  true,
		FPS:       12,
		VideoName: "timelapse.mp4",
		StartedAt: started,
	}
	if err := repo.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	got, err := repo.GetSession(ctx, s.ID)
	if err != nil || got == nil {
		t.Fatalf("GetSession() = %v, %v", got, err)
	}
	if got.Status != SessionStatusRunning || !got.FullPage || got.Duration != 10*time.Second || !got.StartedAt.Equal(started) {
		t.Errorf("GetSession() = %+v", got)
	}
	if got.FinishedAt != nil {
		t.Error("running session should have no finish time")
	}

	if err := repo.UpdateSessionCounts(ctx, s.ID, 3, 2, 1); err != nil {
		t.Fatalf("UpdateSessionCounts() error = %v", err)
	}
	if err := repo.FinishSession(ctx, s.ID, SessionStatusCompleted, "/tmp/c/timelapse.mp4", ""); err != nil {
		t.Fatalf("FinishSession() error = %v", err)
	}

	got, _ = repo.GetSession(ctx, s.ID)
	if got.Status != SessionStatusCompleted || got.Attempted != 3 || got.Failed != 1 || got.VideoPath == "" || got.FinishedAt == nil {
		t.Errorf("finished session = %+v", got)
	}
}

func TestRepository_GetSession_NotFound(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	got, err := repo.GetSession(context.Background(), "missing")
	if err != nil || got != nil {
		t.Errorf("GetSession() = %v, %v; want nil, nil", got, err)
	}
}

func TestRepository_Captures(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	s := &Session{ID: NewID(), URL: "u", OutDir: "o", Mode: "shots", Interval: time.Second, Shots: 2,
		Width: 1, Height: 1, FPS: 1, VideoName: "v.mp4", StartedAt: time.Now()}
	if err := repo.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	caps := []*Capture{
		{SessionID: s.ID, Iteration: 1, Sequence: 1, CapturedAt: time.Now(), Error: "navigation failed"},
		{SessionID: s.ID, Iteration: 0, Sequence: 0, CapturedAt: time.Now(), Filename: "screenshot_000000_x.png", Bytes: 10, Latency: 1500 * time.Millisecond},
	}
	for _, c := range caps {
		if err := repo.RecordCapture(ctx, c); err != nil {
			t.Fatalf("RecordCapture() error = %v", err)
		}
		if c.ID == 0 {
			t.Error("RecordCapture() did not set the ID")
		}
	}

	list, err := repo.ListCaptures(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListCaptures() error = %v", err)
	}
	if len(list) != 2 || list[0].Iteration != 0 || list[1].Iteration != 1 {
		t.Fatalf("ListCaptures() = %+v", list)
	}
	if !list[0].OK() || list[1].OK() {
		t.Error("OK() does not reflect the error column")
	}
	if list[0].Latency != 1500*time.Millisecond {
		t.Errorf("Latency = %v", list[0].Latency)
	}
}

func TestRepository_Config(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	if v, err := repo.GetConfig(ctx, "k"); err != nil || v != "" {
		t.Errorf("GetConfig() on missing key = %q, %v", v, err)
	}
	repo.SetConfig(ctx, "k", "one")
	repo.SetConfig(ctx, "k", "two")
	if v, _ := repo.GetConfig(ctx, "k"); v != "two" {
		t.Errorf("GetConfig() = %q, want two", v)
	}
}

func TestRecorder(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	id := NewID()
	rec := NewRecorder(repo, id, logging.Discard())
	rec.Start(testSession(), time.Now())

	var obs schedule.Observer = rec
	obs.Observe(schedule.Event{Index: 0, Sequence: 4, Time: time.Now(), Name: "screenshot_000004_20260101-000000.png", Bytes: 3})
	obs.Observe(schedule.Event{Index: 1, Sequence: 5, Time: time.Now(), Err: errors.New("capture failed: target closed")})
	rec.Finish(SessionStatusInterrupted, "/tmp/captures/timelapse.mp4", "")

	s, err := repo.GetSession(ctx, id)
	if err != nil || s == nil {
		t.Fatalf("GetSession() = %v, %v", s, err)
	}
	if s.Status != SessionStatusInterrupted || s.Attempted != 2 || s.Succeeded != 1 || s.Failed != 1 {
		t.Errorf("session = %+v", s)
	}
	if s.Mode != "shots" || s.Shots != 5 {
		t.Errorf("session config not recorded: %+v", s)
	}

	list, _ := repo.ListCaptures(ctx, id)
	if len(list) != 2 || list[1].Error == "" {
		t.Errorf("captures = %+v", list)
	}

	if v, _ := repo.GetConfig(ctx, ConfigKeyLastVideo); v != "/tmp/captures/timelapse.mp4" {
		t.Errorf("last video = %q", v)
	}
}

func TestListSessions(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := NewRecorder(repo, NewID(), logging.Discard())
		rec.Start(testSession(), base.Add(time.Duration(i)*time.Hour))
	}

	list, err := repo.ListSessions(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(list) != 2 || !list[0].StartedAt.After(list[1].StartedAt) {
		t.Errorf("ListSessions() = %+v, want newest two first", list)
	}
}
