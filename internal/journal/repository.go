package journal

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
	UpdateSessionCounts(ctx context.Context, id string, attempted, succeeded, failed int) error
	FinishSession(ctx context.Context, id, status, videoPath, errorMsg string) error

	RecordCapture(ctx context.Context, c *Capture) error
	ListCaptures(ctx context.Context, sessionID string) ([]*Capture, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sessionColumns = `id, url, out_dir, mode, interval_ms, shots, duration_ms, width, height, full_page, fps, video_name,
	status, attempted, succeeded, failed, video_path, error, started_at, finished_at`

func (r *SQLiteRepository) CreateSession(ctx context.Context, s *Session) error {
	if s.Status == "" {
		s.Status = SessionStatusRunning
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, url, out_dir, mode, interval_ms, shots, duration_ms, width, height, full_page, fps, video_name, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.URL, s.OutDir, s.Mode, s.Interval.Milliseconds(), s.Shots, s.Duration.Milliseconds(),
		s.Width, s.Height, boolToInt(s.FullPage), s.FPS, s.VideoName, s.Status, formatTime(s.StartedAt))
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepository) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SQLiteRepository) UpdateSessionCounts(ctx context.Context, id string, attempted, succeeded, failed int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET attempted = ?, succeeded = ?, failed = ? WHERE id = ?",
		attempted, succeeded, failed, id)
	return err
}

func (r *SQLiteRepository) FinishSession(ctx context.Context, id, status, videoPath, errorMsg string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET status = ?, video_path = ?, error = ?, finished_at = ? WHERE id = ?",
		status, nullString(videoPath), nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) RecordCapture(ctx context.Context, c *Capture) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO captures (session_id, iteration, sequence, captured_at, filename, bytes, latency_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.SessionID, c.Iteration, c.Sequence, formatTime(c.CapturedAt), nullString(c.Filename), c.Bytes,
		c.Latency.Milliseconds(), nullString(c.Error))
	if err != nil {
		return err
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

func (r *SQLiteRepository) ListCaptures(ctx context.Context, sessionID string) ([]*Capture, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, iteration, sequence, captured_at, filename, bytes, latency_ms, error
		FROM captures WHERE session_id = ? ORDER BY iteration
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var captures []*Capture
	for rows.Next() {
		var c Capture
		var capturedAt string
		var filename, errMsg sql.NullString
		var latencyMs int64
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Iteration, &c.Sequence, &capturedAt, &filename, &c.Bytes, &latencyMs, &errMsg); err != nil {
			return nil, err
		}
		c.CapturedAt = parseTime(capturedAt)
		c.Filename = filename.String
		c.Error = errMsg.String
		c.Latency = time.Duration(latencyMs) * time.Millisecond
		captures = append(captures, &c)
	}
	return captures, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var intervalMs, durationMs int64
	var fullPage int
	var videoPath, errMsg, finishedAt sql.NullString
	var startedAt string

	err := row.Scan(&s.ID, &s.URL, &s.OutDir, &s.Mode, &intervalMs, &s.Shots, &durationMs, &s.Width, &s.Height,
		&fullPage, &s.FPS, &s.VideoName, &s.Status, &s.Attempted, &s.Succeeded, &s.Failed,
		&videoPath, &errMsg, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	s.Interval = time.Duration(intervalMs) * time.Millisecond
	s.Duration = time.Duration(durationMs) * time.Millisecond
	s.FullPage = fullPage == 1
	s.VideoPath = videoPath.String
	s.Error = errMsg.String
	s.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		s.FinishedAt = &t
	}
	return &s, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
