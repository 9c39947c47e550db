package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertCapture persists one screen capture row and returns its id.
// Capture rows are immutable; there is no update path.
func (s *Store) InsertCapture(ctx context.Context, c *ScreenCapture) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO screen_captures (timestamp, app_name, window_title, text_content, analysis_json, image_hash)
		VALUES (?, ?, ?, ?, ?, ?)`,
		millis(c.Timestamp), c.AppName, c.WindowTitle,
		nullIfEmpty(c.TextContent), nullIfEmpty(c.AnalysisJSON), c.ImageHash,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert capture: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get capture id: %w", err)
	}
	c.ID = id
	return id, nil
}

// CountCaptures returns the total number of persisted captures.
func (s *Store) CountCaptures(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM screen_captures`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count captures: %w", err)
	}
	return n, nil
}

// LastCaptureTime returns the timestamp of the most recent capture, or the
// zero time if none exist.
func (s *Store) LastCaptureTime(ctx context.Context) (time.Time, error) {
	var ms sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM screen_captures`).Scan(&ms)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last capture time: %w", err)
	}
	if !ms.Valid {
		return time.Time{}, nil
	}
	return fromMillis(ms.Int64), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
