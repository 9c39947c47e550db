package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertEmailContext persists one email observation row.
func (s *Store) InsertEmailContext(ctx context.Context, e *EmailContext) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_contexts (timestamp, app_name, action, recipient, subject,
			body_preview, has_attachment, source_capture_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		millis(e.Timestamp), e.AppName, e.Action, nullIfEmpty(e.Recipient),
		nullIfEmpty(e.Subject), nullIfEmpty(e.BodyPreview), e.HasAttachment, e.SourceCaptureID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert email context: %w", err)
	}
	return nil
}

// InsertCalendarContext persists one calendar observation row.
func (s *Store) InsertCalendarContext(ctx context.Context, c *CalendarContext) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendar_contexts (timestamp, app_name, action, event_title,
			event_time, participants_json, source_capture_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		millis(c.Timestamp), c.AppName, c.Action, nullIfEmpty(c.EventTitle),
		nullIfEmpty(c.EventTime), nullIfEmpty(c.ParticipantsJSON), c.SourceCaptureID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert calendar context: %w", err)
	}
	return nil
}

// HasEmailActivityAfter reports whether any email observation with one of
// the given actions exists strictly after t.
func (s *Store) HasEmailActivityAfter(ctx context.Context, t time.Time, actions ...string) (bool, error) {
	if len(actions) == 0 {
		actions = []string{"composing", "sending", "sent"}
	}
	query := `SELECT EXISTS(SELECT 1 FROM email_contexts WHERE timestamp > ? AND action IN (` +
		placeholders(len(actions)) + `))`
	args := make([]any, 0, len(actions)+1)
	args = append(args, millis(t))
	for _, a := range actions {
		args = append(args, a)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query email activity: %w", err)
	}
	return exists, nil
}

// HasCalendarCreationAfter reports whether any calendar-creation
// observation exists strictly after t.
func (s *Store) HasCalendarCreationAfter(ctx context.Context, t time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM calendar_contexts WHERE timestamp > ? AND action = 'creating')`,
		millis(t)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query calendar activity: %w", err)
	}
	return exists, nil
}

// RecentCalendarCreations returns calendar-creation observations at or
// after cutoff, newest first.
func (s *Store) RecentCalendarCreations(ctx context.Context, cutoff time.Time) ([]*CalendarContext, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, app_name, action, event_title, event_time,
			participants_json, source_capture_id
		FROM calendar_contexts
		WHERE action = 'creating' AND timestamp >= ?
		ORDER BY timestamp DESC`,
		millis(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar creations: %w", err)
	}
	defer rows.Close()

	var out []*CalendarContext
	for rows.Next() {
		var (
			c            CalendarContext
			ts           int64
			title, etime sql.NullString
			parts        sql.NullString
			captureID    sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &ts, &c.AppName, &c.Action, &title, &etime, &parts, &captureID); err != nil {
			return nil, fmt.Errorf("failed to scan calendar context: %w", err)
		}
		c.Timestamp = fromMillis(ts)
		c.EventTitle = title.String
		c.EventTime = etime.String
		c.ParticipantsJSON = parts.String
		if captureID.Valid {
			c.SourceCaptureID = &captureID.Int64
		}
		row := c
		out = append(out, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calendar context rows error: %w", err)
	}
	return out, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}
