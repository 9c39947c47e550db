package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertActionItem persists a new action item. Status defaults to pending.
func (s *Store) InsertActionItem(ctx context.Context, a *ActionItem) error {
	if a.Status == "" {
		a.Status = "pending"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_items (id, text, priority, source, detected_at, completed_at,
			status, source_capture_id, context_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Text, string(a.Priority), a.Source, millis(a.DetectedAt),
		optMillis(a.CompletedAt), a.Status, a.SourceCaptureID, nullIfEmpty(a.ContextJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert action item: %w", err)
	}
	return nil
}

// RecentActionItems returns action items newest-first. limit <= 0 means
// no limit.
func (s *Store) RecentActionItems(ctx context.Context, limit int) ([]*ActionItem, error) {
	query := `
		SELECT id, text, priority, source, detected_at, completed_at, status,
			source_capture_id, context_json
		FROM action_items ORDER BY detected_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query action items: %w", err)
	}
	defer rows.Close()

	var out []*ActionItem
	for rows.Next() {
		var (
			a           ActionItem
			priority    string
			completedAt sql.NullInt64
			detectedAt  int64
			captureID   sql.NullInt64
			contextJSON sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Text, &priority, &a.Source, &detectedAt,
			&completedAt, &a.Status, &captureID, &contextJSON); err != nil {
			return nil, fmt.Errorf("failed to scan action item: %w", err)
		}
		a.Priority = Priority(priority)
		a.DetectedAt = fromMillis(detectedAt)
		if completedAt.Valid {
			t := fromMillis(completedAt.Int64)
			a.CompletedAt = &t
		}
		if captureID.Valid {
			a.SourceCaptureID = &captureID.Int64
		}
		a.ContextJSON = contextJSON.String
		item := a
		out = append(out, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("action item rows error: %w", err)
	}
	return out, nil
}

// CompleteActionItem marks a pending action item completed. Manual
// completion is the only path; there is no automatic matching for action
// items.
func (s *Store) CompleteActionItem(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE action_items SET status = 'completed', completed_at = ?
		WHERE id = ? AND status = 'pending'`,
		millis(at), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete action item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM action_items WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check action item: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}
