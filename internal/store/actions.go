package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertCompletedAction records that a commitment was satisfied. Only the
// follow-up matcher creates these rows.
func (s *Store) InsertCompletedAction(ctx context.Context, a *CompletedAction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO completed_actions (action_type, details_json, timestamp, app_name, matched_commitment_id)
		VALUES (?, ?, ?, ?, ?)`,
		a.ActionType, nullIfEmpty(a.DetailsJSON), millis(a.Timestamp),
		nullIfEmpty(a.AppName), nullIfEmpty(a.MatchedCommitmentID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert completed action: %w", err)
	}
	return nil
}

// HasCompletedActionAfter reports whether any completed-action row exists
// strictly after t.
func (s *Store) HasCompletedActionAfter(ctx context.Context, t time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM completed_actions WHERE timestamp > ?)`,
		millis(t)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query completed actions: %w", err)
	}
	return exists, nil
}

// CountCompletedActions returns the total number of completed-action rows.
func (s *Store) CountCompletedActions(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM completed_actions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count completed actions: %w", err)
	}
	return n, nil
}

// CompletedActionsForCommitment returns completed-action rows referencing
// the given commitment, newest first.
func (s *Store) CompletedActionsForCommitment(ctx context.Context, commitmentID string) ([]*CompletedAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action_type, details_json, timestamp, app_name, matched_commitment_id
		FROM completed_actions
		WHERE matched_commitment_id = ?
		ORDER BY timestamp DESC`,
		commitmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed actions: %w", err)
	}
	defer rows.Close()

	var out []*CompletedAction
	for rows.Next() {
		var (
			a                           CompletedAction
			ts                          int64
			details, appName, matchedID sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.ActionType, &details, &ts, &appName, &matchedID); err != nil {
			return nil, fmt.Errorf("failed to scan completed action: %w", err)
		}
		a.Timestamp = fromMillis(ts)
		a.DetailsJSON = details.String
		a.AppName = appName.String
		a.MatchedCommitmentID = matchedID.String
		row := a
		out = append(out, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("completed action rows error: %w", err)
	}
	return out, nil
}
