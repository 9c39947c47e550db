package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertCommitment persists a new commitment. Status defaults to pending
// when unset.
func (s *Store) InsertCommitment(ctx context.Context, c *Commitment) error {
	if c.Status == "" {
		c.Status = StatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commitments (id, text, type, recipient, deadline, detected_at, completed_at,
			status, source_capture_id, context_json, confidence, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Text, string(c.Type), nullIfEmpty(c.Recipient), optMillis(c.Deadline),
		millis(c.DetectedAt), optMillis(c.CompletedAt), string(c.Status),
		c.SourceCaptureID, nullIfEmpty(c.ContextJSON), c.Confidence, c.Synced,
	)
	if err != nil {
		return fmt.Errorf("failed to insert commitment: %w", err)
	}
	return nil
}

// GetCommitment returns a commitment by id.
func (s *Store) GetCommitment(ctx context.Context, id string) (*Commitment, error) {
	row := s.db.QueryRowContext(ctx, commitmentSelect+` WHERE id = ?`, id)
	c, err := scanCommitment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get commitment: %w", err)
	}
	return c, nil
}

// ListCommitments returns commitments newest-first, optionally filtered by
// status. limit <= 0 means no limit.
func (s *Store) ListCommitments(ctx context.Context, status CommitmentStatus, limit int) ([]*Commitment, error) {
	query := commitmentSelect
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY detected_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list commitments: %w", err)
	}
	defer rows.Close()
	return scanCommitments(rows)
}

// PendingCommitmentsSince returns pending commitments detected at or after
// cutoff, oldest first.
func (s *Store) PendingCommitmentsSince(ctx context.Context, cutoff time.Time) ([]*Commitment, error) {
	rows, err := s.db.QueryContext(ctx,
		commitmentSelect+` WHERE status = ? AND detected_at >= ? ORDER BY detected_at ASC`,
		string(StatusPending), millis(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending commitments: %w", err)
	}
	defer rows.Close()
	return scanCommitments(rows)
}

// PendingCommitmentsOfTypeSince returns pending commitments of one type
// detected at or after cutoff, oldest first.
func (s *Store) PendingCommitmentsOfTypeSince(ctx context.Context, typ CommitmentType, cutoff time.Time) ([]*Commitment, error) {
	rows, err := s.db.QueryContext(ctx,
		commitmentSelect+` WHERE status = ? AND type = ? AND detected_at >= ? ORDER BY detected_at ASC`,
		string(StatusPending), string(typ), millis(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending commitments by type: %w", err)
	}
	defer rows.Close()
	return scanCommitments(rows)
}

// UpdateCommitmentStatus transitions a pending commitment to a terminal
// status. completedAt is recorded for the completed status and ignored
// otherwise. Returns ErrInvalidTransition if the commitment exists but is
// no longer pending, ErrNotFound if it does not exist.
func (s *Store) UpdateCommitmentStatus(ctx context.Context, id string, status CommitmentStatus, completedAt *time.Time) error {
	switch status {
	case StatusCompleted, StatusDismissed, StatusExpired:
	default:
		return fmt.Errorf("%w: cannot transition to %q", ErrInvalidTransition, status)
	}

	var completed any
	if status == StatusCompleted {
		completed = optMillis(completedAt)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE commitments SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		string(status), completed, id, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to update commitment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		// Distinguish missing from already-terminal.
		if _, err := s.GetCommitment(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// ExpirePendingBefore marks all pending commitments detected before cutoff
// as expired and returns how many were updated.
func (s *Store) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE commitments SET status = ?
		WHERE status = ? AND detected_at < ?`,
		string(StatusExpired), string(StatusPending), millis(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire commitments: %w", err)
	}
	return res.RowsAffected()
}

// CountCommitments returns the number of commitments, optionally filtered
// by status.
func (s *Store) CountCommitments(ctx context.Context, status CommitmentStatus) (int64, error) {
	query := `SELECT COUNT(*) FROM commitments`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count commitments: %w", err)
	}
	return n, nil
}

const commitmentSelect = `
	SELECT id, text, type, recipient, deadline, detected_at, completed_at,
		status, source_capture_id, context_json, confidence, synced
	FROM commitments`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommitment(row rowScanner) (*Commitment, error) {
	var (
		c           Commitment
		typ, status string
		recipient   sql.NullString
		deadline    sql.NullInt64
		detectedAt  int64
		completedAt sql.NullInt64
		captureID   sql.NullInt64
		contextJSON sql.NullString
	)
	err := row.Scan(&c.ID, &c.Text, &typ, &recipient, &deadline, &detectedAt,
		&completedAt, &status, &captureID, &contextJSON, &c.Confidence, &c.Synced)
	if err != nil {
		return nil, err
	}
	c.Type = CommitmentType(typ)
	c.Status = CommitmentStatus(status)
	c.Recipient = recipient.String
	c.DetectedAt = fromMillis(detectedAt)
	if deadline.Valid {
		t := fromMillis(deadline.Int64)
		c.Deadline = &t
	}
	if completedAt.Valid {
		t := fromMillis(completedAt.Int64)
		c.CompletedAt = &t
	}
	if captureID.Valid {
		c.SourceCaptureID = &captureID.Int64
	}
	c.ContextJSON = contextJSON.String
	return &c, nil
}

func scanCommitments(rows *sql.Rows) ([]*Commitment, error) {
	var out []*Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commitment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("commitment rows error: %w", err)
	}
	return out, nil
}
