package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/glimpsed/internal/followup"
	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

// Status is a snapshot of pipeline state for the status endpoint.
type Status struct {
	Running             bool       `json:"running"`
	SemanticEnabled     bool       `json:"semantic_enabled"`
	OCREnabled          bool       `json:"ocr_enabled"`
	FollowUpEnabled     bool       `json:"follow_up_enabled"`
	LastCaptureAt       *time.Time `json:"last_capture_at,omitempty"`
	CapturesTotal       int64      `json:"captures_total"`
	CommitmentsDetected int64      `json:"commitments_detected"`
	ActionsCompleted    int64      `json:"actions_completed"`
	PendingCommitments  int64      `json:"pending_commitments"`
}

// Status reports pipeline counters and feature-flag state.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	pending, err := o.store.CountCommitments(ctx, store.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending commitments: %w", err)
	}

	s := &Status{
		Running:             o.isRunning(),
		SemanticEnabled:     o.analyze.SemanticEnabled(),
		OCREnabled:          o.cfg.OCREnabled,
		FollowUpEnabled:     o.cfg.FollowUpEnabled,
		CapturesTotal:       o.capturesTotal.Load(),
		CommitmentsDetected: o.commitmentsTotal.Load(),
		ActionsCompleted:    o.actionsTotal.Load(),
		PendingCommitments:  pending,
	}
	if ms := o.lastCaptureMilli.Load(); ms > 0 {
		t := time.UnixMilli(ms)
		s.LastCaptureAt = &t
	} else {
		// Nothing captured this run; report the stored watermark so the
		// status survives restarts.
		last, err := o.store.LastCaptureTime(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read last capture time: %w", err)
		}
		if !last.IsZero() {
			s.LastCaptureAt = &last
		}
	}
	return s, nil
}

// Commitments lists stored commitments, newest first. Empty status means
// all statuses.
func (o *Orchestrator) Commitments(ctx context.Context, status store.CommitmentStatus, limit int) ([]*store.Commitment, error) {
	return o.store.ListCommitments(ctx, status, limit)
}

// RecentActionItems lists the most recently detected action items.
func (o *Orchestrator) RecentActionItems(ctx context.Context, limit int) ([]*store.ActionItem, error) {
	return o.store.RecentActionItems(ctx, limit)
}

// PendingFollowUps returns the follow-ups from the most recent scan.
func (o *Orchestrator) PendingFollowUps() []followup.PendingFollowUp {
	o.followUpMu.Lock()
	defer o.followUpMu.Unlock()
	out := make([]followup.PendingFollowUp, len(o.lastFollowUps))
	copy(out, o.lastFollowUps)
	return out
}

// CompleteCommitment marks a commitment completed on the user's behalf.
func (o *Orchestrator) CompleteCommitment(ctx context.Context, id string) error {
	now := time.Now()
	return o.store.UpdateCommitmentStatus(ctx, id, store.StatusCompleted, &now)
}

// DismissCommitment marks a commitment dismissed.
func (o *Orchestrator) DismissCommitment(ctx context.Context, id string) error {
	return o.store.UpdateCommitmentStatus(ctx, id, store.StatusDismissed, nil)
}

// CompleteActionItem marks an action item done. Action items have no
// automatic matching; completion is always manual.
func (o *Orchestrator) CompleteActionItem(ctx context.Context, id string) error {
	return o.store.CompleteActionItem(ctx, id, time.Now())
}

// ContextSummary builds a short human-readable digest of current state.
func (o *Orchestrator) ContextSummary(ctx context.Context) (string, error) {
	var b strings.Builder

	status, err := o.Status(ctx)
	if err != nil {
		return "", err
	}
	if status.LastCaptureAt != nil {
		fmt.Fprintf(&b, "Last observation: %s\n", status.LastCaptureAt.Format(time.RFC3339))
	} else {
		b.WriteString("No observations yet.\n")
	}

	pending, err := o.store.ListCommitments(ctx, store.StatusPending, 5)
	if err != nil {
		return "", fmt.Errorf("failed to list pending commitments: %w", err)
	}
	if len(pending) == 0 {
		b.WriteString("No pending commitments.\n")
	} else {
		fmt.Fprintf(&b, "Pending commitments (%d):\n", status.PendingCommitments)
		for _, c := range pending {
			fmt.Fprintf(&b, "  - [%s] %s", c.Type, c.Text)
			if c.Deadline != nil {
				fmt.Fprintf(&b, " (due %s)", c.Deadline.Format("Jan 2 15:04"))
			}
			b.WriteString("\n")
		}
	}

	items, err := o.store.RecentActionItems(ctx, 5)
	if err != nil {
		return "", fmt.Errorf("failed to list action items: %w", err)
	}
	if len(items) > 0 {
		b.WriteString("Recent action items:\n")
		for _, item := range items {
			fmt.Fprintf(&b, "  - [%s] %s\n", item.Priority, item.Text)
		}
	}

	if f := o.PendingFollowUps(); len(f) > 0 {
		b.WriteString("Needs follow-up:\n")
		for _, p := range f {
			fmt.Fprintf(&b, "  - (%s) %s\n", p.Urgency, p.SuggestedAction)
		}
	}

	creations, err := o.store.RecentCalendarCreations(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		return "", fmt.Errorf("failed to list calendar creations: %w", err)
	}
	if len(creations) > 0 {
		b.WriteString("Recently created events:\n")
		for _, c := range creations {
			fmt.Fprintf(&b, "  - %s", c.EventTitle)
			if c.EventTime != "" {
				fmt.Fprintf(&b, " (%s)", c.EventTime)
			}
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}
