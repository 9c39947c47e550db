// Package followup cross-references pending commitments against observed
// activity. A periodic scan checks whether activity of the right kind
// happened after each commitment was made (content-agnostic); calendar
// event creation additionally triggers an eager, content-aware match
// against the event title.
package followup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

// Matching windows and urgency thresholds.
const (
	// lookbackWindow bounds the periodic scan: only commitments made
	// within this window are checked. Older pending commitments are
	// marked expired.
	lookbackWindow = 2 * time.Hour

	// eagerWindow bounds the content-aware match on calendar creation.
	eagerWindow = time.Hour

	urgencyMediumAge = 30 * time.Minute
	urgencyHighAge   = time.Hour
)

// Scheduling defaults.
const (
	defaultScanInterval = 5 * time.Minute
	defaultStartupDelay = 30 * time.Second
)

// Urgency grades how overdue a pending commitment is.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// urgencyForAge maps time since detection to an urgency grade.
func urgencyForAge(age time.Duration) Urgency {
	switch {
	case age > urgencyHighAge:
		return UrgencyHigh
	case age > urgencyMediumAge:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// PendingFollowUp is a commitment the scan could not match to any
// subsequent activity.
type PendingFollowUp struct {
	Commitment      *store.Commitment `json:"commitment"`
	SuggestedAction string            `json:"suggested_action"`
	Context         string            `json:"context"`
	Urgency         Urgency           `json:"urgency"`
}

// Notifier receives match results. The pipeline orchestrator implements
// it and fans events out to its observers.
type Notifier interface {
	FollowUpsNeeded(items []PendingFollowUp)
	ActionCompleted(c *store.Commitment, a *store.CompletedAction)
}

// matchStore is the subset of the store the matcher uses.
type matchStore interface {
	PendingCommitmentsSince(ctx context.Context, since time.Time) ([]*store.Commitment, error)
	PendingCommitmentsOfTypeSince(ctx context.Context, t store.CommitmentType, since time.Time) ([]*store.Commitment, error)
	UpdateCommitmentStatus(ctx context.Context, id string, status store.CommitmentStatus, completedAt *time.Time) error
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
	InsertCompletedAction(ctx context.Context, a *store.CompletedAction) error
	HasEmailActivityAfter(ctx context.Context, t time.Time, actions ...string) (bool, error)
	HasCalendarCreationAfter(ctx context.Context, t time.Time) (bool, error)
	HasCompletedActionAfter(ctx context.Context, t time.Time) (bool, error)
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithScanInterval overrides the periodic scan interval.
func WithScanInterval(d time.Duration) Option {
	return func(m *Matcher) {
		if d > 0 {
			m.scanInterval = d
		}
	}
}

// WithStartupDelay overrides the delay before the first scan.
func WithStartupDelay(d time.Duration) Option {
	return func(m *Matcher) {
		if d >= 0 {
			m.startupDelay = d
		}
	}
}

// Matcher runs the periodic follow-up scan and the eager calendar match.
type Matcher struct {
	store    matchStore
	notifier Notifier
	logger   *zap.Logger

	scanInterval time.Duration
	startupDelay time.Duration

	tracer       trace.Tracer
	scansTotal   metric.Int64Counter
	matchesTotal metric.Int64Counter

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMatcher creates a follow-up matcher. notifier may be nil.
func NewMatcher(st matchStore, notifier Notifier, logger *zap.Logger, opts ...Option) (*Matcher, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	meter := otel.Meter("glimpsed/followup")
	scansTotal, err := meter.Int64Counter("followup_scans_total",
		metric.WithDescription("Number of periodic follow-up scans"))
	if err != nil {
		return nil, fmt.Errorf("failed to create scans counter: %w", err)
	}
	matchesTotal, err := meter.Int64Counter("followup_matches_total",
		metric.WithDescription("Number of commitments matched to completing activity"))
	if err != nil {
		return nil, fmt.Errorf("failed to create matches counter: %w", err)
	}

	return &Matcher{
		store:        st,
		notifier:     notifier,
		logger:       logger,
		scanInterval: defaultScanInterval,
		startupDelay: defaultStartupDelay,
		tracer:       otel.Tracer("glimpsed/followup"),
		scansTotal:   scansTotal,
		matchesTotal: matchesTotal,
	}, nil
}

// Start launches the scan loop. The first scan runs after the startup
// delay; subsequent scans every scan interval.
func (m *Matcher) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("matcher already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go m.run()

	m.logger.Info("follow-up matcher started",
		zap.Duration("scan_interval", m.scanInterval),
		zap.Duration("startup_delay", m.startupDelay))
	return nil
}

// Stop halts the scan loop and waits for it to exit.
func (m *Matcher) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	doneCh := m.doneCh
	m.mu.Unlock()

	<-doneCh
	m.logger.Info("follow-up matcher stopped")
}

func (m *Matcher) run() {
	defer close(m.doneCh)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("follow-up scan loop panic", zap.Any("panic", r))
		}
	}()

	select {
	case <-time.After(m.startupDelay):
	case <-m.stopCh:
		return
	}
	m.scanOnce()

	ticker := time.NewTicker(m.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.scanOnce()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Matcher) scanOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), m.scanInterval)
	defer cancel()
	if err := m.Scan(ctx); err != nil {
		m.logger.Error("follow-up scan failed", zap.Error(err))
	}
}

// Scan performs one periodic pass: expire stale commitments, then check
// each recent pending commitment for matching activity. Unmatched
// commitments are reported as pending follow-ups; a match only suppresses
// the reminder. The scan is content-agnostic and never resolves a
// commitment, that is reserved for the eager match and explicit user
// action. The notifier is invoked on every scan, with an empty list when
// nothing needs attention, so consumers do not serve stale reminders.
func (m *Matcher) Scan(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "followup.Scan")
	defer span.End()

	m.scansTotal.Add(ctx, 1)
	now := time.Now()
	cutoff := now.Add(-lookbackWindow)

	expired, err := m.store.ExpirePendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to expire stale commitments: %w", err)
	}
	if expired > 0 {
		m.logger.Info("expired stale commitments", zap.Int64("count", expired))
	}

	pending, err := m.store.PendingCommitmentsSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list pending commitments: %w", err)
	}
	span.SetAttributes(attribute.Int("pending", len(pending)))

	var followUps []PendingFollowUp
	for _, c := range pending {
		satisfied, err := m.activityAfter(ctx, c)
		if err != nil {
			m.logger.Warn("match check failed",
				zap.String("commitment_id", c.ID),
				zap.Error(err))
			continue
		}
		if satisfied {
			// Activity of the right kind was observed, so hold the
			// reminder. The commitment stays pending: a content-agnostic
			// match is not evidence enough to mark it done.
			continue
		}

		age := now.Sub(c.DetectedAt)
		followUps = append(followUps, PendingFollowUp{
			Commitment:      c,
			SuggestedAction: suggestedAction(c.Type),
			Context:         fmt.Sprintf("detected %s ago in %q", age.Round(time.Minute), c.Text),
			Urgency:         urgencyForAge(age),
		})
	}

	if m.notifier != nil {
		m.notifier.FollowUpsNeeded(followUps)
	}
	return nil
}

// activityAfter reports whether activity capable of satisfying the
// commitment was observed strictly after it was made. The check is
// content-agnostic: any activity of the right kind counts.
func (m *Matcher) activityAfter(ctx context.Context, c *store.Commitment) (bool, error) {
	switch c.Type {
	case store.CommitmentCreateEvent:
		return m.store.HasCalendarCreationAfter(ctx, c.DetectedAt)
	case store.CommitmentSendEmail:
		return m.store.HasEmailActivityAfter(ctx, c.DetectedAt)
	default:
		return m.store.HasCompletedActionAfter(ctx, c.DetectedAt)
	}
}

// ResolveCalendarCreation is the eager, content-aware match: when a
// calendar event is created, pending create_event commitments from the
// last hour whose text shares a word with the event title are completed.
// Returns the matched commitment, or nil.
func (m *Matcher) ResolveCalendarCreation(ctx context.Context, eventTitle string, at time.Time) (*store.Commitment, error) {
	ctx, span := m.tracer.Start(ctx, "followup.ResolveCalendarCreation",
		trace.WithAttributes(attribute.String("event_title", eventTitle)))
	defer span.End()

	pending, err := m.store.PendingCommitmentsOfTypeSince(ctx, store.CommitmentCreateEvent, at.Add(-eagerWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to list create_event commitments: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	words := titleWords(eventTitle)
	if len(words) == 0 {
		return nil, nil
	}

	for _, c := range pending {
		text := strings.ToLower(c.Text)
		for _, w := range words {
			if strings.Contains(text, w) {
				m.complete(ctx, c, "calendar_creation")
				return c, nil
			}
		}
	}
	return nil, nil
}

// titleWords returns the lowercased words of the title longer than three
// characters. Short words match too freely.
func titleWords(title string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}

// complete marks the commitment completed and records the evidence. A
// concurrent transition losing the race is not an error.
func (m *Matcher) complete(ctx context.Context, c *store.Commitment, matchedBy string) {
	now := time.Now()
	if err := m.store.UpdateCommitmentStatus(ctx, c.ID, store.StatusCompleted, &now); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return
		}
		m.logger.Error("failed to complete commitment",
			zap.String("commitment_id", c.ID),
			zap.Error(err))
		return
	}

	details, _ := json.Marshal(map[string]string{
		"matched_by":      matchedBy,
		"commitment_text": c.Text,
	})
	action := &store.CompletedAction{
		ActionType:          string(c.Type),
		DetailsJSON:         string(details),
		Timestamp:           now,
		MatchedCommitmentID: c.ID,
	}
	if err := m.store.InsertCompletedAction(ctx, action); err != nil {
		m.logger.Error("failed to record completed action",
			zap.String("commitment_id", c.ID),
			zap.Error(err))
	}

	m.matchesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("matched_by", matchedBy)))
	m.logger.Info("commitment completed",
		zap.String("commitment_id", c.ID),
		zap.String("type", string(c.Type)),
		zap.String("matched_by", matchedBy))

	if m.notifier != nil {
		m.notifier.ActionCompleted(c, action)
	}
}

// suggestedAction phrases a nudge for the commitment type.
func suggestedAction(t store.CommitmentType) string {
	switch t {
	case store.CommitmentSendEmail:
		return "Send the email you promised"
	case store.CommitmentCreateEvent:
		return "Schedule the event you mentioned"
	case store.CommitmentSendFile:
		return "Share the file you promised"
	case store.CommitmentMakeCall:
		return "Make the call you mentioned"
	case store.CommitmentFollowUp:
		return "Follow up as promised"
	default:
		return "Complete the task you mentioned"
	}
}
