package pipeline

import (
	"sync"
	"time"

	"github.com/fyrsmithlabs/glimpsed/internal/analyze"
	"github.com/fyrsmithlabs/glimpsed/internal/followup"
	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

// ActionCompleted is emitted when a commitment is matched to completing
// activity.
type ActionCompleted struct {
	CommitmentID   string    `json:"commitment_id"`
	CommitmentText string    `json:"commitment_text"`
	ActionType     string    `json:"action_type"`
	CompletedAt    time.Time `json:"completed_at"`
}

// ContextUpdate is emitted once per processed capture and carries the
// full analysis for enrichment consumers. Analysis is nil when the text
// was too short to analyze.
type ContextUpdate struct {
	CaptureID   int64                   `json:"capture_id"`
	Timestamp   time.Time               `json:"timestamp"`
	AppName     string                  `json:"app_name"`
	WindowTitle string                  `json:"window_title"`
	Analysis    *analyze.ScreenAnalysis `json:"analysis,omitempty"`
}

// Observer receives pipeline events. Callbacks run on pipeline
// goroutines and must not block.
type Observer interface {
	OnCommitmentDetected(c *store.Commitment)
	OnActionCompleted(e ActionCompleted)
	OnFollowUpsNeeded(items []followup.PendingFollowUp)
	OnContextUpdated(u ContextUpdate)
}

// observerList is a concurrency-safe fan-out of Observer callbacks.
type observerList struct {
	mu        sync.RWMutex
	observers []Observer
}

func (l *observerList) add(o Observer) {
	l.mu.Lock()
	l.observers = append(l.observers, o)
	l.mu.Unlock()
}

func (l *observerList) snapshot() []Observer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Observer, len(l.observers))
	copy(out, l.observers)
	return out
}

func (l *observerList) commitmentDetected(c *store.Commitment) {
	for _, o := range l.snapshot() {
		o.OnCommitmentDetected(c)
	}
}

func (l *observerList) actionCompleted(e ActionCompleted) {
	for _, o := range l.snapshot() {
		o.OnActionCompleted(e)
	}
}

func (l *observerList) followUpsNeeded(items []followup.PendingFollowUp) {
	for _, o := range l.snapshot() {
		o.OnFollowUpsNeeded(items)
	}
}

func (l *observerList) contextUpdated(u ContextUpdate) {
	for _, o := range l.snapshot() {
		o.OnContextUpdated(u)
	}
}
