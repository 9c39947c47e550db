// Package pipeline wires capture, OCR, analysis, persistence, and
// follow-up matching into the periodic observation flow, and exposes the
// read API the HTTP server serves.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/glimpsed/internal/analyze"
	"github.com/fyrsmithlabs/glimpsed/internal/capture"
	"github.com/fyrsmithlabs/glimpsed/internal/followup"
	"github.com/fyrsmithlabs/glimpsed/internal/ocr"
	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

// Text shorter than this is stored but not analyzed.
const minAnalyzeTextLength = 20

const defaultCaptureInterval = 10 * time.Second

// Config holds the orchestrator's feature flags and timing.
type Config struct {
	CaptureInterval time.Duration
	OCREnabled      bool
	FollowUpEnabled bool
}

// Deps are the orchestrator's collaborators. Source, Extractor, Analyzer,
// and Store are required; Matcher may be nil when follow-up is disabled.
type Deps struct {
	Source    *capture.Source
	Extractor *ocr.Extractor
	Analyzer  *analyze.Analyzer
	Store     *store.Store
	Matcher   *followup.Matcher

	// Registry receives the pipeline's prometheus collectors. Nil means
	// the default registerer.
	Registry prometheus.Registerer
}

// Orchestrator runs the capture loop and the per-capture flow:
// capture -> extract -> analyze -> persist -> detect -> match.
type Orchestrator struct {
	cfg     Config
	source  *capture.Source
	extract *ocr.Extractor
	analyze *analyze.Analyzer
	store   *store.Store
	matcher *followup.Matcher
	logger  *zap.Logger

	observers observerList
	metrics   *metrics

	capturesTotal    atomic.Int64
	commitmentsTotal atomic.Int64
	actionsTotal     atomic.Int64
	lastCaptureMilli atomic.Int64

	followUpMu    sync.Mutex
	lastFollowUps []followup.PendingFollowUp

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates an orchestrator.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Orchestrator, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("capture source is required")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("text extractor is required")
	}
	if deps.Analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CaptureInterval <= 0 {
		cfg.CaptureInterval = defaultCaptureInterval
	}

	return &Orchestrator{
		cfg:     cfg,
		source:  deps.Source,
		extract: deps.Extractor,
		analyze: deps.Analyzer,
		store:   deps.Store,
		matcher: deps.Matcher,
		logger:  logger,
		metrics: newMetrics(deps.Registry),
	}, nil
}

// AddObserver registers an observer for pipeline events.
func (o *Orchestrator) AddObserver(obs Observer) {
	o.observers.add(obs)
}

// SetExcludedApps forwards a new privacy exclusion list to the capture
// source. Used by config hot-reload.
func (o *Orchestrator) SetExcludedApps(apps []string) {
	o.source.SetExcludedApps(apps)
}

// SetMatcher wires the follow-up matcher. The matcher is constructed
// after the orchestrator (it notifies the orchestrator), so it cannot be
// passed in Deps. Must be called before Start.
func (o *Orchestrator) SetMatcher(m *followup.Matcher) {
	o.matcher = m
}

// Start launches the capture loop.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return fmt.Errorf("pipeline already running")
	}
	o.running = true
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})

	o.analyze.Start()
	go o.run()

	o.logger.Info("pipeline started",
		zap.Duration("capture_interval", o.cfg.CaptureInterval),
		zap.Bool("ocr", o.cfg.OCREnabled),
		zap.Bool("follow_up", o.cfg.FollowUpEnabled),
		zap.Bool("semantic", o.analyze.SemanticEnabled()))
	return nil
}

// Stop halts the capture loop and the analysis queue.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	close(o.stopCh)
	doneCh := o.doneCh
	o.mu.Unlock()

	<-doneCh
	o.analyze.Stop()
	o.logger.Info("pipeline stopped")
}

func (o *Orchestrator) isRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// stopRequested reports whether Stop has been called on a started
// orchestrator.
func (o *Orchestrator) stopRequested() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopCh == nil {
		return false
	}
	select {
	case <-o.stopCh:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) run() {
	defer close(o.doneCh)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("capture loop panic", zap.Any("panic", r))
		}
	}()

	o.captureOnce()

	ticker := time.NewTicker(o.cfg.CaptureInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.captureOnce()
		case <-o.stopCh:
			return
		}
	}
}

func (o *Orchestrator) captureOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.CaptureInterval+30*time.Second)
	defer cancel()
	if err := o.ProcessOnce(ctx); err != nil {
		o.logger.Error("capture cycle failed", zap.Error(err))
	}
}

// ProcessOnce runs one full capture cycle.
func (o *Orchestrator) ProcessOnce(ctx context.Context) error {
	frame, err := o.source.Capture(ctx)
	switch {
	case errors.Is(err, capture.ErrExcluded):
		o.metrics.captures.WithLabelValues(outcomeExcluded).Inc()
		return nil
	case errors.Is(err, capture.ErrDuplicate):
		o.metrics.captures.WithLabelValues(outcomeDuplicate).Inc()
		return nil
	case err != nil:
		o.metrics.captures.WithLabelValues(outcomeFailed).Inc()
		return fmt.Errorf("capture failed: %w", err)
	}

	text := o.extractText(ctx, frame)

	var analysis *analyze.ScreenAnalysis
	if len(text) >= minAnalyzeTextLength {
		a := o.analyze.Analyze(ctx, analyze.Request{
			Text:        text,
			AppName:     frame.AppName,
			WindowTitle: frame.WindowTitle,
			Timestamp:   frame.Timestamp,
		})
		analysis = &a
	}

	// Analysis may have blocked in the batch queue; do not persist
	// results that complete after shutdown began.
	if o.stopRequested() {
		return nil
	}

	captureID, err := o.persistCapture(ctx, frame, text, analysis)
	if err != nil {
		o.metrics.captures.WithLabelValues(outcomeFailed).Inc()
		return err
	}

	o.metrics.captures.WithLabelValues(outcomeComplete).Inc()
	o.capturesTotal.Add(1)
	o.lastCaptureMilli.Store(frame.Timestamp.UnixMilli())

	if analysis != nil {
		o.persistDetections(ctx, frame, captureID, analysis)
	}
	o.observers.contextUpdated(ContextUpdate{
		CaptureID:   captureID,
		Timestamp:   frame.Timestamp,
		AppName:     frame.AppName,
		WindowTitle: frame.WindowTitle,
		Analysis:    analysis,
	})
	return nil
}

// extractText runs OCR on the frame. The screenshot file is always
// removed before returning, whatever OCR does.
func (o *Orchestrator) extractText(ctx context.Context, frame *capture.Frame) string {
	defer func() {
		if err := os.Remove(frame.Path); err != nil && !os.IsNotExist(err) {
			o.logger.Warn("failed to remove screenshot", zap.String("path", frame.Path), zap.Error(err))
		}
	}()

	if !o.cfg.OCREnabled {
		return ""
	}
	return o.extract.Extract(ctx, frame.Path).Text
}

func (o *Orchestrator) persistCapture(ctx context.Context, frame *capture.Frame, text string, analysis *analyze.ScreenAnalysis) (int64, error) {
	var analysisJSON string
	if analysis != nil {
		data, err := json.Marshal(analysis)
		if err == nil {
			analysisJSON = string(data)
		}
	}

	id, err := o.store.InsertCapture(ctx, &store.ScreenCapture{
		Timestamp:    frame.Timestamp,
		AppName:      frame.AppName,
		WindowTitle:  frame.WindowTitle,
		TextContent:  text,
		AnalysisJSON: analysisJSON,
		ImageHash:    frame.Hash,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to persist capture: %w", err)
	}
	return id, nil
}

// persistDetections stores commitments, action items, and email/calendar
// context from an analysis, emitting events as it goes. Individual
// failures are logged and skipped.
func (o *Orchestrator) persistDetections(ctx context.Context, frame *capture.Frame, captureID int64, analysis *analyze.ScreenAnalysis) {
	contextJSON, _ := json.Marshal(map[string]string{
		"app":      frame.AppName,
		"activity": analysis.AppContext.Activity,
	})

	for _, det := range analysis.Commitments {
		c := &store.Commitment{
			ID:              uuid.NewString(),
			Text:            det.Text,
			Type:            det.Type,
			Recipient:       det.Recipient,
			Deadline:        det.Deadline,
			DetectedAt:      frame.Timestamp,
			Status:          store.StatusPending,
			SourceCaptureID: &captureID,
			ContextJSON:     string(contextJSON),
			Confidence:      det.Confidence,
		}
		if err := o.store.InsertCommitment(ctx, c); err != nil {
			o.logger.Error("failed to persist commitment", zap.Error(err))
			continue
		}
		o.commitmentsTotal.Add(1)
		o.metrics.commitments.Inc()
		o.logger.Info("commitment detected",
			zap.String("id", c.ID),
			zap.String("type", string(c.Type)),
			zap.String("text", c.Text))
		o.observers.commitmentDetected(c)
	}

	for _, det := range analysis.ActionItems {
		item := &store.ActionItem{
			ID:              uuid.NewString(),
			Text:            det.Text,
			Priority:        det.Priority,
			Source:          det.Source,
			DetectedAt:      frame.Timestamp,
			Status:          "pending",
			SourceCaptureID: &captureID,
			ContextJSON:     string(contextJSON),
		}
		if err := o.store.InsertActionItem(ctx, item); err != nil {
			o.logger.Error("failed to persist action item", zap.Error(err))
		}
	}

	if e := analysis.Email; e != nil {
		recipient := ""
		if len(e.To) > 0 {
			recipient = e.To[0]
		}
		err := o.store.InsertEmailContext(ctx, &store.EmailContext{
			Timestamp:       frame.Timestamp,
			AppName:         frame.AppName,
			Action:          e.Action,
			Recipient:       recipient,
			Subject:         e.Subject,
			BodyPreview:     e.BodyPreview,
			HasAttachment:   e.HasAttachment,
			SourceCaptureID: &captureID,
		})
		if err != nil {
			o.logger.Error("failed to persist email context", zap.Error(err))
		}
	}

	if c := analysis.Calendar; c != nil {
		participants, _ := json.Marshal(c.Participants)
		err := o.store.InsertCalendarContext(ctx, &store.CalendarContext{
			Timestamp:        frame.Timestamp,
			AppName:          frame.AppName,
			Action:           c.Action,
			EventTitle:       c.EventTitle,
			EventTime:        c.EventTime,
			ParticipantsJSON: string(participants),
			SourceCaptureID:  &captureID,
		})
		if err != nil {
			o.logger.Error("failed to persist calendar context", zap.Error(err))
		}

		if c.Creating() && o.cfg.FollowUpEnabled && o.matcher != nil {
			matched, err := o.matcher.ResolveCalendarCreation(ctx, c.EventTitle, frame.Timestamp)
			if err != nil {
				o.logger.Warn("eager calendar match failed", zap.Error(err))
			} else if matched != nil {
				o.logger.Info("calendar creation resolved commitment",
					zap.String("commitment_id", matched.ID),
					zap.String("event_title", c.EventTitle))
			}
		}
	}
}

// FollowUpsNeeded implements followup.Notifier.
func (o *Orchestrator) FollowUpsNeeded(items []followup.PendingFollowUp) {
	o.followUpMu.Lock()
	o.lastFollowUps = items
	o.followUpMu.Unlock()

	o.metrics.followUpsPending.Set(float64(len(items)))
	o.observers.followUpsNeeded(items)
}

// ActionCompleted implements followup.Notifier.
func (o *Orchestrator) ActionCompleted(c *store.Commitment, a *store.CompletedAction) {
	o.actionsTotal.Add(1)
	o.metrics.actionsCompleted.Inc()
	o.observers.actionCompleted(ActionCompleted{
		CommitmentID:   c.ID,
		CommitmentText: c.Text,
		ActionType:     a.ActionType,
		CompletedAt:    a.Timestamp,
	})
}

var _ followup.Notifier = (*Orchestrator)(nil)
