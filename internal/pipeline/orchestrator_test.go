package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/glimpsed/internal/analyze"
	"github.com/fyrsmithlabs/glimpsed/internal/capture"
	"github.com/fyrsmithlabs/glimpsed/internal/followup"
	"github.com/fyrsmithlabs/glimpsed/internal/ocr"
	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

type fakeResolver struct {
	window capture.WindowInfo
}

func (f *fakeResolver) ActiveWindow(ctx context.Context) (capture.WindowInfo, error) {
	return f.window, nil
}

// fakeShooter writes unique bytes per call so frames never deduplicate.
type fakeShooter struct {
	n int
}

func (f *fakeShooter) Capture(ctx context.Context, windowID int, path string) error {
	f.n++
	return os.WriteFile(path, []byte{byte(f.n), 'p', 'n', 'g'}, 0o600)
}

// fakeRecognizer returns canned OCR text.
type fakeRecognizer struct {
	text string
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Recognize(ctx context.Context, path string) (ocr.Result, error) {
	return ocr.Result{Text: f.text, Confidence: 0.9}, nil
}

type testEnv struct {
	orch    *Orchestrator
	store   *store.Store
	tmpDir  string
	matcher *followup.Matcher
}

func newTestEnv(t *testing.T, window capture.WindowInfo, screenText string, excluded []string) *testEnv {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "glimpsed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tmpDir := t.TempDir()
	source, err := capture.NewSource(&fakeResolver{window: window}, &fakeShooter{}, excluded, nil,
		capture.WithTempDir(tmpDir))
	require.NoError(t, err)

	extractor := ocr.NewExtractor([]ocr.Recognizer{&fakeRecognizer{text: screenText}}, nil)

	analyzer, err := analyze.New(analyze.Config{Provider: "heuristic"}, nil)
	require.NoError(t, err)

	orch, err := New(Config{
		CaptureInterval: time.Hour, // tests drive ProcessOnce directly
		OCREnabled:      true,
		FollowUpEnabled: true,
	}, Deps{
		Source:    source,
		Extractor: extractor,
		Analyzer:  analyzer,
		Store:     st,
		Registry:  prometheus.NewRegistry(),
	}, nil)
	require.NoError(t, err)

	matcher, err := followup.NewMatcher(st, orch, nil)
	require.NoError(t, err)
	orch.SetMatcher(matcher)

	return &testEnv{orch: orch, store: st, tmpDir: tmpDir, matcher: matcher}
}

func TestProcessOncePersistsDetections(t *testing.T) {
	env := newTestEnv(t,
		capture.WindowInfo{AppName: "Mail", WindowTitle: "New Message"},
		"To: jane@co.com\nSubject: Follow up\nI'll send you the report tomorrow.",
		nil)
	ctx := context.Background()

	require.NoError(t, env.orch.ProcessOnce(ctx))

	n, err := env.store.CountCaptures(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	commitments, err := env.store.ListCommitments(ctx, store.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, commitments, 1)
	assert.Equal(t, store.CommitmentSendEmail, commitments[0].Type)
	assert.Equal(t, "jane@co.com", commitments[0].Recipient)
	assert.NotNil(t, commitments[0].SourceCaptureID)

	// Email evidence for the follow-up matcher was recorded.
	has, err := env.store.HasEmailActivityAfter(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, has)

	// The screenshot is removed once text is extracted.
	files, err := os.ReadDir(env.tmpDir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestProcessOnceExcludedAppWritesNothing(t *testing.T) {
	env := newTestEnv(t,
		capture.WindowInfo{AppName: "1Password 8", WindowTitle: "Vault"},
		"master password: hunter2",
		[]string{"1password"})
	ctx := context.Background()

	require.NoError(t, env.orch.ProcessOnce(ctx))

	n, err := env.store.CountCaptures(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "excluded apps must leave no trace")
}

func TestProcessOnceShortTextSkipsAnalysis(t *testing.T) {
	env := newTestEnv(t,
		capture.WindowInfo{AppName: "Finder", WindowTitle: "Desktop"},
		"ok", nil)
	ctx := context.Background()

	obs := &recordingObserver{}
	env.orch.AddObserver(obs)

	require.NoError(t, env.orch.ProcessOnce(ctx))

	n, err := env.store.CountCaptures(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "capture row is still persisted")

	commitments, err := env.store.ListCommitments(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, commitments)

	// The capture still announces itself, just without an analysis.
	require.Len(t, obs.updates, 1)
	assert.Nil(t, obs.updates[0].Analysis)
}

// Creating a calendar event eagerly completes a matching create_event
// commitment from the last hour.
func TestEagerCalendarMatch(t *testing.T) {
	env := newTestEnv(t,
		capture.WindowInfo{AppName: "Calendar", WindowTitle: "New Event"},
		"Event Title: Budget review\nAdd Invitees\nStarts: 2:00 pm\nEnds: 3:00 pm",
		nil)
	ctx := context.Background()

	promise := &store.Commitment{
		ID:         uuid.NewString(),
		Text:       "I'll schedule the budget review",
		Type:       store.CommitmentCreateEvent,
		DetectedAt: time.Now().Add(-10 * time.Minute),
		Status:     store.StatusPending,
		Confidence: 0.7,
	}
	require.NoError(t, env.store.InsertCommitment(ctx, promise))

	require.NoError(t, env.orch.ProcessOnce(ctx))

	got, err := env.store.GetCommitment(ctx, promise.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)

	actions, err := env.store.CompletedActionsForCommitment(ctx, promise.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "create_event", actions[0].ActionType)

	// The created event shows up in the context digest.
	summary, err := env.orch.ContextSummary(ctx)
	require.NoError(t, err)
	assert.Contains(t, summary, "Recently created events")
	assert.Contains(t, summary, "Budget review")
}

// The status endpoint falls back to the stored capture watermark, so a
// restart does not lose the last-capture time.
func TestStatusLastCaptureSurvivesRestart(t *testing.T) {
	env := newTestEnv(t,
		capture.WindowInfo{AppName: "Mail", WindowTitle: "Inbox"},
		"To: sam@co.com\nSubject: Plan\nI'll send over the plan today.",
		nil)
	ctx := context.Background()
	require.NoError(t, env.orch.ProcessOnce(ctx))

	source, err := capture.NewSource(&fakeResolver{}, &fakeShooter{}, nil, nil,
		capture.WithTempDir(t.TempDir()))
	require.NoError(t, err)
	analyzer, err := analyze.New(analyze.Config{Provider: "heuristic"}, nil)
	require.NoError(t, err)

	fresh, err := New(Config{CaptureInterval: time.Hour}, Deps{
		Source:    source,
		Extractor: ocr.NewExtractor(nil, nil),
		Analyzer:  analyzer,
		Store:     env.store,
		Registry:  prometheus.NewRegistry(),
	}, nil)
	require.NoError(t, err)

	status, err := fresh.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.LastCaptureAt)
	assert.Zero(t, status.CapturesTotal, "in-memory counters reset on restart")
}

func TestObserverReceivesEvents(t *testing.T) {
	env := newTestEnv(t,
		capture.WindowInfo{AppName: "Slack", WindowTitle: "#general"},
		"ok sounds good, I'll follow up with the infra team about the incident.",
		nil)

	obs := &recordingObserver{}
	env.orch.AddObserver(obs)

	require.NoError(t, env.orch.ProcessOnce(context.Background()))

	require.Len(t, obs.commitments, 1)
	assert.Equal(t, store.CommitmentFollowUp, obs.commitments[0].Type)

	require.Len(t, obs.updates, 1)
	u := obs.updates[0]
	assert.Positive(t, u.CaptureID)
	assert.Equal(t, "Slack", u.AppName)
	require.NotNil(t, u.Analysis)
	assert.Equal(t, "chat", u.Analysis.AppContext.Activity)
	assert.Len(t, u.Analysis.Commitments, 1)
}

func TestStatusAndTransitions(t *testing.T) {
	env := newTestEnv(t,
		capture.WindowInfo{AppName: "Mail", WindowTitle: "Inbox"},
		"To: sam@co.com\nSubject: Plan\nI'll send over the plan today.",
		nil)
	ctx := context.Background()

	require.NoError(t, env.orch.ProcessOnce(ctx))

	status, err := env.orch.Status(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, status.CapturesTotal)
	assert.EqualValues(t, 1, status.PendingCommitments)
	require.NotNil(t, status.LastCaptureAt)

	commitments, err := env.orch.Commitments(ctx, store.StatusPending, 1)
	require.NoError(t, err)
	require.Len(t, commitments, 1)

	require.NoError(t, env.orch.DismissCommitment(ctx, commitments[0].ID))
	assert.ErrorIs(t, env.orch.CompleteCommitment(ctx, commitments[0].ID), store.ErrInvalidTransition)

	summary, err := env.orch.ContextSummary(ctx)
	require.NoError(t, err)
	assert.Contains(t, summary, "Last observation")
}

type recordingObserver struct {
	commitments []*store.Commitment
	completed   []ActionCompleted
	followUps   [][]followup.PendingFollowUp
	updates     []ContextUpdate
}

func (r *recordingObserver) OnCommitmentDetected(c *store.Commitment) {
	r.commitments = append(r.commitments, c)
}

func (r *recordingObserver) OnActionCompleted(e ActionCompleted) {
	r.completed = append(r.completed, e)
}

func (r *recordingObserver) OnFollowUpsNeeded(items []followup.PendingFollowUp) {
	r.followUps = append(r.followUps, items)
}

func (r *recordingObserver) OnContextUpdated(u ContextUpdate) {
	r.updates = append(r.updates, u)
}
