package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/glimpsed/internal/analyze"
	"github.com/fyrsmithlabs/glimpsed/internal/capture"
	"github.com/fyrsmithlabs/glimpsed/internal/ocr"
	"github.com/fyrsmithlabs/glimpsed/internal/pipeline"
	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

type stubResolver struct{}

func (stubResolver) ActiveWindow(ctx context.Context) (capture.WindowInfo, error) {
	return capture.WindowInfo{AppName: "Mail"}, nil
}

type stubShooter struct{}

func (stubShooter) Capture(ctx context.Context, windowID int, path string) error {
	return os.WriteFile(path, []byte("png"), 0o600)
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "glimpsed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	source, err := capture.NewSource(stubResolver{}, stubShooter{}, nil, nil,
		capture.WithTempDir(t.TempDir()))
	require.NoError(t, err)

	analyzer, err := analyze.New(analyze.Config{Provider: "heuristic"}, nil)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	orch, err := pipeline.New(pipeline.Config{CaptureInterval: time.Hour}, pipeline.Deps{
		Source:    source,
		Extractor: ocr.NewExtractor(nil, nil),
		Analyzer:  analyzer,
		Store:     st,
		Registry:  registry,
	}, nil)
	require.NoError(t, err)

	srv, err := NewServer(orch, registry, zap.NewNop(), nil)
	require.NoError(t, err)
	return srv, st
}

func doRequest(srv *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, false, status["running"])
	assert.EqualValues(t, 0, status["captures_total"])
}

func TestCommitmentsEndpoint(t *testing.T) {
	srv, st := newTestServer(t)

	c := &store.Commitment{
		ID:         uuid.NewString(),
		Text:       "I'll send the report",
		Type:       store.CommitmentSendEmail,
		DetectedAt: time.Now(),
		Status:     store.StatusPending,
		Confidence: 0.7,
	}
	require.NoError(t, st.InsertCommitment(context.Background(), c))

	rec := doRequest(srv, http.MethodGet, "/commitments?status=pending")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), c.ID)

	rec = doRequest(srv, http.MethodGet, "/commitments?status=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/commitments?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommitmentTransitionEndpoints(t *testing.T) {
	srv, st := newTestServer(t)

	c := &store.Commitment{
		ID:         uuid.NewString(),
		Text:       "I'll call the vendor",
		Type:       store.CommitmentMakeCall,
		DetectedAt: time.Now(),
		Status:     store.StatusPending,
		Confidence: 0.7,
	}
	require.NoError(t, st.InsertCommitment(context.Background(), c))

	rec := doRequest(srv, http.MethodPost, "/commitments/"+c.ID+"/complete")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Terminal commitments cannot transition again.
	rec = doRequest(srv, http.MethodPost, "/commitments/"+c.ID+"/dismiss")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/commitments/"+uuid.NewString()+"/complete")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFollowUpsEndpointEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/follow-ups")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "follow_ups")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
