package analyze

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type failingCompleter struct{}

func (failingCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("provider unavailable")
}

func (failingCompleter) Available() bool { return true }

func TestNewAnalyzerTierGating(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantSemantic bool
	}{
		{"semantic off", Config{Semantic: false, Provider: "anthropic", APIKey: "k"}, false},
		{"heuristic provider", Config{Semantic: true, Provider: "heuristic"}, false},
		{"missing api key", Config{Semantic: true, Provider: "anthropic"}, false},
		{"anthropic with key", Config{Semantic: true, Provider: "anthropic", APIKey: "k"}, true},
		{"openai with key", Config{Semantic: true, Provider: "openai", APIKey: "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.cfg, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSemantic, a.SemanticEnabled())
		})
	}
}

func TestNewAnalyzerUnknownProvider(t *testing.T) {
	_, err := New(Config{Semantic: true, Provider: "carrier-pigeon", APIKey: "k"}, nil)
	require.Error(t, err)
}

// LLM failures must degrade to the heuristic result, never surface.
func TestAnalyzeFallsBackOnLLMFailure(t *testing.T) {
	a := &Analyzer{
		heuristic: NewHeuristic(),
		batcher:   newBatcher(failingCompleter{}, nil),
		semantic:  true,
		minText:   10,
		tracer:    otel.Tracer("test"),
		logger:    zap.NewNop(),
	}
	a.batcher.interval = 20 * time.Millisecond
	a.Start()
	defer a.Stop()

	analysis := a.Analyze(context.Background(), Request{
		Text:      "I'll send you the summary tomorrow.",
		AppName:   "Mail",
		Timestamp: time.Now(),
	})

	require.Len(t, analysis.Commitments, 1)
	assert.Equal(t, heuristicConfidence, analysis.Commitments[0].Confidence)
}

func TestAnalyzeShortTextSkipsLLM(t *testing.T) {
	a, err := New(Config{Semantic: true, Provider: "anthropic", APIKey: "k", MinTextLength: 50}, nil)
	require.NoError(t, err)
	a.Start()
	defer a.Stop()

	// Below the threshold: answered synchronously by the heuristic tier,
	// no batch wait.
	start := time.Now()
	analysis := a.Analyze(context.Background(), Request{Text: "I'll call you.", AppName: "Slack"})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "chat", analysis.AppContext.Activity)
}
