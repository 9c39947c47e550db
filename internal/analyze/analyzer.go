package analyze

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config controls which tiers run and how the LLM tier connects.
type Config struct {
	// Semantic enables the LLM tier. The heuristic tier always runs.
	Semantic bool

	// Provider is "heuristic", "anthropic", or "openai". "heuristic"
	// disables the LLM tier regardless of Semantic.
	Provider string

	APIKey  string
	Model   string
	BaseURL string

	// MinTextLength gates the LLM tier: shorter text is answered by the
	// heuristic tier alone.
	MinTextLength int
}

// Analyzer is the two-tier analysis service. The heuristic tier always
// produces a result; when the LLM tier is enabled and the text is long
// enough, its result replaces the heuristic one. Any LLM failure falls
// back to the heuristic result, never an error.
type Analyzer struct {
	heuristic *Heuristic
	batcher   *batcher
	semantic  bool
	minText   int
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New creates an Analyzer. The LLM tier is only wired when Semantic is
// set, the provider is not "heuristic", and an API key is present.
func New(cfg Config, logger *zap.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Analyzer{
		heuristic: NewHeuristic(),
		semantic:  cfg.Semantic,
		minText:   cfg.MinTextLength,
		logger:    logger,
		tracer:    otel.Tracer("glimpsed/analyze"),
	}

	if !cfg.Semantic || cfg.Provider == "" || cfg.Provider == "heuristic" {
		a.semantic = false
		return a, nil
	}
	if cfg.APIKey == "" {
		logger.Warn("semantic analysis enabled but no API key set, using heuristic tier only",
			zap.String("provider", cfg.Provider))
		a.semantic = false
		return a, nil
	}

	client, err := newCompleter(ClientConfig{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.batcher = newBatcher(client, logger.Named("batch"))

	logger.Info("semantic analysis enabled",
		zap.String("provider", cfg.Provider),
		zap.Int("min_text_length", cfg.MinTextLength))
	return a, nil
}

// Start launches the batching queue when the LLM tier is enabled.
func (a *Analyzer) Start() {
	if a.batcher != nil {
		a.batcher.Start()
	}
}

// Stop shuts down the batching queue.
func (a *Analyzer) Stop() {
	if a.batcher != nil {
		a.batcher.Stop()
	}
}

// SemanticEnabled reports whether the LLM tier is active.
func (a *Analyzer) SemanticEnabled() bool {
	return a.semantic && a.batcher != nil
}

// Analyze produces a ScreenAnalysis for the request. It never returns an
// error: the heuristic tier always answers, and LLM failures are logged
// and absorbed.
func (a *Analyzer) Analyze(ctx context.Context, req Request) ScreenAnalysis {
	ctx, span := a.tracer.Start(ctx, "analyze.Analyze",
		trace.WithAttributes(
			attribute.String("app", req.AppName),
			attribute.Int("text_length", len(req.Text)),
		))
	defer span.End()

	result := a.heuristic.Analyze(req)

	if !a.SemanticEnabled() || len(req.Text) < a.minText {
		span.SetAttributes(attribute.String("tier", "heuristic"))
		return result
	}

	semantic, err := a.batcher.Submit(ctx, req)
	if err != nil {
		a.logger.Warn("semantic analysis failed, using heuristic result",
			zap.String("app", req.AppName),
			zap.Error(err))
		span.SetAttributes(attribute.String("tier", "heuristic_fallback"))
		return result
	}

	span.SetAttributes(attribute.String("tier", "llm"))
	return semantic
}
