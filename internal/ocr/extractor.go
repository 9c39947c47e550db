package ocr

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Extractor runs recognizers in order until one produces text.
type Extractor struct {
	recognizers []Recognizer
	timeout     time.Duration
	logger      *zap.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithTimeout bounds each recognizer invocation. Default: 30s.
func WithTimeout(d time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewExtractor creates an extractor over the given recognizers, tried in
// order. With no recognizers every extraction yields an empty Result.
func NewExtractor(recognizers []Recognizer, logger *zap.Logger, opts ...ExtractorOption) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		recognizers: recognizers,
		timeout:     defaultTimeout,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract converts the image at path into text.
//
// Each recognizer gets its own bounded attempt; the first non-empty result
// wins. All recognizers failing or returning nothing yields a zero Result;
// downstream short-circuits on empty text.
func (e *Extractor) Extract(ctx context.Context, path string) Result {
	for _, r := range e.recognizers {
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		result, err := r.Recognize(attemptCtx, path)
		cancel()

		if err != nil {
			e.logger.Debug("recognizer failed",
				zap.String("recognizer", r.Name()),
				zap.Error(err))
			continue
		}
		if result.Empty() {
			continue
		}
		return result
	}
	return Result{}
}

// MeanConfidence computes the mean of per-region confidences, 0 if there
// are no regions.
func MeanConfidence(regions []Region) float64 {
	if len(regions) == 0 {
		return 0
	}
	var sum float64
	for _, r := range regions {
		sum += r.Confidence
	}
	return sum / float64(len(regions))
}
