// Package ocr converts captured screen images into plain text.
//
// Extraction runs a primary high-accuracy recognizer and falls back to a
// lower-fidelity OS recognizer. Exhausting both is not an error: the
// pipeline treats empty text as "nothing to analyze". The package also
// exposes pure text-signal helpers (email, calendar, commitment phrases)
// consumed by the analyzer's heuristic tier.
package ocr

import "context"

// Region is a single recognized text region with its confidence.
type Region struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Result is the outcome of text extraction for one image.
type Result struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Regions    []Region `json:"regions,omitempty"`
}

// Empty reports whether extraction produced no usable text.
func (r Result) Empty() bool {
	return r.Text == ""
}

// Recognizer converts an image file into a Result.
type Recognizer interface {
	// Recognize extracts text from the image at path.
	Recognize(ctx context.Context, path string) (Result, error)

	// Name identifies the recognizer in logs.
	Name() string
}
