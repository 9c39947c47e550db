package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Fallback recognizers report this fixed confidence when they return text;
// they expose no per-region scores.
const fallbackConfidence = 0.8

// VisionRecognizer is the primary high-accuracy path. It shells out to the
// bundled vision helper, which emits JSON regions with per-region
// confidence scores.
type VisionRecognizer struct {
	// HelperPath is the vision helper binary. Default: "glimpsed-vision".
	HelperPath string
}

// visionOutput is the helper's JSON output format.
type visionOutput struct {
	Regions []Region `json:"regions"`
}

// Name implements Recognizer.
func (v *VisionRecognizer) Name() string { return "vision" }

// Recognize implements Recognizer.
func (v *VisionRecognizer) Recognize(ctx context.Context, path string) (Result, error) {
	helper := v.HelperPath
	if helper == "" {
		helper = "glimpsed-vision"
	}

	out, err := exec.CommandContext(ctx, helper, "--json", path).Output()
	if err != nil {
		return Result{}, fmt.Errorf("vision helper failed: %w", err)
	}

	var parsed visionOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Result{}, fmt.Errorf("vision helper output malformed: %w", err)
	}

	lines := make([]string, 0, len(parsed.Regions))
	for _, r := range parsed.Regions {
		if r.Text != "" {
			lines = append(lines, r.Text)
		}
	}

	return Result{
		Text:       strings.Join(lines, "\n"),
		Confidence: MeanConfidence(parsed.Regions),
		Regions:    parsed.Regions,
	}, nil
}

// TesseractRecognizer is the degraded fallback path. It invokes the
// system tesseract CLI and assigns a fixed confidence when any text comes
// back, since tesseract's stdout mode carries no per-region scores.
type TesseractRecognizer struct {
	// BinaryPath overrides the tesseract binary. Default: "tesseract".
	BinaryPath string
}

// Name implements Recognizer.
func (t *TesseractRecognizer) Name() string { return "tesseract" }

// Recognize implements Recognizer.
func (t *TesseractRecognizer) Recognize(ctx context.Context, path string) (Result, error) {
	bin := t.BinaryPath
	if bin == "" {
		bin = "tesseract"
	}

	// "stdout" makes tesseract print recognized text instead of writing files.
	out, err := exec.CommandContext(ctx, bin, path, "stdout").Output()
	if err != nil {
		return Result{}, fmt.Errorf("tesseract failed: %w", err)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return Result{}, nil
	}
	return Result{Text: text, Confidence: fallbackConfidence}, nil
}

// DefaultRecognizers returns the production recognizer chain: vision
// primary, tesseract fallback.
func DefaultRecognizers() []Recognizer {
	return []Recognizer{
		&VisionRecognizer{},
		&TesseractRecognizer{},
	}
}

// Ensure interfaces are implemented.
var _ Recognizer = (*VisionRecognizer)(nil)
var _ Recognizer = (*TesseractRecognizer)(nil)
