package capture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultCaptureTimeout = 5 * time.Second

// Source takes privacy-checked, deduplicated screenshots of the active
// window. The exclusion list may be swapped at runtime via
// SetExcludedApps, so it sits behind its own mutex.
type Source struct {
	resolver WindowResolver
	shooter  Screenshotter
	timeout  time.Duration
	tmpDir   string
	logger   *zap.Logger

	mu       sync.Mutex
	excluded []string
	lastHash string
}

// Option configures a Source.
type Option func(*Source)

// WithTimeout bounds each capture attempt (window resolution plus
// screenshot).
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithTempDir overrides where screenshot files are written.
func WithTempDir(dir string) Option {
	return func(s *Source) {
		if dir != "" {
			s.tmpDir = dir
		}
	}
}

// NewSource creates a capture source. excludedApps are matched
// case-insensitively as substrings of the app name or window title.
func NewSource(resolver WindowResolver, shooter Screenshotter, excludedApps []string, logger *zap.Logger, opts ...Option) (*Source, error) {
	if resolver == nil {
		return nil, fmt.Errorf("window resolver is required")
	}
	if shooter == nil {
		return nil, fmt.Errorf("screenshotter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Source{
		resolver: resolver,
		shooter:  shooter,
		timeout:  defaultCaptureTimeout,
		tmpDir:   os.TempDir(),
		logger:   logger,
		excluded: normalizeExclusions(excludedApps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetExcludedApps replaces the exclusion list. Used by config reload.
func (s *Source) SetExcludedApps(apps []string) {
	normalized := normalizeExclusions(apps)
	s.mu.Lock()
	s.excluded = normalized
	s.mu.Unlock()
	s.logger.Info("capture exclusion list updated", zap.Int("entries", len(normalized)))
}

// Capture resolves the active window, checks the exclusion list, takes a
// screenshot, and suppresses frames identical to the previous one.
// Skips return ErrExcluded or ErrDuplicate; anything else is a failure.
func (s *Source) Capture(ctx context.Context) (*Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	window, err := s.resolver.ActiveWindow(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active window: %w", err)
	}

	if match := s.exclusionMatch(window); match != "" {
		s.logger.Debug("skipping capture of excluded app",
			zap.String("app", window.AppName),
			zap.String("matched", match))
		return nil, ErrExcluded
	}

	path := filepath.Join(s.tmpDir, fmt.Sprintf("glimpsed-%d.png", time.Now().UnixNano()))
	if err := s.shooter.Capture(ctx, window.WindowID, path); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	hash, err := hashFile(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to hash screenshot: %w", err)
	}

	s.mu.Lock()
	duplicate := hash == s.lastHash
	if !duplicate {
		s.lastHash = hash
	}
	s.mu.Unlock()

	if duplicate {
		os.Remove(path)
		return nil, ErrDuplicate
	}

	return &Frame{
		Path:        path,
		Hash:        hash,
		AppName:     window.AppName,
		WindowTitle: window.WindowTitle,
		Timestamp:   time.Now(),
	}, nil
}

// exclusionMatch returns the exclusion entry the window matched, or "".
func (s *Source) exclusionMatch(w WindowInfo) string {
	app := strings.ToLower(w.AppName)
	title := strings.ToLower(w.WindowTitle)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.excluded {
		if strings.Contains(app, e) || strings.Contains(title, e) {
			return e
		}
	}
	return ""
}

func normalizeExclusions(apps []string) []string {
	out := make([]string, 0, len(apps))
	for _, a := range apps {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
