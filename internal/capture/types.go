// Package capture produces screenshots of the active window, with a
// privacy exclusion list checked before any pixels are read and
// hash-based suppression of unchanged frames.
package capture

import (
	"context"
	"errors"
	"time"
)

// Sentinel skip reasons. Callers distinguish a skipped capture from a
// failed one with errors.Is.
var (
	// ErrExcluded means the active app matched the exclusion list. No
	// screenshot was taken.
	ErrExcluded = errors.New("active app is excluded from capture")

	// ErrDuplicate means the screen content is identical to the previous
	// frame. The screenshot file has already been removed.
	ErrDuplicate = errors.New("screen content unchanged since last capture")
)

// WindowInfo identifies the frontmost application window.
type WindowInfo struct {
	AppName     string
	WindowTitle string

	// WindowID is the OS window identifier (CGWindowID on macOS) used to
	// restrict the screenshot to this window. Zero means unresolved.
	WindowID int
}

// Frame is one successful, non-duplicate capture.
type Frame struct {
	// Path is the screenshot image on disk. The caller owns the file and
	// must remove it after text extraction.
	Path string

	// Hash is the SHA-256 of the image bytes, hex encoded.
	Hash string

	AppName     string
	WindowTitle string
	Timestamp   time.Time
}

// WindowResolver reports the frontmost window.
type WindowResolver interface {
	ActiveWindow(ctx context.Context) (WindowInfo, error)
}

// Screenshotter writes a screenshot of the identified window to path.
// Only that window is captured, never the full screen: background windows
// may belong to excluded apps.
type Screenshotter interface {
	Capture(ctx context.Context, windowID int, path string) error
}
