package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// frontmostScript resolves the frontmost process, its front window title,
// and the CoreGraphics id of that window. Output is three lines: app name,
// title, window id. The id is what screencapture -l needs to grab a single
// window rather than the whole display; it is looked up by matching the
// frontmost process name against the on-screen window list at layer 0.
const frontmostScript = `
ObjC.import('CoreGraphics');

const front = Application('System Events').applicationProcesses.whose({frontmost: true})[0];
const appName = front.name();
let title = '';
try { title = front.windows[0].name(); } catch (e) {}

let windowID = 0;
const list = $.CFBridgingRelease($.CGWindowListCopyWindowInfo(
	$.kCGWindowListOptionOnScreenOnly | $.kCGWindowListExcludeDesktopElements,
	$.kCGNullWindowID));
for (let i = 0; i < list.count; i++) {
	const w = list.objectAtIndex(i);
	if (ObjC.unwrap(w.objectForKey('kCGWindowLayer')) !== 0) continue;
	if (ObjC.unwrap(w.objectForKey('kCGWindowOwnerName')) !== appName) continue;
	windowID = ObjC.unwrap(w.objectForKey('kCGWindowNumber'));
	break;
}
appName + '\n' + title + '\n' + windowID;
`

// OSAScriptResolver resolves the frontmost window via osascript (JXA).
// Requires Accessibility and Screen Recording permission for the host
// process.
type OSAScriptResolver struct{}

// NewOSAScriptResolver creates the macOS window resolver.
func NewOSAScriptResolver() *OSAScriptResolver {
	return &OSAScriptResolver{}
}

func (r *OSAScriptResolver) ActiveWindow(ctx context.Context) (WindowInfo, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-l", "JavaScript", "-e", frontmostScript)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return WindowInfo{}, fmt.Errorf("osascript failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	lines := strings.SplitN(strings.TrimRight(stdout.String(), "\n"), "\n", 3)
	info := WindowInfo{AppName: strings.TrimSpace(lines[0])}
	if len(lines) > 1 {
		info.WindowTitle = strings.TrimSpace(lines[1])
	}
	if len(lines) > 2 {
		if id, err := strconv.Atoi(strings.TrimSpace(lines[2])); err == nil {
			info.WindowID = id
		}
	}
	if info.AppName == "" {
		return WindowInfo{}, fmt.Errorf("could not determine frontmost application")
	}
	return info, nil
}

// ScreencaptureShooter captures a single window via the macOS
// screencapture utility. -x suppresses the shutter sound, -o omits the
// window shadow, -l restricts the grab to one window id.
type ScreencaptureShooter struct{}

// NewScreencaptureShooter creates the macOS screenshotter.
func NewScreencaptureShooter() *ScreencaptureShooter {
	return &ScreencaptureShooter{}
}

func (s *ScreencaptureShooter) Capture(ctx context.Context, windowID int, path string) error {
	// Without a window id the only thing screencapture can grab is the
	// full display, which would leak background windows. Fail instead;
	// the next capture tick retries.
	if windowID <= 0 {
		return fmt.Errorf("window id is required for window-only capture")
	}

	cmd := exec.CommandContext(ctx, "screencapture", "-x", "-o", "-l", strconv.Itoa(windowID), "-t", "png", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("screencapture failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

var _ WindowResolver = (*OSAScriptResolver)(nil)
var _ Screenshotter = (*ScreencaptureShooter)(nil)
