package capture

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	window WindowInfo
	err    error
}

func (f *fakeResolver) ActiveWindow(ctx context.Context) (WindowInfo, error) {
	return f.window, f.err
}

// fakeShooter writes fixed bytes to the requested path.
type fakeShooter struct {
	content      []byte
	calls        int
	lastWindowID int
}

func (f *fakeShooter) Capture(ctx context.Context, windowID int, path string) error {
	f.calls++
	f.lastWindowID = windowID
	return os.WriteFile(path, f.content, 0o600)
}

func newTestSource(t *testing.T, resolver WindowResolver, shooter Screenshotter, excluded []string) *Source {
	t.Helper()
	s, err := NewSource(resolver, shooter, excluded, nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	return s
}

func TestCaptureProducesFrame(t *testing.T) {
	resolver := &fakeResolver{window: WindowInfo{AppName: "Mail", WindowTitle: "Inbox"}}
	shooter := &fakeShooter{content: []byte("png-bytes")}
	s := newTestSource(t, resolver, shooter, nil)

	frame, err := s.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Mail", frame.AppName)
	assert.Equal(t, "Inbox", frame.WindowTitle)
	assert.NotEmpty(t, frame.Hash)
	assert.FileExists(t, frame.Path)
}

// The shooter is always pointed at the resolved window, never the screen.
func TestCaptureTargetsResolvedWindow(t *testing.T) {
	resolver := &fakeResolver{window: WindowInfo{AppName: "Mail", WindowTitle: "Inbox", WindowID: 4242}}
	shooter := &fakeShooter{content: []byte("pixels")}
	s := newTestSource(t, resolver, shooter, nil)

	_, err := s.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4242, shooter.lastWindowID)
}

// Identical screen content is suppressed; new content resets the watermark.
func TestCaptureDeduplicates(t *testing.T) {
	resolver := &fakeResolver{window: WindowInfo{AppName: "Mail"}}
	shooter := &fakeShooter{content: []byte("same-bytes")}
	s := newTestSource(t, resolver, shooter, nil)

	first, err := s.Capture(context.Background())
	require.NoError(t, err)

	dup, err := s.Capture(context.Background())
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Nil(t, dup)

	// The duplicate's file is cleaned up; the first frame's is not.
	assert.FileExists(t, first.Path)

	shooter.content = []byte("different-bytes")
	second, err := s.Capture(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, second.Hash)
}

func TestCaptureExcludedAppSkipsScreenshot(t *testing.T) {
	resolver := &fakeResolver{window: WindowInfo{AppName: "1Password 8", WindowTitle: "Vault"}}
	shooter := &fakeShooter{content: []byte("secret pixels")}
	s := newTestSource(t, resolver, shooter, []string{"1password"})

	frame, err := s.Capture(context.Background())
	assert.ErrorIs(t, err, ErrExcluded)
	assert.Nil(t, frame)
	assert.Zero(t, shooter.calls, "excluded apps must never be screenshotted")
}

func TestCaptureExclusionMatchesWindowTitle(t *testing.T) {
	resolver := &fakeResolver{window: WindowInfo{AppName: "Safari", WindowTitle: "Private Browsing - Bank"}}
	shooter := &fakeShooter{content: []byte("pixels")}
	s := newTestSource(t, resolver, shooter, []string{"private browsing"})

	_, err := s.Capture(context.Background())
	assert.ErrorIs(t, err, ErrExcluded)
}

func TestSetExcludedAppsAppliesImmediately(t *testing.T) {
	resolver := &fakeResolver{window: WindowInfo{AppName: "NotesApp"}}
	shooter := &fakeShooter{content: []byte("pixels")}
	s := newTestSource(t, resolver, shooter, nil)

	_, err := s.Capture(context.Background())
	require.NoError(t, err)

	s.SetExcludedApps([]string{"notesapp"})
	_, err = s.Capture(context.Background())
	assert.ErrorIs(t, err, ErrExcluded)
}
