// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/playexport/internal/models"
)

// MockSource is a test double for [services.PlaylistSource]
type MockSource struct {
	Playlists []models.Playlist
	Exports   map[string]*models.PlaylistExport
	Err       error

	mu      sync.Mutex
	fetched []string
}

func (m *MockSource) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Playlists, nil
}

func (m *MockSource) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	export, err := m.ExportPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return &export.Playlist, nil
}

func (m *MockSource) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, playlistID)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	export, ok := m.Exports[playlistID]
	if !ok {
		return nil, fmt.Errorf("playlist %s: not found", playlistID)
	}
	return export, nil
}

func (m *MockSource) Name() string { return "mock" }

// Fetched returns the playlist IDs passed to ExportPlaylist, in call order.
func (m *MockSource) Fetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetched...)
}

// ResolveFunc implements a resolver lookup.
type ResolveFunc func(ctx context.Context, title, artist string) (*models.ResolvedVideo, error)

// MockResolver is a test double for [services.VideoResolver] that records every call.
type MockResolver struct {
	Fn ResolveFunc

	mu    sync.Mutex
	calls []string
}

func (m *MockResolver) Name() string { return "mock" }

func (m *MockResolver) Resolve(ctx context.Context, title, artist string) (*models.ResolvedVideo, error) {
	m.mu.Lock()
	m.calls = append(m.calls, title)
	m.mu.Unlock()

	if m.Fn == nil {
		return &models.ResolvedVideo{VideoID: "vid-" + title}, nil
	}
	return m.Fn(ctx, title, artist)
}

// Calls returns the titles that were resolved.
func (m *MockResolver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Track builds a valid track titled title with one artist and album image.
func Track(id, title, artist string, durationMS int) *models.Track {
	return &models.Track{
		ID:         id,
		Title:      title,
		Artists:    []models.Artist{{Name: artist}},
		DurationMS: durationMS,
		Album:      models.Album{Name: "Album", Images: []models.Image{{URL: "http://img/" + id}}},
	}
}

// Items wraps tracks as playlist slots; nil entries become absent slots.
func Items(tracks ...*models.Track) []models.PlaylistItem {
	items := make([]models.PlaylistItem, len(tracks))
	for i, tr := range tracks {
		items[i] = models.PlaylistItem{Track: tr}
	}
	return items
}

// NumberedItems returns n slots with titles "t0" … "t{n-1}".
func NumberedItems(n int) []models.PlaylistItem {
	tracks := make([]*models.Track, n)
	for i := range tracks {
		id := fmt.Sprintf("t%d", i)
		tracks[i] = Track(id, id, "Artist", 1000*(i+1))
	}
	return Items(tracks...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
