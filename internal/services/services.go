// package services defines the playlist source and video resolver collaborators
//
// Spotify (playlists), Invidious and the YouTube Data API (video search)
package services

import (
	"context"
	"strings"

	"github.com/desertthunder/playexport/internal/models"
)

// PlaylistSource supplies playlists and their ordered track slots.
type PlaylistSource interface {
	// GetPlaylists retrieves all playlists of the authenticated user.
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)

	// GetPlaylist retrieves playlist metadata by ID.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// ExportPlaylist retrieves a playlist with every slot, following pagination.
	// [models.LikedSongsID] selects the user's saved tracks.
	ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// VideoResolver finds the best matching video for a track.
//
// A nil video is always returned with a non-nil error; the error wraps
// [shared.ErrNoMatch], [shared.ErrQuotaExceeded] or [shared.ErrAPIRequest].
// Callers treat every error as a miss for that track.
type VideoResolver interface {
	Resolve(ctx context.Context, title, artist string) (*models.ResolvedVideo, error)
	Name() string
}

// BuildQuery returns the free-text search query for a track.
func BuildQuery(title, artist string) string {
	return strings.TrimSpace(strings.TrimSpace(title) + " " + strings.TrimSpace(artist) + " official audio")
}
