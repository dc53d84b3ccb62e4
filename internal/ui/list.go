package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/shared"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = trackItem{}
)

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	if i.playlist.Owner != "" {
		desc = fmt.Sprintf("%s • by %s", desc, i.playlist.Owner)
	}
	return desc
}

// trackItem wraps a [models.PlaylistItem] to implement [list.Item]. Absent tracks are shown
// as unavailable since they are skipped by the export.
type trackItem struct {
	item models.PlaylistItem
}

func (i trackItem) FilterValue() string {
	if i.item.Track == nil {
		return ""
	}
	return i.item.Track.Title
}

func (i trackItem) Title() string {
	if i.item.Track == nil {
		return "(unavailable)"
	}
	return i.item.Track.Title
}

func (i trackItem) Description() string {
	t := i.item.Track
	if t == nil {
		return "local file or episode, skipped"
	}
	desc := fmt.Sprintf("%s • %s", t.ArtistNames(), shared.FormatDuration(t.DurationMS/1000))
	if t.Album.Name != "" {
		desc = fmt.Sprintf("%s • %s", desc, t.Album.Name)
	}
	return desc
}

func playlistItems(playlists []models.Playlist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, pl := range playlists {
		items[i] = playlistItem{playlist: pl}
	}
	return items
}

func trackItems(export *models.PlaylistExport) []list.Item {
	items := make([]list.Item, len(export.Items))
	for i, it := range export.Items {
		items[i] = trackItem{item: it}
	}
	return items
}
