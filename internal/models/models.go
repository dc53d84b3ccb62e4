package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidModel is returned by constructors when required fields are missing.
var ErrInvalidModel = errors.New("invalid model")

// LikedSongsID identifies the pseudo-playlist built from the user's saved tracks.
const LikedSongsID = "liked-songs"

// Artist is a credited performer of a [Track].
type Artist struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Image is cover art at a given size. Width and Height are zero when unknown.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Album groups a track's release metadata.
type Album struct {
	ID     string  `json:"id,omitempty"`
	Name   string  `json:"name"`
	Images []Image `json:"images,omitempty"`
}

// Track is a song as described by the music service.
type Track struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artists    []Artist `json:"artists"`
	DurationMS int      `json:"duration_ms"`
	Album      Album    `json:"album"`
}

// NewTrack validates and constructs a [Track].
func NewTrack(id, title string, artists []Artist, durationMS int, album Album) (*Track, error) {
	t := &Track{ID: id, Title: title, Artists: artists, DurationMS: durationMS, Album: album}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Track) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: track id is required", ErrInvalidModel)
	case t.Title == "":
		return fmt.Errorf("%w: track title is required", ErrInvalidModel)
	case t.DurationMS < 0:
		return fmt.Errorf("%w: track duration must not be negative", ErrInvalidModel)
	}
	return nil
}

// PrimaryArtist returns the first credited artist's name, or "" when there is none.
func (t *Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// ArtistNames joins all artist names with ", ".
func (t *Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// AlbumArt returns the URL of the first album image, or "".
func (t *Track) AlbumArt() string {
	if len(t.Album.Images) == 0 {
		return ""
	}
	return t.Album.Images[0].URL
}

// PlaylistItem is one slot of a playlist. Track is nil when the item is
// unavailable (removed, local-only, or region-locked).
type PlaylistItem struct {
	Track   *Track    `json:"track"`
	AddedAt time.Time `json:"added_at,omitempty"`
}

// Playlist is playlist metadata from the music service.
type Playlist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Owner       string  `json:"owner,omitempty"`
	TrackCount  int     `json:"track_count"`
	Public      bool    `json:"public"`
	Images      []Image `json:"images,omitempty"`
}

// PlaylistExport is a playlist with all of its slots, in playlist order.
type PlaylistExport struct {
	Playlist Playlist       `json:"playlist"`
	Items    []PlaylistItem `json:"items"`
}

// Tracks returns the non-nil tracks of the export in order.
func (p *PlaylistExport) Tracks() []Track {
	tracks := make([]Track, 0, len(p.Items))
	for _, item := range p.Items {
		if item.Track != nil {
			tracks = append(tracks, *item.Track)
		}
	}
	return tracks
}

// Thumbnail is one preview image of a video. Quality is a tag such as
// "default", "medium" or "high".
type Thumbnail struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// ResolvedVideo is the best video match for a track.
//
// Only VideoID is guaranteed; metadata fields are zero when the detail lookup failed.
type ResolvedVideo struct {
	VideoID     string      `json:"video_id"`
	Title       string      `json:"title,omitempty"`
	Thumbnails  []Thumbnail `json:"thumbnails,omitempty"`
	DurationSec int         `json:"duration_sec,omitempty"`
	ViewCount   int64       `json:"view_count,omitempty"`
}

// NewResolvedVideo validates and constructs a [ResolvedVideo].
func NewResolvedVideo(videoID, title string) (*ResolvedVideo, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, fmt.Errorf("%w: video id is required", ErrInvalidModel)
	}
	return &ResolvedVideo{VideoID: videoID, Title: title}, nil
}

// Thumbnail returns the first thumbnail with the given quality tag.
func (v *ResolvedVideo) Thumbnail(quality string) (Thumbnail, bool) {
	for _, th := range v.Thumbnails {
		if th.Quality == quality {
			return th, true
		}
	}
	return Thumbnail{}, false
}

// BestThumbnail returns the URL of the preferred thumbnail, or "" when there are none.
func (v *ResolvedVideo) BestThumbnail() string {
	return BestThumbnail(v.Thumbnails)
}

// BestThumbnail picks the "high" thumbnail, else "medium", else the first one.
func BestThumbnail(thumbnails []Thumbnail) string {
	for _, quality := range []string{"high", "medium"} {
		for _, th := range thumbnails {
			if th.Quality == quality {
				return th.URL
			}
		}
	}
	if len(thumbnails) > 0 {
		return thumbnails[0].URL
	}
	return ""
}

// ResolutionResult pairs a source track with its resolved video.
//
// Video is nil when the track could not be resolved; Err then records why.
// Index is the track's position in the pipeline input.
type ResolutionResult struct {
	Index int            `json:"index"`
	Track Track          `json:"track"`
	Video *ResolvedVideo `json:"video,omitempty"`
	Err   error          `json:"-"`
}

func (r ResolutionResult) Resolved() bool {
	return r.Video != nil
}

// ProgressState is a snapshot of a running export. The zero value means idle.
type ProgressState struct {
	Current      int    `json:"current"`
	Total        int    `json:"total"`
	PlaylistName string `json:"playlist_name"`
}

func (p ProgressState) Idle() bool {
	return p == ProgressState{}
}

// Percent returns Current/Total in the range [0, 1], or 0 when Total is zero.
func (p ProgressState) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total)
}

func (p ProgressState) String() string {
	return fmt.Sprintf("%s %d/%d", p.PlaylistName, p.Current, p.Total)
}

// ExportHeader lists the CSV columns of an [ExportRow] in output order.
var ExportHeader = []string{"PlaylistBrowseId", "PlaylistName", "MediaId", "Title", "Artists", "Duration", "ThumbnailUrl"}

// ExportRow is one exported track. PlaylistBrowseID is always empty.
type ExportRow struct {
	PlaylistBrowseID string
	PlaylistName     string
	MediaID          string
	Title            string
	Artists          string
	Duration         string
	ThumbnailURL     string
}

// Fields returns the row's columns in [ExportHeader] order.
func (r ExportRow) Fields() []string {
	return []string{r.PlaylistBrowseID, r.PlaylistName, r.MediaID, r.Title, r.Artists, r.Duration, r.ThumbnailURL}
}

// Cache is a key/value store whose entries expire after a time-to-live.
//
// Get reports false for missing and expired keys alike.
type Cache interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	// Clear removes every entry whose key starts with prefix, and returns the number removed.
	Clear(prefix string) (int, error)
}

// ExportRun summarizes one completed playlist export.
type ExportRun struct {
	ID           string    `json:"id"`
	PlaylistID   string    `json:"playlist_id"`
	PlaylistName string    `json:"playlist_name"`
	Total        int       `json:"total"`
	Matched      int       `json:"matched"`
	Unresolved   int       `json:"unresolved"`
	Skipped      int       `json:"skipped"`
	FilePath     string    `json:"file_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// PlaylistExportResult is the outcome of one playlist within a bulk export.
type PlaylistExportResult struct {
	PlaylistID   string     `json:"playlist_id"`
	PlaylistName string     `json:"playlist_name"`
	Success      bool       `json:"success"`
	Run          *ExportRun `json:"run,omitempty"`
	Error        error      `json:"-"`
	ErrorMessage string     `json:"error,omitempty"`
}

// BulkExportResult summarizes a bulk export and is written as its manifest.
type BulkExportResult struct {
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"-"`
	ExportedAt        time.Time              `json:"exported_at"`
	Results           []PlaylistExportResult `json:"results"`
}
