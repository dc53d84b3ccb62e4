package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/shared"
	"github.com/desertthunder/playexport/internal/tasks"
	"github.com/urfave/cli/v3"
)

const videoURLPrefix = "https://www.youtube.com/watch?v="

// PlaylistsList prints the user's playlists.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	source, err := r.playlistSource(ctx, !cmd.Bool("no-cache"))
	if err != nil {
		return err
	}

	playlists, err := source.GetPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("failed to get playlists: %w", err)
	}
	if limit := int(cmd.Int("limit")); limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	r.logger.Debug("fetched playlists", "count", len(playlists))

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	if len(playlists) == 0 {
		return r.writePlain("No playlists found\n")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "TRACKS", "OWNER")
	for _, pl := range playlists {
		t.Row(pl.ID, pl.Name, strconv.Itoa(pl.TrackCount), pl.Owner)
	}
	return r.writePlain("%s\n%d playlists\n", t.String(), len(playlists))
}

// PlaylistsShow prints every slot of one playlist.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.Args().First()
	if ref == "" {
		return fmt.Errorf("%w: playlist link, ID or name", shared.ErrMissingArgument)
	}

	source, err := r.playlistSource(ctx, !cmd.Bool("no-cache"))
	if err != nil {
		return err
	}

	id, err := tasks.NewEngine(source, nil, nil, r.logger).FindPlaylist(ctx, ref)
	if err != nil {
		return err
	}
	export, err := source.ExportPlaylist(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(export, cmd.Bool("pretty"))
	}

	r.writePlainHeader(export.Playlist.Name)
	if export.Playlist.Owner != "" {
		r.writePlain("by %s\n", export.Playlist.Owner)
	}
	for i, item := range export.Items {
		if item.Track == nil {
			r.writePlain("%3d. (unavailable)\n", i+1)
			continue
		}
		t := item.Track
		r.writePlain("%3d. %s - %s [%s]\n", i+1, t.Title, t.ArtistNames(), shared.FormatDuration(t.DurationMS/1000))
	}
	return r.writePlain("\n%d of %d slots playable\n", len(export.Tracks()), len(export.Items))
}

// Resolve looks up the best matching video for a single track.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	title, artist := cmd.Args().Get(0), cmd.Args().Get(1)
	if title == "" {
		return fmt.Errorf("%w: track title", shared.ErrMissingArgument)
	}

	resolver, err := r.videoResolver(ctx, cmd.String("backend"), !cmd.Bool("no-cache"))
	if err != nil {
		return err
	}

	r.logger.Debug("resolving track", "title", title, "artist", artist, "backend", resolver.Name())
	video, err := resolver.Resolve(ctx, title, artist)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(video, true)
	}

	r.writePlain("✓ %s\n", video.Title)
	r.writePlain("  URL:       %s%s\n", videoURLPrefix, video.VideoID)
	if video.DurationSec > 0 {
		r.writePlain("  Duration:  %s\n", shared.FormatDuration(video.DurationSec))
	}
	if thumb := video.BestThumbnail(); thumb != "" {
		r.writePlain("  Thumbnail: %s\n", thumb)
	}
	return nil
}

// pickPlaylist prompts for one of playlists and returns its ID.
func pickPlaylist(playlists []models.Playlist) (string, error) {
	if len(playlists) == 0 {
		return "", fmt.Errorf("%w: no playlists to choose from", shared.ErrPlaylistNotFound)
	}

	options := make([]huh.Option[string], 0, len(playlists)+1)
	options = append(options, huh.NewOption("Liked Songs", models.LikedSongsID))
	for _, pl := range playlists {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%d tracks)", pl.Name, pl.TrackCount), pl.ID))
	}

	var id string
	err := huh.NewSelect[string]().
		Title("Which playlist should be exported?").
		Options(options...).
		Value(&id).
		Run()
	if err != nil {
		return "", fmt.Errorf("playlist selection canceled: %w", err)
	}
	return id, nil
}
