package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playexport/internal/formatter"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/services"
	"github.com/desertthunder/playexport/internal/shared"
)

// RunRecorder stores the summary of a finished export.
type RunRecorder interface {
	SaveRun(run *models.ExportRun) error
}

// ExportOpts controls a single export.
type ExportOpts struct {
	OutputDir string // Directory for the CSV file (default: working directory)
	BatchSize int    // Overrides the pipeline batch size when > 0
	Report    bool   // Also write a Markdown report next to the CSV
}

// ExportResult contains all data from a finished export.
type ExportResult struct {
	Run        models.ExportRun
	Playlist   models.Playlist
	Results    []models.ResolutionResult
	ReportPath string
}

// Unresolved returns the results without a video.
func (r *ExportResult) Unresolved() []models.ResolutionResult {
	var out []models.ResolutionResult
	for _, res := range r.Results {
		if !res.Resolved() {
			out = append(out, res)
		}
	}
	return out
}

// Engine exports playlists from a [services.PlaylistSource] through a [Pipeline].
type Engine struct {
	source   services.PlaylistSource
	pipeline *Pipeline
	recorder RunRecorder
	logger   *log.Logger
}

// NewEngine creates an Engine. recorder may be nil.
func NewEngine(source services.PlaylistSource, pipeline *Pipeline, recorder RunRecorder, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{source: source, pipeline: pipeline, recorder: recorder, logger: logger.WithPrefix("engine")}
}

// Tracker exposes the pipeline's progress for concurrent readers.
func (e *Engine) Tracker() *ProgressTracker {
	return e.pipeline.Tracker()
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// FindPlaylist resolves ref to a playlist ID. ref may be a share link, a URI,
// [models.LikedSongsID], the (case-insensitive) name or ID of one of the user's playlists, or
// a bare Spotify ID. Names win over bare IDs.
func (e *Engine) FindPlaylist(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == models.LikedSongsID || services.IsPlaylistLink(ref) {
		return services.ParsePlaylistLink(ref)
	}

	playlists, err := e.source.GetPlaylists(ctx)
	if err != nil {
		if id, perr := services.ParsePlaylistLink(ref); perr == nil {
			e.logger.Debug("playlist listing failed, using ref as id", "ref", ref, "error", err)
			return id, nil
		}
		return "", fmt.Errorf("failed to get playlists: %w", err)
	}

	for _, pl := range playlists {
		if strings.EqualFold(pl.Name, ref) || pl.ID == ref {
			return pl.ID, nil
		}
	}
	if id, err := services.ParsePlaylistLink(ref); err == nil {
		return id, nil
	}
	if strings.EqualFold(ref, "liked songs") {
		return models.LikedSongsID, nil
	}
	return "", fmt.Errorf("%w: no playlist found with name '%s'", shared.ErrPlaylistNotFound, ref)
}

// Export fetches the playlist named by ref, resolves its tracks and writes the CSV.
//
// Failures to find or fetch the playlist are returned; per-track failures only show up as
// unresolved results.
func (e *Engine) Export(ctx context.Context, progress chan<- ProgressUpdate, ref string, opts ExportOpts) (*ExportResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: playlist source not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, fetchingSourceUpdate(1, 1, ref))

	id, err := e.FindPlaylist(ctx, ref)
	if err != nil {
		return nil, err
	}

	export, err := e.source.ExportPlaylist(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	e.sendProgress(progress, foundPlaylistUpdate(export))

	result, err := e.ExportFetched(ctx, progress, export, opts)
	if err != nil {
		return result, err
	}
	e.sendProgress(progress, completeUpdate(&result.Run))
	return result, nil
}

// ExportFetched runs the pipeline over an already fetched playlist and writes its CSV.
func (e *Engine) ExportFetched(ctx context.Context, progress chan<- ProgressUpdate, export *models.PlaylistExport, opts ExportOpts) (*ExportResult, error) {
	name := export.Playlist.Name
	onProgress := func(state models.ProgressState) {
		e.sendProgress(progress, resolveTracksUpdate(state))
	}

	results, err := e.pipeline.Run(ctx, export.Items, name, opts.BatchSize, onProgress)
	if err != nil {
		return nil, fmt.Errorf("export of %s interrupted: %w", name, err)
	}

	e.sendProgress(progress, writingExportUpdate(name))
	path, err := formatter.WriteCSVExport(results, name, opts.OutputDir)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{
		Run:      summarize(export, results, path),
		Playlist: export.Playlist,
		Results:  results,
	}

	if opts.Report {
		reportPath, err := formatter.WriteMarkdownReport(export.Playlist, results, opts.OutputDir)
		if err != nil {
			e.logger.Warn("failed to write report", "playlist", name, "error", err)
		}
		result.ReportPath = reportPath
	}

	if e.recorder != nil {
		if err := e.recorder.SaveRun(&result.Run); err != nil {
			e.logger.Warn("failed to record export run", "playlist", name, "error", err)
		}
	}

	e.logger.Info("export written", "playlist", name, "matched", result.Run.Matched, "total", result.Run.Total, "path", path)
	return result, nil
}

func summarize(export *models.PlaylistExport, results []models.ResolutionResult, path string) models.ExportRun {
	run := models.ExportRun{
		ID:           shared.GenerateID(),
		PlaylistID:   export.Playlist.ID,
		PlaylistName: export.Playlist.Name,
		Total:        len(export.Items),
		Skipped:      len(export.Items) - len(results),
		FilePath:     path,
		CreatedAt:    time.Now().UTC(),
	}
	for _, r := range results {
		if r.Resolved() {
			run.Matched++
		} else {
			run.Unresolved++
		}
	}
	return run
}

// QuotaExhausted reports whether every unresolved result failed on a quota or access limit.
// Used by callers to tell a rate-limited run from genuine misses.
func QuotaExhausted(results []models.ResolutionResult) bool {
	unresolved := 0
	for _, r := range results {
		if r.Resolved() {
			continue
		}
		unresolved++
		if !errors.Is(r.Err, shared.ErrQuotaExceeded) {
			return false
		}
	}
	return unresolved > 0
}
