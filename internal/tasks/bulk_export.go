package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/playexport/internal/formatter"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/shared"
	"golang.org/x/time/rate"
)

const (
	ManifestFilename   = "export_manifest.json"
	DefaultBulkWorkers = 2
	MaxBulkWorkers     = 10
	DefaultRateLimit   = 5.0
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	OutputDir  string  // Base output directory (default: playexport_{epoch})
	NumWorkers int     // Concurrent playlist fetchers (default: 2)
	RateLimit  float64 // Playlist fetches per second (default: 5)
	BatchSize  int     // Overrides the pipeline batch size when > 0
	Report     bool    // Write a Markdown report per playlist
}

// fetchJob is a fetched playlist (or the failure to fetch it) waiting for resolution.
type fetchJob struct {
	index  int
	id     string
	export *models.PlaylistExport
	err    error
}

// BulkExport exports multiple playlists with rate-limited fetching and progress tracking.
//
// Playlists are fetched by a pool of workers sharing one rate limiter. Fetched playlists are
// resolved and written one at a time in the calling goroutine. A failing playlist is recorded
// in the result and does not stop the others. The manifest is written even when ctx is
// canceled part way; playlists that were never fetched are recorded as failed. Results keep
// the order of ids.
func (e *Engine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*models.BulkExportResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: playlist source not initialized", shared.ErrServiceUnavailable)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("playexport_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = DefaultBulkWorkers
	}
	if opts.NumWorkers > MaxBulkWorkers {
		opts.NumWorkers = MaxBulkWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &models.BulkExportResult{
		TotalPlaylists:  len(ids),
		OutputDirectory: opts.OutputDir,
		ExportedAt:      time.Now().UTC(),
		Results:         make([]models.PlaylistExportResult, 0, len(ids)),
	}

	fetched := e.fetchAll(ctx, prog, ids, opts)
	exportOpts := ExportOpts{OutputDir: opts.OutputDir, BatchSize: opts.BatchSize, Report: opts.Report}

	slots := make([]*models.PlaylistExportResult, len(ids))
	completed := 0
	for job := range fetched {
		completed++
		res := models.PlaylistExportResult{PlaylistID: job.id, PlaylistName: fmt.Sprintf("Unknown (%s)", job.id)}

		if job.err != nil {
			res.Error = fmt.Errorf("failed to fetch playlist: %w", job.err)
		} else {
			res.PlaylistName = job.export.Playlist.Name
			e.sendProgress(prog, exportingPlaylistUpdate(completed, len(ids), res.PlaylistName))
			if out, err := e.ExportFetched(ctx, prog, job.export, exportOpts); err != nil {
				res.Error = err
			} else {
				res.Success = true
				res.Run = &out.Run
			}
		}

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.Run))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, len(ids), res.PlaylistName, res.Error))
		}
		slots[job.index] = &res
	}
	for _, res := range slots {
		if res != nil {
			result.Results = append(result.Results, *res)
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, ManifestFilename)
	if err := formatter.WriteBulkExportManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("bulk export interrupted: %w", err)
	}
	return result, nil
}

// fetchAll feeds ids to the fetch workers and returns the channel their results arrive on.
// The channel closes once every worker has exited.
func (e *Engine) fetchAll(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) <-chan fetchJob {
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	queue := make(chan fetchJob, len(ids))
	for i, id := range ids {
		queue <- fetchJob{index: i, id: id}
	}
	close(queue)

	out := make(chan fetchJob, len(ids))
	e.sendProgress(prog, fetchingSourceUpdate(1, len(ids), fmt.Sprintf("batch of %d", len(ids))))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.fetchWorker(ctx, &wg, limiter, queue, out)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// fetchWorker fetches playlists from the queue. Once the limiter gives up, the job in hand
// and everything still queued are reported as failed so no id goes missing.
func (e *Engine) fetchWorker(ctx context.Context, wg *sync.WaitGroup, limiter *rate.Limiter, queue <-chan fetchJob, out chan<- fetchJob) {
	defer wg.Done()

	for job := range queue {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			job.err = err
			out <- job
			for rest := range queue {
				rest.err = err
				out <- rest
			}
			return
		}

		job.export, job.err = e.source.ExportPlaylist(ctx, job.id)
		if job.err != nil {
			e.logger.Warn("playlist fetch failed", "id", job.id, "error", job.err)
		}
		out <- job
	}
}
