package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/services"
	"github.com/desertthunder/playexport/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize = 3
	DefaultDelay     = time.Second
)

// PipelineOpts configures a [Pipeline].
type PipelineOpts struct {
	BatchSize int           // Tracks resolved concurrently per chunk (default: 3)
	Delay     time.Duration // Pause between chunks (default: 1s); negative disables it
	Tracker   *ProgressTracker
	Logger    *log.Logger
}

// Pipeline resolves playlist tracks to videos in sequential chunks of concurrent lookups.
type Pipeline struct {
	resolver  services.VideoResolver
	batchSize int
	delay     time.Duration
	tracker   *ProgressTracker
	logger    *log.Logger
}

func NewPipeline(resolver services.VideoResolver, opts PipelineOpts) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Tracker == nil {
		opts.Tracker = NewProgressTracker()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Pipeline{
		resolver:  resolver,
		batchSize: opts.BatchSize,
		delay:     opts.Delay,
		tracker:   opts.Tracker,
		logger:    opts.Logger.WithPrefix("pipeline"),
	}
}

// Tracker returns the tracker the pipeline publishes to.
func (p *Pipeline) Tracker() *ProgressTracker {
	return p.tracker
}

// Run resolves every track in items and returns one result per present track, in input order.
//
// Items are split into chunks of batchSize (the pipeline default when batchSize <= 0).
// Chunks run one after another with the pacing delay in between; the tracks of a chunk
// are resolved concurrently. Absent tracks are skipped. A failed lookup yields a result
// with a nil Video and the failure in Err; it never stops the run.
//
// onProgress, when non-nil, is called with the starting state, after every chunk, and
// with the idle state once the run ends. If ctx is canceled, Run stops before the next
// chunk and returns the results gathered so far along with the context error.
func (p *Pipeline) Run(ctx context.Context, items []models.PlaylistItem, playlistName string, batchSize int, onProgress ProgressFunc) ([]models.ResolutionResult, error) {
	if batchSize <= 0 {
		batchSize = p.batchSize
	}

	total := len(items)
	slots := make([]*models.ResolutionResult, total)
	logger := p.logger.With("playlist", playlistName)

	p.publish(onProgress, models.ProgressState{Current: 0, Total: total, PlaylistName: playlistName})
	defer p.publish(onProgress, models.ProgressState{})

	chunks := 0
	for start := 0; start < total; start += batchSize {
		if start > 0 {
			if err := sleepWithContext(ctx, p.delay); err != nil {
				return collect(slots), err
			}
		}
		if err := ctx.Err(); err != nil {
			return collect(slots), err
		}

		end := min(start+batchSize, total)
		p.runChunk(ctx, items, slots, start, end)
		chunks++

		logger.Debug("chunk resolved", "chunk", chunks, "current", end, "total", total)
		p.publish(onProgress, models.ProgressState{Current: end, Total: total, PlaylistName: playlistName})
	}

	results := collect(slots)
	logger.Info("resolution finished", "chunks", chunks, "results", len(results), "skipped", total-len(results))
	return results, nil
}

// runChunk resolves items[start:end] concurrently and writes each result into its slot.
func (p *Pipeline) runChunk(ctx context.Context, items []models.PlaylistItem, slots []*models.ResolutionResult, start, end int) {
	var g errgroup.Group
	g.SetLimit(end - start)

	for i := start; i < end; i++ {
		track := items[i].Track
		if track == nil {
			continue
		}
		g.Go(func() error {
			result := p.resolveOne(ctx, i, *track)
			slots[i] = &result
			return nil
		})
	}
	_ = g.Wait()
}

// resolveOne never fails: errors and panics from the resolver become a miss.
func (p *Pipeline) resolveOne(ctx context.Context, index int, track models.Track) (result models.ResolutionResult) {
	result = models.ResolutionResult{Index: index, Track: track}

	defer func() {
		if r := recover(); r != nil {
			result.Video = nil
			result.Err = fmt.Errorf("%w: resolver panicked: %v", shared.ErrAPIRequest, r)
			p.logger.Error("resolver panicked", "track", track.Title, "panic", r)
		}
	}()

	video, err := p.resolver.Resolve(ctx, track.Title, track.PrimaryArtist())
	switch {
	case err != nil:
		result.Err = err
		p.logger.Debug("track unresolved", "track", track.Title, "artist", track.PrimaryArtist(), "error", err)
	case video == nil:
		result.Err = fmt.Errorf("%w: %q", shared.ErrNoMatch, track.Title)
	default:
		result.Video = video
	}
	return result
}

func (p *Pipeline) publish(onProgress ProgressFunc, state models.ProgressState) {
	p.tracker.Store(state)
	if onProgress != nil {
		onProgress(state)
	}
}

// collect drops empty slots, keeping input order.
func collect(slots []*models.ResolutionResult) []models.ResolutionResult {
	results := make([]models.ResolutionResult, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			results = append(results, *s)
		}
	}
	return results
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("pipeline canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
