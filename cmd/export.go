package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/repositories"
	"github.com/desertthunder/playexport/internal/shared"
	"github.com/desertthunder/playexport/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ExportRun exports one playlist to a CSV file, prompting for the playlist when --playlist
// is not given.
func (r *Runner) ExportRun(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine(ctx, cmd)
	if err != nil {
		return err
	}

	ref := cmd.String("playlist")
	if ref == "" {
		if ref, err = r.choosePlaylist(ctx, cmd); err != nil {
			return err
		}
	}

	opts := tasks.ExportOpts{
		OutputDir: r.outputDir(cmd),
		BatchSize: int(cmd.Int("batch-size")),
		Report:    cmd.Bool("report"),
	}

	r.logger.Info("starting export", "playlist", ref, "output", opts.OutputDir)

	var result *tasks.ExportResult
	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var err error
		result, err = engine.Export(ctx, progress, ref, opts)
		return err
	})
	if err != nil {
		return err
	}

	run := result.Run
	r.writePlainln("✓ Exported %s", run.PlaylistName)
	r.writePlain("  Matched:    %d/%d\n", run.Matched, run.Total)
	if run.Skipped > 0 {
		r.writePlain("  Skipped:    %d unavailable\n", run.Skipped)
	}
	r.writePlain("  CSV:        %s\n", run.FilePath)
	if result.ReportPath != "" {
		r.writePlain("  Report:     %s\n", result.ReportPath)
	}

	if unresolved := result.Unresolved(); len(unresolved) > 0 {
		r.writePlainln("Unresolved tracks (%d):", len(unresolved))
		for _, res := range unresolved {
			r.writePlain("  - %s - %s: %v\n", res.Track.Title, res.Track.ArtistNames(), res.Err)
		}
	}
	if tasks.QuotaExhausted(result.Results) {
		r.writePlainln("⚠ Every failed lookup hit a quota or rate limit. Try again later or use --backend.")
	}
	return nil
}

// ExportBulk exports several playlists into one directory and writes a manifest.
func (r *Runner) ExportBulk(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.engine(ctx, cmd)
	if err != nil {
		return err
	}

	ids := cmd.Args().Slice()
	if cmd.Bool("all") {
		source, err := r.playlistSource(ctx, !cmd.Bool("no-cache"))
		if err != nil {
			return err
		}
		playlists, err := source.GetPlaylists(ctx)
		if err != nil {
			return fmt.Errorf("failed to get playlists: %w", err)
		}
		for _, pl := range playlists {
			ids = append(ids, pl.ID)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: pass playlist IDs or --all", shared.ErrMissingArgument)
	}

	conf := r.cfg().Export
	opts := tasks.BulkExportOpts{
		OutputDir:  cmd.String("output"),
		NumWorkers: conf.BulkWorkers,
		RateLimit:  conf.RequestsPerSecond,
		BatchSize:  int(cmd.Int("batch-size")),
		Report:     cmd.Bool("report"),
	}
	if workers := int(cmd.Int("workers")); workers > 0 {
		opts.NumWorkers = workers
	}
	if rps := cmd.Float("rate"); rps > 0 {
		opts.RateLimit = rps
	}

	r.logger.Info("starting bulk export", "playlists", len(ids), "workers", opts.NumWorkers)

	var result *models.BulkExportResult
	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var err error
		result, err = engine.BulkExport(ctx, progress, ids, opts)
		return err
	})
	if result != nil {
		r.writePlainHeader("Bulk export summary")
		r.writePlain("Successful: %d\n", result.SuccessfulExports)
		r.writePlain("Failed:     %d\n", result.FailedExports)
		r.writePlain("Directory:  %s\n", result.OutputDirectory)
		if result.ManifestPath != "" {
			r.writePlain("Manifest:   %s\n", result.ManifestPath)
		}
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  ✗ %s: %s\n", res.PlaylistName, res.ErrorMessage)
			}
		}
	}
	if err != nil {
		return err
	}
	if result.SuccessfulExports == 0 {
		return errors.New("no playlist could be exported")
	}
	return nil
}

// ExportHistory lists recorded export runs.
func (r *Runner) ExportHistory(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	repo := repositories.NewExportRunRepository(db)

	var runs []models.ExportRun
	if id := cmd.String("playlist"); id != "" {
		runs, err = repo.ForPlaylist(id)
	} else {
		runs, err = repo.List(int(cmd.Int("limit")))
	}
	if err != nil {
		return fmt.Errorf("failed to load export history: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}
	if len(runs) == 0 {
		return r.writePlain("No exports recorded yet\n")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("WHEN", "PLAYLIST", "MATCHED", "SKIPPED", "FILE")
	for _, run := range runs {
		t.Row(
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			run.PlaylistName,
			fmt.Sprintf("%d/%d", run.Matched, run.Total),
			strconv.Itoa(run.Skipped),
			run.FilePath,
		)
	}
	return r.writePlain("%s\n", t.String())
}

// withProgress runs fn with a progress channel whose updates are printed as they arrive.
// All updates are printed before withProgress returns.
func (r *Runner) withProgress(fn func(progress chan<- tasks.ProgressUpdate) error) error {
	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			r.printProgress(update)
		}
	}()

	err := fn(progress)
	close(progress)
	<-done
	return err
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.ResolveTracks:
		if state, ok := update.Data.(models.ProgressState); ok && state.Idle() {
			return
		}
		r.writePlain("  %s\n", update.Message)
	case tasks.Complete:
		r.logger.Debug(update.Message)
	default:
		r.writePlain("%s\n", update.Message)
	}
}

// choosePlaylist lets the user pick a playlist when none was named on the command line.
func (r *Runner) choosePlaylist(ctx context.Context, cmd *cli.Command) (string, error) {
	source, err := r.playlistSource(ctx, !cmd.Bool("no-cache"))
	if err != nil {
		return "", err
	}
	playlists, err := source.GetPlaylists(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get playlists: %w", err)
	}
	return r.pick(playlists)
}

func (r *Runner) outputDir(cmd *cli.Command) string {
	if dir := cmd.String("output"); dir != "" {
		return dir
	}
	return r.cfg().Export.OutputDir
}
