package tasks

import (
	"fmt"

	"github.com/desertthunder/playexport/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	ResolveTracks
	WriteExport
	ExportPlaylist
	Complete
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case ResolveTracks:
		return "resolve_tracks"
	case WriteExport:
		return "write_export"
	case ExportPlaylist:
		return "export_playlist"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func fetchingSourceUpdate(step, total int, ref string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching playlist %s from Spotify...", ref),
	}
}

func foundPlaylistUpdate(export *models.PlaylistExport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", export.Playlist.Name, len(export.Items)),
		Data:    export,
	}
}

// resolveTracksUpdate carries the pipeline's [models.ProgressState] as Data.
func resolveTracksUpdate(state models.ProgressState) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] Resolving tracks for %s...", state.Current, state.Total, state.PlaylistName)
	if state.Idle() {
		msg = "Resolution finished"
	}
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    state.Current,
		Total:   state.Total,
		Message: msg,
		Data:    state,
	}
}

func writingExportUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteExport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing CSV for %s...", name),
	}
}

func completeUpdate(run *models.ExportRun) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Exported %s: %d/%d matched -> %s", run.PlaylistName, run.Matched, run.Total, run.FilePath),
		Data:    run,
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, run *models.ExportRun) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d/%d matched)", step, total, run.PlaylistName, run.Matched, run.Total),
		Data:    run,
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
