package tasks

import (
	"sync/atomic"

	"github.com/desertthunder/playexport/internal/models"
)

// ProgressFunc receives a progress snapshot after every chunk.
type ProgressFunc func(models.ProgressState)

// ProgressTracker holds the progress of the active run.
//
// The pipeline is the only writer. Each Store replaces the whole [models.ProgressState],
// so readers never observe Current, Total and PlaylistName from different updates.
type ProgressTracker struct {
	state atomic.Pointer[models.ProgressState]
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{}
}

func (t *ProgressTracker) Store(s models.ProgressState) {
	t.state.Store(&s)
}

// Snapshot returns the latest state, or the idle state before the first Store.
func (t *ProgressTracker) Snapshot() models.ProgressState {
	if s := t.state.Load(); s != nil {
		return *s
	}
	return models.ProgressState{}
}

// Reset returns the tracker to idle.
func (t *ProgressTracker) Reset() {
	t.Store(models.ProgressState{})
}

// Running reports whether a run is in progress.
func (t *ProgressTracker) Running() bool {
	return !t.Snapshot().Idle()
}
