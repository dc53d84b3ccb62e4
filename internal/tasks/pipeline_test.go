package tasks

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/shared"
	tu "github.com/desertthunder/playexport/internal/testing"
)

func newTestPipeline(resolver *tu.MockResolver, batchSize int) *Pipeline {
	return NewPipeline(resolver, PipelineOpts{BatchSize: batchSize, Delay: -1})
}

func videoIDs(results []models.ResolutionResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		if r.Video != nil {
			ids[i] = r.Video.VideoID
		}
	}
	return ids
}

func TestPipelineRun(t *testing.T) {
	t.Run("returns results in input order", func(t *testing.T) {
		resolver := &tu.MockResolver{Fn: func(ctx context.Context, title, artist string) (*models.ResolvedVideo, error) {
			time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)
			return &models.ResolvedVideo{VideoID: "vid-" + title}, nil
		}}
		items := tu.NumberedItems(10)

		results, err := newTestPipeline(resolver, 3).Run(context.Background(), items, "Mix", 0, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 10 {
			t.Fatalf("expected 10 results, got %d", len(results))
		}
		for i, r := range results {
			if r.Index != i {
				t.Errorf("result %d: expected index %d, got %d", i, i, r.Index)
			}
			if r.Track.Title != items[i].Track.Title {
				t.Errorf("result %d: expected track %s, got %s", i, items[i].Track.Title, r.Track.Title)
			}
			if want := "vid-" + items[i].Track.Title; r.Video == nil || r.Video.VideoID != want {
				t.Errorf("result %d: expected video %s, got %+v", i, want, r.Video)
			}
		}
	})

	t.Run("skips absent tracks", func(t *testing.T) {
		resolver := &tu.MockResolver{}
		items := tu.Items(tu.Track("a", "A", "X", 1000), nil, tu.Track("c", "C", "Z", 1000))

		results, err := newTestPipeline(resolver, 3).Run(context.Background(), items, "Mix", 0, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		if results[0].Index != 0 || results[1].Index != 2 {
			t.Errorf("expected indexes 0 and 2, got %d and %d", results[0].Index, results[1].Index)
		}
		if calls := resolver.Calls(); len(calls) != 2 {
			t.Errorf("expected 2 resolver calls, got %v", calls)
		}
	})

	t.Run("keeps unresolved tracks as misses", func(t *testing.T) {
		resolver := &tu.MockResolver{Fn: func(ctx context.Context, title, artist string) (*models.ResolvedVideo, error) {
			if title == "B" {
				return nil, shared.ErrNoMatch
			}
			return &models.ResolvedVideo{VideoID: "vid-" + title}, nil
		}}
		items := tu.Items(tu.Track("a", "A", "X", 1000), tu.Track("b", "B", "Y", 1000), tu.Track("c", "C", "Z", 1000))

		results, err := newTestPipeline(resolver, 2).Run(context.Background(), items, "Mix", 0, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := videoIDs(results)
		want := []string{"vid-A", "", "vid-C"}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("result %d: expected %q, got %q", i, want[i], got[i])
			}
		}
		if results[1].Resolved() || !errors.Is(results[1].Err, shared.ErrNoMatch) {
			t.Errorf("expected ErrNoMatch miss, got %+v", results[1])
		}
	})

	t.Run("nil video without error is a miss", func(t *testing.T) {
		resolver := &tu.MockResolver{Fn: func(ctx context.Context, title, artist string) (*models.ResolvedVideo, error) {
			return nil, nil
		}}

		results, err := newTestPipeline(resolver, 3).Run(context.Background(), tu.NumberedItems(1), "Mix", 0, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 1 || results[0].Resolved() {
			t.Fatalf("expected one miss, got %+v", results)
		}
		if !errors.Is(results[0].Err, shared.ErrNoMatch) {
			t.Errorf("expected ErrNoMatch, got %v", results[0].Err)
		}
	})

	t.Run("recovers from resolver panics", func(t *testing.T) {
		resolver := &tu.MockResolver{Fn: func(ctx context.Context, title, artist string) (*models.ResolvedVideo, error) {
			if title == "t1" {
				panic("boom")
			}
			return &models.ResolvedVideo{VideoID: "vid-" + title}, nil
		}}

		results, err := newTestPipeline(resolver, 3).Run(context.Background(), tu.NumberedItems(3), "Mix", 0, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if results[1].Resolved() || results[1].Err == nil {
			t.Errorf("expected panicking lookup to be a miss, got %+v", results[1])
		}
		if !results[0].Resolved() || !results[2].Resolved() {
			t.Error("expected other lookups to succeed")
		}
	})

	t.Run("empty playlist", func(t *testing.T) {
		resolver := &tu.MockResolver{}
		var states []models.ProgressState

		results, err := newTestPipeline(resolver, 3).Run(context.Background(), nil, "Empty", 0, func(s models.ProgressState) {
			states = append(states, s)
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
		if len(states) != 2 || states[0] != (models.ProgressState{Total: 0, PlaylistName: "Empty"}) || !states[1].Idle() {
			t.Errorf("unexpected progress sequence: %v", states)
		}
		if len(resolver.Calls()) != 0 {
			t.Error("expected resolver not to be called")
		}
	})

	t.Run("batch size argument overrides default", func(t *testing.T) {
		var states []models.ProgressState
		_, err := newTestPipeline(&tu.MockResolver{}, 3).Run(context.Background(), tu.NumberedItems(4), "Mix", 2, func(s models.ProgressState) {
			states = append(states, s)
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(states) != 4 || states[1].Current != 2 || states[2].Current != 4 {
			t.Errorf("expected chunks of 2, got %v", states)
		}
	})
}

func TestPipelineConcurrency(t *testing.T) {
	for _, batch := range []int{1, 2, 3, 5} {
		t.Run("bounded by batch size", func(t *testing.T) {
			var inFlight, peak atomic.Int32
			resolver := &tu.MockResolver{Fn: func(ctx context.Context, title, artist string) (*models.ResolvedVideo, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				return &models.ResolvedVideo{VideoID: title}, nil
			}}

			results, err := newTestPipeline(resolver, batch).Run(context.Background(), tu.NumberedItems(11), "Mix", 0, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(results) != 11 {
				t.Errorf("expected 11 results, got %d", len(results))
			}
			if got := int(peak.Load()); got > batch {
				t.Errorf("batch %d: expected at most %d concurrent lookups, saw %d", batch, batch, got)
			}
		})
	}

	t.Run("chunks do not overlap", func(t *testing.T) {
		var mu sync.Mutex
		finished := 0
		overlap := false

		resolver := &tu.MockResolver{Fn: func(ctx context.Context, title, artist string) (*models.ResolvedVideo, error) {
			index, _ := strconv.Atoi(strings.TrimPrefix(title, "t"))
			mu.Lock()
			if finished < (index/2)*2 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			finished++
			mu.Unlock()
			return &models.ResolvedVideo{VideoID: title}, nil
		}}

		if _, err := newTestPipeline(resolver, 2).Run(context.Background(), tu.NumberedItems(6), "Mix", 0, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if overlap {
			t.Error("a chunk started before the previous chunk finished")
		}
		if finished != 6 {
			t.Errorf("expected 6 lookups, got %d", finished)
		}
	})
}

func TestPipelineDelay(t *testing.T) {
	t.Run("pauses between chunks", func(t *testing.T) {
		p := NewPipeline(&tu.MockResolver{}, PipelineOpts{BatchSize: 2, Delay: 20 * time.Millisecond})

		start := time.Now()
		if _, err := p.Run(context.Background(), tu.NumberedItems(6), "Mix", 0, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
			t.Errorf("expected at least two pauses, run took %v", elapsed)
		}
	})

	t.Run("no pause after the last chunk", func(t *testing.T) {
		p := NewPipeline(&tu.MockResolver{}, PipelineOpts{BatchSize: 3, Delay: time.Hour})

		done := make(chan error, 1)
		go func() {
			_, err := p.Run(context.Background(), tu.NumberedItems(3), "Mix", 0, nil)
			done <- err
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("single chunk run waited for the pacing delay")
		}
	})

	t.Run("defaults", func(t *testing.T) {
		p := NewPipeline(&tu.MockResolver{}, PipelineOpts{})
		if p.batchSize != DefaultBatchSize {
			t.Errorf("expected batch size %d, got %d", DefaultBatchSize, p.batchSize)
		}
		if p.delay != DefaultDelay {
			t.Errorf("expected delay %v, got %v", DefaultDelay, p.delay)
		}
		if p.Tracker() == nil {
			t.Error("expected a tracker")
		}
	})
}

func TestPipelineProgress(t *testing.T) {
	t.Run("reports after every chunk and resets", func(t *testing.T) {
		tracker := NewProgressTracker()
		var running []bool
		var mu sync.Mutex

		resolver := &tu.MockResolver{Fn: func(ctx context.Context, title, artist string) (*models.ResolvedVideo, error) {
			mu.Lock()
			running = append(running, tracker.Running())
			mu.Unlock()
			return &models.ResolvedVideo{VideoID: title}, nil
		}}
		p := NewPipeline(resolver, PipelineOpts{BatchSize: 3, Delay: -1, Tracker: tracker})

		var states []models.ProgressState
		_, err := p.Run(context.Background(), tu.NumberedItems(7), "Road Trip", 0, func(s models.ProgressState) {
			states = append(states, s)
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []models.ProgressState{
			{Current: 0, Total: 7, PlaylistName: "Road Trip"},
			{Current: 3, Total: 7, PlaylistName: "Road Trip"},
			{Current: 6, Total: 7, PlaylistName: "Road Trip"},
			{Current: 7, Total: 7, PlaylistName: "Road Trip"},
			{},
		}
		if len(states) != len(want) {
			t.Fatalf("expected %d updates, got %v", len(want), states)
		}
		for i := range want {
			if states[i] != want[i] {
				t.Errorf("update %d: expected %v, got %v", i, want[i], states[i])
			}
		}

		for i, r := range running {
			if !r {
				t.Errorf("lookup %d: expected tracker to report a running export", i)
			}
		}
		if tracker.Running() {
			t.Errorf("expected idle tracker after run, got %v", tracker.Snapshot())
		}
	})

	t.Run("current never decreases", func(t *testing.T) {
		last := -1
		_, err := newTestPipeline(&tu.MockResolver{}, 4).Run(context.Background(), tu.NumberedItems(13), "Mix", 0, func(s models.ProgressState) {
			if s.Idle() {
				return
			}
			if s.Current < last || s.Current > s.Total {
				t.Errorf("unexpected progress %v after %d", s, last)
			}
			last = s.Current
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if last != 13 {
			t.Errorf("expected final progress 13, got %d", last)
		}
	})
}

func TestPipelineCancel(t *testing.T) {
	t.Run("stops before the next chunk", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := newTestPipeline(&tu.MockResolver{}, 3)
		results, err := p.Run(ctx, tu.NumberedItems(9), "Mix", 0, func(s models.ProgressState) {
			if s.Current == 3 {
				cancel()
			}
		})

		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(results) != 3 {
			t.Errorf("expected 3 partial results, got %d", len(results))
		}
		if p.Tracker().Running() {
			t.Error("expected tracker reset after cancel")
		}
	})

	t.Run("interrupts the pacing delay", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := NewPipeline(&tu.MockResolver{}, PipelineOpts{BatchSize: 1, Delay: time.Hour})
		done := make(chan error, 1)
		go func() {
			_, err := p.Run(ctx, tu.NumberedItems(2), "Mix", 0, func(s models.ProgressState) {
				if s.Current == 1 {
					cancel()
				}
			})
			done <- err
		}()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("cancel did not interrupt the delay")
		}
	})
}
