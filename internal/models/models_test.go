package models

import (
	"errors"
	"testing"
)

func TestNewTrack(t *testing.T) {
	tc := []struct {
		name       string
		id         string
		title      string
		durationMS int
		wantErr    bool
	}{
		{name: "valid", id: "t1", title: "Song", durationMS: 1000},
		{name: "zero duration", id: "t1", title: "Song"},
		{name: "missing id", title: "Song", wantErr: true},
		{name: "missing title", id: "t1", wantErr: true},
		{name: "negative duration", id: "t1", title: "Song", durationMS: -1, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			track, err := NewTrack(tt.id, tt.title, nil, tt.durationMS, Album{})
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidModel) {
					t.Errorf("expected ErrInvalidModel, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if track.ID != tt.id {
				t.Errorf("expected id %s, got %s", tt.id, track.ID)
			}
		})
	}
}

func TestTrack(t *testing.T) {
	track := Track{
		ID:      "t1",
		Title:   "Song",
		Artists: []Artist{{Name: "A"}, {Name: "B"}},
		Album:   Album{Images: []Image{{URL: "X"}, {URL: "Y"}}},
	}

	t.Run("PrimaryArtist", func(t *testing.T) {
		if got := track.PrimaryArtist(); got != "A" {
			t.Errorf("PrimaryArtist() = %s, want A", got)
		}
		empty := Track{}
		if got := empty.PrimaryArtist(); got != "" {
			t.Errorf("PrimaryArtist() on empty = %s", got)
		}
	})

	t.Run("ArtistNames", func(t *testing.T) {
		if got := track.ArtistNames(); got != "A, B" {
			t.Errorf("ArtistNames() = %s, want \"A, B\"", got)
		}
	})

	t.Run("AlbumArt", func(t *testing.T) {
		if got := track.AlbumArt(); got != "X" {
			t.Errorf("AlbumArt() = %s, want X", got)
		}
		empty := Track{}
		if got := empty.AlbumArt(); got != "" {
			t.Errorf("AlbumArt() on empty = %s", got)
		}
	})
}

func TestPlaylistExportTracks(t *testing.T) {
	export := PlaylistExport{Items: []PlaylistItem{
		{Track: &Track{ID: "a"}},
		{Track: nil},
		{Track: &Track{ID: "c"}},
	}}

	tracks := export.Tracks()
	if len(tracks) != 2 || tracks[0].ID != "a" || tracks[1].ID != "c" {
		t.Errorf("Tracks() = %+v", tracks)
	}
}

func TestResolvedVideo(t *testing.T) {
	t.Run("rejects empty id", func(t *testing.T) {
		if _, err := NewResolvedVideo("  ", "title"); !errors.Is(err, ErrInvalidModel) {
			t.Errorf("expected ErrInvalidModel, got %v", err)
		}
	})

	t.Run("Thumbnail lookup", func(t *testing.T) {
		v, err := NewResolvedVideo("vid", "title")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		v.Thumbnails = []Thumbnail{{Quality: "medium", URL: "M"}}

		if th, ok := v.Thumbnail("medium"); !ok || th.URL != "M" {
			t.Errorf("expected medium thumbnail, got %+v, %v", th, ok)
		}
		if _, ok := v.Thumbnail("high"); ok {
			t.Error("expected no high thumbnail")
		}
	})
}

func TestProgressState(t *testing.T) {
	if !(ProgressState{}).Idle() {
		t.Error("zero value should be idle")
	}

	p := ProgressState{Current: 3, Total: 4, PlaylistName: "Mix"}
	if p.Idle() {
		t.Error("running state should not be idle")
	}
	if p.Percent() != 0.75 {
		t.Errorf("Percent() = %v, want 0.75", p.Percent())
	}
	if (ProgressState{Current: 1}).Percent() != 0 {
		t.Error("Percent() with zero total should be 0")
	}
}

func TestExportRowFields(t *testing.T) {
	row := ExportRow{PlaylistName: "Mix", MediaID: "vid", Title: "Song", Artists: "A", Duration: "225", ThumbnailURL: "T"}
	fields := row.Fields()

	if len(fields) != len(ExportHeader) || len(fields) != 7 {
		t.Fatalf("expected 7 fields, got %d", len(fields))
	}
	if fields[0] != "" {
		t.Errorf("first field should be empty, got %q", fields[0])
	}
	if fields[2] != "vid" || fields[6] != "T" {
		t.Errorf("unexpected field order: %v", fields)
	}
}

func TestBestThumbnail(t *testing.T) {
	tc := []struct {
		name       string
		thumbnails []Thumbnail
		want       string
	}{
		{
			name: "prefers high",
			thumbnails: []Thumbnail{
				{Quality: "medium", URL: "M"},
				{Quality: "high", URL: "H"},
				{Quality: "default", URL: "D"},
			},
			want: "H",
		},
		{
			name: "medium over low",
			thumbnails: []Thumbnail{
				{Quality: "medium", URL: "M"},
				{Quality: "low", URL: "L"},
			},
			want: "M",
		},
		{
			name: "falls back to first",
			thumbnails: []Thumbnail{
				{Quality: "maxres", URL: "X"},
				{Quality: "low", URL: "L"},
			},
			want: "X",
		},
		{name: "empty", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := BestThumbnail(tt.thumbnails); got != tt.want {
				t.Errorf("BestThumbnail() = %q, want %q", got, tt.want)
			}
			v := &ResolvedVideo{VideoID: "v", Thumbnails: tt.thumbnails}
			if got := v.BestThumbnail(); got != tt.want {
				t.Errorf("ResolvedVideo.BestThumbnail() = %q, want %q", got, tt.want)
			}
		})
	}
}
