package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/shared"
	"golang.org/x/oauth2"
)

func newTestSpotify(t *testing.T, handler http.Handler, onToken TokenSaver) (*SpotifyService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	srv, err := NewSpotifyService(SpotifyOpts{
		ClientID:   "test_client_id",
		BaseURL:    server.URL + "/v1",
		AuthURL:    server.URL + "/authorize",
		TokenURL:   server.URL + "/api/token",
		HTTPClient: server.Client(),
		Logger:     log.New(io.Discard),
		OnToken:    onToken,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return srv, server
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func spotifyTrackJSON(id, name string) map[string]any {
	return map[string]any{
		"id":          id,
		"name":        name,
		"type":        "track",
		"duration_ms": 225500,
		"artists":     []map[string]any{{"id": "a-" + id, "name": "Artist " + id}},
		"album":       map[string]any{"id": "al-" + id, "name": "Album", "images": []map[string]any{{"url": "http://img/" + id}}},
	}
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(SpotifyOpts{ClientID: "test_client_id", ClientSecret: "secret"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}

			if srv.config.Endpoint.AuthStyle != oauth2.AuthStyleInHeader {
				t.Errorf("confidential clients should use header auth")
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(SpotifyOpts{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Public Client Defaults", func(t *testing.T) {
			srv, err := NewSpotifyService(SpotifyOpts{ClientID: "test_client_id"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.config.RedirectURL != "http://127.0.0.1:3000/callback" {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
			if srv.config.Endpoint.AuthStyle != oauth2.AuthStyleInParams {
				t.Errorf("PKCE clients should send client_id in params")
			}
			if len(srv.config.Scopes) != 3 {
				t.Errorf("expected default scopes, got %v", srv.config.Scopes)
			}
			if srv.Authenticated() {
				t.Error("new service should not be authenticated")
			}
		})
	})

	t.Run("AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(SpotifyOpts{ClientID: "test_client_id"})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		verifier := oauth2.GenerateVerifier()
		authURL := srv.AuthURL("test_state", verifier, true)

		u, err := url.Parse(authURL)
		if err != nil {
			t.Fatalf("invalid auth URL: %v", err)
		}
		q := u.Query()

		if u.Host != "accounts.spotify.com" {
			t.Errorf("auth URL should use the Spotify accounts host, got %s", u.Host)
		}
		if q.Get("client_id") != "test_client_id" || q.Get("state") != "test_state" {
			t.Errorf("missing client_id or state: %s", authURL)
		}
		if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
			t.Errorf("missing PKCE challenge: %s", authURL)
		}
		if q.Get("show_dialog") != "true" {
			t.Errorf("expected show_dialog=true, got %s", q.Get("show_dialog"))
		}
		if !strings.Contains(q.Get("scope"), "user-library-read") {
			t.Errorf("expected scopes in auth URL, got %s", q.Get("scope"))
		}
	})

	t.Run("Exchange", func(t *testing.T) {
		var saved []*oauth2.Token
		mux := http.NewServeMux()
		mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			if r.Form.Get("code_verifier") != "verifier-123" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
			if r.Form.Get("client_id") != "test_client_id" {
				http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
				return
			}
			writeJSON(w, map[string]any{"access_token": "access-1", "refresh_token": "refresh-1", "token_type": "Bearer", "expires_in": 3600})
		})
		mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer access-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeJSON(w, map[string]any{"id": "user1", "display_name": "User One"})
		})

		srv, _ := newTestSpotify(t, mux, func(tok *oauth2.Token) error {
			saved = append(saved, tok)
			return nil
		})

		t.Run("with valid verifier", func(t *testing.T) {
			token, err := srv.Exchange(context.Background(), "code", "verifier-123")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token.AccessToken != "access-1" {
				t.Errorf("expected access-1, got %s", token.AccessToken)
			}
			if len(saved) != 1 {
				t.Errorf("expected token to be saved once, got %d", len(saved))
			}

			user, err := srv.UserProfile(context.Background())
			if err != nil {
				t.Fatalf("expected profile, got %v", err)
			}
			if user.DisplayName != "User One" {
				t.Errorf("expected User One, got %s", user.DisplayName)
			}
		})

		t.Run("with wrong verifier", func(t *testing.T) {
			_, err := srv.Exchange(context.Background(), "code", "wrong")
			if !errors.Is(err, shared.ErrAuthFailed) {
				t.Errorf("expected ErrAuthFailed, got %v", err)
			}
		})
	})

	t.Run("Token Refresh", func(t *testing.T) {
		var mu sync.Mutex
		var saved []string
		mux := http.NewServeMux()
		mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			if r.Form.Get("grant_type") != "refresh_token" {
				http.Error(w, "unexpected grant", http.StatusBadRequest)
				return
			}
			writeJSON(w, map[string]any{"access_token": "access-2", "token_type": "Bearer", "expires_in": 3600})
		})
		mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"id": "user1", "display_name": strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")})
		})

		srv, _ := newTestSpotify(t, mux, func(tok *oauth2.Token) error {
			mu.Lock()
			defer mu.Unlock()
			saved = append(saved, tok.AccessToken)
			return nil
		})

		expired := &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Minute)}
		srv.SetToken(context.Background(), expired)

		user, err := srv.UserProfile(context.Background())
		if err != nil {
			t.Fatalf("expected profile after refresh, got %v", err)
		}
		if user.DisplayName != "access-2" {
			t.Errorf("expected refreshed token to be used, got %s", user.DisplayName)
		}

		mu.Lock()
		defer mu.Unlock()
		if len(saved) != 1 || saved[0] != "access-2" {
			t.Errorf("expected refreshed token to be saved, got %v", saved)
		}
	})

	t.Run("savingTokenSource", func(t *testing.T) {
		t.Run("saves only changed tokens", func(t *testing.T) {
			count := 0
			mockSource := &mockTokenSource{token: &oauth2.Token{AccessToken: "token1"}}
			source := &savingTokenSource{
				base:  mockSource,
				last:  "token1",
				save:  func(*oauth2.Token) error { count++; return nil },
				warnf: t.Logf,
			}

			source.Token()
			source.Token()
			if count != 0 {
				t.Errorf("expected no saves for unchanged token, got %d", count)
			}

			mockSource.token = &oauth2.Token{AccessToken: "token2"}
			token, _ := source.Token()
			if count != 1 {
				t.Errorf("expected one save, got %d", count)
			}
			if token.AccessToken != "token2" {
				t.Errorf("expected new token, got %s", token.AccessToken)
			}
		})

		t.Run("propagates source errors", func(t *testing.T) {
			source := &savingTokenSource{
				base: &mockTokenSource{err: errors.New("token source error")},
				save: func(*oauth2.Token) error {
					t.Error("save should not be called on error")
					return nil
				},
				warnf: t.Logf,
			}

			token, err := source.Token()
			if err == nil || !strings.Contains(err.Error(), "token source error") {
				t.Errorf("expected source error, got %v", err)
			}
			if token != nil {
				t.Error("expected nil token on error")
			}
		})

		t.Run("save failures do not fail the request", func(t *testing.T) {
			source := &savingTokenSource{
				base:  &mockTokenSource{token: &oauth2.Token{AccessToken: "new"}},
				save:  func(*oauth2.Token) error { return errors.New("disk full") },
				warnf: t.Logf,
			}
			if _, err := source.Token(); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		srv, err := NewSpotifyService(SpotifyOpts{ClientID: "test_client_id"})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		if _, err := srv.GetPlaylists(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if _, err := srv.Token(); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Service Interface", func(t *testing.T) {
		var _ PlaylistSource = &SpotifyService{}
	})
}

func TestSpotifyPlaylists(t *testing.T) {
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		if offset == "0" {
			next := serverURL + "/v1/me/playlists?limit=50&offset=1"
			writeJSON(w, map[string]any{
				"items": []map[string]any{{"id": "p1", "name": "First", "owner": map[string]any{"display_name": "me"}, "tracks": map[string]any{"total": 3}}},
				"total": 2, "next": next,
			})
			return
		}
		writeJSON(w, map[string]any{
			"items": []map[string]any{{"id": "p2", "name": "Second", "public": true, "tracks": map[string]any{"total": 1}}},
			"total": 2, "next": nil,
		})
	})
	mux.HandleFunc("/v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "p1", "name": "First", "tracks": map[string]any{"total": 4}})
	})
	mux.HandleFunc("/v1/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "0" {
			next := serverURL + "/v1/playlists/p1/tracks?limit=100&offset=2"
			writeJSON(w, map[string]any{
				"items": []map[string]any{
					{"added_at": "2024-01-02T03:04:05Z", "track": spotifyTrackJSON("t1", "One")},
					{"track": nil},
				},
				"total": 4, "next": next,
			})
			return
		}
		local := spotifyTrackJSON("", "Local File")
		local["is_local"] = true
		local["uri"] = "spotify:local:Artist:Album:Local+File:225"
		writeJSON(w, map[string]any{
			"items": []map[string]any{
				{"track": local},
				{"track": spotifyTrackJSON("t3", "Three")},
			},
			"total": 4, "next": nil,
		})
	})
	mux.HandleFunc("/v1/me/tracks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"items": []map[string]any{{"track": spotifyTrackJSON("s1", "Saved")}},
			"total": 1, "next": nil,
		})
	})
	mux.HandleFunc("/v1/playlists/forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"status":403,"message":"User not registered in the Developer Dashboard"}}`)
	})
	mux.HandleFunc("/v1/playlists/expired", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/v1/playlists/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv, server := newTestSpotify(t, mux, nil)
	serverURL = server.URL
	srv.SetToken(context.Background(), &oauth2.Token{AccessToken: "access", Expiry: time.Now().Add(time.Hour)})
	ctx := context.Background()

	t.Run("GetPlaylists follows pagination", func(t *testing.T) {
		playlists, err := srv.GetPlaylists(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[0].ID != "p1" || playlists[0].Owner != "me" || playlists[0].TrackCount != 3 {
			t.Errorf("unexpected first playlist: %+v", playlists[0])
		}
		if !playlists[1].Public {
			t.Errorf("expected second playlist to be public")
		}
	})

	t.Run("ExportPlaylist keeps absent slots", func(t *testing.T) {
		export, err := srv.ExportPlaylist(ctx, "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if export.Playlist.Name != "First" {
			t.Errorf("expected playlist name First, got %s", export.Playlist.Name)
		}
		if len(export.Items) != 4 {
			t.Fatalf("expected 4 items, got %d", len(export.Items))
		}
		if export.Items[0].Track == nil || export.Items[0].Track.Title != "One" {
			t.Errorf("expected first track One, got %+v", export.Items[0].Track)
		}
		if export.Items[0].AddedAt.IsZero() {
			t.Error("expected added_at to be parsed")
		}
		if export.Items[1].Track != nil {
			t.Error("expected null track to be absent")
		}
		if tr := export.Items[2].Track; tr == nil || tr.Title != "Local File" || tr.ID != "spotify:local:Artist:Album:Local+File:225" {
			t.Errorf("expected local file to be kept under its uri, got %+v", tr)
		} else if tr.PrimaryArtist() != "Artist " {
			t.Errorf("expected local file artist, got %q", tr.PrimaryArtist())
		}
		if tr := export.Items[3].Track; tr == nil || tr.AlbumArt() != "http://img/t3" || tr.DurationMS != 225500 {
			t.Errorf("unexpected last track: %+v", tr)
		}
	})

	t.Run("Liked Songs", func(t *testing.T) {
		export, err := srv.ExportPlaylist(ctx, models.LikedSongsID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if export.Playlist.Name != "Liked Songs" || export.Playlist.ID != models.LikedSongsID {
			t.Errorf("unexpected liked songs playlist: %+v", export.Playlist)
		}
		if len(export.Items) != 1 || export.Items[0].Track.PrimaryArtist() != "Artist s1" {
			t.Errorf("unexpected liked songs items: %+v", export.Items)
		}
	})

	t.Run("Status Errors", func(t *testing.T) {
		tc := []struct {
			id   string
			want error
		}{
			{id: "forbidden", want: shared.ErrAccessDenied},
			{id: "expired", want: shared.ErrTokenExpired},
			{id: "missing", want: shared.ErrPlaylistNotFound},
			{id: "broken", want: shared.ErrAPIRequest},
		}

		for _, tt := range tc {
			t.Run(tt.id, func(t *testing.T) {
				_, err := srv.ExportPlaylist(ctx, tt.id)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("403 message is surfaced", func(t *testing.T) {
		_, err := srv.GetPlaylist(ctx, "forbidden")
		if err == nil || !strings.Contains(err.Error(), "Developer Dashboard") {
			t.Errorf("expected API message in error, got %v", err)
		}
	})
}

func TestParsePlaylistLink(t *testing.T) {
	tc := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{name: "share link", ref: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc", want: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "localized link", ref: "https://open.spotify.com/intl-de/playlist/37i9dQZF1DXcBWIGoYBM5M", want: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "uri", ref: "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", want: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "bare id", ref: " 37i9dQZF1DXcBWIGoYBM5M ", want: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "liked songs", ref: "liked-songs", want: models.LikedSongsID},
		{name: "short word", ref: "Summertime", wantErr: true},
		{name: "too long for an id", ref: "37i9dQZF1DXcBWIGoYBM5MX", wantErr: true},
		{name: "album link", ref: "https://open.spotify.com/album/abc", wantErr: true},
		{name: "garbage", ref: "not a playlist!", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlaylistLink(tt.ref)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParsePlaylistLink() = %s, want %s", got, tt.want)
			}
		})
	}
}

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}

func TestPlaylistItemToModel(t *testing.T) {
	tc := []struct {
		name    string
		track   *SpotifyTrack
		wantID  string
		present bool
	}{
		{name: "catalog track", track: &SpotifyTrack{ID: "t1", Name: "One", Type: "track"}, wantID: "t1", present: true},
		{name: "local file", track: &SpotifyTrack{URI: "spotify:local:Band::Demo:180", Name: "Demo", Type: "track", IsLocal: true}, wantID: "spotify:local:Band::Demo:180", present: true},
		{name: "local file without uri", track: &SpotifyTrack{Name: "Demo", IsLocal: true}, wantID: "spotify:local:Demo", present: true},
		{name: "local file without name", track: &SpotifyTrack{URI: "spotify:local:::180", IsLocal: true}},
		{name: "episode", track: &SpotifyTrack{ID: "e1", Name: "Pod", Type: "episode"}},
		{name: "removed", track: nil},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			item := SpotifyPlaylistItem{Track: tt.track}.toModel()
			if !tt.present {
				if item.Track != nil {
					t.Errorf("expected absent slot, got %+v", item.Track)
				}
				return
			}
			if item.Track == nil || item.Track.ID != tt.wantID {
				t.Errorf("expected track %q, got %+v", tt.wantID, item.Track)
			}
		})
	}
}
