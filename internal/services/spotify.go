// Spotify API implementation of [PlaylistSource]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	playlistPageSize = 50
	itemsPageSize    = 100
	savedPageSize    = 50
)

var defaultSpotifyScopes = []string{
	"playlist-read-private",
	"playlist-read-collaborative",
	"user-library-read",
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	URI        string          `json:"uri"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	IsLocal    bool            `json:"is_local"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylistItem is one slot of a playlist or of the saved-tracks library.
// Track is nil for removed or unavailable items.
type SpotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedItems represents a paginated response of playlist items or saved tracks.
type SpotifyPaginatedItems struct {
	Items  []SpotifyPlaylistItem `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
	Next   *string               `json:"next"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	Images      []SpotifyImage      `json:"images"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// TokenSaver persists a token after it was obtained or refreshed.
type TokenSaver func(*oauth2.Token) error

// SpotifyOpts configures a [SpotifyService]. Zero URLs select the public Spotify endpoints.
type SpotifyOpts struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	BaseURL      string
	AuthURL      string
	TokenURL     string
	HTTPClient   *http.Client
	Logger       *log.Logger
	OnToken      TokenSaver
}

// SpotifyService implements [PlaylistSource] for the Spotify Web API.
// Uses [oauth2] for authentication and automatic token refresh.
type SpotifyService struct {
	config     *oauth2.Config
	baseURL    string
	baseClient *http.Client
	logger     *log.Logger
	onToken    TokenSaver

	mu         sync.RWMutex
	source     oauth2.TokenSource
	httpClient *http.Client
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingCredentials)
	}

	if opts.RedirectURI == "" {
		opts.RedirectURI = "http://127.0.0.1:3000/callback"
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = defaultSpotifyScopes
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	// Public (PKCE-only) clients authenticate with client_id in the form body.
	style := oauth2.AuthStyleInHeader
	if opts.ClientSecret == "" {
		style = oauth2.AuthStyleInParams
	}

	config := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURL:  opts.RedirectURI,
		Scopes:       opts.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   opts.AuthURL,
			TokenURL:  opts.TokenURL,
			AuthStyle: style,
		},
	}

	return &SpotifyService{
		config:     config,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		baseClient: opts.HTTPClient,
		logger:     opts.Logger.WithPrefix("spotify"),
		onToken:    opts.OnToken,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// OAuthConfig exposes the underlying [oauth2.Config] for the callback server.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// AuthURL returns the authorization URL for user login using the S256 challenge of verifier.
//
// showDialog forces the consent screen so a different account can be chosen.
func (s *SpotifyService) AuthURL(state, verifier string, showDialog bool) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("show_dialog", fmt.Sprintf("%t", showDialog)),
	}
	return s.config.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code and its PKCE verifier for a token, and starts using it.
func (s *SpotifyService) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(s.oauthContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrAuthFailed, err)
	}
	s.SetToken(ctx, token)
	if err := s.saveToken(token); err != nil {
		s.logger.Warn("failed to persist token", "error", err)
	}
	return token, nil
}

// SetToken installs token; requests then refresh it automatically when it expires.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	ctx = s.oauthContext(context.WithoutCancel(ctx))
	source := &savingTokenSource{
		base:  oauth2.ReuseTokenSource(token, s.config.TokenSource(ctx, token)),
		last:  token.AccessToken,
		save:  s.saveToken,
		warnf: s.logger.Warnf,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	s.httpClient = oauth2.NewClient(ctx, source)
}

// Token returns the current (refreshed if necessary) token.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	source := s.source
	s.mu.RUnlock()

	if source == nil {
		return nil, shared.ErrNotAuthenticated
	}
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	return token, nil
}

// Authenticated reports whether a token has been installed.
func (s *SpotifyService) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source != nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
}

func (s *SpotifyService) saveToken(token *oauth2.Token) error {
	if s.onToken == nil {
		return nil
	}
	return s.onToken(token)
}

// savingTokenSource calls save whenever the wrapped source yields a new access token.
type savingTokenSource struct {
	base  oauth2.TokenSource
	save  TokenSaver
	warnf func(string, ...any)

	mu   sync.Mutex
	last string
}

func (ts *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.base.Token()
	if err != nil {
		return nil, err
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if token.AccessToken != ts.last {
		ts.last = token.AccessToken
		if err := ts.save(token); err != nil {
			ts.warnf("failed to persist refreshed token: %v", err)
		}
	}
	return token, nil
}

// doRequest performs an authenticated GET against the Spotify API.
//
// endpoint is either a path relative to the API base or an absolute "next" link.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	s.mu.RLock()
	client := s.httpClient
	s.mu.RUnlock()

	if client == nil {
		return shared.ErrNotAuthenticated
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
		}
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if err := spotifyStatusError(resp); err != nil {
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// spotifyStatusError maps a non-2xx response to a typed error.
func spotifyStatusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", shared.ErrAccessDenied, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: spotify rate limit (retry after %s)", shared.ErrQuotaExceeded, resp.Header.Get("Retry-After"))
	default:
		return fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)
	}
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserPlaylists retrieves one page of the current user's playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	limit = clampLimit(limit, playlistPageSize)
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// PlaylistItems retrieves one page of a playlist's items.
func (s *SpotifyService) PlaylistItems(ctx context.Context, playlistID string, limit, offset int) (*SpotifyPaginatedItems, error) {
	limit = clampLimit(limit, itemsPageSize)
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)

	var response SpotifyPaginatedItems
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// SavedTracks retrieves one page of the user's saved tracks.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) (*SpotifyPaginatedItems, error) {
	limit = clampLimit(limit, savedPageSize)
	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedItems
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

// GetPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var all []models.Playlist
	offset := 0

	for {
		response, err := s.UserPlaylists(ctx, playlistPageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			all = append(all, sp.toModel())
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += len(response.Items)
	}

	s.logger.Debug("fetched playlists", "count", len(all))
	return all, nil
}

// GetPlaylist retrieves a specific playlist by ID.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if playlistID == models.LikedSongsID {
		page, err := s.SavedTracks(ctx, 1, 0)
		if err != nil {
			return nil, err
		}
		p := likedSongsPlaylist(page.Total)
		return &p, nil
	}

	endpoint := fmt.Sprintf("/playlists/%s?fields=id,name,description,owner,public,images,tracks.total", url.PathEscape(playlistID))
	var sp SpotifySimplePlaylist
	if err := s.doRequest(ctx, endpoint, &sp); err != nil {
		return nil, err
	}
	p := sp.toModel()
	return &p, nil
}

// ExportPlaylist retrieves a playlist with all its items. Unavailable slots keep a nil Track.
func (s *SpotifyService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	if playlistID == models.LikedSongsID {
		return s.LikedSongs(ctx)
	}

	playlist, err := s.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	first, err := s.PlaylistItems(ctx, playlistID, itemsPageSize, 0)
	if err != nil {
		return nil, err
	}
	items, err := s.collectItems(ctx, first)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("exported playlist", "id", playlistID, "items", len(items))
	return &models.PlaylistExport{Playlist: *playlist, Items: items}, nil
}

// LikedSongs returns the user's saved tracks as a playlist.
func (s *SpotifyService) LikedSongs(ctx context.Context) (*models.PlaylistExport, error) {
	first, err := s.SavedTracks(ctx, savedPageSize, 0)
	if err != nil {
		return nil, err
	}
	items, err := s.collectItems(ctx, first)
	if err != nil {
		return nil, err
	}
	return &models.PlaylistExport{Playlist: likedSongsPlaylist(first.Total), Items: items}, nil
}

// collectItems converts page and every following page into playlist items.
func (s *SpotifyService) collectItems(ctx context.Context, page *SpotifyPaginatedItems) ([]models.PlaylistItem, error) {
	items := make([]models.PlaylistItem, 0, page.Total)
	for {
		for _, it := range page.Items {
			items = append(items, it.toModel())
		}
		if page.Next == nil || *page.Next == "" || len(page.Items) == 0 {
			return items, nil
		}

		var next SpotifyPaginatedItems
		if err := s.doRequest(ctx, *page.Next, &next); err != nil {
			return nil, err
		}
		page = &next
	}
}

func likedSongsPlaylist(total int) models.Playlist {
	return models.Playlist{
		ID:         models.LikedSongsID,
		Name:       "Liked Songs",
		Owner:      "You",
		TrackCount: total,
	}
}

func (sp SpotifySimplePlaylist) toModel() models.Playlist {
	return models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		Owner:       sp.Owner.DisplayName,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
		Images:      toImages(sp.Images),
	}
}

// toModel converts an item; podcast episodes and removed tracks become absent slots. Local
// files have no catalog ID and are keyed by their spotify:local URI instead.
func (it SpotifyPlaylistItem) toModel() models.PlaylistItem {
	item := models.PlaylistItem{}
	if added, err := time.Parse(time.RFC3339, it.AddedAt); err == nil {
		item.AddedAt = added
	}

	st := it.Track
	if st == nil || (st.Type != "" && st.Type != "track") {
		return item
	}

	id := st.ID
	if st.IsLocal && id == "" {
		id = st.URI
		if id == "" {
			id = "spotify:local:" + st.Name
		}
	}

	artists := make([]models.Artist, 0, len(st.Artists))
	for _, a := range st.Artists {
		artists = append(artists, models.Artist{ID: a.ID, Name: a.Name})
	}
	album := models.Album{ID: st.Album.ID, Name: st.Album.Name, Images: toImages(st.Album.Images)}

	track, err := models.NewTrack(id, st.Name, artists, st.DurationMS, album)
	if err != nil {
		return item
	}
	item.Track = track
	return item
}

func toImages(images []SpotifyImage) []models.Image {
	if len(images) == 0 {
		return nil
	}
	out := make([]models.Image, 0, len(images))
	for _, img := range images {
		out = append(out, models.Image{URL: img.URL, Width: img.Width, Height: img.Height})
	}
	return out
}

var playlistLinkPattern = regexp.MustCompile(`(?:open\.spotify\.com/(?:[a-z-]+/)?playlist/|spotify:playlist:)([A-Za-z0-9]+)`)
var playlistIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)

// IsPlaylistLink reports whether ref is a playlist share link or URI. Bare IDs do not count.
func IsPlaylistLink(ref string) bool {
	return playlistLinkPattern.MatchString(strings.TrimSpace(ref))
}

// ParsePlaylistLink extracts a playlist ID from a share link or URI, or accepts a bare ID.
func ParsePlaylistLink(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == models.LikedSongsID {
		return ref, nil
	}
	if m := playlistLinkPattern.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	if playlistIDPattern.MatchString(ref) {
		return ref, nil
	}
	return "", fmt.Errorf("%w: %q is not a spotify playlist link or id", shared.ErrInvalidArgument, ref)
}
