package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/shared"
)

const defaultInvidiousURL = "https://inv.perditum.com"

// InvidiousOpts configures an [InvidiousResolver].
type InvidiousOpts struct {
	BaseURL      string
	MaxResults   int
	FetchDetails bool
	HTTPClient   *http.Client
	Logger       *log.Logger
}

// InvidiousResolver resolves tracks through the public API of an Invidious instance.
type InvidiousResolver struct {
	baseURL      string
	maxResults   int
	fetchDetails bool
	httpClient   *http.Client
	logger       *log.Logger
}

// invidiousThumbnail is a thumbnail entry; URLs may be relative to the instance.
type invidiousThumbnail struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// InvidiousSearchResult is one entry of /api/v1/search.
type InvidiousSearchResult struct {
	Type          string               `json:"type"`
	Title         string               `json:"title"`
	VideoID       string               `json:"videoId"`
	Author        string               `json:"author"`
	LengthSeconds int                  `json:"lengthSeconds"`
	Thumbnails    []invidiousThumbnail `json:"videoThumbnails"`
}

// InvidiousVideo is the response of /api/v1/videos/{id}.
type InvidiousVideo struct {
	Title         string               `json:"title"`
	VideoID       string               `json:"videoId"`
	LengthSeconds int                  `json:"lengthSeconds"`
	ViewCount     int64                `json:"viewCount"`
	Thumbnails    []invidiousThumbnail `json:"videoThumbnails"`
}

func NewInvidiousResolver(opts InvidiousOpts) *InvidiousResolver {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultInvidiousURL
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 3
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &InvidiousResolver{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		maxResults:   opts.MaxResults,
		fetchDetails: opts.FetchDetails,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger.WithPrefix("invidious"),
	}
}

func (r *InvidiousResolver) Name() string {
	return "Invidious"
}

// Resolve searches for the track and returns the first video result.
func (r *InvidiousResolver) Resolve(ctx context.Context, title, artist string) (*models.ResolvedVideo, error) {
	results, err := r.Search(ctx, BuildQuery(title, artist))
	if err != nil {
		return nil, err
	}

	var first *InvidiousSearchResult
	for i := range results {
		if results[i].VideoID != "" && (results[i].Type == "" || results[i].Type == "video") {
			first = &results[i]
			break
		}
	}
	if first == nil {
		return nil, fmt.Errorf("%w: %q by %q", shared.ErrNoMatch, title, artist)
	}

	video, err := models.NewResolvedVideo(first.VideoID, first.Title)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrNoMatch, err)
	}

	if !r.fetchDetails {
		return video, nil
	}

	details, err := r.Video(ctx, video.VideoID)
	if err != nil {
		r.logger.Warn("video details unavailable", "video_id", video.VideoID, "error", err)
		return video, nil
	}

	if details.Title != "" {
		video.Title = details.Title
	}
	video.DurationSec = details.LengthSeconds
	video.ViewCount = details.ViewCount
	video.Thumbnails = r.thumbnails(details.Thumbnails)
	return video, nil
}

// Search runs a video search and returns at most MaxResults entries.
func (r *InvidiousResolver) Search(ctx context.Context, query string) ([]InvidiousSearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "video")

	var results []InvidiousSearchResult
	if err := r.get(ctx, "/api/v1/search?"+params.Encode(), &results); err != nil {
		return nil, err
	}
	if len(results) > r.maxResults {
		results = results[:r.maxResults]
	}
	return results, nil
}

// Video fetches extended metadata for one video.
func (r *InvidiousResolver) Video(ctx context.Context, videoID string) (*InvidiousVideo, error) {
	var video InvidiousVideo
	if err := r.get(ctx, "/api/v1/videos/"+url.PathEscape(videoID), &video); err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *InvidiousResolver) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: invidious status %d", shared.ErrQuotaExceeded, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: invidious status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", shared.ErrAPIRequest, err)
	}
	return nil
}

// thumbnails converts entries, resolving instance-relative URLs.
func (r *InvidiousResolver) thumbnails(in []invidiousThumbnail) []models.Thumbnail {
	out := make([]models.Thumbnail, 0, len(in))
	for _, th := range in {
		u := th.URL
		if strings.HasPrefix(u, "/") {
			u = r.baseURL + u
		}
		out = append(out, models.Thumbnail{Quality: th.Quality, URL: u, Width: th.Width, Height: th.Height})
	}
	return out
}
