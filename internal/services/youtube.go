package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/shared"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// musicCategoryID is the YouTube video category for music.
const musicCategoryID = "10"

// DataAPIOpts configures a [DataAPIResolver].
type DataAPIOpts struct {
	APIKey       string
	MaxResults   int
	FetchDetails bool
	// Endpoint overrides the API base URL.
	Endpoint string
	Logger   *log.Logger
}

// DataAPIResolver resolves tracks with the YouTube Data API v3 (search.list, videos.list).
type DataAPIResolver struct {
	service      *youtube.Service
	maxResults   int64
	fetchDetails bool
	logger       *log.Logger
}

func NewDataAPIResolver(ctx context.Context, opts DataAPIOpts) (*DataAPIResolver, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: youtube api key", shared.ErrMissingCredentials)
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 3
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	service, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}

	return &DataAPIResolver{
		service:      service,
		maxResults:   int64(opts.MaxResults),
		fetchDetails: opts.FetchDetails,
		logger:       opts.Logger.WithPrefix("youtube"),
	}, nil
}

func (r *DataAPIResolver) Name() string {
	return "YouTube Data API"
}

// Resolve searches the music category and returns the first video result.
func (r *DataAPIResolver) Resolve(ctx context.Context, title, artist string) (*models.ResolvedVideo, error) {
	resp, err := r.service.Search.List([]string{"snippet"}).
		Q(BuildQuery(title, artist)).
		Type("video").
		VideoCategoryId(musicCategoryID).
		MaxResults(r.maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyGoogleError(err)
	}

	var first *youtube.SearchResult
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			first = item
			break
		}
	}
	if first == nil {
		return nil, fmt.Errorf("%w: %q by %q", shared.ErrNoMatch, title, artist)
	}

	var videoTitle string
	if first.Snippet != nil {
		videoTitle = first.Snippet.Title
	}
	video, err := models.NewResolvedVideo(first.Id.VideoId, videoTitle)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrNoMatch, err)
	}

	if !r.fetchDetails {
		if first.Snippet != nil {
			video.Thumbnails = thumbnailDetails(first.Snippet.Thumbnails)
		}
		return video, nil
	}

	if err := r.details(ctx, video); err != nil {
		r.logger.Warn("video details unavailable", "video_id", video.VideoID, "error", err)
	}
	return video, nil
}

// details fills thumbnails, duration and view count from videos.list.
func (r *DataAPIResolver) details(ctx context.Context, video *models.ResolvedVideo) error {
	resp, err := r.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
		Id(video.VideoID).
		Context(ctx).
		Do()
	if err != nil {
		return classifyGoogleError(err)
	}
	if len(resp.Items) == 0 {
		return fmt.Errorf("%w: video %s not returned", shared.ErrAPIRequest, video.VideoID)
	}

	v := resp.Items[0]
	if v.Snippet != nil {
		if v.Snippet.Title != "" {
			video.Title = v.Snippet.Title
		}
		video.Thumbnails = thumbnailDetails(v.Snippet.Thumbnails)
	}
	if v.ContentDetails != nil {
		if secs, err := ParseISODuration(v.ContentDetails.Duration); err == nil {
			video.DurationSec = secs
		}
	}
	if v.Statistics != nil && v.Statistics.ViewCount <= math.MaxInt64 {
		video.ViewCount = int64(v.Statistics.ViewCount)
	}
	return nil
}

func thumbnailDetails(d *youtube.ThumbnailDetails) []models.Thumbnail {
	if d == nil {
		return nil
	}

	var out []models.Thumbnail
	add := func(quality string, th *youtube.Thumbnail) {
		if th == nil || th.Url == "" {
			return
		}
		out = append(out, models.Thumbnail{Quality: quality, URL: th.Url, Width: int(th.Width), Height: int(th.Height)})
	}
	add("default", d.Default)
	add("medium", d.Medium)
	add("high", d.High)
	add("standard", d.Standard)
	add("maxres", d.Maxres)
	return out
}

func classifyGoogleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusForbidden, http.StatusTooManyRequests:
			return fmt.Errorf("%w: youtube api: %s", shared.ErrQuotaExceeded, gerr.Message)
		default:
			return fmt.Errorf("%w: youtube api status %d: %s", shared.ErrAPIRequest, gerr.Code, gerr.Message)
		}
	}
	return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts an ISO 8601 duration such as "PT3M45S" to whole seconds.
func ParseISODuration(s string) (int, error) {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidInput, s)
	}

	units := []int{86400, 3600, 60, 1}
	total := 0
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidInput, s)
		}
		total += n * unit
	}
	return total, nil
}
