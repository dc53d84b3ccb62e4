package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/shared"
)

// ResolutionKeyPrefix prefixes every cache key written by [CachingResolver].
const ResolutionKeyPrefix = "resolve:"

// CachingResolver serves repeated lookups from a [models.Cache]. Only matches are cached.
type CachingResolver struct {
	next   VideoResolver
	cache  models.Cache
	ttl    time.Duration
	logger *log.Logger
}

func NewCachingResolver(next VideoResolver, cache models.Cache, ttl time.Duration, logger *log.Logger) *CachingResolver {
	if logger == nil {
		logger = log.Default()
	}
	return &CachingResolver{next: next, cache: cache, ttl: ttl, logger: logger.WithPrefix("resolve-cache")}
}

func (r *CachingResolver) Name() string {
	return r.next.Name() + " (cached)"
}

func (r *CachingResolver) Resolve(ctx context.Context, title, artist string) (*models.ResolvedVideo, error) {
	key := ResolutionKeyPrefix + shared.NormalizeTrackKey(title, artist)

	if data, ok, err := r.cache.Get(key); err != nil {
		r.logger.Warn("cache read failed", "key", key, "error", err)
	} else if ok {
		var video models.ResolvedVideo
		if err := json.Unmarshal(data, &video); err == nil && video.VideoID != "" {
			return &video, nil
		}
		r.logger.Debug("discarding unreadable cache entry", "key", key)
	}

	video, err := r.next.Resolve(ctx, title, artist)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(video); err == nil {
		if err := r.cache.Put(key, data, r.ttl); err != nil {
			r.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return video, nil
}

// PlaylistsKeyPrefix prefixes every cache key written by [CachingSource].
const PlaylistsKeyPrefix = "playlists:"

// CachingSource caches the playlist listings of a [PlaylistSource]. Playlist contents are
// always fetched live.
type CachingSource struct {
	PlaylistSource
	cache  models.Cache
	ttl    time.Duration
	logger *log.Logger
}

func NewCachingSource(next PlaylistSource, cache models.Cache, ttl time.Duration, logger *log.Logger) *CachingSource {
	if logger == nil {
		logger = log.Default()
	}
	return &CachingSource{PlaylistSource: next, cache: cache, ttl: ttl, logger: logger.WithPrefix("playlist-cache")}
}

func (s *CachingSource) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	key := PlaylistsKeyPrefix + s.PlaylistSource.Name()

	if data, ok, err := s.cache.Get(key); err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
	} else if ok {
		var playlists []models.Playlist
		if err := json.Unmarshal(data, &playlists); err == nil {
			return playlists, nil
		}
		s.logger.Debug("discarding unreadable cache entry", "key", key)
	}

	playlists, err := s.PlaylistSource.GetPlaylists(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(playlists); err == nil {
		if err := s.cache.Put(key, data, s.ttl); err != nil {
			s.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return playlists, nil
}

// Invalidate drops the cached listing.
func (s *CachingSource) Invalidate() error {
	return s.cache.Delete(PlaylistsKeyPrefix + s.PlaylistSource.Name())
}
