package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/playexport/internal/services"
	"github.com/desertthunder/playexport/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheStatus prints how many cache entries exist and how many have expired.
func (r *Runner) CacheStatus(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.cache()
	if err != nil {
		return err
	}

	stats, err := cache.Stats(services.ResolutionKeyPrefix)
	if err != nil {
		return err
	}

	conf := r.cfg().Cache
	r.writePlainHeader("Cache")
	r.writePlain("Enabled:        %t\n", conf.Enabled)
	r.writePlain("Entries:        %d\n", stats.Entries)
	r.writePlain("Video matches:  %d\n", stats.Resolutions)
	r.writePlain("Expired:        %d\n", stats.Expired)
	r.writePlain("Match TTL:      %s\n", conf.ResolutionTTL())
	r.writePlain("Playlist TTL:   %s\n", conf.PlaylistTTL())
	return nil
}

// CacheClear removes cache entries in the requested scope.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.cache()
	if err != nil {
		return err
	}

	var removed int
	switch scope := cmd.String("scope"); scope {
	case "resolutions":
		removed, err = cache.Clear(services.ResolutionKeyPrefix)
	case "playlists":
		removed, err = cache.Clear(services.PlaylistsKeyPrefix)
	case "expired":
		removed, err = cache.Purge()
	case "all", "":
		removed, err = cache.Clear("")
	default:
		return fmt.Errorf("%w: unknown scope %q", shared.ErrInvalidArgument, scope)
	}
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	r.logger.Info("cache cleared", "scope", cmd.String("scope"), "removed", removed)
	return r.writePlain("✓ Removed %d cache entries\n", removed)
}
