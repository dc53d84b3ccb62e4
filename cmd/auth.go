package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/playexport/internal/server"
	"github.com/desertthunder/playexport/internal/services"
	"github.com/desertthunder/playexport/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const loginTimeout = 5 * time.Minute

// AuthLogin runs the authorization code flow with PKCE against a local callback server.
//
// The token is persisted by the Spotify client as soon as the code is exchanged.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.spotifyService(ctx)
	if err != nil {
		return err
	}

	redirectURI := r.cfg().Credentials.Spotify.RedirectURI
	u, err := url.Parse(redirectURI)
	if err != nil {
		return fmt.Errorf("%w: redirect uri %q", shared.ErrInvalidConfig, redirectURI)
	}

	state := shared.GenerateID()
	verifier := oauth2.GenerateVerifier()
	handler := server.NewOAuthHandler(svc, state, verifier, u.Path)

	srv, err := server.NewCallbackServer(redirectURI, handler, r.logger)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	authURL := svc.AuthURL(state, verifier, cmd.Bool("show-dialog"))
	r.writePlain("Open this URL to authorize playexport:\n\n%s\n\n", authURL)
	if !cmd.Bool("no-browser") {
		if err := r.browser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}

	r.logger.Info("waiting for authorization callback", "addr", srv.Addr())

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = loginTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := srv.Wait(waitCtx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	user, err := svc.UserProfile(ctx)
	if err != nil {
		r.logger.Warn("signed in but failed to fetch profile", "error", err)
		return r.writePlain("✓ Signed in to Spotify\n")
	}
	return r.writePlain("✓ Signed in to Spotify as %s\n", displayName(user))
}

// AuthLogout removes the stored token and any cached playlist listings.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	tokens, err := r.tokens()
	if err != nil {
		return err
	}
	if err := tokens.Clear(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}

	cache, err := r.cache()
	if err != nil {
		return err
	}
	if _, err := cache.Clear(services.PlaylistsKeyPrefix); err != nil {
		r.logger.Warn("failed to clear cached playlists", "error", err)
	}

	r.logger.Info("token cleared")
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus reports whether a token is stored and which account it belongs to.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	tokens, err := r.tokens()
	if err != nil {
		return err
	}

	stored, err := tokens.Load()
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return r.writePlain("✗ Not signed in. Run 'playexport auth login'.\n")
	} else if err != nil {
		return err
	}

	fresh, err := tokens.Fresh(r.cfg().Cache.TokenTTL())
	if err != nil {
		return err
	}

	r.writePlainHeader("Spotify session")
	r.writePlain("Stored:  %s\n", stored.StoredAt.Local().Format(time.RFC1123))
	if !stored.Token.Expiry.IsZero() {
		r.writePlain("Expires: %s\n", stored.Token.Expiry.Local().Format(time.RFC1123))
	}
	if fresh {
		r.writePlain("Token:   fresh\n")
	} else {
		r.writePlain("Token:   stale, will refresh on next request\n")
	}

	svc, err := r.spotifyService(ctx)
	if err != nil {
		return err
	}
	user, err := svc.UserProfile(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("Account: %s (%s)\n", displayName(user), user.Product)
}

func displayName(user *services.SpotifyUser) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.ID
}
