package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playexport/internal/shared"
	"golang.org/x/oauth2"
)

// SpotifyProvider keys the Spotify token row.
const SpotifyProvider = "spotify"

// StoredToken is a token with the time it was saved.
type StoredToken struct {
	Token    *oauth2.Token
	StoredAt time.Time
}

// TokenRepository persists the OAuth token for a single provider.
type TokenRepository struct {
	db       *sql.DB
	provider string
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db, provider: SpotifyProvider}
}

// Save stores token, replacing any previous one. A refreshed token without a refresh
// token keeps the stored refresh token.
func (r *TokenRepository) Save(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidInput)
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	query := `
		INSERT INTO tokens (provider, access_token, refresh_token, token_type, expiry, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN tokens.refresh_token ELSE excluded.refresh_token END,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			stored_at = excluded.stored_at
	`

	_, err := r.db.Exec(query, r.provider, token.AccessToken, token.RefreshToken, tokenType, token.Expiry.UTC(), now())
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Load returns the stored token, or [shared.ErrNotAuthenticated] when there is none.
func (r *TokenRepository) Load() (*StoredToken, error) {
	query := `
		SELECT access_token, refresh_token, token_type, expiry, stored_at
		FROM tokens
		WHERE provider = ?
	`

	var (
		token  oauth2.Token
		expiry sql.NullTime
		stored StoredToken
	)
	err := r.db.QueryRow(query, r.provider).Scan(&token.AccessToken, &token.RefreshToken, &token.TokenType, &expiry, &stored.StoredAt)
	if isNoRows(err) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if expiry.Valid && !expiry.Time.IsZero() {
		token.Expiry = expiry.Time
	}
	stored.Token = &token
	return &stored, nil
}

// Fresh reports whether a token was stored less than ttl ago.
func (r *TokenRepository) Fresh(ttl time.Duration) (bool, error) {
	stored, err := r.Load()
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			return false, nil
		}
		return false, err
	}
	return now().Sub(stored.StoredAt) < ttl, nil
}

// Clear removes the stored token.
func (r *TokenRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM tokens WHERE provider = ?", r.provider); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
