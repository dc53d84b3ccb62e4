package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/playexport/internal/shared"
)

// CacheRepository implements models.Cache on the cache_entries table.
type CacheRepository struct {
	db *sql.DB
}

func NewCacheRepository(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Get returns the payload for key. Expired entries are reported as missing.
func (r *CacheRepository) Get(key string) ([]byte, bool, error) {
	var (
		payload   []byte
		expiresAt time.Time
	)
	err := r.db.QueryRow("SELECT payload, expires_at FROM cache_entries WHERE cache_key = ?", key).Scan(&payload, &expiresAt)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if !now().Before(expiresAt) {
		return nil, false, nil
	}
	return payload, true, nil
}

// Put stores value under key for ttl, replacing an existing entry.
func (r *CacheRepository) Put(key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("%w: empty cache key", shared.ErrInvalidInput)
	}

	stored := now()
	query := `
		INSERT INTO cache_entries (id, cache_key, payload, stored_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at
	`

	if _, err := r.db.Exec(query, shared.GenerateID(), key, value, stored, stored.Add(ttl)); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (r *CacheRepository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM cache_entries WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Clear deletes every entry whose key starts with prefix; an empty prefix clears the cache.
func (r *CacheRepository) Clear(prefix string) (int, error) {
	result, err := r.db.Exec("DELETE FROM cache_entries WHERE substr(cache_key, 1, ?) = ?", len(prefix), prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return rowsAffected(result)
}

// Purge deletes expired entries.
func (r *CacheRepository) Purge() (int, error) {
	rows, err := r.db.Query("SELECT cache_key, expires_at FROM cache_entries")
	if err != nil {
		return 0, fmt.Errorf("failed to list cache entries: %w", err)
	}

	var expired []string
	current := now()
	for rows.Next() {
		var (
			key       string
			expiresAt time.Time
		)
		if err := rows.Scan(&key, &expiresAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		if !current.Before(expiresAt) {
			expired = append(expired, key)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to list cache entries: %w", err)
	}

	for _, key := range expired {
		if err := r.Delete(key); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}

// CacheStats counts cache entries.
type CacheStats struct {
	Entries     int `json:"entries"`
	Expired     int `json:"expired"`
	Resolutions int `json:"resolutions"`
}

// Stats counts all entries, expired entries, and entries whose key starts with resolvePrefix.
func (r *CacheRepository) Stats(resolvePrefix string) (CacheStats, error) {
	var stats CacheStats

	rows, err := r.db.Query("SELECT cache_key, expires_at FROM cache_entries")
	if err != nil {
		return stats, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	current := now()
	for rows.Next() {
		var (
			key       string
			expiresAt time.Time
		)
		if err := rows.Scan(&key, &expiresAt); err != nil {
			return stats, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		stats.Entries++
		if !current.Before(expiresAt) {
			stats.Expired++
		}
		if len(key) >= len(resolvePrefix) && key[:len(resolvePrefix)] == resolvePrefix {
			stats.Resolutions++
		}
	}
	return stats, rows.Err()
}
