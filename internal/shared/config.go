package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Resolver    ResolverConfig    `toml:"resolver"`
	Export      ExportConfig      `toml:"export"`
	Cache       CacheConfig       `toml:"cache"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials.
//
// ClientSecret may be empty: the authorization flow uses PKCE.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
}

// YouTubeConfig contains the YouTube Data API key used by the "youtube" resolver backend.
type YouTubeConfig struct {
	APIKey string `toml:"api_key"`
}

// ResolverConfig selects and tunes the video search backend.
type ResolverConfig struct {
	Backend        string `toml:"backend"`
	BaseURL        string `toml:"base_url"`
	MaxResults     int    `toml:"max_results"`
	FetchDetails   bool   `toml:"fetch_details"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ExportConfig controls batching, pacing and output of exports.
type ExportConfig struct {
	BatchSize         int     `toml:"batch_size"`
	DelayMS           int     `toml:"delay_ms"`
	OutputDir         string  `toml:"output_dir"`
	BulkWorkers       int     `toml:"bulk_workers"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// CacheConfig controls the local cache time-to-live values.
type CacheConfig struct {
	Enabled            bool `toml:"enabled"`
	TokenTTLMinutes    int  `toml:"token_ttl_minutes"`
	PlaylistTTLMinutes int  `toml:"playlist_ttl_minutes"`
	ResolutionTTLHours int  `toml:"resolution_ttl_hours"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (c ResolverConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ExportConfig) Delay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}

func (c CacheConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func (c CacheConfig) PlaylistTTL() time.Duration {
	return time.Duration(c.PlaylistTTLMinutes) * time.Minute
}

func (c CacheConfig) ResolutionTTL() time.Duration {
	return time.Duration(c.ResolutionTTLHours) * time.Hour
}

// Validate reports configuration values that cannot work at runtime.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Resolver.Backend) {
	case "invidious":
		if c.Resolver.BaseURL == "" {
			return fmt.Errorf("%w: resolver.base_url is required for the invidious backend", ErrInvalidConfig)
		}
	case "youtube":
		if c.Credentials.YouTube.APIKey == "" {
			return fmt.Errorf("%w: credentials.youtube.api_key is required for the youtube backend", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("%w: unknown resolver backend %q", ErrInvalidConfig, c.Resolver.Backend)
	}

	if c.Export.BatchSize < 1 {
		return fmt.Errorf("%w: export.batch_size must be at least 1", ErrInvalidConfig)
	}
	if c.Export.DelayMS < 0 {
		return fmt.Errorf("%w: export.delay_ms must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes the configuration as TOML and writes it to path.
func SaveConfig(c *Config, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
