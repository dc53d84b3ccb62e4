package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/repositories"
	"github.com/desertthunder/playexport/internal/services"
	"github.com/desertthunder/playexport/internal/shared"
	"github.com/desertthunder/playexport/internal/tasks"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

// PickFunc asks the user to choose one of playlists and returns its ID.
type PickFunc func(playlists []models.Playlist) (string, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators that need credentials or the database are built on first use, so commands
// like `setup config` work before anything is configured.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	pick       PickFunc
	browser    func(url string) error

	db       *sql.DB
	spotify  *services.SpotifyService
	source   services.PlaylistSource
	resolver services.VideoResolver
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Source and Resolver replace the Spotify and video search collaborators.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Source      services.PlaylistSource
	Resolver    services.VideoResolver
	Pick        PickFunc
	OpenBrowser func(url string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Pick == nil {
		opts.Pick = pickPlaylist
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		pick:       opts.Pick,
		browser:    opts.OpenBrowser,
		source:     opts.Source,
		resolver:   opts.Resolver,
	}
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database, if it was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "playexport",
		Usage:   "Export Spotify playlists as CSV files of matching YouTube videos",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, resolveCommand, exportCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// before loads the configuration named by --config unless one was injected.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if r.configPath == "" {
		r.configPath = cmd.String("config")
	}
	if r.config != nil {
		return ctx, nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if errors.Is(err, shared.ErrMissingConfig) {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		r.config = shared.DefaultConfig()
		return ctx, nil
	} else if err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

func (r *Runner) cfg() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	return r.config
}

// database opens the configured database and applies migrations on first use.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	conf := r.cfg().Database
	db, err := shared.NewDatabase(conf.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, conf.MaxOpenConns, conf.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	r.db = db
	return db, nil
}

func (r *Runner) cache() (*repositories.CacheRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewCacheRepository(db), nil
}

func (r *Runner) tokens() (*repositories.TokenRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewTokenRepository(db), nil
}

// spotifyService builds the Spotify client and installs the stored token, if any.
//
// A token older than the configured token TTL is marked expired so the first request
// refreshes it.
func (r *Runner) spotifyService(ctx context.Context) (*services.SpotifyService, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}

	tokens, err := r.tokens()
	if err != nil {
		return nil, err
	}

	creds := r.cfg().Credentials.Spotify
	svc, err := services.NewSpotifyService(services.SpotifyOpts{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURI:  creds.RedirectURI,
		Scopes:       creds.Scopes,
		HTTPClient:   r.httpClient,
		Logger:       r.logger,
		OnToken:      tokens.Save,
	})
	if err != nil {
		return nil, err
	}

	stored, err := tokens.Load()
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
	case err != nil:
		return nil, err
	default:
		fresh, err := tokens.Fresh(r.cfg().Cache.TokenTTL())
		if err != nil {
			return nil, err
		}
		if !fresh && stored.Token.RefreshToken != "" {
			stored.Token.Expiry = stored.StoredAt
		}
		svc.SetToken(ctx, stored.Token)
	}

	r.spotify = svc
	return svc, nil
}

// playlistSource returns the injected source or the authenticated Spotify client.
func (r *Runner) playlistSource(ctx context.Context, useCache bool) (services.PlaylistSource, error) {
	if r.source != nil {
		return r.source, nil
	}

	svc, err := r.spotifyService(ctx)
	if err != nil {
		return nil, err
	}
	if !svc.Authenticated() {
		return nil, shared.ErrNotAuthenticated
	}

	conf := r.cfg().Cache
	if !useCache || !conf.Enabled {
		return svc, nil
	}
	cache, err := r.cache()
	if err != nil {
		return nil, err
	}
	return services.NewCachingSource(svc, cache, conf.PlaylistTTL(), r.logger), nil
}

// videoResolver returns the injected resolver or builds the configured backend.
// backend overrides the configured one when set.
func (r *Runner) videoResolver(ctx context.Context, backend string, useCache bool) (services.VideoResolver, error) {
	if r.resolver != nil {
		return r.resolver, nil
	}

	conf := *r.cfg()
	if backend != "" {
		conf.Resolver.Backend = backend
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	var resolver services.VideoResolver
	switch strings.ToLower(conf.Resolver.Backend) {
	case "youtube":
		yt, err := services.NewDataAPIResolver(ctx, services.DataAPIOpts{
			APIKey:       conf.Credentials.YouTube.APIKey,
			MaxResults:   conf.Resolver.MaxResults,
			FetchDetails: conf.Resolver.FetchDetails,
			Logger:       r.logger,
		})
		if err != nil {
			return nil, err
		}
		resolver = yt
	default:
		client := *r.httpClient
		if client.Timeout == 0 {
			client.Timeout = conf.Resolver.Timeout()
		}
		resolver = services.NewInvidiousResolver(services.InvidiousOpts{
			BaseURL:      conf.Resolver.BaseURL,
			MaxResults:   conf.Resolver.MaxResults,
			FetchDetails: conf.Resolver.FetchDetails,
			HTTPClient:   &client,
			Logger:       r.logger,
		})
	}

	if !useCache || !conf.Cache.Enabled {
		return resolver, nil
	}
	cache, err := r.cache()
	if err != nil {
		return nil, err
	}
	return services.NewCachingResolver(resolver, cache, conf.Cache.ResolutionTTL(), r.logger), nil
}

// engine wires source, resolver, pipeline and run history for export commands.
func (r *Runner) engine(ctx context.Context, cmd *cli.Command) (*tasks.Engine, error) {
	useCache := !cmd.Bool("no-cache")

	source, err := r.playlistSource(ctx, useCache)
	if err != nil {
		return nil, err
	}
	resolver, err := r.videoResolver(ctx, cmd.String("backend"), useCache)
	if err != nil {
		return nil, err
	}

	conf := r.cfg().Export
	delay := conf.Delay()
	if delay == 0 {
		delay = -1
	}
	pipeline := tasks.NewPipeline(resolver, tasks.PipelineOpts{BatchSize: conf.BatchSize, Delay: delay, Logger: r.logger})

	var recorder tasks.RunRecorder
	if db, err := r.database(); err != nil {
		r.logger.Warn("export history disabled", "error", err)
	} else {
		recorder = repositories.NewExportRunRepository(db)
	}
	return tasks.NewEngine(source, pipeline, recorder, r.logger), nil
}

// describeError turns known failures into a message for the terminal.
func describeError(err error) string {
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		return "Not signed in to Spotify. Run 'playexport auth login' first."
	case errors.Is(err, shared.ErrTokenExpired), errors.Is(err, shared.ErrRefreshFailed):
		return "Your Spotify session has expired. Run 'playexport auth login' to sign in again."
	case errors.Is(err, shared.ErrAccessDenied):
		return "Spotify denied access (403). If the app is in development mode, your account must be " +
			"added as an approved user in the Spotify developer dashboard."
	case errors.Is(err, shared.ErrPlaylistNotFound):
		return fmt.Sprintf("Playlist not found: %v", err)
	case errors.Is(err, shared.ErrQuotaExceeded):
		return "The video search service is rate limiting requests. Wait a while or switch --backend."
	case errors.Is(err, shared.ErrMissingCredentials):
		return fmt.Sprintf("Missing credentials: %v. Edit the config file or run 'playexport setup config'.", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
