package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/desertthunder/playexport/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the embedded template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err := shared.LoadConfig(r.configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
		} else {
			r.config = config
		}
	}

	path := r.cfg().Database.Path
	r.logger.Info("initializing database", "path", path)
	db, err := r.database()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	version, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", path)
	return r.writePlain("✓ Database ready at %s (schema version %d)\n", path, version)
}

// SetupConfig writes a configuration file, optionally prompting for the values that have no
// usable default.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		return fmt.Errorf("%w: config file already exists at %s (use --force to overwrite)", shared.ErrInvalidArgument, path)
	}

	config := shared.DefaultConfig()
	if cmd.Bool("interactive") {
		if err := configForm(config).Run(); err != nil {
			return fmt.Errorf("setup canceled: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return err
	}
	if err := shared.SaveConfig(config, path); err != nil {
		return err
	}
	r.config = config

	r.logger.Info("config file written", "path", path)
	r.writePlain("✓ Configuration saved to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Run 'playexport setup database'\n")
	r.writePlain("2. Run 'playexport auth login'\n")
	return nil
}

// configForm prompts for Spotify credentials and the video search backend.
func configForm(config *shared.Config) *huh.Form {
	spotify := &config.Credentials.Spotify
	spotify.ClientID = ""

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Spotify client ID").
				Description("From the app page of the Spotify developer dashboard").
				Value(&spotify.ClientID).
				Validate(required("client ID")),
			huh.NewInput().
				Title("Redirect URI").
				Description("Must match a redirect URI registered for the app").
				Value(&spotify.RedirectURI).
				Validate(validateRedirectURI),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Video search backend").
				Options(
					huh.NewOption("Invidious (no API key)", "invidious"),
					huh.NewOption("YouTube Data API", "youtube"),
				).
				Value(&config.Resolver.Backend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("YouTube Data API key").
				Value(&config.Credentials.YouTube.APIKey).
				Validate(required("API key")),
		).WithHideFunc(func() bool { return config.Resolver.Backend != "youtube" }),
	)
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validateRedirectURI(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "http" || u.Host == "" {
		return fmt.Errorf("must be a loopback http URL such as http://127.0.0.1:3000/callback")
	}
	return nil
}
