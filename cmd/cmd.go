// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func noCacheFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "no-cache",
		Usage: "Bypass cached playlists and video matches",
	}
}

func backendFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "backend",
		Aliases: []string{"b"},
		Usage:   "Video search backend (invidious or youtube)",
	}
}

// setupCommand initializes the local database and configuration
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a configuration file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "interactive",
						Aliases: []string{"i"},
						Usage:   "Prompt for credentials and the search backend",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing configuration file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles the Spotify login session
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify login session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in to Spotify using OAuth2 with PKCE",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "show-dialog",
						Usage: "Always show the Spotify consent dialog",
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL without opening a browser",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the callback",
						Value: loginTimeout,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored token and cached playlists",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the signed-in Spotify account",
				Action: r.AuthStatus,
			},
		},
	}
}

// playlistsCommand lists and inspects Spotify playlists
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Browse Spotify playlists",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List your playlists",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to show (0 for all)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
					noCacheFlag(),
				},
				Action: r.PlaylistsList,
			},
			{
				Name:      "show",
				Usage:     "Show the tracks of a playlist",
				ArgsUsage: "<playlist link, ID or name>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
					noCacheFlag(),
				},
				Action: r.PlaylistsShow,
			},
		},
	}
}

// resolveCommand looks up the video for a single track
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Find the best matching video for one track",
		ArgsUsage: "<title> <artist>",
		Flags: []cli.Flag{
			backendFlag(),
			noCacheFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Resolve,
	}
}

// exportCommand converts playlists into CSV exports
func exportCommand(r *Runner) *cli.Command {
	exportFlags := func(extra ...cli.Flag) []cli.Flag {
		return append([]cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Number of concurrent video lookups",
			},
			&cli.BoolFlag{
				Name:  "report",
				Usage: "Also write a markdown report of unresolved tracks",
			},
			backendFlag(),
			noCacheFlag(),
		}, extra...)
	}

	return &cli.Command{
		Name:  "export",
		Usage: "Export playlists as CSV files of YouTube videos",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Export one playlist",
				Flags: exportFlags(&cli.StringFlag{
					Name:    "playlist",
					Aliases: []string{"p"},
					Usage:   "Playlist link, ID or name (prompts when omitted)",
				}),
				Action: r.ExportRun,
			},
			{
				Name:      "bulk",
				Usage:     "Export several playlists into one directory",
				ArgsUsage: "[playlist IDs...]",
				Flags: exportFlags(
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Export every playlist in the library",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent playlist fetches",
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Playlist fetches per second",
					},
				),
				Action: r.ExportBulk,
			},
			{
				Name:  "history",
				Usage: "Show recent exports",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Only show runs of this playlist ID",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ExportHistory,
			},
		},
	}
}

// cacheCommand inspects and clears the local cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear cached playlists and video matches",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show cache statistics",
				Action: r.CacheStatus,
			},
			{
				Name:  "clear",
				Usage: "Remove cache entries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "scope",
						Usage: "What to clear: resolutions, playlists, expired or all",
						Value: "all",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// tuiCommand launches the interactive terminal UI
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Browse and export playlists interactively",
		Flags: []cli.Flag{
			backendFlag(),
			noCacheFlag(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the UI is running",
				Value: "./tmp/playexport-tui.log",
			},
		},
		Action: r.TUI,
	}
}
