// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func reportFlags() []cli.Flag {
	return []cli.Flag{
		jsonFlag(),
		&cli.BoolFlag{
			Name:  "save",
			Usage: "Save a Markdown report to run_<id>.md",
		},
		&cli.StringFlag{
			Name:    "report",
			Aliases: []string{"o"},
			Usage:   "Save a report to this path (.md for Markdown, anything else for plain text)",
		},
	}
}

// setupCommand prepares the database and the config file
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Run database migrations and show their status",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.action(r.SetupDatabase),
			},
			{
				Name:  "config",
				Usage: "Write a config.toml from the built-in template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path to write the configuration file (defaults to the active config path)",
					},
				},
				Action: r.action(r.SetupConfig),
			},
		},
	}
}

// authCommand handles the Spotify authorization code flow
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Spotify in the browser and store the token",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: 5 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.action(r.AuthLogin),
			},
			{
				Name:   "status",
				Usage:  "Show whether a token is stored and when it expires",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.action(r.AuthStatus),
			},
		},
	}
}

// syncCommand runs the venue pipeline from the terminal
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync venue playlists",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Sync every configured venue",
				Flags:  reportFlags(),
				Action: r.action(r.SyncRun),
			},
			{
				Name:  "venue",
				Usage: "Sync a single venue",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags:  reportFlags(),
				Action: r.action(r.SyncVenue),
			},
		},
	}
}

// serveCommand starts the scheduler and the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the weekly scheduler and the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides config)",
			},
		},
		Action: r.action(r.Serve),
	}
}

// venuesCommand inspects and resets stored venue state
func venuesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "venues",
		Usage: "Configured venues and their stored lineups",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List configured venues",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.action(r.VenuesList),
			},
			{
				Name:   "stats",
				Usage:  "Show lineup size and last scrape per venue",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.action(r.VenuesStats),
			},
			{
				Name:  "reset",
				Usage: "Forget a venue's previous lineup so the next sync starts fresh",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.action(r.VenuesReset),
			},
		},
	}
}

// artistsCommand manages the resolved artist cache
func artistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artists",
		Usage: "Resolved artist cache",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached artists, most recently resolved first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of artists to show",
						Value: 50,
					},
					jsonFlag(),
				},
				Action: r.action(r.ArtistsList),
			},
			{
				Name:  "resolve",
				Usage: "Resolve an artist name against the catalog",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.action(r.ArtistsResolve),
			},
			{
				Name:  "forget",
				Usage: "Remove an artist from the cache",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "name",
					},
				},
				Action: r.action(r.ArtistsForget),
			},
		},
	}
}

// runsCommand shows sync run history
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Sync run history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, json or csv",
						Value:   "text",
					},
				},
				Action: r.action(r.RunsList),
			},
		},
	}
}
