package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/upcoming/internal/formatter"
	"github.com/desertthunder/upcoming/internal/repositories"
	"github.com/desertthunder/upcoming/internal/scraper"
	"github.com/desertthunder/upcoming/internal/services"
	"github.com/desertthunder/upcoming/internal/shared"
	"github.com/desertthunder/upcoming/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sql.DB
	venues     *repositories.VenueRepository
	artists    *repositories.ArtistRepository
	runs       *repositories.RunRepository
	creds      *services.Credentials
	oauth      *services.OAuthRefresher
	catalog    services.Service
	engine     *tasks.SyncEngine
	scheduler  *tasks.Scheduler
	palette    *formatter.Palette
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// DB is required. Catalog and Scraper default to the Spotify client and the Songkick scraper.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	DB         *sql.DB
	Catalog    services.Service
	Scraper    scraper.Scraper
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner wires repositories, the catalog client, the sync engine and the scheduler.
func NewRunner(opts RunnerOpts) (*Runner, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("%w: database handle", shared.ErrMissingArgument)
	}
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	config := opts.Config
	r := &Runner{
		config:     config,
		configPath: opts.ConfigPath,
		db:         opts.DB,
		venues:     repositories.NewVenueRepository(opts.DB),
		artists:    repositories.NewArtistRepository(opts.DB),
		runs:       repositories.NewRunRepository(opts.DB),
		palette:    formatter.DefaultPalette,
		logger:     opts.Logger,
		output:     opts.Output,
	}

	if config.HasSpotifyCredentials() {
		oauthConfig, err := services.NewOAuthConfig(config.Credentials.Spotify)
		if err != nil {
			return nil, err
		}
		r.oauth = services.NewOAuthRefresher(oauthConfig)
		r.oauth.SetTokenRefreshCallback(func(token *oauth2.Token) {
			r.logger.Debug("spotify token refreshed", "expires", token.Expiry)
		})
	} else {
		r.logger.Debug("spotify client credentials not configured")
	}

	// A nil *OAuthRefresher must not reach Credentials as a non-nil interface.
	var refresher services.TokenRefresher
	if r.oauth != nil {
		refresher = r.oauth
	}
	r.creds = services.NewCredentials(services.ServiceSpotify, repositories.NewCredentialRepository(opts.DB), refresher, r.logger)

	r.catalog = opts.Catalog
	if r.catalog == nil {
		r.catalog = services.NewSpotifyService(r.creds, services.SpotifyOptions{
			Market:  config.Credentials.Spotify.Market,
			Timeout: config.Sync.RequestTimeout.Duration,
			Logger:  r.logger,
		})
	}

	scr := opts.Scraper
	if scr == nil {
		scr = scraper.NewSongkickScraper(scraper.Options{
			UserAgent: config.Sync.UserAgent,
			Timeout:   config.Sync.ScrapeTimeout.Duration,
			Logger:    r.logger,
		})
	}

	r.engine = tasks.NewSyncEngine(r.catalog, scr, r.venues, r.artists, tasks.EngineOptions{
		Venues:  config.Venues,
		Sync:    config.Sync,
		Market:  config.Credentials.Spotify.Market,
		OwnerID: config.Credentials.Spotify.OwnerID,
		Logger:  r.logger,
	})

	scheduler, err := tasks.NewScheduler(r.engine, r.runs, config.Sync.Schedule, config.Sync.LockPath, r.logger)
	if err != nil {
		return nil, err
	}
	r.scheduler = scheduler

	return r, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, serveCommand, venuesCommand, artistsCommand, runsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// action applies the global --verbose flag before running fn.
func (r *Runner) action(fn cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Bool("verbose") {
			shared.SetLogLevel(r.logger, log.DebugLevel)
		}
		return fn(ctx, cmd)
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
	r.writePlain("%v\n", r.palette.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}
