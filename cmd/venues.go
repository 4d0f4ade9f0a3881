package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/upcoming/internal/formatter"
	"github.com/desertthunder/upcoming/internal/matching"
	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/shared"
	"github.com/urfave/cli/v3"
)

// VenuesList prints configured venues with the playlist each one syncs to.
func (r *Runner) VenuesList(ctx context.Context, cmd *cli.Command) error {
	stored, err := r.venues.List(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]*models.VenueLineup, len(stored))
	for _, v := range stored {
		byID[v.ID] = v
	}

	if cmd.Bool("json") {
		return r.writeJSON(r.config.Venues, true)
	}

	r.writePlainHeader(fmt.Sprintf("%d venues", len(r.config.Venues)))
	for _, v := range r.config.Venues {
		playlist := r.palette.Help("not synced")
		if s, ok := byID[v.ID]; ok && s.PlaylistID != "" {
			playlist = s.PlaylistID
		}
		r.writePlain("%-20s %-24s %s\n", v.ID, v.Name, playlist)
		r.writePlain("  %s\n", r.palette.Help(v.ScrapeURL))
	}
	return nil
}

// VenuesStats prints the stored lineup state of every synced venue.
func (r *Runner) VenuesStats(ctx context.Context, cmd *cli.Command) error {
	stats, err := r.engine.Reconciler().Stats(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}

	if len(stats) == 0 {
		return r.writePlain("No venues synced yet. Run 'upcoming sync run' first.\n")
	}
	r.writePlain("%s", formatter.FormatVenueStats(r.palette, stats, time.Now()))
	return nil
}

// VenuesReset clears a venue's previous lineup so the next sync treats every artist as new.
func (r *Runner) VenuesReset(ctx context.Context, cmd *cli.Command) error {
	venueID := cmd.StringArg("id")
	if venueID == "" {
		return fmt.Errorf("%w: venue id", shared.ErrMissingArgument)
	}

	venue, err := r.config.Venue(venueID)
	if err != nil {
		return err
	}
	if _, err := r.venues.Ensure(ctx, venue); err != nil {
		return err
	}
	if err := r.engine.Reconciler().Reset(ctx, venue.ID); err != nil {
		return err
	}

	return r.writePlain("%s Reset lineup for %s\n", r.palette.OK("✓"), venue.Name)
}

// ArtistsList prints cached artists. --limit 0 lists all of them.
func (r *Runner) ArtistsList(ctx context.Context, cmd *cli.Command) error {
	artists, err := r.artists.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(artists, true)
	}

	total, err := r.artists.Count(ctx)
	if err != nil {
		return err
	}
	stale, err := r.artists.ListResolvedBefore(ctx, r.config.Sync.RetentionCutoff(time.Now()))
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("%d cached artists (%d past retention)", total, len(stale)))
	r.writePlain("%s", formatter.FormatArtists(r.palette, artists, time.Now()))
	return nil
}

// ArtistsResolve resolves a name through the cache and catalog, printing the tracks it maps to.
func (r *Runner) ArtistsResolve(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: artist name", shared.ErrMissingArgument)
	}

	artist, err := r.engine.Resolver().Resolve(ctx, name)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(artist, true)
	}

	r.writePlain("%s %s (%s)\n", r.palette.OK("✓"), artist.Name, artist.CatalogID)
	if artist.IsComposite {
		r.writePlain("  billed as: %s\n", strings.Join(artist.Constituents, " + "))
	}
	for i, uri := range artist.TrackURIs {
		r.writePlain("  %d. %s\n", i+1, uri)
	}
	return nil
}

// ArtistsForget removes a cached artist so the next sync looks it up again.
func (r *Runner) ArtistsForget(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	key := matching.Normalize(name)
	if key == "" {
		return fmt.Errorf("%w: artist name", shared.ErrMissingArgument)
	}

	if err := r.artists.Delete(ctx, key); err != nil {
		return err
	}
	return r.writePlain("%s Forgot %s\n", r.palette.OK("✓"), name)
}

// RunsList prints recent runs as text, JSON or CSV.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	runs, err := r.runs.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	switch format := cmd.String("format"); format {
	case "json":
		if runs == nil {
			runs = []*models.RunSummary{}
		}
		return r.writeJSON(runs, true)
	case "csv":
		data, err := formatter.ExportRunsCSV(runs)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case "text", "":
		if len(runs) == 0 {
			return r.writePlain("No runs recorded yet.\n")
		}
		for _, run := range runs {
			r.writePlain("%s\n", formatter.FormatRun(r.palette, run))
		}
		return nil
	default:
		return fmt.Errorf("%w: format %q (must be text, json or csv)", shared.ErrInvalidInput, format)
	}
}
