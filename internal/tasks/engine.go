package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/upcoming/internal/metrics"
	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/scraper"
	"github.com/desertthunder/upcoming/internal/services"
	"github.com/desertthunder/upcoming/internal/shared"
)

// EngineOptions configures a [SyncEngine].
type EngineOptions struct {
	Venues  []shared.VenueConfig
	Sync    shared.SyncConfig
	Market  string
	OwnerID string
	Logger  *log.Logger
}

// SyncEngine drives venues through scrape, reconcile, resolve, sync and persist.
type SyncEngine struct {
	venues     []shared.VenueConfig
	scraper    scraper.Scraper
	store      VenueStore
	resolver   *ArtistResolver
	reconciler *Reconciler
	playlists  *PlaylistSynchronizer
	venueDelay time.Duration
	logger     *log.Logger
	now        func() time.Time
}

// NewSyncEngine wires the resolver, reconciler and playlist synchronizer over the given collaborators.
func NewSyncEngine(catalog services.Service, scr scraper.Scraper, venues VenueStore, artists ArtistStore, opts EngineOptions) *SyncEngine {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	resolver := NewArtistResolver(catalog, artists, ResolverOptions{
		SearchLimit:  opts.Sync.SearchLimit,
		TopTracks:    opts.Sync.TopTracks,
		CompositeCap: opts.Sync.CompositeTrackCap,
		Market:       opts.Market,
		Freshness:    opts.Sync.FreshnessWindow.Duration,
		Delay:        opts.Sync.ArtistDelay.Duration,
		Logger:       logger,
	})

	return &SyncEngine{
		venues:     opts.Venues,
		scraper:    scr,
		store:      venues,
		resolver:   resolver,
		reconciler: NewReconciler(venues, artists, opts.Sync.RetentionMonths, logger),
		playlists:  NewPlaylistSynchronizer(catalog, venues, opts.OwnerID, opts.Sync.PlaylistPublic, logger),
		venueDelay: opts.Sync.VenueDelay.Duration,
		logger:     shared.WithLogger(logger, "component", "engine"),
		now:        time.Now,
	}
}

// Resolver returns the engine's artist resolver.
func (e *SyncEngine) Resolver() *ArtistResolver { return e.resolver }

// Reconciler returns the engine's lineup reconciler.
func (e *SyncEngine) Reconciler() *Reconciler { return e.reconciler }

// Venues returns the configured venues in sync order.
func (e *SyncEngine) Venues() []shared.VenueConfig { return e.venues }

// Venue returns the configured venue with the given id.
func (e *SyncEngine) Venue(id string) (shared.VenueConfig, error) {
	for _, v := range e.venues {
		if v.ID == id {
			return v, nil
		}
	}
	return shared.VenueConfig{}, fmt.Errorf("%w: %s", shared.ErrVenueNotFound, id)
}

// SyncVenue runs one venue through the pipeline. Failures are reported in the result, never returned.
func (e *SyncEngine) SyncVenue(ctx context.Context, venue shared.VenueConfig, progress chan<- ProgressUpdate) models.SyncResult {
	result := models.SyncResult{
		VenueID:   venue.ID,
		VenueName: venue.Name,
		State:     models.StatePending,
		StartedAt: e.now(),
	}
	logger := shared.WithLogger(e.logger, "venue", venue.ID)

	defer func() {
		result.Duration = e.now().Sub(result.StartedAt)
		outcome := "success"
		if !result.Success {
			outcome = "failed"
			logger.Warn("venue sync failed", "state", result.FailedAt, "reason", result.Reason)
		} else {
			metrics.SetVenueTracks(venue.ID, result.TracksAdded)
		}
		metrics.RecordVenue(venue.ID, outcome)
	}()

	if _, err := e.store.Ensure(ctx, venue); err != nil {
		result.Fail(fmt.Sprintf("failed to record venue: %v", err))
		return result
	}

	scraped, err := e.scraper.Scrape(ctx, venue)
	if err != nil {
		result.Fail(fmt.Sprintf("scrape failed: %v", err))
		return result
	}
	result.Advance(models.StateScraped)
	result.ArtistsFound = len(scraped.Artists)

	if len(scraped.Artists) == 0 {
		result.Fail(shared.ErrNoArtists.Error())
		return result
	}

	rec, err := e.reconciler.Reconcile(ctx, venue.ID, scraped.Artists)
	if err != nil {
		result.Fail(fmt.Sprintf("reconcile failed: %v", err))
		return result
	}
	result.Advance(models.StateReconciled)
	result.RemovedArtists = rec.Removed
	result.ArtistsRemoved = len(rec.Removed)
	result.AddedArtists = rec.Added
	sendProgress(progress, reconcileUpdate(venue.ID, rec))

	tracks, err := e.resolveAll(ctx, logger, venue.ID, scraped.Artists, &result, progress)
	if err != nil {
		result.Fail(fmt.Sprintf("resolution aborted: %v", err))
		return result
	}
	result.Advance(models.StateResolved)

	if len(tracks) == 0 {
		result.Fail(shared.ErrNoTracks.Error())
		return result
	}

	sendProgress(progress, syncPlaylistUpdate(venue.ID, len(tracks)))
	playlistID, err := e.playlists.EnsurePlaylist(ctx, venue.Name, venue.ID)
	if err != nil {
		result.Fail(fmt.Sprintf("playlist unavailable: %v", err))
		return result
	}
	result.PlaylistID = playlistID

	if err := e.playlists.ReplaceTracks(ctx, playlistID, tracks); err != nil {
		result.Fail(fmt.Sprintf("playlist update failed: %v", err))
		return result
	}
	result.Advance(models.StateSynced)
	result.TracksAdded = len(tracks)

	if err := e.store.MarkScraped(ctx, venue.ID, e.now()); err != nil {
		result.Fail(fmt.Sprintf("failed to persist venue: %v", err))
		return result
	}
	result.Advance(models.StatePersisted)
	result.Success = true

	logger.Info("venue synced",
		"found", result.ArtistsFound, "resolved", result.ArtistsResolved,
		"missed", result.ArtistsMissed, "tracks", result.TracksAdded)
	return result
}

// resolveAll resolves artists in order and returns their tracks without duplicates.
//
// Missing and transiently failing artists are recorded as missed. Authentication failures and cancellation stop
// the venue, since every later lookup would fail the same way.
func (e *SyncEngine) resolveAll(ctx context.Context, logger *log.Logger, venueID string, artists []string, result *models.SyncResult, progress chan<- ProgressUpdate) ([]string, error) {
	var tracks []string
	seen := make(map[string]bool)

	for i, name := range artists {
		sendProgress(progress, resolveUpdate(venueID, i+1, len(artists), name))

		artist, err := e.resolver.Resolve(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isAuthError(err) {
				return nil, err
			}
			if !errors.Is(err, shared.ErrNotFound) {
				logger.Warn("artist lookup failed", "artist", name, "err", err)
			}
			result.MissedArtists = append(result.MissedArtists, name)
			result.ArtistsMissed++
			continue
		}

		result.ArtistsResolved++
		result.FoundArtists = append(result.FoundArtists, name)
		for _, uri := range artist.TrackURIs {
			if !seen[uri] {
				seen[uri] = true
				tracks = append(tracks, uri)
			}
		}
	}
	return tracks, nil
}

func isAuthError(err error) bool {
	return errors.Is(err, shared.ErrAuthFailed) ||
		errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, shared.ErrRefreshFailed) ||
		errors.Is(err, shared.ErrNoRefreshToken)
}

// SyncAll syncs every configured venue in order, pausing between venues. It always returns a summary.
func (e *SyncEngine) SyncAll(ctx context.Context, trigger models.Trigger, progress chan<- ProgressUpdate) *models.RunSummary {
	return e.run(ctx, trigger, "", e.venues, progress)
}

// SyncOne syncs a single configured venue.
func (e *SyncEngine) SyncOne(ctx context.Context, venueID string, progress chan<- ProgressUpdate) (*models.RunSummary, error) {
	venue, err := e.Venue(venueID)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, models.TriggerVenue, venueID, []shared.VenueConfig{venue}, progress), nil
}

func (e *SyncEngine) run(ctx context.Context, trigger models.Trigger, venueID string, venues []shared.VenueConfig, progress chan<- ProgressUpdate) *models.RunSummary {
	summary := &models.RunSummary{
		ID:        shared.GenerateID(),
		Trigger:   trigger,
		VenueID:   venueID,
		Results:   make([]models.SyncResult, 0, len(venues)),
		StartedAt: e.now(),
	}
	total := len(venues)
	e.logger.Info("sync run started", "run", summary.ID, "trigger", trigger, "venues", total)

	for i, venue := range venues {
		if i > 0 && ctx.Err() == nil {
			e.pause(ctx)
		}

		var result models.SyncResult
		if err := ctx.Err(); err != nil {
			result = models.SyncResult{VenueID: venue.ID, VenueName: venue.Name, StartedAt: e.now()}
			result.Fail(fmt.Sprintf("run canceled: %v", err))
		} else {
			sendProgress(progress, scrapeUpdate(i+1, total, venue.Name))
			result = e.syncVenueSafe(ctx, venue, progress)
		}

		summary.Add(result)
		sendProgress(progress, venueDoneUpdate(i+1, total, &result))
	}

	summary.Finish(e.now())
	metrics.RecordRun(string(trigger), summary.Duration)
	sendProgress(progress, runDoneUpdate(summary))

	e.logger.Info("sync run finished",
		"run", summary.ID, "successful", summary.Successful, "failed", summary.Failed, "duration", summary.Duration)
	return summary
}

// syncVenueSafe converts a panic in one venue into a failed result.
func (e *SyncEngine) syncVenueSafe(ctx context.Context, venue shared.VenueConfig, progress chan<- ProgressUpdate) (result models.SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("venue sync panicked", "venue", venue.ID, "panic", r)
			result = models.SyncResult{VenueID: venue.ID, VenueName: venue.Name, StartedAt: e.now()}
			result.Fail(fmt.Sprintf("panic: %v", r))
		}
	}()
	return e.SyncVenue(ctx, venue, progress)
}

func (e *SyncEngine) pause(ctx context.Context) {
	if e.venueDelay <= 0 {
		return
	}
	t := time.NewTimer(e.venueDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
