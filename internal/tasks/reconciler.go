package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/upcoming/internal/matching"
	"github.com/desertthunder/upcoming/internal/metrics"
	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/shared"
)

// VenueStore persists venue records. [repositories.VenueRepository] implements it.
type VenueStore interface {
	Ensure(ctx context.Context, cfg shared.VenueConfig) (*models.VenueLineup, error)
	Get(ctx context.Context, id string) (*models.VenueLineup, error)
	List(ctx context.Context) ([]*models.VenueLineup, error)
	SetPlaylistID(ctx context.Context, id, playlistID string) error
	SetPreviousLineup(ctx context.Context, id string, lineup []string) error
	MarkScraped(ctx context.Context, id string, at time.Time) error
}

// Reconciliation is the difference between a venue's recorded lineup and the one just scraped.
type Reconciliation struct {
	VenueID  string   `json:"venue_id"`
	FirstRun bool     `json:"first_run"`
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Kept     []string `json:"kept"`
	Evicted  []string `json:"evicted,omitempty"` // cache keys deleted by stale cleanup
}

// Reconciler diffs lineups between runs and evicts cached artists nobody books anymore.
type Reconciler struct {
	venues          VenueStore
	artists         ArtistStore
	retentionMonths int
	logger          *log.Logger
	now             func() time.Time
}

// NewReconciler creates a reconciler. Cached artists older than retentionMonths are eligible for eviction.
func NewReconciler(venues VenueStore, artists ArtistStore, retentionMonths int, logger *log.Logger) *Reconciler {
	if retentionMonths <= 0 {
		retentionMonths = 3
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reconciler{
		venues:          venues,
		artists:         artists,
		retentionMonths: retentionMonths,
		logger:          shared.WithLogger(logger, "component", "reconciler"),
		now:             time.Now,
	}
}

// Reconcile records current as the venue's lineup and reports what changed since the last run.
//
// With no recorded lineup every current name is added. Otherwise a previous name is removed when no current name
// matches it under [matching.NamesMatch]. Removed artists are then evicted from the cache when they are older than
// the retention window and no other venue's lineup still lists them.
func (r *Reconciler) Reconcile(ctx context.Context, venueID string, current []string) (*Reconciliation, error) {
	venue, err := r.venues.Get(ctx, venueID)
	if err != nil {
		return nil, err
	}

	lineup := append([]string{}, current...)
	rec := &Reconciliation{VenueID: venueID, Kept: lineup, Removed: []string{}}

	if !venue.HasPreviousLineup() {
		rec.FirstRun = true
		rec.Added = lineup
	} else {
		rec.Removed = unmatched(venue.PreviousLineup, lineup)
		rec.Added = unmatched(lineup, venue.PreviousLineup)
	}

	if err := r.venues.SetPreviousLineup(ctx, venueID, lineup); err != nil {
		return nil, fmt.Errorf("failed to record lineup: %w", err)
	}

	if len(rec.Removed) > 0 {
		rec.Evicted = r.evict(ctx, venueID, rec.Removed)
	}

	r.logger.Info("lineup reconciled",
		"venue", venueID, "first_run", rec.FirstRun,
		"added", len(rec.Added), "removed", len(rec.Removed), "evicted", len(rec.Evicted))
	return rec, nil
}

// evict deletes stale cache entries for removed names. Failures are logged and skipped.
func (r *Reconciler) evict(ctx context.Context, venueID string, removed []string) []string {
	venues, err := r.venues.List(ctx)
	if err != nil {
		r.logger.Warn("skipping stale cleanup, failed to list venues", "err", err)
		return nil
	}

	var others []string
	for _, v := range venues {
		if v.ID != venueID {
			others = append(others, v.PreviousLineup...)
		}
	}

	cutoff := r.now().AddDate(0, -r.retentionMonths, 0)
	var evicted []string

	for _, name := range removed {
		key := matching.Normalize(name)
		artist, err := r.artists.Get(ctx, key)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		} else if err != nil {
			r.logger.Warn("stale cleanup lookup failed", "artist", name, "err", err)
			continue
		}

		if !artist.ResolvedAt.Before(cutoff) || matchesAny(name, others) {
			continue
		}

		if err := r.artists.Delete(ctx, key); err != nil {
			r.logger.Warn("stale cleanup delete failed", "artist", name, "err", err)
			continue
		}
		metrics.RecordEviction()
		evicted = append(evicted, key)
	}
	return evicted
}

// Stats reports the stored lineup state of every venue.
func (r *Reconciler) Stats(ctx context.Context) ([]models.VenueStats, error) {
	venues, err := r.venues.List(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	stats := make([]models.VenueStats, 0, len(venues))
	for _, v := range venues {
		stats = append(stats, v.Stats(now))
	}
	return stats, nil
}

// Reset forgets the venue's recorded lineup so the next run is treated as a first run.
func (r *Reconciler) Reset(ctx context.Context, venueID string) error {
	if err := r.venues.SetPreviousLineup(ctx, venueID, nil); err != nil {
		return err
	}
	r.logger.Info("lineup reset", "venue", venueID)
	return nil
}

// unmatched returns the names in from that match nothing in against.
func unmatched(from, against []string) []string {
	out := []string{}
	for _, name := range from {
		if !matchesAny(name, against) {
			out = append(out, name)
		}
	}
	return out
}

func matchesAny(name string, list []string) bool {
	for _, other := range list {
		if matching.NamesMatch(name, other) {
			return true
		}
	}
	return false
}
