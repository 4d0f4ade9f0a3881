package tasks

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/shared"
	tu "github.com/desertthunder/upcoming/internal/testing"
)

func newTestReconciler(t *testing.T, venueIDs ...string) (*Reconciler, stores) {
	t.Helper()
	s := newStores(t)
	for _, id := range venueIDs {
		if _, err := s.venues.Ensure(context.Background(), tu.Venue(id)); err != nil {
			t.Fatalf("failed to ensure venue %s: %v", id, err)
		}
	}
	return NewReconciler(s.venues, s.artists, 3, quietLogger()), s
}

func cacheArtist(t *testing.T, s stores, key string, resolvedAt time.Time) {
	t.Helper()
	artist := &models.ResolvedArtist{
		Key:        key,
		Name:       key,
		CatalogID:  "id-" + key,
		TrackURIs:  []string{"track-" + key},
		ResolvedAt: resolvedAt,
	}
	if err := s.artists.Save(context.Background(), artist); err != nil {
		t.Fatalf("failed to cache %s: %v", key, err)
	}
}

func TestReconciler(t *testing.T) {
	ctx := context.Background()

	t.Run("first run adds everything", func(t *testing.T) {
		r, s := newTestReconciler(t, "metro")

		rec, err := r.Reconcile(ctx, "metro", []string{"Wilco", "Low"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !rec.FirstRun {
			t.Error("expected first run")
		}
		if !slices.Equal(rec.Added, []string{"Wilco", "Low"}) || len(rec.Removed) != 0 {
			t.Errorf("unexpected reconciliation %+v", rec)
		}

		venue, _ := s.venues.Get(ctx, "metro")
		if !slices.Equal(venue.PreviousLineup, []string{"Wilco", "Low"}) {
			t.Errorf("expected lineup recorded, got %v", venue.PreviousLineup)
		}
	})

	t.Run("recorded empty lineup is not a first run", func(t *testing.T) {
		r, s := newTestReconciler(t, "metro")
		if err := s.venues.SetPreviousLineup(ctx, "metro", []string{}); err != nil {
			t.Fatalf("failed to seed lineup: %v", err)
		}

		rec, err := r.Reconcile(ctx, "metro", []string{"Wilco"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if rec.FirstRun || !slices.Equal(rec.Added, []string{"Wilco"}) {
			t.Errorf("unexpected reconciliation %+v", rec)
		}
	})

	t.Run("fuzzy diff against previous lineup", func(t *testing.T) {
		r, s := newTestReconciler(t, "metro")
		if err := s.venues.SetPreviousLineup(ctx, "metro", []string{"The Strokes", "Low", "Beach House"}); err != nil {
			t.Fatalf("failed to seed lineup: %v", err)
		}

		current := []string{"Strokes", "Beach House", "Alvvays"}
		rec, err := r.Reconcile(ctx, "metro", current)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !slices.Equal(rec.Removed, []string{"Low"}) {
			t.Errorf("expected only Low removed, got %v", rec.Removed)
		}
		if !slices.Equal(rec.Added, []string{"Alvvays"}) {
			t.Errorf("expected only Alvvays added, got %v", rec.Added)
		}
		if !slices.Equal(rec.Kept, current) {
			t.Errorf("expected kept to be the current lineup, got %v", rec.Kept)
		}

		venue, _ := s.venues.Get(ctx, "metro")
		if !slices.Equal(venue.PreviousLineup, current) {
			t.Errorf("expected current lineup stored, got %v", venue.PreviousLineup)
		}
	})

	t.Run("evicts stale artists nobody books", func(t *testing.T) {
		r, s := newTestReconciler(t, "metro", "schubas")
		old := time.Now().AddDate(0, -4, 0)

		cacheArtist(t, s, "low", old)
		cacheArtist(t, s, "wilco", old)
		cacheArtist(t, s, "alvvays", time.Now())

		if err := s.venues.SetPreviousLineup(ctx, "metro", []string{"Low", "Wilco", "Alvvays"}); err != nil {
			t.Fatalf("failed to seed lineup: %v", err)
		}
		if err := s.venues.SetPreviousLineup(ctx, "schubas", []string{"Wilco"}); err != nil {
			t.Fatalf("failed to seed lineup: %v", err)
		}

		rec, err := r.Reconcile(ctx, "metro", []string{"Beach House"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !slices.Equal(rec.Evicted, []string{"low"}) {
			t.Errorf("expected only low evicted, got %v", rec.Evicted)
		}

		if _, err := s.artists.Get(ctx, "low"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected low deleted, got %v", err)
		}
		if _, err := s.artists.Get(ctx, "wilco"); err != nil {
			t.Errorf("expected wilco kept for schubas, got %v", err)
		}
		if _, err := s.artists.Get(ctx, "alvvays"); err != nil {
			t.Errorf("expected recent alvvays kept, got %v", err)
		}
	})

	t.Run("unknown venue", func(t *testing.T) {
		r, _ := newTestReconciler(t)
		if _, err := r.Reconcile(ctx, "nowhere", []string{"Low"}); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Reset makes the next run a first run", func(t *testing.T) {
		r, _ := newTestReconciler(t, "metro")
		if _, err := r.Reconcile(ctx, "metro", []string{"Low"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := r.Reset(ctx, "metro"); err != nil {
			t.Fatalf("failed to reset: %v", err)
		}

		rec, err := r.Reconcile(ctx, "metro", []string{"Wilco"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !rec.FirstRun || len(rec.Removed) != 0 {
			t.Errorf("expected first run after reset, got %+v", rec)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		r, s := newTestReconciler(t, "metro", "schubas")
		if _, err := r.Reconcile(ctx, "metro", []string{"Low", "Wilco"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := s.venues.MarkScraped(ctx, "metro", time.Now().Add(-50*time.Hour)); err != nil {
			t.Fatalf("failed to mark scraped: %v", err)
		}

		stats, err := r.Stats(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(stats) != 2 {
			t.Fatalf("expected 2 venues, got %d", len(stats))
		}
		if stats[0].VenueID != "metro" || stats[0].LineupSize != 2 || stats[0].DaysSinceUpdate != 2 {
			t.Errorf("unexpected metro stats %+v", stats[0])
		}
		if stats[1].DaysSinceUpdate != -1 || stats[1].LineupSize != 0 {
			t.Errorf("unexpected schubas stats %+v", stats[1])
		}
	})
}
