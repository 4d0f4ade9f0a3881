package tasks

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/repositories"
	"github.com/desertthunder/upcoming/internal/shared"
	tu "github.com/desertthunder/upcoming/internal/testing"
)

type stores struct {
	venues  *repositories.VenueRepository
	artists *repositories.ArtistRepository
	runs    *repositories.RunRepository
}

func newStores(t *testing.T) stores {
	t.Helper()
	db := tu.NewTestDB(t)
	return stores{
		venues:  repositories.NewVenueRepository(db),
		artists: repositories.NewArtistRepository(db),
		runs:    repositories.NewRunRepository(db),
	}
}

func quietLogger() *log.Logger {
	return shared.NewLogger(io.Discard)
}

func testSyncConfig() shared.SyncConfig {
	return shared.SyncConfig{
		Schedule:          "0 2 * * 0",
		SearchLimit:       10,
		TopTracks:         3,
		CompositeTrackCap: 6,
		RetentionMonths:   3,
		PlaylistPublic:    true,
	}
}

func TestSendProgress(t *testing.T) {
	t.Run("nil channel", func(t *testing.T) {
		sendProgress(nil, scrapeUpdate(1, 1, "Metro"))
	})

	t.Run("full channel does not block", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		sendProgress(ch, scrapeUpdate(1, 2, "Metro"))
		sendProgress(ch, scrapeUpdate(2, 2, "Schubas"))

		update := <-ch
		if update.Step != 1 || update.Phase != ScrapeVenue {
			t.Errorf("expected first update to be kept, got %+v", update)
		}
		select {
		case extra := <-ch:
			t.Errorf("expected second update to be dropped, got %+v", extra)
		default:
		}
	})
}

func TestProgressMessages(t *testing.T) {
	t.Run("venue done success", func(t *testing.T) {
		result := &models.SyncResult{VenueID: "metro", VenueName: "Metro", Success: true, TracksAdded: 12}
		update := venueDoneUpdate(2, 6, result)
		if update.Message != "[2/6] ✓ Metro (12 tracks)" {
			t.Errorf("unexpected message %q", update.Message)
		}
		if update.Data != result {
			t.Error("expected result attached to update")
		}
	})

	t.Run("venue done failure", func(t *testing.T) {
		result := &models.SyncResult{VenueID: "metro", VenueName: "Metro", Reason: "no artists found"}
		update := venueDoneUpdate(1, 1, result)
		if update.Message != "[1/1] ✗ Metro: no artists found" {
			t.Errorf("unexpected message %q", update.Message)
		}
	})

	t.Run("phase names", func(t *testing.T) {
		if ResolveArtists.String() != "resolve" || RunDone.String() != "run_done" {
			t.Errorf("unexpected phase names %s %s", ResolveArtists, RunDone)
		}
	})
}
