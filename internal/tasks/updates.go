package tasks

import (
	"fmt"

	"github.com/desertthunder/upcoming/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or server layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Venue   string // Venue id the update belongs to, empty for run-level updates
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data, e.g. the finished [models.SyncResult]
}

// Operation phase enumeration
type Phase int

const (
	ScrapeVenue Phase = iota
	ReconcileLineup
	ResolveArtists
	SyncPlaylist
	PersistVenue
	VenueDone
	RunDone
)

func (p Phase) String() string {
	switch p {
	case ScrapeVenue:
		return "scrape"
	case ReconcileLineup:
		return "reconcile"
	case ResolveArtists:
		return "resolve"
	case SyncPlaylist:
		return "sync_playlist"
	case PersistVenue:
		return "persist"
	case VenueDone:
		return "venue_done"
	case RunDone:
		return "run_done"
	default:
		return ""
	}
}

func scrapeUpdate(step, total int, venue string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScrapeVenue,
		Venue:   venue,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Scraping %s...", step, total, venue),
	}
}

func reconcileUpdate(venue string, rec *Reconciliation) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReconcileLineup,
		Venue:   venue,
		Message: fmt.Sprintf("%s: %d added, %d removed", venue, len(rec.Added), len(rec.Removed)),
		Data:    rec,
	}
}

func resolveUpdate(venue string, step, total int, artist string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveArtists,
		Venue:   venue,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving %s", step, total, artist),
	}
}

func syncPlaylistUpdate(venue string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncPlaylist,
		Venue:   venue,
		Total:   tracks,
		Message: fmt.Sprintf("%s: writing %d tracks", venue, tracks),
	}
}

func venueDoneUpdate(step, total int, result *models.SyncResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, result.VenueName, result.TracksAdded)
	if !result.Success {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, result.VenueName, result.Reason)
	}
	return ProgressUpdate{
		Phase:   VenueDone,
		Venue:   result.VenueID,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    result,
	}
}

func runDoneUpdate(summary *models.RunSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RunDone,
		Step:    summary.Total,
		Total:   summary.Total,
		Message: fmt.Sprintf("Run complete: %d/%d venues synced", summary.Successful, summary.Total),
		Data:    summary,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
