// package formatter renders run reports, venue stats and the artist cache for the terminal and for export (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/desertthunder/upcoming/internal/models"
)

// Ago renders t relative to now, or "never" for nil.
func Ago(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return humanize.RelTime(*t, now, "ago", "from now")
}

// FormatRun renders a run summary for the terminal.
func FormatRun(p *Palette, summary *models.RunSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", p.Title(fmt.Sprintf("Run %s (%s)", shortID(summary.ID), summary.Trigger)))
	for _, r := range summary.Results {
		if r.Success {
			fmt.Fprintf(&b, "  %s %s: %d tracks from %d/%d artists\n",
				p.OK("✓"), r.VenueName, r.TracksAdded, r.ArtistsResolved, r.ArtistsFound)
		} else {
			fmt.Fprintf(&b, "  %s %s: %s\n", p.Err("✗"), r.VenueName, r.Reason)
		}
		if len(r.MissedArtists) > 0 {
			fmt.Fprintf(&b, "    %s\n", p.Warn("missed: "+strings.Join(r.MissedArtists, ", ")))
		}
		if len(r.RemovedArtists) > 0 {
			fmt.Fprintf(&b, "    %s\n", p.Help("removed: "+strings.Join(r.RemovedArtists, ", ")))
		}
	}

	status := fmt.Sprintf("%d/%d venues synced in %s", summary.Successful, summary.Total, summary.Duration.Round(time.Millisecond))
	if summary.Failed > 0 {
		status = p.Warn(status)
	} else {
		status = p.OK(status)
	}
	fmt.Fprintf(&b, "%s\n", status)
	return b.String()
}

// FormatVenueStats renders one line per venue.
func FormatVenueStats(p *Palette, stats []models.VenueStats, now time.Time) string {
	var b strings.Builder
	for _, s := range stats {
		playlist := p.Help("no playlist")
		if s.HasPlaylist {
			playlist = p.OK("playlist")
		}
		fmt.Fprintf(&b, "%-20s %3d artists  %-12s scraped %s\n", s.VenueID, s.LineupSize, playlist, Ago(s.LastScrapedAt, now))
	}
	return b.String()
}

// FormatArtists renders cached artists with their track counts and age.
func FormatArtists(p *Palette, artists []*models.ResolvedArtist, now time.Time) string {
	var b strings.Builder
	for _, a := range artists {
		name := a.Name
		if a.IsComposite {
			name += " " + p.Help("("+strings.Join(a.Constituents, " + ")+")")
		}
		fmt.Fprintf(&b, "%s  %d tracks  resolved %s\n", name, len(a.TrackURIs), Ago(&a.ResolvedAt, now))
	}
	return b.String()
}

// ExportRunsCSV converts run history to CSV with columns: ID, Trigger, Venue, Total, Successful, Failed, Started, Duration
func ExportRunsCSV(runs []*models.RunSummary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Trigger", "Venue", "Total", "Successful", "Failed", "Started", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, run := range runs {
		record := []string{
			run.ID,
			string(run.Trigger),
			run.VenueID,
			strconv.Itoa(run.Total),
			strconv.Itoa(run.Successful),
			strconv.Itoa(run.Failed),
			run.StartedAt.UTC().Format(time.RFC3339),
			run.Duration.Round(time.Millisecond).String(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportRunMarkdown converts a run summary to a Markdown report
func ExportRunMarkdown(summary *models.RunSummary) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Sync run %s\n\n", summary.ID)
	fmt.Fprintf(&buf, "**Trigger**: %s\n", summary.Trigger)
	fmt.Fprintf(&buf, "**Started**: %s\n", summary.StartedAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&buf, "**Venues**: %d synced, %d failed\n\n", summary.Successful, summary.Failed)

	for _, r := range summary.Results {
		fmt.Fprintf(&buf, "## %s\n\n", r.VenueName)
		if !r.Success {
			fmt.Fprintf(&buf, "Failed after %s: %s\n\n", r.FailedAt, r.Reason)
			continue
		}

		fmt.Fprintf(&buf, "- Tracks: %d\n", r.TracksAdded)
		fmt.Fprintf(&buf, "- Artists: %d found, %d resolved, %d missed\n", r.ArtistsFound, r.ArtistsResolved, r.ArtistsMissed)
		writeList(&buf, "Added", r.AddedArtists)
		writeList(&buf, "Removed", r.RemovedArtists)
		writeList(&buf, "Missed", r.MissedArtists)
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

func writeList(buf *bytes.Buffer, label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(buf, "- %s: %s\n", label, strings.Join(names, ", "))
}

// ExportRunText converts a run summary to plain text
func ExportRunText(summary *models.RunSummary) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Run: %s (%s)\n", summary.ID, summary.Trigger)
	fmt.Fprintf(&buf, "Venues: %d/%d synced\n\n", summary.Successful, summary.Total)

	for i, r := range summary.Results {
		if r.Success {
			fmt.Fprintf(&buf, "%d. %s - %d tracks\n", i+1, r.VenueName, r.TracksAdded)
		} else {
			fmt.Fprintf(&buf, "%d. %s - failed: %s\n", i+1, r.VenueName, r.Reason)
		}
	}

	return buf.Bytes(), nil
}

// WriteRunReport writes the summary to path, choosing Markdown for .md and plain text otherwise.
//
// Defaults to run_{id}.md as the filename.
func WriteRunReport(summary *models.RunSummary, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("run_%s.md", shortID(summary.ID))
	}

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".md") {
		data, err = ExportRunMarkdown(summary)
	} else {
		data, err = ExportRunText(summary)
	}
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
