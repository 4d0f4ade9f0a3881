package formatter

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/upcoming/internal/models"
	th "github.com/desertthunder/upcoming/internal/testing"
)

var started = time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)

func sampleRun() *models.RunSummary {
	summary := &models.RunSummary{
		ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
		Trigger:   models.TriggerSchedule,
		StartedAt: started,
	}
	summary.Add(models.SyncResult{
		VenueID:         "metro",
		VenueName:       "Metro",
		Success:         true,
		State:           models.StatePersisted,
		ArtistsFound:    3,
		ArtistsResolved: 2,
		ArtistsMissed:   1,
		TracksAdded:     6,
		MissedArtists:   []string{"Local Openers"},
		AddedArtists:    []string{"Wilco"},
		RemovedArtists:  []string{"Low"},
	})
	summary.Add(models.SyncResult{
		VenueID:   "schubas",
		VenueName: "Schubas",
		State:     models.StateFailed,
		FailedAt:  models.StateScraped,
		Reason:    "no artists found",
	})
	summary.Finish(started.Add(90 * time.Second))
	return summary
}

func TestFormatters(t *testing.T) {
	t.Run("Ago", func(t *testing.T) {
		now := started
		if got := Ago(nil, now); got != "never" {
			t.Errorf("expected never, got %s", got)
		}
		then := now.Add(-72 * time.Hour)
		if got := Ago(&then, now); got != "3 days ago" {
			t.Errorf("expected 3 days ago, got %s", got)
		}
	})

	t.Run("FormatRun", func(t *testing.T) {
		output := FormatRun(DefaultPalette, sampleRun())

		for _, want := range []string{
			"Run 0f8fad5b (schedule)",
			"Metro: 6 tracks from 2/3 artists",
			"missed: Local Openers",
			"removed: Low",
			"Schubas: no artists found",
			"1/2 venues synced in 1m30s",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in output:\n%s", want, output)
			}
		}
	})

	t.Run("FormatVenueStats", func(t *testing.T) {
		scraped := started.Add(-2 * time.Hour)
		output := FormatVenueStats(DefaultPalette, []models.VenueStats{
			{VenueID: "metro", LineupSize: 12, HasPlaylist: true, LastScrapedAt: &scraped},
			{VenueID: "schubas"},
		}, started)

		lines := strings.Split(strings.TrimSpace(output), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(lines))
		}
		if !strings.Contains(lines[0], "12 artists") || !strings.Contains(lines[0], "2 hours ago") {
			t.Errorf("unexpected metro line %q", lines[0])
		}
		if !strings.Contains(lines[1], "no playlist") || !strings.Contains(lines[1], "never") {
			t.Errorf("unexpected schubas line %q", lines[1])
		}
	})

	t.Run("FormatArtists", func(t *testing.T) {
		output := FormatArtists(DefaultPalette, []*models.ResolvedArtist{
			{Name: "Wilco", TrackURIs: []string{"a", "b", "c"}, ResolvedAt: started.Add(-24 * time.Hour)},
			{Name: "A & B", TrackURIs: []string{"a"}, IsComposite: true, Constituents: []string{"A", "B"}, ResolvedAt: started},
		}, started)

		if !strings.Contains(output, "Wilco  3 tracks  resolved 1 day ago") {
			t.Errorf("unexpected output:\n%s", output)
		}
		if !strings.Contains(output, "(A + B)") {
			t.Errorf("expected constituents for composite, got:\n%s", output)
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("ExportRunsCSV", func(t *testing.T) {
		data, err := ExportRunsCSV([]*models.RunSummary{sampleRun()})
		if err != nil {
			t.Fatalf("ExportRunsCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Trigger,Venue,Total,Successful,Failed,Started,Duration") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "0f8fad5b-d9cb-469f-a165-70867728950e,schedule,,2,1,1,2026-03-01T02:00:00Z,1m30s") {
			t.Errorf("CSV missing run row, got: %s", output)
		}
	})

	t.Run("ExportRunMarkdown", func(t *testing.T) {
		data, err := ExportRunMarkdown(sampleRun())
		if err != nil {
			t.Fatalf("ExportRunMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Sync run 0f8fad5b-d9cb-469f-a165-70867728950e",
			"**Venues**: 1 synced, 1 failed",
			"## Metro",
			"- Added: Wilco",
			"- Missed: Local Openers",
			"Failed after scraped: no artists found",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in Markdown:\n%s", want, output)
			}
		}
	})

	t.Run("ExportRunText", func(t *testing.T) {
		data, err := ExportRunText(sampleRun())
		if err != nil {
			t.Fatalf("ExportRunText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "1. Metro - 6 tracks") || !strings.Contains(output, "2. Schubas - failed: no artists found") {
			t.Errorf("unexpected text:\n%s", output)
		}
	})

	t.Run("WriteRunReport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			path, err := WriteRunReport(sampleRun(), "")
			if err != nil {
				t.Fatalf("WriteRunReport failed: %v", err)
			}
			if path != "run_0f8fad5b.md" {
				t.Errorf("unexpected default path %s", path)
			}

			th.AssertFileExists(t, path)
			if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "# Sync run") {
				t.Errorf("expected Markdown report, got:\n%s", content)
			}
		})

		t.Run("WithTextPath", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "report.txt")

			if _, err := WriteRunReport(sampleRun(), path); err != nil {
				t.Fatalf("WriteRunReport failed: %v", err)
			}
			if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "Run: ") {
				t.Errorf("expected text report, got:\n%s", content)
			}
		})

		t.Run("UnwritablePath", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing", "report.md")
			if _, err := WriteRunReport(sampleRun(), path); err == nil {
				t.Error("expected error for missing directory")
			}
		})
	})
}
