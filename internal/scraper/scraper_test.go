package scraper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/desertthunder/upcoming/internal/shared"
)

const calendarPage = `<!DOCTYPE html>
<html>
<body>
<h1><strong>Upcoming concerts</strong></h1>
<ul class="event-listings">
  <li class="event-listings-element">
    <time datetime="2025-05-10T20:00:00-0500"></time>
    <a class="event-link" href="/concerts/1-the-strokes">
      <strong>The   Strokes (Album Release)</strong>
    </a>
  </li>
  <li class="event-listings-element">
    <time datetime="2025-05-11"></time>
    <a href="/concerts/2-earth-wind-fire"><strong>Earth, Wind &amp; Fire</strong></a>
  </li>
  <li class="event-listings-element">
    <a href="/concerts/3"><strong>Sold Out</strong></a>
  </li>
  <li class="event-listings-element">
    <strong>Fri 16 May</strong>
  </li>
  <li class="event-listings-element">
    <strong>The Strokes</strong>
  </li>
</ul>
</body>
</html>`

func TestCleanName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  The   Strokes  ", "The Strokes"},
		{"Turnstile (21+)", "Turnstile"},
		{"Band (Live) (Late Show)", "Band"},
		{"No Parens", "No Parens"},
	}
	for _, tt := range tests {
		if got := CleanName(tt.in); got != tt.want {
			t.Errorf("CleanName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsVenueInfo(t *testing.T) {
	for _, text := range []string{
		"Buy Tickets", "Doors 7pm", "SOLD OUT", "12 May", "Sat 4 May", "x", "Past events",
		"Saturday, May 4", "Wed. 12", "7:30 PM", "Doors at 8pm", "Upcoming Shows", "All Ages",
	} {
		if !IsVenueInfo(text) {
			t.Errorf("expected %q to be venue info", text)
		}
	}
	for _, text := range []string{
		"The Strokes", "Turnstile", "Earth, Wind & Fire", "Thundercat", "Wednesday",
		"Sunflower Bean", "Friko", "Saturday Looks Good To Me", "The Doors Experience",
		"Pastel Ghost", "Show Me The Body", "Free", "311", "2 Chainz", "10cc",
	} {
		if IsVenueInfo(text) {
			t.Errorf("expected %q to be an artist", text)
		}
	}
}

func TestCleanArtists(t *testing.T) {
	got := CleanArtists([]string{"Band A", "Tickets", "Band B (18+)", "Band A", " Band B "})
	want := []string{"Band A", "Band B"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	t.Run("Keeps Names With Day And Venue Words", func(t *testing.T) {
		raw := []string{
			"Thundercat", "Wednesday", "Sunflower Bean", "Friko",
			"Saturday Looks Good To Me", "The Doors Experience", "Pastel Ghost", "Wilco",
		}
		if got := CleanArtists(raw); !reflect.DeepEqual(got, raw) {
			t.Errorf("expected every performer kept, got %v", got)
		}
	})
}

func TestSongkickScraper(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("Scrape", func(t *testing.T) {
		var userAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userAgent = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, calendarPage)
		}))
		defer server.Close()

		s := NewSongkickScraper(Options{Logger: logger})
		venue := shared.VenueConfig{ID: "metro-chicago", Name: "Metro", ScrapeURL: server.URL + "/venues/metro/calendar"}

		result, err := s.Scrape(context.Background(), venue)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := []string{"The Strokes", "Earth, Wind & Fire"}
		if !reflect.DeepEqual(result.Artists, want) {
			t.Errorf("expected %v, got %v", want, result.Artists)
		}
		if result.VenueID != "metro-chicago" || result.Method != MethodSelector {
			t.Errorf("unexpected result %+v", result)
		}
		if userAgent != DefaultUserAgent {
			t.Errorf("expected default user agent, got %q", userAgent)
		}

		if len(result.Shows) != 3 {
			t.Fatalf("expected 3 shows, got %d: %+v", len(result.Shows), result.Shows)
		}
		first := result.Shows[0]
		if first.Date == nil || first.Date.Day() != 10 || first.Date.Month() != time.May {
			t.Errorf("expected May 10 show date, got %v", first.Date)
		}
		if first.URL != server.URL+"/concerts/1-the-strokes" {
			t.Errorf("expected absolute ticket url, got %q", first.URL)
		}
		if result.Shows[2].Date != nil {
			t.Errorf("expected no date for undated listing, got %v", result.Shows[2].Date)
		}
	})

	t.Run("custom selector", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `<html><body><span class="artist">Band A</span><strong>Ignored</strong></body></html>`)
		}))
		defer server.Close()

		s := NewSongkickScraper(Options{Logger: logger})
		result, err := s.Scrape(context.Background(), shared.VenueConfig{
			ID: "v", Name: "V", ScrapeURL: server.URL, ArtistSelector: "span.artist",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(result.Artists, []string{"Band A"}) {
			t.Errorf("unexpected artists %v", result.Artists)
		}
	})

	t.Run("empty page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `<html><body><p>Nothing scheduled</p></body></html>`)
		}))
		defer server.Close()

		s := NewSongkickScraper(Options{Logger: logger})
		result, err := s.Scrape(context.Background(), shared.VenueConfig{ID: "v", Name: "V", ScrapeURL: server.URL})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Artists) != 0 {
			t.Errorf("expected no artists, got %v", result.Artists)
		}
	})

	t.Run("http error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer server.Close()

		s := NewSongkickScraper(Options{Logger: logger})
		_, err := s.Scrape(context.Background(), shared.VenueConfig{ID: "v", Name: "V", ScrapeURL: server.URL})
		if !errors.Is(err, shared.ErrScrapeFailed) {
			t.Errorf("expected ErrScrapeFailed, got %v", err)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		s := NewSongkickScraper(Options{Logger: logger})
		if _, err := s.Scrape(context.Background(), shared.VenueConfig{ID: "v"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
