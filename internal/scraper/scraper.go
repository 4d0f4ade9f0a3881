// package scraper reads upcoming lineups from venue calendar pages
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gocolly/colly/v2"

	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/shared"
)

const (
	// MethodSelector marks lineups read with CSS selectors.
	MethodSelector = "selector"

	DefaultUserAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultTimeout        = 10 * time.Second
	defaultArtistSelector = "strong"
	defaultDateSelector   = "time[datetime]"
	listingSelector       = "li"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05-0700", "2006-01-02T15:04:05", "2006-01-02"}

// Scraper returns the current lineup for a venue.
type Scraper interface {
	Scrape(ctx context.Context, venue shared.VenueConfig) (*models.ScrapeResult, error)
}

// Options configures a [SongkickScraper]. Zero values select the defaults.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Logger    *log.Logger
}

// SongkickScraper reads Songkick venue calendars with [colly.Collector].
//
// Each element matching the venue's artist selector is one billed artist. The date and ticket link of a show are
// read from the enclosing listing element when present.
type SongkickScraper struct {
	userAgent string
	timeout   time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// NewSongkickScraper creates a scraper.
func NewSongkickScraper(opts Options) *SongkickScraper {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &SongkickScraper{
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		logger:    shared.WithLogger(opts.Logger, "component", "scraper"),
		now:       time.Now,
	}
}

// Scrape fetches the venue calendar and returns the cleaned, de-duplicated artist names in page order.
//
// Fetch failures are wrapped in [shared.ErrScrapeFailed]. A page without artists is not an error.
func (s *SongkickScraper) Scrape(ctx context.Context, venue shared.VenueConfig) (*models.ScrapeResult, error) {
	if venue.ScrapeURL == "" {
		return nil, fmt.Errorf("%w: venue %s has no scrape url", shared.ErrInvalidInput, venue.ID)
	}

	artistSelector := venue.ArtistSelector
	if artistSelector == "" {
		artistSelector = defaultArtistSelector
	}
	dateSelector := venue.DateSelector
	if dateSelector == "" {
		dateSelector = defaultDateSelector
	}

	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})

	var (
		raw   []string
		shows []models.Show
		size  int
	)

	c.OnResponse(func(r *colly.Response) {
		size = len(r.Body)
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		e.ForEach(artistSelector, func(_ int, el *colly.HTMLElement) {
			raw = append(raw, el.Text)

			name := CleanName(el.Text)
			if name == "" || IsVenueInfo(name) {
				return
			}

			listing := el.DOM.Closest(listingSelector)
			show := models.Show{Artist: name}
			if datetime, ok := listing.Find(dateSelector).First().Attr("datetime"); ok {
				show.Date = parseDate(datetime)
			}
			if href, ok := listing.Find("a[href]").First().Attr("href"); ok {
				show.URL = e.Request.AbsoluteURL(href)
			}
			shows = append(shows, show)
		})
	})

	s.logger.Debug("scraping venue", "venue", venue.ID, "url", venue.ScrapeURL)
	if err := c.Visit(venue.ScrapeURL); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrScrapeFailed, venue.Name, err)
	}

	artists := CleanArtists(raw)
	s.logger.Info("scraped venue", "venue", venue.ID, "bytes", size, "artists", len(artists))

	return &models.ScrapeResult{
		VenueID:   venue.ID,
		VenueName: venue.Name,
		Artists:   artists,
		Shows:     shows,
		ScrapedAt: s.now(),
		Method:    MethodSelector,
	}, nil
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
