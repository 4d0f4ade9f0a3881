// package models defines the records the sync service persists and reports
package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/upcoming/internal/shared"
)

// Model defines the base interface for persisted records.
type Model interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// VenueLineup is the stored state of one venue between sync runs.
type VenueLineup struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ScrapeURL  string `json:"scrape_url"`
	PlaylistID string `json:"playlist_id,omitempty"`

	// PreviousLineup is the lineup recorded at the last reconciliation. Nil means none has been recorded.
	PreviousLineup []string `json:"previous_lineup"`

	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewVenueLineup creates an unsynced venue record from its configuration.
func NewVenueLineup(cfg shared.VenueConfig) *VenueLineup {
	now := time.Now()
	return &VenueLineup{
		ID:        cfg.ID,
		Name:      cfg.Name,
		ScrapeURL: cfg.ScrapeURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasPreviousLineup reports whether a lineup was recorded by an earlier run.
func (v *VenueLineup) HasPreviousLineup() bool {
	return v.PreviousLineup != nil
}

// DaysSinceUpdate returns whole days since the venue was last scraped, or -1 if it never was.
func (v *VenueLineup) DaysSinceUpdate(now time.Time) int {
	if v.LastScrapedAt == nil {
		return -1
	}
	return int(now.Sub(*v.LastScrapedAt).Hours() / 24)
}

func (v *VenueLineup) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("%w: venue id is required", shared.ErrInvalidInput)
	}
	if v.Name == "" {
		return fmt.Errorf("%w: venue name is required", shared.ErrInvalidInput)
	}
	return nil
}

// ResolvedArtist is a cached catalog match for a normalized artist name.
type ResolvedArtist struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	CatalogID    string    `json:"catalog_id"`
	TrackURIs    []string  `json:"track_uris"`
	Popularity   int       `json:"popularity"`
	IsComposite  bool      `json:"is_composite"`
	Constituents []string  `json:"constituents,omitempty"`
	ResolvedAt   time.Time `json:"resolved_at"`
}

// Validate rejects records that must never be cached, including any record without tracks.
func (a *ResolvedArtist) Validate() error {
	if a.Key == "" {
		return fmt.Errorf("%w: artist key is required", shared.ErrInvalidInput)
	}
	if a.CatalogID == "" {
		return fmt.Errorf("%w: catalog id is required for %q", shared.ErrInvalidInput, a.Name)
	}
	if len(a.TrackURIs) == 0 {
		return fmt.Errorf("%w: %q", shared.ErrEmptyTracks, a.Name)
	}
	if a.IsComposite && len(a.Constituents) == 0 {
		return fmt.Errorf("%w: composite %q has no constituents", shared.ErrInvalidInput, a.Name)
	}
	return nil
}

// Fresh reports whether the record can be served from cache.
func (a *ResolvedArtist) Fresh(now time.Time, window time.Duration) bool {
	return a.CatalogID != "" && now.Sub(a.ResolvedAt) < window
}

// Credential is the stored OAuth token for a catalog service.
type Credential struct {
	Service      string    `json:"service"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the token expires within leeway of now. A zero expiry never expires.
func (c *Credential) Expired(now time.Time, leeway time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(c.ExpiresAt)
}

func (c *Credential) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("%w: credential service is required", shared.ErrInvalidInput)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrMissingCredentials)
	}
	return nil
}

// Show is one listing scraped from a venue calendar.
type Show struct {
	Artist string     `json:"artist"`
	Date   *time.Time `json:"date,omitempty"`
	URL    string     `json:"url,omitempty"`
}

// ScrapeResult is what a scraper returns for one venue.
type ScrapeResult struct {
	VenueID   string    `json:"venue_id"`
	VenueName string    `json:"venue_name"`
	Artists   []string  `json:"artists"`
	Shows     []Show    `json:"shows,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
	Method    string    `json:"method"`
}

// VenueStats summarizes a venue's stored lineup for cleanup reporting.
type VenueStats struct {
	VenueID         string     `json:"venue_id"`
	Name            string     `json:"name"`
	LineupSize      int        `json:"lineup_size"`
	HasPlaylist     bool       `json:"has_playlist"`
	LastScrapedAt   *time.Time `json:"last_scraped_at,omitempty"`
	DaysSinceUpdate int        `json:"days_since_update"`
}

// Stats builds the cleanup statistics for the venue.
func (v *VenueLineup) Stats(now time.Time) VenueStats {
	return VenueStats{
		VenueID:         v.ID,
		Name:            v.Name,
		LineupSize:      len(v.PreviousLineup),
		HasPlaylist:     v.PlaylistID != "",
		LastScrapedAt:   v.LastScrapedAt,
		DaysSinceUpdate: v.DaysSinceUpdate(now),
	}
}
