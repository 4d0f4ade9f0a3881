// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/upcoming/internal/matching"
	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/services"
	"github.com/desertthunder/upcoming/internal/shared"
)

// NewTestDB creates an in-memory SQLite database with migrations applied
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// PlaylistWrite records one playlist write made against a [FakeCatalog]
type PlaylistWrite struct {
	Method     string // "replace" or "append"
	PlaylistID string
	URIs       []string
}

// FakeCatalog is an in-memory [services.Service].
//
// Artists are looked up by exact query, tracks by artist id. Errors keyed by query or artist id are returned instead
// of results. Every call is recorded.
type FakeCatalog struct {
	mu sync.Mutex

	Artists     map[string][]matching.Candidate
	Tracks      map[string][]string
	SearchErrs  map[string]error
	TrackErrs   map[string]error
	Playlists   map[string]*services.Playlist
	UserID      string
	CreateErr   error
	WriteErr    error
	WriteErrAt  int // fail the nth write (1-based) with WriteErr; zero fails every write
	nextID      int
	writeCount  int
	Searches    []string
	TrackCalls  []string
	Created     []*services.Playlist
	Writes      []PlaylistWrite
	UserLookups int
}

// NewFakeCatalog creates an empty catalog
func NewFakeCatalog() *FakeCatalog {
	return &FakeCatalog{
		Artists:    map[string][]matching.Candidate{},
		Tracks:     map[string][]string{},
		SearchErrs: map[string]error{},
		TrackErrs:  map[string]error{},
		Playlists:  map[string]*services.Playlist{},
		UserID:     "fake-user",
	}
}

// AddArtist registers an artist found by query with the given top tracks
func (f *FakeCatalog) AddArtist(query, id, name string, popularity int, tracks ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Artists[query] = append(f.Artists[query], matching.Candidate{ID: id, Name: name, Popularity: popularity})
	f.Tracks[id] = tracks
}

func (f *FakeCatalog) Name() string { return "fake" }

func (f *FakeCatalog) SearchArtists(ctx context.Context, query string, limit int) ([]matching.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Searches = append(f.Searches, query)

	if err := f.SearchErrs[query]; err != nil {
		return nil, err
	}
	candidates := f.Artists[query]
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (f *FakeCatalog) TopTracks(ctx context.Context, artistID, market string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TrackCalls = append(f.TrackCalls, artistID)

	if err := f.TrackErrs[artistID]; err != nil {
		return nil, err
	}
	return append([]string(nil), f.Tracks[artistID]...), nil
}

func (f *FakeCatalog) CurrentUserID(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UserLookups++
	return f.UserID, nil
}

func (f *FakeCatalog) CreatePlaylist(ctx context.Context, ownerID, name, description string, public bool) (*services.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	if ownerID == "" {
		f.UserLookups++
		ownerID = f.UserID
	}

	f.nextID++
	pl := &services.Playlist{
		ID:          fmt.Sprintf("playlist-%d", f.nextID),
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		Public:      public,
	}
	f.Playlists[pl.ID] = pl
	f.Created = append(f.Created, pl)
	return pl, nil
}

func (f *FakeCatalog) GetPlaylist(ctx context.Context, playlistID string) (*services.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pl, ok := f.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}
	copied := *pl
	return &copied, nil
}

func (f *FakeCatalog) ReplacePlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	return f.write("replace", playlistID, uris)
}

func (f *FakeCatalog) AppendPlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	return f.write("append", playlistID, uris)
}

func (f *FakeCatalog) write(method, playlistID string, uris []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(uris) > services.MaxTracksPerRequest {
		return fmt.Errorf("%w: %d tracks in one request", shared.ErrInvalidInput, len(uris))
	}

	f.writeCount++
	if f.WriteErr != nil && (f.WriteErrAt == 0 || f.WriteErrAt == f.writeCount) {
		return f.WriteErr
	}

	f.Writes = append(f.Writes, PlaylistWrite{Method: method, PlaylistID: playlistID, URIs: append([]string{}, uris...)})
	if pl, ok := f.Playlists[playlistID]; ok {
		if method == "replace" {
			pl.TrackCount = len(uris)
		} else {
			pl.TrackCount += len(uris)
		}
	}
	return nil
}

// SearchCount returns how many times query was searched
func (f *FakeCatalog) SearchCount(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.Searches {
		if q == query {
			n++
		}
	}
	return n
}

// PlaylistURIs replays the recorded writes for playlistID and returns its final contents
func (f *FakeCatalog) PlaylistURIs(playlistID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var uris []string
	for _, w := range f.Writes {
		if w.PlaylistID != playlistID {
			continue
		}
		if w.Method == "replace" {
			uris = append([]string{}, w.URIs...)
		} else {
			uris = append(uris, w.URIs...)
		}
	}
	return uris
}

// FakeScraper returns canned lineups per venue id
type FakeScraper struct {
	mu      sync.Mutex
	Lineups map[string][]string
	Errs    map[string]error
	Panics  map[string]bool
	Calls   []string
	Delay   time.Duration
}

// NewFakeScraper creates a scraper with no lineups
func NewFakeScraper() *FakeScraper {
	return &FakeScraper{Lineups: map[string][]string{}, Errs: map[string]error{}, Panics: map[string]bool{}}
}

// SetLineup sets what the next scrape of venueID returns
func (f *FakeScraper) SetLineup(venueID string, artists ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Lineups[venueID] = artists
}

func (f *FakeScraper) Scrape(ctx context.Context, venue shared.VenueConfig) (*models.ScrapeResult, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, venue.ID)
	lineup, err, panics, delay := f.Lineups[venue.ID], f.Errs[venue.ID], f.Panics[venue.ID], f.Delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if panics {
		panic("scraper exploded on " + venue.ID)
	}
	if err != nil {
		return nil, err
	}

	return &models.ScrapeResult{
		VenueID:   venue.ID,
		VenueName: venue.Name,
		Artists:   append([]string{}, lineup...),
		ScrapedAt: time.Now(),
		Method:    "fake",
	}, nil
}

// Venue builds a venue config for tests
func Venue(id string) shared.VenueConfig {
	name := strings.ReplaceAll(id, "-", " ")
	return shared.VenueConfig{ID: id, Name: name, ScrapeURL: "https://example.com/" + id, ArtistSelector: "strong"}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
