// Spotify Web API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/desertthunder/upcoming/internal/matching"
	"github.com/desertthunder/upcoming/internal/metrics"
	"github.com/desertthunder/upcoming/internal/shared"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	defaultRequestTimeout = 10 * time.Second
	defaultMarket         = "US"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
	Product     string `json:"product"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	URI        string   `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	DurationMS int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracks struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       Owner          `json:"owner"`
	Public      bool           `json:"public"`
	Tracks      playlistTracks `json:"tracks"`
	URI         string         `json:"uri"`
}

func (p SpotifyPlaylist) toPlaylist() *Playlist {
	return &Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.Owner.ID,
		TrackCount:  p.Tracks.Total,
		Public:      p.Public,
	}
}

// SpotifyOptions configures a [SpotifyService]. Zero values select the defaults.
type SpotifyOptions struct {
	BaseURL    string
	Market     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger

	// FailureThreshold is the consecutive failures that open the breaker.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// SpotifyService implements the Service interface for the Spotify Web API.
//
// Every request carries a per-request timeout, a bearer token from [Credentials], one refresh-and-retry on a 401,
// and passes through a circuit breaker that opens after repeated transient failures.
type SpotifyService struct {
	baseURL    string
	market     string
	timeout    time.Duration
	httpClient *http.Client
	creds      *Credentials
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *log.Logger
}

// NewSpotifyService creates a Spotify client authenticated by creds.
func NewSpotifyService(creds *Credentials, opts SpotifyOptions) *SpotifyService {
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.Market == "" {
		opts.Market = defaultMarket
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	logger := shared.WithLogger(opts.Logger, "component", "spotify")
	return &SpotifyService{
		baseURL:    opts.BaseURL,
		market:     opts.Market,
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
		creds:      creds,
		breaker:    newBreaker("spotify", opts.FailureThreshold, opts.OpenTimeout, logger),
		logger:     logger,
	}
}

// newBreaker creates the catalog circuit breaker. Client errors (401, 404) do not count as failures.
func newBreaker(name string, threshold uint32, timeout time.Duration, logger *log.Logger) *gobreaker.CircuitBreaker[[]byte] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, shared.ErrNotFound) ||
				errors.Is(err, shared.ErrAuthExpired) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.SetBreakerState(name, int(to))
		},
	}
	return gobreaker.NewCircuitBreaker[[]byte](settings)
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated request and decodes the JSON response into result when non-nil.
func (s *SpotifyService) doRequest(ctx context.Context, op, method, endpoint string, body, result any) error {
	return s.creds.RetryOnAuthFailure(ctx, func(ctx context.Context) error {
		token, err := s.creds.AccessToken(ctx)
		if err != nil {
			return err
		}

		data, err := s.breaker.Execute(func() ([]byte, error) {
			return s.send(ctx, token, op, method, endpoint, body)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s: %v", shared.ErrServiceUnavailable, s.Name(), err)
		} else if err != nil {
			return err
		}

		if result != nil && len(data) > 0 {
			if err := json.Unmarshal(data, result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	})
}

// send issues one request under the per-request timeout and returns the response body.
func (s *SpotifyService) send(ctx context.Context, token, op, method, endpoint string, body any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.RecordCatalogRequest(op, statusClass(0), time.Since(start))
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	metrics.RecordCatalogRequest(op, statusClass(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Debug("request failed", "op", op, "status", resp.StatusCode)
		return nil, &APIError{Service: s.Name(), Method: method, Endpoint: endpoint, Status: resp.StatusCode, Body: string(data)}
	}

	return data, nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "me", http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUserID returns the authenticated user's id.
func (s *SpotifyService) CurrentUserID(ctx context.Context) (string, error) {
	user, err := s.UserProfile(ctx)
	if err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", fmt.Errorf("%w: profile has no id", shared.ErrAPIRequest)
	}
	return user.ID, nil
}

// SearchArtists searches artists by name, keeping Spotify's ranking.
func (s *SpotifyService) SearchArtists(ctx context.Context, query string, limit int) ([]matching.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "artist")
	params.Set("limit", strconv.Itoa(limit))

	var response struct {
		Artists struct {
			Items []SpotifyArtist `json:"items"`
		} `json:"artists"`
	}
	if err := s.doRequest(ctx, "search", http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	candidates := make([]matching.Candidate, 0, len(response.Artists.Items))
	for _, a := range response.Artists.Items {
		candidates = append(candidates, matching.Candidate{ID: a.ID, Name: a.Name, Popularity: a.Popularity})
	}
	return candidates, nil
}

// TopTracks returns the artist's top track URIs for market, or the configured market when empty.
func (s *SpotifyService) TopTracks(ctx context.Context, artistID, market string) ([]string, error) {
	if market == "" {
		market = s.market
	}

	endpoint := fmt.Sprintf("/artists/%s/top-tracks?market=%s", url.PathEscape(artistID), url.QueryEscape(market))

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	if err := s.doRequest(ctx, "top_tracks", http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	uris := make([]string, 0, len(response.Tracks))
	for _, t := range response.Tracks {
		if t.URI != "" {
			uris = append(uris, t.URI)
		}
	}
	return uris, nil
}

// Playlist retrieves a playlist by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	endpoint := fmt.Sprintf("/playlists/%s?fields=id,name,description,public,uri,owner(id,display_name),tracks(total)", url.PathEscape(playlistID))

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, "get_playlist", http.MethodGet, endpoint, nil, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// GetPlaylist retrieves a specific playlist by ID.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: empty playlist id", shared.ErrNotFound)
	}

	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return sp.toPlaylist(), nil
}

// CreatePlaylist creates a playlist for ownerID, looking up the current user when ownerID is empty.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, ownerID, name, description string, public bool) (*Playlist, error) {
	if ownerID == "" {
		id, err := s.CurrentUserID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to look up playlist owner: %w", err)
		}
		ownerID = id
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(ownerID))
	if err := s.doRequest(ctx, "create_playlist", http.MethodPost, endpoint, body, &playlist); err != nil {
		return nil, err
	}
	if playlist.ID == "" {
		return nil, fmt.Errorf("%w: created playlist has no id", shared.ErrAPIRequest)
	}

	s.logger.Info("created playlist", "id", playlist.ID, "name", name)
	return playlist.toPlaylist(), nil
}

// ReplacePlaylistTracks overwrites the playlist's items. An empty list clears the playlist.
func (s *SpotifyService) ReplacePlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) > MaxTracksPerRequest {
		return fmt.Errorf("%w: %d tracks exceeds %d per request", shared.ErrInvalidInput, len(uris), MaxTracksPerRequest)
	}
	if uris == nil {
		uris = []string{}
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, "replace_tracks", http.MethodPut, endpoint, map[string][]string{"uris": uris}, nil)
}

// AppendPlaylistTracks appends items to the end of the playlist.
func (s *SpotifyService) AppendPlaylistTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > MaxTracksPerRequest {
		return fmt.Errorf("%w: %d tracks exceeds %d per request", shared.ErrInvalidInput, len(uris), MaxTracksPerRequest)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, "append_tracks", http.MethodPost, endpoint, map[string][]string{"uris": uris}, nil)
}
