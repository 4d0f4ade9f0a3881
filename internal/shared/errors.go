package shared

import "fmt"

var (

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthExpired      = fmt.Errorf("access token rejected")
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("not found")
	ErrScrapeFailed       = fmt.Errorf("scrape failed")

	// Sync errors
	ErrNoArtists      = fmt.Errorf("no artists found")
	ErrNoTracks       = fmt.Errorf("no tracks found")
	ErrEmptyTracks    = fmt.Errorf("resolved artist has no tracks")
	ErrAlreadyRunning = fmt.Errorf("sync already running")
	ErrVenueNotFound  = fmt.Errorf("venue not configured")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
