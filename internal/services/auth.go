package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/upcoming/internal/metrics"
	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	// ServiceSpotify is the credential store key for the Spotify token.
	ServiceSpotify = "spotify"

	// DefaultRedirectURI is used when no redirect uri is configured.
	DefaultRedirectURI = "http://127.0.0.1:3000/callback"

	// tokens this close to expiry are refreshed before use
	expiryLeeway = time.Minute
)

// SpotifyScopes are the scopes needed to write venue playlists.
var SpotifyScopes = []string{
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-private",
}

// NewOAuthConfig builds the Spotify [oauth2.Config] from configured credentials.
func NewOAuthConfig(cfg shared.SpotifyConfig) (*oauth2.Config, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       SpotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   spotifyAuthURL,
			TokenURL:  spotifyTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}, nil
}

// TokenStore persists one credential per service. [repositories.CredentialRepository] implements it.
type TokenStore interface {
	Load(ctx context.Context, service string) (*models.Credential, error)
	Save(ctx context.Context, cred *models.Credential) error
}

// TokenRefresher trades a refresh token for a new access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// OAuthRefresher runs the authorization code flow and token refreshes against an OAuth2 provider.
type OAuthRefresher struct {
	config         *oauth2.Config
	onTokenRefresh func(*oauth2.Token)
}

// NewOAuthRefresher creates a refresher for config.
func NewOAuthRefresher(config *oauth2.Config) *OAuthRefresher {
	return &OAuthRefresher{config: config}
}

// SetTokenRefreshCallback sets a function called whenever a refresh yields a new access token.
func (r *OAuthRefresher) SetTokenRefreshCallback(callback func(*oauth2.Token)) {
	r.onTokenRefresh = callback
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (r *OAuthRefresher) AuthURL(state string) string {
	return r.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token.
func (r *OAuthRefresher) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := r.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

// Refresh trades refreshToken for a new token. The old refresh token is kept when the provider does not rotate it.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Now().Add(-time.Minute)}
	source := &refreshableTokenSource{
		source:   r.config.TokenSource(ctx, expired),
		callback: r.onTokenRefresh,
	}

	token, err := source.Token()
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports each new access token to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu        sync.Mutex
	lastToken string
}

func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := token.AccessToken != s.lastToken
	s.lastToken = token.AccessToken
	s.mu.Unlock()

	if changed && s.callback != nil {
		s.callback(token)
	}
	return token, nil
}

// TokenStatus describes the stored token without exposing it.
type TokenStatus struct {
	Service    string    `json:"service"`
	Authorized bool      `json:"authorized"`
	Expired    bool      `json:"expired"`
	Refresh    bool      `json:"has_refresh_token"`
	ExpiresAt  time.Time `json:"expires_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Credentials owns the process-wide token for one catalog service.
//
// The token is loaded lazily from the [TokenStore], refreshed shortly before expiry, and written back after every
// refresh. All methods are safe for concurrent use.
type Credentials struct {
	service   string
	store     TokenStore
	refresher TokenRefresher
	logger    *log.Logger
	now       func() time.Time

	mu      sync.Mutex
	current *models.Credential
}

// NewCredentials creates the token owner for service.
func NewCredentials(service string, store TokenStore, refresher TokenRefresher, logger *log.Logger) *Credentials {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Credentials{
		service:   service,
		store:     store,
		refresher: refresher,
		logger:    shared.WithLogger(logger, "component", "credentials", "service", service),
		now:       time.Now,
	}
}

// AccessToken returns a usable access token, refreshing it first if it is about to expire.
func (c *Credentials) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cred, err := c.load(ctx)
	if err != nil {
		return "", err
	}

	if cred.Expired(c.now(), expiryLeeway) {
		if cred, err = c.refresh(ctx); err != nil {
			return "", err
		}
	}
	return cred.AccessToken, nil
}

// RefreshIfExpired refreshes the token only when it is expired or about to be.
func (c *Credentials) RefreshIfExpired(ctx context.Context) error {
	_, err := c.AccessToken(ctx)
	return err
}

// Refresh forces a token refresh.
func (c *Credentials) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.load(ctx); err != nil {
		return err
	}
	_, err := c.refresh(ctx)
	return err
}

// RetryOnAuthFailure runs call, and if the catalog rejects the token, refreshes once and runs it again.
//
// A second rejection, or a failed refresh, is reported as [shared.ErrAuthFailed].
func (c *Credentials) RetryOnAuthFailure(ctx context.Context, call func(context.Context) error) error {
	err := call(ctx)
	if !errors.Is(err, shared.ErrAuthExpired) {
		return err
	}

	c.logger.Warn("access token rejected, refreshing")
	if rerr := c.Refresh(ctx); rerr != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, rerr)
	}

	err = call(ctx)
	if errors.Is(err, shared.ErrAuthExpired) {
		return fmt.Errorf("%w: token rejected after refresh: %v", shared.ErrAuthFailed, err)
	}
	return err
}

// Store saves a token obtained from the authorization code flow.
func (c *Credentials) Store(ctx context.Context, token *oauth2.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cred := &models.Credential{
		Service:      c.service,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry,
	}
	if err := c.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	c.current = cred
	return nil
}

// Status reports whether a token is stored and whether it has expired.
func (c *Credentials) Status(ctx context.Context) TokenStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := TokenStatus{Service: c.service}
	cred, err := c.load(ctx)
	if err != nil {
		return status
	}

	status.Authorized = true
	status.Expired = cred.Expired(c.now(), 0)
	status.Refresh = cred.RefreshToken != ""
	status.ExpiresAt = cred.ExpiresAt
	status.UpdatedAt = cred.UpdatedAt
	return status
}

// load returns the cached credential, reading the store on first use. Callers hold mu.
func (c *Credentials) load(ctx context.Context) (*models.Credential, error) {
	if c.current != nil {
		return c.current, nil
	}

	cred, err := c.store.Load(ctx, c.service)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: run `upcoming auth login` first", shared.ErrNotAuthenticated)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	c.current = cred
	return cred, nil
}

// refresh exchanges the current refresh token and persists the result. Callers hold mu.
func (c *Credentials) refresh(ctx context.Context) (*models.Credential, error) {
	old := c.current
	if old.RefreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}
	if c.refresher == nil {
		return nil, fmt.Errorf("%w: no refresher configured", shared.ErrRefreshFailed)
	}

	token, err := c.refresher.Refresh(ctx, old.RefreshToken)
	if err != nil {
		metrics.RecordTokenRefresh("failed")
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	cred := &models.Credential{
		Service:      c.service,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry,
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = old.RefreshToken
	}

	if err := c.store.Save(ctx, cred); err != nil {
		metrics.RecordTokenRefresh("failed")
		return nil, fmt.Errorf("%w: failed to save token: %v", shared.ErrRefreshFailed, err)
	}

	metrics.RecordTokenRefresh("success")
	c.logger.Info("access token refreshed", "expires_at", cred.ExpiresAt)
	c.current = cred
	return cred, nil
}
