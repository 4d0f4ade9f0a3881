package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/upcoming/internal/shared"
)

// stateTTL bounds how long an authorization link stays valid.
const stateTTL = 10 * time.Minute

// Exchanger builds authorization URLs and trades codes for tokens. [services.OAuthRefresher] implements it.
type Exchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// TokenSaver persists an authorized token. [services.Credentials] implements it.
type TokenSaver interface {
	Store(ctx context.Context, token *oauth2.Token) error
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler runs the authorization code flow.
//
// GET /auth/spotify redirects to the consent page with a fresh state; GET /callback checks the state, exchanges the
// code and saves the token. Each state is accepted once.
type OAuthHandler struct {
	exchanger Exchanger
	saver     TokenSaver
	results   chan OAuthResult
	now       func() time.Time

	mu     sync.Mutex
	states map[string]time.Time
}

// NewOAuthHandler creates a handler that saves tokens with saver.
func NewOAuthHandler(exchanger Exchanger, saver TokenSaver) *OAuthHandler {
	return &OAuthHandler{
		exchanger: exchanger,
		saver:     saver,
		results:   make(chan OAuthResult, 1),
		now:       time.Now,
		states:    make(map[string]time.Time),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET /auth/spotify", "GET /callback"}
}

// Begin issues a state and returns the authorization URL to send the user to.
func (h *OAuthHandler) Begin() string {
	state := shared.GenerateID()

	h.mu.Lock()
	h.states[state] = h.now()
	h.mu.Unlock()

	return h.exchanger.AuthURL(state)
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/auth/spotify" {
		http.Redirect(w, r, h.Begin(), http.StatusFound)
		return
	}
	h.callback(w, r)
}

func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if !h.consume(query.Get("state")) {
		h.send(OAuthResult{err: fmt.Errorf("%w: invalid or expired state", shared.ErrAuthFailed)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, query.Get("error"), query.Get("error_description"))
		h.send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	if h.saver != nil {
		if err := h.saver.Store(r.Context(), token); err != nil {
			h.send(OAuthResult{err: fmt.Errorf("failed to save token: %w", err)})
			http.Error(w, "Failed to save token", http.StatusInternalServerError)
			return
		}
	}

	h.send(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// consume reports whether state was issued and unexpired, and forgets it.
func (h *OAuthHandler) consume(state string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for s, issued := range h.states {
		if now.Sub(issued) > stateTTL {
			delete(h.states, s)
		}
	}

	if _, ok := h.states[state]; !ok || state == "" {
		return false
	}
	delete(h.states, state)
	return true
}

// send delivers result to a waiting CLI login. Results nobody is waiting for are dropped.
func (h *OAuthHandler) send(result OAuthResult) {
	select {
	case h.results <- result:
	default:
	}
}

// Result returns the channel that receives the outcome of each callback.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

const successPage = `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Spotify Connected</h1>
        <p>Venue playlists will sync on the next run. You can close this window.</p>
    </div>
</body>
</html>
`
