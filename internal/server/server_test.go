package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/desertthunder/upcoming/internal/models"
	"github.com/desertthunder/upcoming/internal/services"
	"github.com/desertthunder/upcoming/internal/shared"
	"github.com/desertthunder/upcoming/internal/tasks"
)

type mockTrigger struct {
	err     error
	started []string
	status  tasks.SchedulerStatus
}

func (m *mockTrigger) RunAsync(venueID string) error {
	if m.err != nil {
		return m.err
	}
	m.started = append(m.started, venueID)
	return nil
}

func (m *mockTrigger) Status(ctx context.Context) tasks.SchedulerStatus { return m.status }

type mockRuns struct {
	runs  []*models.RunSummary
	limit int
}

func (m *mockRuns) List(ctx context.Context, limit int) ([]*models.RunSummary, error) {
	m.limit = limit
	return m.runs, nil
}

type mockStats struct {
	stats []models.VenueStats
	err   error
}

func (m *mockStats) Stats(ctx context.Context) ([]models.VenueStats, error) { return m.stats, m.err }

type mockTokens struct{ status services.TokenStatus }

func (m *mockTokens) Status(ctx context.Context) services.TokenStatus { return m.status }

type mockExchanger struct {
	token *oauth2.Token
	err   error
	codes []string
}

func (m *mockExchanger) AuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (m *mockExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	m.codes = append(m.codes, code)
	return m.token, m.err
}

type mockSaver struct{ saved []*oauth2.Token }

func (m *mockSaver) Store(ctx context.Context, token *oauth2.Token) error {
	m.saved = append(m.saved, token)
	return nil
}

type fixture struct {
	trigger *mockTrigger
	runs    *mockRuns
	stats   *mockStats
	handler http.Handler
}

func newFixture(limit int) fixture {
	f := fixture{
		trigger: &mockTrigger{status: tasks.SchedulerStatus{Schedule: "0 2 * * 0", NextRun: time.Now().Add(time.Hour)}},
		runs:    &mockRuns{},
		stats:   &mockStats{stats: []models.VenueStats{{VenueID: "metro", Name: "Metro", LineupSize: 4, DaysSinceUpdate: -1}}},
	}
	logger := shared.NewLogger(io.Discard)
	srv := New(Options{Host: "127.0.0.1", Port: 3000, Logger: logger},
		NewStatusHandler(f.trigger, f.runs, f.stats, &mockTokens{status: services.TokenStatus{Service: "spotify", Authorized: true}}),
		NewTriggerHandler(f.trigger, limit, time.Minute, logger),
	)
	f.handler = srv.Handler()
	return f
}

func (f fixture) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
}

func TestServer(t *testing.T) {
	t.Run("Addr", func(t *testing.T) {
		srv := New(Options{Host: "127.0.0.1", Port: 3000, Logger: shared.NewLogger(io.Discard)})
		if srv.Addr() != "127.0.0.1:3000" {
			t.Errorf("unexpected addr %s", srv.Addr())
		}
	})

	t.Run("health", func(t *testing.T) {
		f := newFixture(5)
		rec := f.do(http.MethodGet, "/health")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var body map[string]any
		decode(t, rec, &body)
		if body["status"] != "ok" || body["running"] != false {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("status", func(t *testing.T) {
		f := newFixture(5)
		rec := f.do(http.MethodGet, "/status")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"venue_id":"metro"`) || !strings.Contains(rec.Body.String(), `"authorized":true`) {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("status store failure", func(t *testing.T) {
		f := newFixture(5)
		f.stats.err = errors.New("database is locked")
		if rec := f.do(http.MethodGet, "/venues"); rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("runs", func(t *testing.T) {
		f := newFixture(5)

		rec := f.do(http.MethodGet, "/runs")
		if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Errorf("expected empty list, got %d %s", rec.Code, rec.Body.String())
		}
		if f.runs.limit != 20 {
			t.Errorf("expected default limit 20, got %d", f.runs.limit)
		}

		f.do(http.MethodGet, "/runs?limit=5")
		if f.runs.limit != 5 {
			t.Errorf("expected limit 5, got %d", f.runs.limit)
		}

		if rec := f.do(http.MethodGet, "/runs?limit=abc"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("sync starts a run", func(t *testing.T) {
		f := newFixture(5)
		rec := f.do(http.MethodPost, "/sync")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", rec.Code)
		}
		if len(f.trigger.started) != 1 || f.trigger.started[0] != "" {
			t.Errorf("expected an all-venue run, got %v", f.trigger.started)
		}
	})

	t.Run("sync one venue", func(t *testing.T) {
		f := newFixture(5)
		rec := f.do(http.MethodPost, "/sync/metro")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", rec.Code)
		}

		var body map[string]string
		decode(t, rec, &body)
		if body["venue"] != "metro" || f.trigger.started[0] != "metro" {
			t.Errorf("expected metro run, got %v and %v", body, f.trigger.started)
		}
	})

	t.Run("sync while running", func(t *testing.T) {
		f := newFixture(5)
		f.trigger.err = shared.ErrAlreadyRunning

		rec := f.do(http.MethodPost, "/sync")
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}

		var body errorBody
		decode(t, rec, &body)
		if body.Error != "already_running" {
			t.Errorf("expected already_running, got %+v", body)
		}
	})

	t.Run("sync unknown venue", func(t *testing.T) {
		f := newFixture(5)
		f.trigger.err = shared.ErrVenueNotFound
		if rec := f.do(http.MethodPost, "/sync/nowhere"); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("sync is rate limited", func(t *testing.T) {
		f := newFixture(2)
		f.do(http.MethodPost, "/sync")
		f.do(http.MethodPost, "/sync")

		rec := f.do(http.MethodPost, "/sync")
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if len(f.trigger.started) != 2 {
			t.Errorf("expected 2 runs started, got %d", len(f.trigger.started))
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		f := newFixture(5)
		if rec := f.do(http.MethodGet, "/sync"); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		f := newFixture(5)
		rec := f.do(http.MethodGet, "/metrics")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
			t.Errorf("expected prometheus output, got %d", rec.Code)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	newRouter := func() *BasicRouter {
		router := NewBasicRouter()
		ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		router.Handle(http.MethodPost, "/sync", ok)
		router.Handle("get", "/runs", ok)
		return router
	}

	t.Run("wrong method is a JSON 405", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
		if !strings.Contains(rec.Header().Get("Allow"), http.MethodPost) {
			t.Errorf("expected Allow to list POST, got %q", rec.Header().Get("Allow"))
		}
		var body errorBody
		decode(t, rec, &body)
		if body.Error != "method_not_allowed" {
			t.Errorf("expected method_not_allowed, got %+v", body)
		}
	})

	t.Run("unknown path is a JSON 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		var body errorBody
		decode(t, rec, &body)
		if body.Error != "not_found" {
			t.Errorf("expected not_found, got %+v", body)
		}
	})

	t.Run("Patterns", func(t *testing.T) {
		got := newRouter().Patterns()
		if strings.Join(got, ",") != "GET /runs,POST /sync" {
			t.Errorf("unexpected patterns %v", got)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Recoverer", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recoverer(shared.NewLogger(io.Discard)))
		router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second" {
			t.Errorf("expected first,second got %v", order)
		}
	})

	t.Run("RateLimit disabled", func(t *testing.T) {
		calls := 0
		h := RateLimit(0, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
		for range 10 {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sync", nil))
		}
		if calls != 10 {
			t.Errorf("expected every request through, got %d", calls)
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	newHandler := func() (*OAuthHandler, *mockExchanger, *mockSaver, http.Handler) {
		ex := &mockExchanger{token: &oauth2.Token{AccessToken: "access", RefreshToken: "refresh"}}
		saver := &mockSaver{}
		h := NewOAuthHandler(ex, saver)
		router := NewBasicRouter()
		router.Handler(h)
		return h, ex, saver, router
	}

	stateOf := func(t *testing.T, authURL string) string {
		t.Helper()
		u, err := url.Parse(authURL)
		if err != nil {
			t.Fatalf("bad auth url %s: %v", authURL, err)
		}
		return u.Query().Get("state")
	}

	t.Run("redirects with a state", func(t *testing.T) {
		_, _, _, router := newHandler()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/spotify", nil))

		if rec.Code != http.StatusFound {
			t.Fatalf("expected redirect, got %d", rec.Code)
		}
		if state := stateOf(t, rec.Header().Get("Location")); state == "" {
			t.Error("expected state in redirect")
		}
	})

	t.Run("callback saves token", func(t *testing.T) {
		h, ex, saver, router := newHandler()
		state := stateOf(t, h.Begin())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state="+state+"&code=abc", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(ex.codes) != 1 || ex.codes[0] != "abc" || len(saver.saved) != 1 {
			t.Errorf("expected exchange and save, got codes=%v saved=%d", ex.codes, len(saver.saved))
		}

		result := <-h.Result()
		if result.Error() != nil || result.Token.AccessToken != "access" {
			t.Errorf("unexpected result %+v", result)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state="+state+"&code=abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected replayed state to be rejected, got %d", rec.Code)
		}
	})

	t.Run("unknown state", func(t *testing.T) {
		h, ex, _, router := newHandler()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=forged&code=abc", nil))

		if rec.Code != http.StatusBadRequest || len(ex.codes) != 0 {
			t.Errorf("expected rejection without exchange, got %d", rec.Code)
		}
		if result := <-h.Result(); !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", result.Error())
		}
	})

	t.Run("expired state", func(t *testing.T) {
		h, _, _, router := newHandler()
		state := stateOf(t, h.Begin())
		h.now = func() time.Time { return time.Now().Add(stateTTL + time.Minute) }

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state="+state+"&code=abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("denied consent", func(t *testing.T) {
		h, _, saver, router := newHandler()
		state := stateOf(t, h.Begin())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state="+state+"&error=access_denied", nil))
		if rec.Code != http.StatusBadRequest || len(saver.saved) != 0 {
			t.Errorf("expected 400 without save, got %d", rec.Code)
		}
	})
}
