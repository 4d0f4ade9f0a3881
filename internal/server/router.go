package server

import (
	"net/http"
	"slices"
	"strings"
)

// BasicRouter routes the sync API, the OAuth callback and /metrics over an [http.ServeMux].
//
// Patterns carry their method ("POST /sync/{venue}"), so a known path requested with the wrong method is
// answered with 405 and the Allow header. Unmatched requests get the same JSON error body as handler errors.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	patterns    []string
}

// NewBasicRouter creates an empty [BasicRouter].
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux()}
}

// Use appends middleware. The first added runs outermost, and only routes registered afterwards are wrapped.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for method and path, e.g. ("GET", "/metrics").
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.register(strings.ToUpper(method)+" "+path, r.Apply(handler))
}

// Handler registers h under every pattern it reports through [Handler.Routes].
func (r *BasicRouter) Handler(h Handler) {
	wrapped := r.Apply(h)
	for _, pattern := range h.Routes() {
		r.register(pattern, wrapped)
	}
}

func (r *BasicRouter) register(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
	r.patterns = append(r.patterns, pattern)
}

// Patterns returns the registered route patterns, sorted.
func (r *BasicRouter) Patterns() []string {
	out := slices.Clone(r.patterns)
	slices.Sort(out)
	return out
}

// ServeHTTP dispatches to the matching route or writes a JSON 404/405.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h, pattern := r.mux.Handler(req)
	if pattern != "" {
		r.mux.ServeHTTP(w, req)
		return
	}

	// Let the mux decide between 404 and 405 without writing its plain-text body.
	captured := &unmatchedWriter{header: http.Header{}}
	h.ServeHTTP(captured, req)

	if allow := captured.header.Get("Allow"); allow != "" {
		w.Header().Set("Allow", allow)
	}
	switch captured.status {
	case http.StatusMethodNotAllowed:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", req.Method+" is not allowed on "+req.URL.Path)
	default:
		writeError(w, http.StatusNotFound, "not_found", "no route for "+req.URL.Path)
	}
}

// Apply wraps handler with the registered middleware, last added innermost.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}
	return wrapped
}

type unmatchedWriter struct {
	header http.Header
	status int
}

func (u *unmatchedWriter) Header() http.Header { return u.header }

func (u *unmatchedWriter) Write(b []byte) (int, error) { return len(b), nil }

func (u *unmatchedWriter) WriteHeader(status int) { u.status = status }
