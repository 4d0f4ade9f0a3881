// Package server exposes the sync service over HTTP.
//
// # Routes
//
//   - GET /health: liveness plus whether a run is in flight
//   - GET /status: scheduler, token and per-venue state
//   - GET /runs, GET /venues, GET /auth/status: run history, venue stats, token state
//   - POST /sync, POST /sync/{venue}: start a manual run (202), 409 while one is running, rate limited per client
//   - GET /auth/spotify, GET /callback: OAuth authorization code flow
//   - GET /metrics: Prometheus metrics
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [Middleware] wraps handlers in reverse order
// (last added executes first). [BasicRouter] uses [http.ServeMux] method patterns.
//
// Custom handlers implement the [Handler] interface, which adds the route patterns a handler serves so route
// definitions stay with the implementation.
//
// # OAuth
//
// [OAuthHandler] is shared by the long-running server and the CLI login, which starts a temporary server, opens
// [OAuthHandler.Begin] in a browser and waits on [OAuthHandler.Result].
package server
