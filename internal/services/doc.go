// Package services defines the [Service] interface for the music catalog and implements it for Spotify.
//
// # Service Interface
//
// The sync engine only needs artist search, top tracks and playlist writes, so [Service] is limited to those
// operations plus a current user lookup used when no playlist owner is configured.
//
// # Spotify Implementation
//
// [SpotifyService] talks to the Web API directly. Each request:
//   - takes its bearer token from [Credentials], which refreshes it shortly before expiry
//   - runs under a per-request timeout
//   - passes through a [gobreaker.CircuitBreaker] that opens after consecutive transient failures
//   - is retried once after a token refresh when the API answers 401
//
// # Credentials
//
// [Credentials] owns the process-wide OAuth token. It loads the token from a [TokenStore] on first use,
// refreshes it through a [TokenRefresher] and writes every refreshed token back. [OAuthRefresher] implements the
// authorization code flow and refresh against the provider using [oauth2.Config].
//
// # Error Handling
//
// Non-2xx responses are returned as [*APIError], which unwraps to shared sentinels:
//   - [shared.ErrAuthExpired] : 401, retried once; a second 401 becomes [shared.ErrAuthFailed]
//   - [shared.ErrNotFound] : 404, e.g. a deleted playlist
//   - [shared.ErrRateLimited] : 429
//   - [shared.ErrServiceUnavailable] : gateway errors and an open breaker
//   - [shared.ErrAPIRequest] : everything else
package services
