package services

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/upcoming/internal/shared"
)

// APIError is a non-2xx catalog response.
//
// It unwraps to the sentinel matching its status, so callers check it with [errors.Is]:
//   - 401 : [shared.ErrAuthExpired]
//   - 404 : [shared.ErrNotFound]
//   - 429 : [shared.ErrRateLimited]
//   - 502, 503, 504 : [shared.ErrServiceUnavailable]
//   - anything else : [shared.ErrAPIRequest]
type APIError struct {
	Service  string
	Method   string
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	msg := fmt.Sprintf("%s API error: %s %s: status %d", e.Service, e.Method, e.Endpoint, e.Status)
	if body != "" {
		msg += ": " + body
	}
	return msg
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return shared.ErrAuthExpired
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// statusClass labels a status for metrics, e.g. "2xx".
func statusClass(status int) string {
	if status == 0 {
		return "error"
	}
	return fmt.Sprintf("%dxx", status/100)
}
