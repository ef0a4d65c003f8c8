package server

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit limits requests per client IP over a sliding window. Applied to
// auth-sensitive routes; exceeding the limit yields 429 from the library.
// Zero or negative values fall back to a conservative default.
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		requests = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return httprate.LimitByIP(requests, window)
}
