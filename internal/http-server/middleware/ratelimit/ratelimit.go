package ratelimit

import (
	"ChatRelay/internal/lib/api/cont"
	"ChatRelay/internal/lib/api/response"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"net/http"
	"time"
)

// ByIP limits requests per client IP. Mounted before authentication so
// rejected tokens are counted too.
func ByIP(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(limited),
	)
}

// ByAgent limits requests per authenticated agent, falling back to the client
// IP when no agent is in the request context.
func ByAgent(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if user := cont.GetUser(r.Context()); user != nil {
				return "agent:" + user.Username, nil
			}
			ip, err := httprate.KeyByIP(r)
			return "ip:" + ip, err
		}),
		httprate.WithLimitHandler(limited),
	)
}

func limited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "60")
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, response.Error("Rate limit exceeded"))
}
