package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/MrEthical07/loginguard/internal/rate"
	"go.uber.org/zap"
)

// Throttle counts each request against the client address. Refused requests
// get 429 with Retry-After; a throttle backend failure gets 503. A nil
// limiter disables the check.
func Throttle(limiter *rate.Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := limiter.Allow(r.Context(), ClientIP(r))
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, rate.ErrRateLimited):
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "too many requests")
			default:
				logger.Error("login throttle unavailable", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "service unavailable")
			}
		})
	}
}
