package middleware

import (
	"net"
	"net/http"

	"github.com/MrEthical07/loginguard"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// ClientContext stores the client address and chi request id on the request
// context. Mount it after RequestID, and after RealIP when the service sits
// behind a trusted proxy.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := loginguard.WithClientIP(r.Context(), ClientIP(r))
		if id := chimw.GetReqID(ctx); id != "" {
			ctx = loginguard.WithRequestID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
