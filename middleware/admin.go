package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminKeyHeader carries the administration key.
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey compares AdminKeyHeader with key in constant time. With an
// empty key the wrapped routes answer 404, as if they did not exist.
func RequireAdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeError(w, http.StatusNotFound, "endpoint not found")
				return
			}
			got := r.Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
