package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader carries the key on API requests.
const APIKeyHeader = "X-API-Key"

// APIKey rejects /api and /logs requests that do not present key, either in
// the X-API-Key header or, for browser websockets, the api_key query
// parameter. An empty key disables the check.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") && !strings.HasPrefix(r.URL.Path, "/logs/") {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get(APIKeyHeader)
			if presented == "" {
				presented = r.URL.Query().Get("api_key")
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
