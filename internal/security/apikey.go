package security

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader carries the admin key on back-office requests.
const APIKeyHeader = "X-Api-Key"

// APIKeys guards the admin surface with static keys from configuration.
type APIKeys struct {
	Keys []string
}

// Middleware rejects requests whose key does not match any configured key.
// Comparison is constant time per key.
func (a APIKeys) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.Keys) == 0 {
			unauthorized(w)
			return
		}
		got := strings.TrimSpace(r.Header.Get(APIKeyHeader))
		if got == "" {
			unauthorized(w)
			return
		}
		for _, key := range a.Keys {
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		}
		unauthorized(w)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"invalid or missing api key"}}`))
}
