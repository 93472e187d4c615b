package middleware

import (
	"crypto/subtle"
	"net/http"
)

// SyncKeyAuth validates the x-api-key header against the configured sync key.
// An empty configured key disables the check (development only). Auth guards
// the write path; read endpoints stay open for the dashboard.
func SyncKeyAuth(syncKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if syncKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("x-api-key")
			// constant-time comparison to prevent timing attacks
			if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(syncKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"ok":false,"error":"unauthorized"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
