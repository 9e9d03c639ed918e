package api

import (
	"net/http"
	"slices"
)

// OriginPolicy decides which browser origins may call the API and open a
// WebSocket.
type OriginPolicy struct {
	allowed  []string
	allowAll bool
}

// allows reports whether origin may connect. Requests without an Origin
// header come from non-browser clients and are always allowed.
func (p OriginPolicy) allows(origin string) bool {
	if origin == "" || p.allowAll {
		return true
	}
	return slices.Contains(p.allowed, origin)
}

// CORSMiddleware adds CORS headers for allowed origins and answers preflight
// requests.
func CORSMiddleware(p OriginPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && p.allows(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
