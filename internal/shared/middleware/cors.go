package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// CORS applies Cross-Origin Resource Sharing headers and preflight handling.
//
// With an empty allow-list every origin is accepted with a wildcard header.
// With a configured allow-list, browser requests from an allowed origin get
// the origin echoed back plus credentials support; disallowed origins are
// rejected outright. Requests without an Origin header (curl, server-to-
// server) pass through untouched.
func CORS(allowedHosts []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")

			origin := r.Header.Get("Origin")
			switch {
			case len(allowedHosts) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin == "":
				// Non-browser request, nothing to negotiate.
			case isOriginAllowed(origin, allowedHosts):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			default:
				http.Error(w, "Origin not allowed", http.StatusForbidden)
				return
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isOriginAllowed matches the origin against the allow-list, either on the
// full host (including port) or on the bare hostname.
func isOriginAllowed(origin string, allowedHosts []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	host := strings.ToLower(u.Host)
	hostname := strings.ToLower(u.Hostname())

	for _, allowed := range allowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if host == allowed || hostname == allowed {
			return true
		}
	}
	return false
}
