package middleware

import (
	"net/http"
	"strings"
)

var (
	corsMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}, ", ")
	corsExposed = strings.Join([]string{
		"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After", "Content-Disposition",
	}, ", ")
)

// CORS allows credentialed requests from origin. Preflight requests are answered
// with 204 without reaching the router.
func CORS(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestOrigin := r.Header.Get("Origin")
			allowed := requestOrigin != "" && strings.EqualFold(requestOrigin, origin)
			headers := w.Header()

			if allowed {
				headers.Set("Access-Control-Allow-Origin", requestOrigin)
				headers.Set("Access-Control-Allow-Credentials", "true")
				headers.Set("Access-Control-Expose-Headers", corsExposed)
				headers.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if allowed {
					headers.Set("Access-Control-Allow-Methods", corsMethods)

					if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
						headers.Set("Access-Control-Allow-Headers", reqHeaders)
					}

					headers.Set("Access-Control-Max-Age", "86400")
				}

				w.WriteHeader(http.StatusNoContent)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
