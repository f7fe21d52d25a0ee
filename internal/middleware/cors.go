// Package middleware provides HTTP middleware for the proxy.
package middleware

import "net/http"

// CORS returns middleware that sets CORS headers on every response and answers
// preflight requests with an empty 200. A request origin found in
// allowedOrigins is echoed back; otherwise the first configured origin is sent.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	fallback := "*"
	if len(allowedOrigins) > 0 {
		fallback = allowedOrigins[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowOrigin := fallback
			for _, o := range allowedOrigins {
				if o == "*" {
					allowOrigin = "*"
					break
				}
				if origin != "" && o == origin {
					allowOrigin = origin
					w.Header().Add("Vary", "Origin")
					break
				}
			}

			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
