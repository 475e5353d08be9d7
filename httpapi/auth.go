package httpapi

import (
	"net/http"
	"strings"
)

// adminToken is the single hard-coded bearer credential admin-only routes
// require. Not a placeholder we forgot to make configurable: a fixed
// single-operator credential (see DESIGN.md).
const adminToken = "admin"

// requireAdmin rejects any request that doesn't present "Bearer admin".
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, prefix) || auth[len(prefix):] != adminToken {
			writeUnauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}
