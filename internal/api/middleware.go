// Package api implements the Oodles REST API using chi.
package api

import (
	"net/http"

	"github.com/oodleworks/oodles/internal/users"
)

// AuthMiddleware returns middleware that validates the session cookie.
// If store is nil (auth mode "disabled"), all requests pass through.
// Otherwise requests must carry a live "sid" cookie issued by /login.
func AuthMiddleware(store *users.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := store.RequestSession(r); !ok {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
