// Package middleware holds the HTTP middleware of the app shell.
package middleware

import (
	"net/http"

	"github.com/promovista/app/internal/session"
)

// SessionScope makes store available to handlers through session.FromContext
func SessionScope(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := session.WithStore(r.Context(), store)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
