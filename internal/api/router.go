package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oodleworks/oodles/internal/collection"
	"github.com/oodleworks/oodles/internal/sse"
	"github.com/oodleworks/oodles/internal/users"
)

// NewRouter creates a chi router with all API routes mounted.
// store is nil when auth mode is "disabled"; in session mode /login and
// /logout stay outside the auth group so a browser can obtain a cookie.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(col *collection.Collection, broker *sse.Broker, store *users.Store, sseHandler http.Handler) chi.Router {
	h := NewHandler(col, broker)

	r := chi.NewRouter()

	if store != nil {
		r.Post("/login", h.Login(store))
		r.Post("/logout", h.Logout(store))
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(store))

		// Documents.
		r.Get("/oodles", h.ListOodles)
		r.Post("/oodles", h.CreateOodle)
		r.Get("/oodles/{file}", h.GetOodle)
		r.Get("/oodles/{file}/backlinks", h.GetBacklinks)

		// Messages.
		r.Get("/oodles/{file}/messages/{id}", h.GetMessage)
		r.Post("/oodles/{file}/messages", h.AppendMessage)
		r.Put("/oodles/{file}/messages/{id}", h.EditMessage)

		// SSE endpoint (protected by the same auth middleware).
		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
