// internal/api/router.go
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"libracirc/internal/catalog"
	"libracirc/internal/circulation"
	"libracirc/internal/history"
	"libracirc/internal/membership"
	"libracirc/internal/requests"
)

// Config carries the handlers and settings the router wires together.
type Config struct {
	JWTSecret   string
	Membership  *membership.Handler
	Catalog     *catalog.Handler
	Circulation *circulation.Handler
	Requests    *requests.Handler
	History     *history.Handler
}

// NewRouter builds the full HTTP surface.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public surface.
	r.Post("/members", cfg.Membership.HandleRegister)
	r.Post("/login", cfg.Membership.HandleLogin)
	r.Get("/books", cfg.Catalog.HandleSearch)
	r.Get("/books/{id}", cfg.Catalog.HandleGetBook)

	// Authenticated reader surface.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Post("/borrow", cfg.Circulation.HandleBorrow)
		r.Get("/loans", cfg.Circulation.HandleListLoans)
		r.Get("/history", cfg.History.HandleListMine)
		r.Post("/requests", cfg.Requests.HandleSubmit)
		r.Get("/requests", cfg.Requests.HandleListMine)
	})

	// Administrator surface.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))
		r.Use(RequireAdministrator)

		r.Post("/books", cfg.Catalog.HandleAddBook)
		r.Get("/admin/requests", cfg.Requests.HandleListAll)
		r.Post("/admin/requests/{id}/decision", cfg.Circulation.HandleDecide)
	})

	return r
}
