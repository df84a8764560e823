/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, attached to error logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests from the presentation layer

ROUTE GROUPS:
  /api/health           Store liveness
  /api/entities/*       Schema, filter state, CRUD per entity or view
  /api/lots/*           Lot lifecycle
  /api/stock/*          Derived stock views
  /api/scenarios/*      Demo scenarios (development only)

SECURITY NOTE:
  No authentication middleware. The server binds to loopback by default
  and is meant for a single local presentation layer.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	// Scenarios mounts the demo scenario routes, which can wipe the store.
	Scenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", h.ListEntities)
			r.Route("/{entity}", func(r chi.Router) {
				r.Get("/columns", h.ListColumns)
				r.Post("/search", h.Search)
				r.Put("/filters", h.SetFilters)
				r.Put("/quick", h.SetQuickSearch)
				r.Post("/reset", h.ResetFilters)

				r.Get("/rows", h.GetRows)
				r.Post("/rows", h.CreateRow)
				r.Put("/rows/{key}", h.UpdateRow)
				r.Delete("/rows/{key}", h.DeleteRow)
			})
		})

		r.Post("/lots/{id}/advance", h.AdvanceLot)

		r.Route("/stock", func(r chi.Router) {
			r.Get("/levels", h.StockLevels)
			r.Get("/levels/{product}", h.StockLevel)
			r.Get("/available", h.Available)
			r.Get("/out-of-stock", h.OutOfStock)
			r.Get("/reorder", h.Reorder)
			r.Get("/expiring", h.Expiring)
			r.Get("/summary", h.Summary)
		})

		if opts.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		}
	})

	return r
}
