package app

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/padelbud/platform/internal/guard"
	"github.com/padelbud/platform/internal/handler"
	"github.com/padelbud/platform/internal/store"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Store store.Store
	// Clubs overrides Store for club reads and writes, usually with a cached directory.
	Clubs       store.ClubStore
	Pinger      store.Pinger
	Finder      handler.NearbyFinder
	Provisioner handler.SlotProvisioner
	// Limiter throttles search request creation; nil disables it.
	Limiter     *guard.RateLimiter
	HorizonDays int
	CORSOrigins string
	Logger      *slog.Logger
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	clubs := deps.Clubs
	if clubs == nil {
		clubs = deps.Store
	}

	clubHandler := handler.NewClubHandler(clubs, deps.Store, deps.Finder)
	courtHandler := handler.NewCourtHandler(deps.Store, deps.Store, deps.Provisioner, deps.HorizonDays)
	requestHandler := handler.NewSearchRequestHandler(deps.Store)
	matchHandler := handler.NewMatchHandler(deps.Store)

	r := chi.NewRouter()

	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(deps.CORSOrigins))
	r.Use(handler.JSONContentType)

	if deps.Pinger != nil {
		r.Get("/health", handler.HealthHandler(deps.Pinger))
	}

	r.Route("/clubs", func(r chi.Router) {
		r.Post("/", clubHandler.Create)
		r.Get("/nearby", clubHandler.Nearby)
		r.Get("/{clubID}", clubHandler.Get)
		r.Post("/{clubID}/courts", clubHandler.CreateCourt)
	})

	r.Route("/courts/{courtID}", func(r chi.Router) {
		r.Get("/slots", courtHandler.Slots)
		r.Post("/provision", courtHandler.Provision)
	})

	r.Route("/search-requests", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if deps.Limiter != nil {
				r.Use(handler.RateLimit(deps.Limiter))
			}
			r.Post("/", requestHandler.Create)
		})
		r.Get("/{requestID}", requestHandler.Get)
	})

	r.Get("/matches/{matchID}", matchHandler.GetMatch)
	r.Get("/players/{playerID}", matchHandler.GetPlayer)

	return r
}
