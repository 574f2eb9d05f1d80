package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/padelops/tournament-engine/handlers"
	"github.com/padelops/tournament-engine/middleware"
	"github.com/padelops/tournament-engine/services"
)

type Handlers struct {
	Tournament *handlers.TournamentHandler
	Fixture    *handlers.FixtureHandler
	Result     *handlers.ResultHandler
	Incident   *handlers.IncidentHandler
	WebSocket  *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, auth *middleware.Authenticator) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Live updates. The Gateway authenticates the socket before proxying.
	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
			r.Get("/", h.Tournament.GetTournament)
			r.Get("/matches", h.Tournament.ListMatches)
			r.Get("/standings", h.Tournament.GetStandings)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(services.RoleAdmin, services.RoleOwner))
				r.Post("/fixture", h.Fixture.GenerateFixture)
				r.Put("/poster", h.Tournament.UploadPoster)
			})
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Post("/result", h.Result.ReportResult)
			r.Post("/result/confirm", h.Result.ConfirmResult)
		})

		r.Route("/incidents", func(r chi.Router) {
			r.Post("/", h.Incident.ReportIncident)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(services.RoleAdmin, services.RoleOwner))
				r.Get("/", h.Incident.ListIncidents)
				r.Post("/{incidentID}/resolve", h.Incident.ResolveIncident)
			})
		})
	})

	return router
}
