package handlers

import (
	"net/http"

	"seguimiento/access"
	"seguimiento/activity"
	"seguimiento/catalog"
	"seguimiento/config"
	"seguimiento/metrics"
	"seguimiento/middleware"
	"seguimiento/render"
	"seguimiento/store"
	"seguimiento/transitions"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type Deps struct {
	Config   *config.Config
	Store    *store.Store
	Auth     *middleware.Authenticator
	Recorder *transitions.Recorder
	Feed     *activity.Aggregator
	Catalog  *catalog.Service
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
}

func NewRouter(d Deps) http.Handler {
	authHandler := NewAuthHandler(d.Store, d.Auth, d.Log)
	alumnoHandler := NewAlumnoHandler(d.Store, d.Recorder, d.Feed, d.Metrics, d.Log)
	dashboardHandler := NewDashboardHandler(d.Store, d.Feed)
	catalogHandler := NewCatalogHandler(d.Catalog)
	personaHandler := NewPersonaHandler(d.Store, d.Log)
	maestroHandler := NewMaestroHandler(d.Store, d.Log)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(d.Log))
	router.Use(chimiddleware.Recoverer)
	router.Use(d.Metrics.Instrument)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: d.Config.CORS.AllowCredentials,
		MaxAge:           d.Config.CORS.MaxAge,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := d.Store.Ping(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
			render.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", d.Metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Middleware)

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/change-password", authHandler.ChangePassword)

			r.Route("/alumnos", func(r chi.Router) {
				r.Get("/", alumnoHandler.List)
				r.Post("/", alumnoHandler.Create)
				r.Get("/export", alumnoHandler.ExportCSV)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", alumnoHandler.Get)
					r.Patch("/", alumnoHandler.Update)
					r.Delete("/", alumnoHandler.Delete)
					r.Put("/maestro", alumnoHandler.AssignMaestro)
					r.Patch("/estado", alumnoHandler.ChangeEstado)
					r.Get("/estados-disponibles", alumnoHandler.EstadosDisponibles)
					r.Get("/observaciones", alumnoHandler.ListObservaciones)
					r.Post("/observaciones", alumnoHandler.CreateObservacion)
					r.Get("/historial", alumnoHandler.Historial)
					r.Get("/actividad", alumnoHandler.Actividad)
				})
			})

			r.Get("/actividad", dashboardHandler.Actividad)
			r.Get("/dashboard/actividad-reciente", dashboardHandler.ActividadReciente)
			r.Get("/dashboard/maestro/{id}/stats", dashboardHandler.MaestroStats)
			r.With(middleware.Require(access.OpViewStats)).Get("/dashboard/stats", dashboardHandler.Stats)

			r.Get("/estados", catalogHandler.ListEstados)
			r.Get("/bolsas", catalogHandler.ListBolsas)
			r.Get("/bolsas/{id}", catalogHandler.GetBolsa)
			r.Get("/maestros", maestroHandler.List)
			r.Get("/maestros/{id}", maestroHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Require(access.OpManageEstados))
				r.Post("/estados", catalogHandler.CreateEstado)
				r.Put("/config/estados", catalogHandler.ConfigEstados)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Require(access.OpManageBolsas))
				r.Post("/bolsas", catalogHandler.CreateBolsa)
				r.Put("/bolsas/{id}", catalogHandler.UpdateBolsa)
				r.Delete("/bolsas/{id}", catalogHandler.DeleteBolsa)
			})

			r.With(middleware.Require(access.OpManageMaestros)).Post("/maestros", maestroHandler.Create)

			r.Route("/personas", func(r chi.Router) {
				r.With(middleware.Require(access.OpListPersonas)).Get("/", personaHandler.List)
				r.With(middleware.Require(access.OpViewPersona)).Get("/{id}", personaHandler.Get)
				r.With(middleware.Require(access.OpUpdatePersona)).Put("/{id}", personaHandler.Update)
				r.With(middleware.Require(access.OpChangePerfil)).Put("/{id}/perfil", personaHandler.SetPerfil)
				r.With(middleware.Require(access.OpAddRole)).Post("/{id}/roles", personaHandler.AddRole)
			})
		})
	})

	return router
}
