package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openmaraude/apitaxi/api/controllers"
	"github.com/openmaraude/apitaxi/api/middleware"
	"github.com/openmaraude/apitaxi/internal/dispatch"
	"github.com/openmaraude/apitaxi/internal/hails"
	"github.com/openmaraude/apitaxi/internal/taxis"
	"github.com/openmaraude/apitaxi/pkg/config"
	"github.com/openmaraude/apitaxi/pkg/db"
	"github.com/openmaraude/apitaxi/pkg/enums"
	"github.com/openmaraude/apitaxi/pkg/logger"
	"github.com/openmaraude/apitaxi/pkg/redis"
)

// NewRouterParams carries everything the HTTP surface depends on.
type NewRouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    redis.Pinger
	Users    middleware.UserFinder
	Taxis    *taxis.Service
	Dispatch *dispatch.Service
	Hails    *hails.Service
}

func NewRouter(params NewRouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(params.Users, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleOperateur, logg))
			r.Post("/geotaxi", controllers.Geotaxi(params.Taxis, logg))
			r.Post("/taxis", controllers.RegisterTaxi(params.Taxis, logg))
			r.Put("/taxis/{taxiID}", controllers.UpdateTaxi(params.Taxis, logg))
		})

		r.With(middleware.RequireRole(enums.RoleMoteur, logg)).
			Get("/taxis", controllers.SearchTaxis(params.Dispatch, logg))
		r.Get("/taxis/{taxiID}", controllers.GetTaxi(params.Taxis, logg))

		r.Route("/hails", func(r chi.Router) {
			r.With(middleware.RequireRole(enums.RoleMoteur, logg)).
				Post("/", controllers.CreateHail(params.Hails, logg))
			r.Get("/", controllers.ListHails(params.Hails, logg))
			r.Get("/{hailID}", controllers.GetHail(params.Hails, logg))
			r.Put("/{hailID}", controllers.UpdateHail(params.Hails, logg))
			r.With(middleware.RequireRole(enums.RoleAdmin, logg)).
				Get("/{hailID}/log", controllers.GetHailLog(params.Hails, logg))
		})
	})

	return r
}
