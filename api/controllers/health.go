package controllers

import (
	"net/http"

	"github.com/openmaraude/apitaxi/api/responses"
	"github.com/openmaraude/apitaxi/pkg/config"
	"github.com/openmaraude/apitaxi/pkg/db"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
	"github.com/openmaraude/apitaxi/pkg/logger"
	"github.com/openmaraude/apitaxi/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Apitaxi-Env", cfg.App.Env)
		responses.WriteSuccess(w, []map[string]string{{"status": "live"}})
	}
}

// HealthReady reports ready only when both backing stores answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Apitaxi-Env", cfg.App.Env)
		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, []map[string]string{{"status": "ready"}})
	}
}
