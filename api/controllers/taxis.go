package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/openmaraude/apitaxi/api/middleware"
	"github.com/openmaraude/apitaxi/api/responses"
	"github.com/openmaraude/apitaxi/api/validators"
	"github.com/openmaraude/apitaxi/internal/dispatch"
	"github.com/openmaraude/apitaxi/internal/taxis"
	"github.com/openmaraude/apitaxi/pkg/enums"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

type registerTaxiRequest struct {
	Data []registerTaxiBody `json:"data" validate:"required,len=1,dive"`
}

type registerTaxiBody struct {
	Vehicle struct {
		LicencePlate string `json:"licence_plate" validate:"required"`
	} `json:"vehicle" validate:"required"`
	ADS struct {
		Numero    string `json:"numero" validate:"required"`
		InseeCode string `json:"insee" validate:"required"`
	} `json:"ads" validate:"required"`
	Driver struct {
		Departement    string `json:"departement" validate:"required"`
		ProfessionalID string `json:"professional_licence" validate:"required"`
	} `json:"driver" validate:"required"`
}

// RegisterTaxi binds a (vehicle, ads, driver) triple for the operator.
// An already registered triple answers 200 with the existing taxi.
func RegisterTaxi(service *taxis.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var req registerTaxiRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body := req.Data[0]

		taxi, created, err := service.Register(r.Context(), user, taxis.RegisterInput{
			LicencePlate:      validators.SanitizeString(body.Vehicle.LicencePlate, 16),
			ADSNumero:         body.ADS.Numero,
			ADSInsee:          body.ADS.InseeCode,
			DriverDepartement: body.Driver.Departement,
			DriverLicence:     body.Driver.ProfessionalID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, []map[string]string{{"id": taxi.ID}})
	}
}

// SearchTaxis answers GET /taxis: dispatchable taxis around a point,
// nearest first.
func SearchTaxis(service *dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lon, err := parseCoordinate(r, "lon", -180, 180)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lat, err := parseCoordinate(r, "lat", -90, 90)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		count, err := validators.ParseQueryInt(r, "count", dispatch.DefaultCount, 1, dispatch.MaxCount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results, err := service.Search(r.Context(), dispatch.SearchQuery{
			Lon:              lon,
			Lat:              lat,
			Count:            count,
			FavoriteOperator: strings.TrimSpace(r.URL.Query().Get("favorite_operator")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, results)
	}
}

// GetTaxi returns the operator-facing read model of one taxi.
func GetTaxi(service *taxis.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		view, err := service.Get(r.Context(), user, chi.URLParam(r, "taxiID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, []taxis.View{*view})
	}
}

type updateTaxiRequest struct {
	Data []updateTaxiBody `json:"data" validate:"required,len=1,dive"`
}

type updateTaxiBody struct {
	Status string `json:"status" validate:"required"`
}

// UpdateTaxi applies a status broadcast from the taxi's operator; the
// availability mirror and any implicit hail transition follow.
func UpdateTaxi(service *taxis.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var req updateTaxiRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseVehicleStatus(req.Data[0].Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown vehicle status").
					WithDetails(map[string]string{"status": req.Data[0].Status}))
			return
		}

		view, err := service.SetStatus(r.Context(), user, chi.URLParam(r, "taxiID"), status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, []taxis.View{*view})
	}
}

func parseCoordinate(r *http.Request, key string, min, max float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter required").
			WithDetails(map[string]any{"field": key})
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").
			WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "coordinate out of range").
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}
