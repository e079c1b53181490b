package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openmaraude/apitaxi/api/middleware"
	"github.com/openmaraude/apitaxi/api/responses"
	"github.com/openmaraude/apitaxi/api/validators"
	"github.com/openmaraude/apitaxi/internal/hails"
	"github.com/openmaraude/apitaxi/pkg/enums"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
	"github.com/openmaraude/apitaxi/pkg/logger"
	"github.com/openmaraude/apitaxi/pkg/pagination"
)

type createHailRequest struct {
	Data []createHailBody `json:"data" validate:"required,len=1,dive"`
}

type createHailBody struct {
	CustomerID          string  `json:"customer_id" validate:"required"`
	CustomerLon         float64 `json:"customer_lon" validate:"min=-180,max=180"`
	CustomerLat         float64 `json:"customer_lat" validate:"min=-90,max=90"`
	CustomerAddress     string  `json:"customer_address" validate:"required"`
	CustomerPhoneNumber string  `json:"customer_phone_number" validate:"required"`
	TaxiID              string  `json:"taxi_id" validate:"required"`
	Operateur           string  `json:"operateur" validate:"required,email"`
	SessionID           string  `json:"session_id,omitempty"`
}

// CreateHail posts a ride request against a taxi on behalf of the
// calling moteur's customer.
func CreateHail(service *hails.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var req createHailRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body := req.Data[0]

		var sessionID uuid.UUID
		if body.SessionID != "" {
			parsed, err := uuid.Parse(body.SessionID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "session_id must be a UUID").
						WithDetails(map[string]string{"session_id": body.SessionID}))
				return
			}
			sessionID = parsed
		}

		hail, err := service.Create(r.Context(), user, hails.CreateInput{
			TaxiID:              body.TaxiID,
			OperateurEmail:      body.Operateur,
			CustomerID:          validators.SanitizeString(body.CustomerID, 64),
			CustomerLat:         body.CustomerLat,
			CustomerLon:         body.CustomerLon,
			CustomerAddress:     validators.SanitizeString(body.CustomerAddress, 256),
			CustomerPhoneNumber: validators.SanitizeString(body.CustomerPhoneNumber, 32),
			SessionID:           sessionID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := service.Get(r.Context(), user, hail.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, []hails.View{*view})
	}
}

// GetHail returns one hail as the caller may see it.
func GetHail(service *hails.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		view, err := service.Get(r.Context(), user, chi.URLParam(r, "hailID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, []hails.View{*view})
	}
}

// GetHailLog returns the audit trail of a hail: the raw exchanges
// recorded around each status change. Routed admin-only.
func GetHailLog(service *hails.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		entries, err := service.Log(r.Context(), user, chi.URLParam(r, "hailID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// ListHails answers GET /hails with role-scoped filters and paging.
func ListHails(service *hails.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		page, err := validators.ParseQueryInt(r, "p", 1, 1, 1<<20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := hails.ListQuery{
			ID:         strings.TrimSpace(r.URL.Query().Get("id")),
			TaxiID:     strings.TrimSpace(r.URL.Query().Get("taxi_id")),
			CustomerID: strings.TrimSpace(r.URL.Query().Get("customer_id")),
			Moteur:     strings.TrimSpace(r.URL.Query().Get("moteur")),
			Operateur:  strings.TrimSpace(r.URL.Query().Get("operateur")),
			Page:       pagination.Params{Page: page, PerPage: pagination.DefaultPerPage},
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
			day, err := time.Parse("2006-01-02", raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "date must be YYYY-MM-DD").
						WithDetails(map[string]string{"date": raw}))
				return
			}
			query.Date = day
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseHailStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "unknown hail status").
						WithDetails(map[string]string{"status": raw}))
				return
			}
			query.Status = status
		}

		views, meta, err := service.List(r.Context(), user, query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"hails": views, "meta": meta})
	}
}

type updateHailRequest struct {
	Data []updateHailBody `json:"data" validate:"required,len=1"`
}

type updateHailBody struct {
	Status *string `json:"status,omitempty"`

	IncidentTaxiReason      *string `json:"incident_taxi_reason,omitempty"`
	ReportingCustomer       *bool   `json:"reporting_customer,omitempty"`
	ReportingCustomerReason *string `json:"reporting_customer_reason,omitempty"`
	TaxiPhoneNumber         *string `json:"taxi_phone_number,omitempty"`

	CustomerLat            *float64 `json:"customer_lat,omitempty"`
	CustomerLon            *float64 `json:"customer_lon,omitempty"`
	CustomerAddress        *string  `json:"customer_address,omitempty"`
	RatingRide             *int     `json:"rating_ride,omitempty"`
	RatingRideReason       *string  `json:"rating_ride_reason,omitempty"`
	IncidentCustomerReason *string  `json:"incident_customer_reason,omitempty"`
}

// UpdateHail applies a role-scoped PUT: writable fields, an optional
// status transition, the customer reporting toggle.
func UpdateHail(service *hails.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var req updateHailRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := buildUpdateInput(req.Data[0])
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := service.Update(r.Context(), user, chi.URLParam(r, "hailID"), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, []hails.View{*view})
	}
}

func buildUpdateInput(body updateHailBody) (hails.UpdateInput, error) {
	input := hails.UpdateInput{
		ReportingCustomer: body.ReportingCustomer,
		TaxiPhoneNumber:   body.TaxiPhoneNumber,
		CustomerLat:       body.CustomerLat,
		CustomerLon:       body.CustomerLon,
		CustomerAddress:   body.CustomerAddress,
		RatingRide:        body.RatingRide,
	}

	if body.Status != nil {
		status, err := enums.ParseHailStatus(*body.Status)
		if err != nil {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "unknown hail status").
				WithDetails(map[string]string{"status": *body.Status})
		}
		input.Status = &status
	}
	if body.IncidentTaxiReason != nil {
		reason := enums.IncidentTaxiReason(*body.IncidentTaxiReason)
		input.IncidentTaxiReason = &reason
	}
	if body.ReportingCustomerReason != nil {
		reason := enums.ReportingCustomerReason(*body.ReportingCustomerReason)
		input.ReportingCustomerReason = &reason
	}
	if body.RatingRideReason != nil {
		reason := enums.RatingRideReason(*body.RatingRideReason)
		input.RatingRideReason = &reason
	}
	if body.IncidentCustomerReason != nil {
		reason := enums.IncidentCustomerReason(*body.IncidentCustomerReason)
		input.IncidentCustomerReason = &reason
	}
	return input, nil
}
