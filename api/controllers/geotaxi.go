package controllers

import (
	"net/http"

	"github.com/openmaraude/apitaxi/api/middleware"
	"github.com/openmaraude/apitaxi/api/responses"
	"github.com/openmaraude/apitaxi/api/validators"
	"github.com/openmaraude/apitaxi/internal/taxis"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

type geotaxiRequest struct {
	Data []geotaxiBatch `json:"data" validate:"required,len=1,dive"`
}

type geotaxiBatch struct {
	Positions []geotaxiPosition `json:"positions" validate:"required,min=1,max=50,dive"`
}

type geotaxiPosition struct {
	TaxiID string  `json:"taxi_id" validate:"required"`
	Lon    float64 `json:"lon" validate:"min=-180,max=180"`
	Lat    float64 `json:"lat" validate:"min=-90,max=90"`
}

// Geotaxi ingests one batch of position reports for the calling
// operator. The batch is all-or-nothing; success is a bare 200.
func Geotaxi(service *taxis.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var req geotaxiRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reports := make([]taxis.PositionReport, 0, len(req.Data[0].Positions))
		for _, position := range req.Data[0].Positions {
			reports = append(reports, taxis.PositionReport{
				TaxiID: position.TaxiID,
				Lat:    position.Lat,
				Lon:    position.Lon,
			})
		}

		if err := service.ReportPositions(r.Context(), user, reports); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
