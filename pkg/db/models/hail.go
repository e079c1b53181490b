package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openmaraude/apitaxi/pkg/enums"
)

// TransitionLogEntry records one status change of a hail.
type TransitionLogEntry struct {
	FromStatus enums.HailStatus `json:"from_status"`
	ToStatus   enums.HailStatus `json:"to_status"`
	Timestamp  time.Time        `json:"timestamp"`
	User       string           `json:"user"`
	Reason     string           `json:"reason,omitempty"`
}

// TransitionLog is the append-only jsonb history of a hail's statuses.
type TransitionLog []TransitionLogEntry

func (l *TransitionLog) Scan(src any) error {
	if src == nil {
		*l = TransitionLog{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("TransitionLog: unsupported Scan type %T", src)
	}
}

func (l TransitionLog) Value() (driver.Value, error) {
	if l == nil {
		l = TransitionLog{}
	}
	return json.Marshal(l)
}

// Hail is one ride request from a customer to a specific taxi.
type Hail struct {
	ID               string           `gorm:"column:id;type:text;primaryKey"`
	CreationDatetime time.Time        `gorm:"column:creation_datetime;not null"`
	TaxiID           string           `gorm:"column:taxi_id;type:text;not null;index"`
	Status           enums.HailStatus `gorm:"column:status;type:text;not null"`
	LastStatusChange time.Time        `gorm:"column:last_status_change"`

	CustomerID          string     `gorm:"column:customer_id;type:text;not null"`
	AddedBy             uuid.UUID  `gorm:"column:added_by;type:uuid;not null;index"`
	OperateurID         uuid.UUID  `gorm:"column:operateur_id;type:uuid;not null;index"`
	SessionID           uuid.UUID  `gorm:"column:session_id;type:uuid;not null"`
	CustomerLat         float64    `gorm:"column:customer_lat;not null"`
	CustomerLon         float64    `gorm:"column:customer_lon;not null"`
	CustomerAddress     string     `gorm:"column:customer_address;not null"`
	CustomerPhoneNumber string     `gorm:"column:customer_phone_number;not null"`
	TaxiPhoneNumber     *string    `gorm:"column:taxi_phone_number"`
	InitialTaxiLat      *float64   `gorm:"column:initial_taxi_lat"`
	InitialTaxiLon      *float64   `gorm:"column:initial_taxi_lon"`

	IncidentCustomerReason  *enums.IncidentCustomerReason  `gorm:"column:incident_customer_reason"`
	IncidentTaxiReason      *enums.IncidentTaxiReason      `gorm:"column:incident_taxi_reason"`
	ReportingCustomer       *bool                          `gorm:"column:reporting_customer"`
	ReportingCustomerReason *enums.ReportingCustomerReason `gorm:"column:reporting_customer_reason"`
	RatingRide              *int                           `gorm:"column:rating_ride"`
	RatingRideReason        *enums.RatingRideReason        `gorm:"column:rating_ride_reason"`

	TransitionLog TransitionLog `gorm:"column:transition_log;type:jsonb;not null"`
	Blurred       bool          `gorm:"column:blurred;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// InProgress reports whether the hail still binds the taxi to the ride.
func (h Hail) InProgress() bool {
	return h.Status.IsInProgress()
}
