package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/openmaraude/apitaxi/pkg/enums"
)

// HailCreatedEvent signals a new ride request bound to a taxi.
type HailCreatedEvent struct {
	HailID      string    `json:"hail_id"`
	TaxiID      string    `json:"taxi_id"`
	MoteurID    uuid.UUID `json:"moteur_id"`
	OperateurID uuid.UUID `json:"operateur_id"`
	CustomerLat float64   `json:"customer_lat"`
	CustomerLon float64   `json:"customer_lon"`
	CreatedAt   time.Time `json:"created_at"`
}

// HailStatusChangedEvent is emitted on every hail transition.
type HailStatusChangedEvent struct {
	HailID     string           `json:"hail_id"`
	TaxiID     string           `json:"taxi_id"`
	FromStatus enums.HailStatus `json:"from_status"`
	ToStatus   enums.HailStatus `json:"to_status"`
	Reason     string           `json:"reason,omitempty"`
	ChangedAt  time.Time        `json:"changed_at"`
}

// HailFinishedEvent surfaces the outcome of a completed ride.
type HailFinishedEvent struct {
	HailID     string           `json:"hail_id"`
	TaxiID     string           `json:"taxi_id"`
	Status     enums.HailStatus `json:"status"`
	FinishedAt time.Time        `json:"finished_at"`
}

// TaxiStatusChangedEvent is emitted when an operator updates a taxi status.
type TaxiStatusChangedEvent struct {
	TaxiID    string              `json:"taxi_id"`
	Operator  string              `json:"operator"`
	Status    enums.VehicleStatus `json:"status"`
	ChangedAt time.Time           `json:"changed_at"`
}

// CustomerBannedEvent signals a reported customer entering a ban window.
type CustomerBannedEvent struct {
	CustomerID string    `json:"customer_id"`
	MoteurID   uuid.UUID `json:"moteur_id"`
	BanBegin   time.Time `json:"ban_begin"`
	BanEnd     time.Time `json:"ban_end"`
}
