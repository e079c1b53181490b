package models

import (
	"time"

	"github.com/google/uuid"
)

// Taxi binds a vehicle, an ADS and a driver for one operator. The same
// physical triple registered by two operators yields two rows sharing
// the same ID, so real-time data is keyed by (taxi_id, operator).
type Taxi struct {
	ID        string    `gorm:"column:id;type:text;primaryKey"`
	VehicleID uuid.UUID `gorm:"column:vehicle_id;type:uuid;not null;uniqueIndex:idx_taxi_triple"`
	ADSID     uuid.UUID `gorm:"column:ads_id;type:uuid;not null;uniqueIndex:idx_taxi_triple"`
	DriverID  uuid.UUID `gorm:"column:driver_id;type:uuid;not null;uniqueIndex:idx_taxi_triple"`
	AddedBy   uuid.UUID `gorm:"column:added_by;type:uuid;not null;uniqueIndex:idx_taxi_triple"`

	Rating        *float64 `gorm:"column:rating"`
	CurrentHailID *string  `gorm:"column:current_hail_id;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Vehicle *Vehicle `gorm:"foreignKey:VehicleID"`
	ADS     *ADS     `gorm:"foreignKey:ADSID"`
	Driver  *Driver  `gorm:"foreignKey:DriverID"`
}

func (Taxi) TableName() string {
	return "taxis"
}
