package models

import (
	"time"

	"github.com/google/uuid"
)

// ADS is an "autorisation de stationnement": the administrative licence
// that binds a vehicle to the town (INSEE code) it may pick up from.
type ADS struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Numero    string    `gorm:"column:numero;type:text;not null;uniqueIndex:idx_ads_numero_insee"`
	InseeCode string    `gorm:"column:insee;type:text;not null;uniqueIndex:idx_ads_numero_insee"`
	OwnerType *string   `gorm:"column:owner_type"`
	OwnerName *string   `gorm:"column:owner_name"`
	Category  *string   `gorm:"column:category"`
	Doublage  *bool     `gorm:"column:doublage"`
	VehicleID *uuid.UUID `gorm:"column:vehicle_id;type:uuid"`
	AddedBy   uuid.UUID `gorm:"column:added_by;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
