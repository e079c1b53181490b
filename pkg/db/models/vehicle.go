package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/openmaraude/apitaxi/pkg/enums"
)

// Vehicle is a physical car identified by its licence plate. Several
// operators may describe the same vehicle; each keeps its own
// VehicleDescription row.
type Vehicle struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	LicencePlate string    `gorm:"column:licence_plate;type:text;not null;uniqueIndex"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`

	Descriptions []VehicleDescription `gorm:"foreignKey:VehicleID"`
}

// VehicleDescription is one operator's view of a vehicle, including the
// status that operator last broadcast for it.
type VehicleDescription struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	VehicleID uuid.UUID `gorm:"column:vehicle_id;type:uuid;not null;uniqueIndex:idx_vehicle_description_owner"`
	AddedBy   uuid.UUID `gorm:"column:added_by;type:uuid;not null;uniqueIndex:idx_vehicle_description_owner"`

	Model           *string             `gorm:"column:model"`
	Constructor     *string             `gorm:"column:constructor"`
	Color           *string             `gorm:"column:color"`
	NbSeats         *int                `gorm:"column:nb_seats"`
	Characteristics pq.StringArray      `gorm:"type:text[];column:characteristics;not null;default:ARRAY[]::text[]"`
	Status          enums.VehicleStatus `gorm:"column:status;type:text;not null;default:'off'"`
	Radius          *int                `gorm:"column:radius"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
