package models

import (
	"time"

	"github.com/google/uuid"
)

// Driver is the person holding a professional taxi licence. The licence
// number is only unique within its departement.
type Driver struct {
	ID                  uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Departement         string     `gorm:"column:departement;type:text;not null;uniqueIndex:idx_driver_licence"`
	ProfessionalLicence string     `gorm:"column:professional_licence;type:text;not null;uniqueIndex:idx_driver_licence"`
	FirstName           string     `gorm:"column:first_name;not null"`
	LastName            string     `gorm:"column:last_name;not null"`
	BirthDate           *time.Time `gorm:"column:birth_date"`
	AddedBy             uuid.UUID  `gorm:"column:added_by;type:uuid;not null"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
