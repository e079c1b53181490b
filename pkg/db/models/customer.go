package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a rider as seen by one moteur. The primary key is composite:
// the same external identifier used by two moteurs yields two rows, so a
// ban issued through one application never leaks to another.
type Customer struct {
	ID       string    `gorm:"column:id;type:text;primaryKey"`
	MoteurID uuid.UUID `gorm:"column:moteur_id;type:uuid;primaryKey"`

	BanBegin *time.Time `gorm:"column:ban_begin"`
	BanEnd   *time.Time `gorm:"column:ban_end"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BannedAt reports whether the customer is under a ban at the given instant.
func (c Customer) BannedAt(now time.Time) bool {
	if c.BanBegin == nil || c.BanEnd == nil {
		return false
	}
	return !now.Before(*c.BanBegin) && now.Before(*c.BanEnd)
}
