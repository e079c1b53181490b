package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// User is an account holding an API key. Depending on its roles it acts
// as a moteur (emits hails), an operateur (registers taxis and relays
// rides), or both.
type User struct {
	ID                   uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email                string         `gorm:"type:text;not null;uniqueIndex"`
	APIKey               string         `gorm:"column:apikey;type:text;not null;uniqueIndex"`
	Roles                pq.StringArray `gorm:"type:text[];column:roles;not null;default:ARRAY[]::text[]"`
	CommercialName       *string        `gorm:"column:commercial_name"`
	EmailCustomer        *string        `gorm:"column:email_customer"`
	EmailTechnical       *string        `gorm:"column:email_technical"`
	PhoneNumberTechnical *string        `gorm:"column:phone_number_technical"`
	HailEndpoint         *string        `gorm:"column:hail_endpoint_production"`
	OperatorHeaderName   *string        `gorm:"column:operator_header_name"`
	OperatorAPIKey       *string        `gorm:"column:operator_api_key"`
	IsActive             bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt            time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// HasRole reports whether the account carries the given role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
