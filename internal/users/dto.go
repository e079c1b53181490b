package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/openmaraude/apitaxi/pkg/db/models"
)

// UserDTO is the transport shape that omits the API key.
type UserDTO struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	CommercialName *string    `json:"commercial_name,omitempty"`
	Roles          []string   `json:"roles"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new account.
type CreateUserDTO struct {
	Email              string
	APIKey             string
	Roles              []string
	CommercialName     *string
	HailEndpoint       *string
	OperatorHeaderName *string
	OperatorAPIKey     *string
	IsActive           *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:             u.ID,
		Email:          u.Email,
		CommercialName: u.CommercialName,
		Roles:          append([]string(nil), []string(u.Roles)...),
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}

	roles := c.Roles
	if roles == nil {
		roles = []string{}
	} else {
		roles = append([]string(nil), roles...)
	}

	return &models.User{
		Email:              c.Email,
		APIKey:             c.APIKey,
		Roles:              pq.StringArray(roles),
		CommercialName:     c.CommercialName,
		HailEndpoint:       c.HailEndpoint,
		OperatorHeaderName: c.OperatorHeaderName,
		OperatorAPIKey:     c.OperatorAPIKey,
		IsActive:           isActive,
	}
}
