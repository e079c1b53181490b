package dispatch

import (
	"context"

	"gorm.io/gorm"

	"github.com/openmaraude/apitaxi/pkg/db/models"
)

// Repository loads registry rows for dispatch candidates.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a dispatch repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindTaxisByIDs loads taxis with their vehicle, descriptions and ADS.
func (r *Repository) FindTaxisByIDs(ctx context.Context, ids []string) ([]models.Taxi, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Taxi
	err := r.db.WithContext(ctx).
		Preload("Vehicle.Descriptions").
		Preload("ADS").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOperatorsByEmail resolves operator emails from the real-time index
// to their accounts.
func (r *Repository) FindOperatorsByEmail(ctx context.Context, emails []string) (map[string]models.User, error) {
	if len(emails) == 0 {
		return map[string]models.User{}, nil
	}
	var rows []models.User
	err := r.db.WithContext(ctx).
		Where("email IN ? AND is_active", emails).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	byEmail := make(map[string]models.User, len(rows))
	for _, row := range rows {
		byEmail[row.Email] = row
	}
	return byEmail, nil
}
