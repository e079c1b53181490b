package zones

import (
	"context"

	"gorm.io/gorm"

	"github.com/openmaraude/apitaxi/pkg/db/models"
)

// Repository loads zone rows from the registry.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a zones repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListTowns returns every town with its boundary.
func (r *Repository) ListTowns(ctx context.Context) ([]models.Town, error) {
	var rows []models.Town
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListZUPCs returns every shared pickup zone.
func (r *Repository) ListZUPCs(ctx context.Context) ([]models.ZUPC, error) {
	var rows []models.ZUPC
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListExclusions returns every exclusion area.
func (r *Repository) ListExclusions(ctx context.Context) ([]models.Exclusion, error) {
	var rows []models.Exclusion
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
