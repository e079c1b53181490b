package customers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openmaraude/apitaxi/pkg/db/models"
)

// Repository exposes customer persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a customers repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Find loads the customer row for one moteur, or nil when it does not
// exist yet.
func (r *Repository) Find(ctx context.Context, id string, moteurID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("id = ? AND moteur_id = ?", id, moteurID).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

// GetOrCreate returns the customer row, creating it on first contact.
// The insert races with concurrent hails for the same rider; the loser
// of the race reads the winner's row.
func (r *Repository) GetOrCreate(ctx context.Context, id string, moteurID uuid.UUID) (*models.Customer, error) {
	customer, err := r.Find(ctx, id, moteurID)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		return customer, nil
	}

	fresh := &models.Customer{ID: id, MoteurID: moteurID}
	if err := r.db.WithContext(ctx).Create(fresh).Error; err != nil {
		existing, findErr := r.Find(ctx, id, moteurID)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return fresh, nil
}

// Save persists ban window changes.
func (r *Repository) Save(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Save(customer).Error
}
