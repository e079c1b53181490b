package taxis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/enums"
)

// Repository exposes taxi registry persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a taxis repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindVehicleByPlate loads a vehicle with its descriptions.
func (r *Repository) FindVehicleByPlate(ctx context.Context, plate string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).
		Preload("Descriptions").
		Where("licence_plate = ?", plate).
		First(&vehicle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vehicle, nil
}

// FindADS loads an ADS by its number and INSEE code.
func (r *Repository) FindADS(ctx context.Context, numero, insee string) (*models.ADS, error) {
	var ads models.ADS
	err := r.db.WithContext(ctx).
		Where("numero = ? AND insee = ?", numero, insee).
		First(&ads).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ads, nil
}

// FindDriver loads a driver by departement and professional licence.
func (r *Repository) FindDriver(ctx context.Context, departement, licence string) (*models.Driver, error) {
	var driver models.Driver
	err := r.db.WithContext(ctx).
		Where("departement = ? AND professional_licence = ?", departement, licence).
		First(&driver).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &driver, nil
}

// FindByTriple loads the taxi registered by one operator for a
// (vehicle, ads, driver) combination.
func (r *Repository) FindByTriple(ctx context.Context, vehicleID, adsID, driverID, addedBy uuid.UUID) (*models.Taxi, error) {
	var taxi models.Taxi
	err := r.db.WithContext(ctx).
		Preload("Vehicle.Descriptions").
		Preload("ADS").
		Preload("Driver").
		Where("vehicle_id = ? AND ads_id = ? AND driver_id = ? AND added_by = ?",
			vehicleID, adsID, driverID, addedBy).
		First(&taxi).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &taxi, nil
}

// FindByID loads a taxi with its relations.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Taxi, error) {
	var taxi models.Taxi
	err := r.db.WithContext(ctx).
		Preload("Vehicle.Descriptions").
		Preload("ADS").
		Preload("Driver").
		Where("id = ?", id).
		First(&taxi).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &taxi, nil
}

// FindByIDs loads several taxis owned by one operator.
func (r *Repository) FindByIDs(ctx context.Context, ids []string, addedBy uuid.UUID) ([]models.Taxi, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Taxi
	err := r.db.WithContext(ctx).
		Where("id IN ? AND added_by = ?", ids, addedBy).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Create inserts a taxi row.
func (r *Repository) Create(ctx context.Context, taxi *models.Taxi) error {
	return r.db.WithContext(ctx).Create(taxi).Error
}

// UpdateDescriptionStatus persists the status one operator broadcasts
// for a vehicle.
func (r *Repository) UpdateDescriptionStatus(ctx context.Context, vehicleID, addedBy uuid.UUID, status enums.VehicleStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.VehicleDescription{}).
		Where("vehicle_id = ? AND added_by = ?", vehicleID, addedBy).
		UpdateColumn("status", status).Error
}

// SetCurrentHail records or clears the hail a taxi is currently serving.
func (r *Repository) SetCurrentHail(ctx context.Context, taxiID string, hailID *string) error {
	return r.db.WithContext(ctx).
		Model(&models.Taxi{}).
		Where("id = ?", taxiID).
		UpdateColumn("current_hail_id", hailID).Error
}

// ListInactiveIDs returns taxis registered before the cutoff that never
// served a hail. Position reports only live in Redis, so an old row
// alone does not make a dead taxi; callers cross-check the last report
// before deleting anything.
func (r *Repository) ListInactiveIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Taxi{}).
		Where("created_at < ? AND current_hail_id IS NULL", cutoff).
		Where("id NOT IN (?)", r.db.Model(&models.Hail{}).Select("taxi_id")).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ExistingIDs returns the subset of ids present in the registry.
func (r *Repository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []string
	err := r.db.WithContext(ctx).
		Model(&models.Taxi{}).
		Where("id IN ?", ids).
		Pluck("id", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByIDs removes the given taxi rows. Returns how many went away.
func (r *Repository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Delete(&models.Taxi{}, "id IN ?", ids)
	return result.RowsAffected, result.Error
}
