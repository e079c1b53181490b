package hails

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/enums"
	"github.com/openmaraude/apitaxi/pkg/pagination"
)

// Repository exposes hail persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a hails repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new hail row.
func (r *Repository) Create(ctx context.Context, hail *models.Hail) error {
	return r.db.WithContext(ctx).Create(hail).Error
}

// CreateTx inserts the hail inside an existing transaction.
func (r *Repository) CreateTx(ctx context.Context, tx *gorm.DB, hail *models.Hail) error {
	return tx.WithContext(ctx).Create(hail).Error
}

// FindByID loads one hail, or nil when it does not exist.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Hail, error) {
	var hail models.Hail
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&hail).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &hail, nil
}

// Save persists the full hail row.
func (r *Repository) Save(ctx context.Context, hail *models.Hail) error {
	return r.db.WithContext(ctx).Save(hail).Error
}

// SaveTx persists the hail inside an existing transaction.
func (r *Repository) SaveTx(ctx context.Context, tx *gorm.DB, hail *models.Hail) error {
	return tx.WithContext(ctx).Save(hail).Error
}

// LatestForSession returns the most recent hail emitted by (customer,
// moteur) since the given instant, used to chain hails into one search
// session. Returns nil when the customer has no recent hail.
func (r *Repository) LatestForSession(ctx context.Context, customerID string, moteurID uuid.UUID, since time.Time) (*models.Hail, error) {
	var hail models.Hail
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND added_by = ? AND creation_datetime >= ?", customerID, moteurID, since).
		Order("creation_datetime DESC").
		First(&hail).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &hail, nil
}

// ListFilters narrow a hail listing. Zero values are ignored. The ID,
// TaxiID, CustomerID and email filters match case-insensitive prefixes;
// Status and Date match exactly.
type ListFilters struct {
	// Restrict to hails visible to these account IDs, as moteur or as
	// operator. Empty means no account restriction (admin).
	AccountIDs []uuid.UUID
	ID         string
	Status     enums.HailStatus
	TaxiID     string
	CustomerID string
	// Emails of the accounts the hail was emitted or received by.
	MoteurEmail    string
	OperateurEmail string
	// Calendar day (UTC) the hail was created on.
	Date time.Time
	// Hide hails older than this instant.
	Since time.Time
}

// prefixPattern builds the LIKE pattern matching values starting with v.
// LIKE wildcards in v are escaped so they match literally.
func prefixPattern(v string) string {
	escape := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return escape.Replace(strings.ToLower(v)) + "%"
}

// List returns one page of hails, most recent first, with the total
// row count for the filter.
func (r *Repository) List(ctx context.Context, filters ListFilters, page pagination.Params) ([]models.Hail, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Hail{})

	if len(filters.AccountIDs) > 0 {
		query = query.Where("added_by IN ? OR operateur_id IN ?", filters.AccountIDs, filters.AccountIDs)
	}
	if filters.ID != "" {
		query = query.Where(`lower(id) LIKE ? ESCAPE '\'`, prefixPattern(filters.ID))
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.TaxiID != "" {
		query = query.Where(`lower(taxi_id) LIKE ? ESCAPE '\'`, prefixPattern(filters.TaxiID))
	}
	if filters.CustomerID != "" {
		query = query.Where(`lower(customer_id) LIKE ? ESCAPE '\'`, prefixPattern(filters.CustomerID))
	}
	if filters.MoteurEmail != "" {
		query = query.Where("added_by IN (?)",
			r.db.Model(&models.User{}).Select("id").Where(`lower(email) LIKE ? ESCAPE '\'`, prefixPattern(filters.MoteurEmail)))
	}
	if filters.OperateurEmail != "" {
		query = query.Where("operateur_id IN (?)",
			r.db.Model(&models.User{}).Select("id").Where(`lower(email) LIKE ? ESCAPE '\'`, prefixPattern(filters.OperateurEmail)))
	}
	if !filters.Date.IsZero() {
		query = query.Where("DATE(creation_datetime) = ?", filters.Date.UTC().Format("2006-01-02"))
	}
	if !filters.Since.IsZero() {
		query = query.Where("creation_datetime >= ?", filters.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var hails []models.Hail
	err := query.
		Order("creation_datetime DESC").
		Offset(page.Offset()).
		Limit(page.PerPage).
		Find(&hails).Error
	if err != nil {
		return nil, 0, err
	}
	return hails, total, nil
}

// ListUnblurredBefore returns hails created before the cutoff whose
// personal data has not been scrubbed yet, oldest first.
func (r *Repository) ListUnblurredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Hail, error) {
	var hails []models.Hail
	err := r.db.WithContext(ctx).
		Where("creation_datetime < ? AND NOT blurred", cutoff).
		Order("creation_datetime ASC").
		Limit(limit).
		Find(&hails).Error
	if err != nil {
		return nil, err
	}
	return hails, nil
}

// ListOlderThan returns hails created before the cutoff, oldest first.
func (r *Repository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Hail, error) {
	var hails []models.Hail
	err := r.db.WithContext(ctx).
		Where("creation_datetime < ?", cutoff).
		Order("creation_datetime ASC").
		Limit(limit).
		Find(&hails).Error
	if err != nil {
		return nil, err
	}
	return hails, nil
}

// DeleteTx removes the hail row inside an existing transaction.
func (r *Repository) DeleteTx(ctx context.Context, tx *gorm.DB, id string) error {
	return tx.WithContext(ctx).Delete(&models.Hail{}, "id = ?", id).Error
}

// ArchiveTx inserts the condensed archive row inside an existing
// transaction, paired with DeleteTx on the live row.
func (r *Repository) ArchiveTx(ctx context.Context, tx *gorm.DB, row *models.ArchivedHail) error {
	return tx.WithContext(ctx).Create(row).Error
}

// SessionBelongsTo reports whether a session ID was minted for the
// given (customer, moteur) pair.
func (r *Repository) SessionBelongsTo(ctx context.Context, sessionID uuid.UUID, customerID string, moteurID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Hail{}).
		Where("session_id = ? AND customer_id = ? AND added_by = ?", sessionID, customerID, moteurID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
