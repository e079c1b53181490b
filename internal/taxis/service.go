package taxis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/openmaraude/apitaxi/pkg/db"
	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/enums"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
	"github.com/openmaraude/apitaxi/pkg/geostore"
	"github.com/openmaraude/apitaxi/pkg/logger"
	"github.com/openmaraude/apitaxi/pkg/outbox"
	"github.com/openmaraude/apitaxi/pkg/outbox/payloads"
)

// MaxPositionBatch bounds one position report.
const MaxPositionBatch = 50

// Store is the registry surface the service needs.
type Store interface {
	FindVehicleByPlate(ctx context.Context, plate string) (*models.Vehicle, error)
	FindADS(ctx context.Context, numero, insee string) (*models.ADS, error)
	FindDriver(ctx context.Context, departement, licence string) (*models.Driver, error)
	FindByTriple(ctx context.Context, vehicleID, adsID, driverID, addedBy uuid.UUID) (*models.Taxi, error)
	FindByID(ctx context.Context, id string) (*models.Taxi, error)
	FindByIDs(ctx context.Context, ids []string, addedBy uuid.UUID) ([]models.Taxi, error)
	Create(ctx context.Context, taxi *models.Taxi) error
	UpdateDescriptionStatus(ctx context.Context, vehicleID, addedBy uuid.UUID, status enums.VehicleStatus) error
	SetCurrentHail(ctx context.Context, taxiID string, hailID *string) error
}

// GeoStore is the real-time surface the service needs.
type GeoStore interface {
	UpdatePositions(ctx context.Context, operator string, now time.Time, positions []geostore.Position) error
	GetTaxi(ctx context.Context, taxiID, operator string) (*geostore.Entry, error)
	LogTaxiStatus(ctx context.Context, taxiID, status string, now time.Time) error
}

// Availability mirrors vehicle statuses into the not_available set.
type Availability interface {
	SetStatus(ctx context.Context, taxiID, operator string, status enums.VehicleStatus) error
}

// HailUpdater receives the implicit hail transitions a taxi status
// change can trigger. Wired after construction to avoid a dependency
// loop with the hails service.
type HailUpdater interface {
	ApplyTaxiStatus(ctx context.Context, hailID string, operator *models.User, status enums.VehicleStatus) error
}

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Outbox queues domain events.
type Outbox interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams configure the taxis service.
type ServiceParams struct {
	Logger       *logger.Logger
	Repo         Store
	Geo          GeoStore
	Availability Availability
	Tx           TxRunner
	Outbox       Outbox
	Now          func() time.Time
}

// Service handles taxi registration, position reports and status
// updates.
type Service struct {
	logg         *logger.Logger
	repo         Store
	geo          GeoStore
	availability Availability
	tx           TxRunner
	outbox       Outbox
	hails        HailUpdater
	now          func() time.Time
}

// NewService builds a taxis service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repo required")
	}
	if params.Geo == nil {
		return nil, fmt.Errorf("geo store required")
	}
	if params.Availability == nil {
		return nil, fmt.Errorf("availability required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:         params.Logger,
		repo:         params.Repo,
		geo:          params.Geo,
		availability: params.Availability,
		tx:           params.Tx,
		outbox:       params.Outbox,
		now:          now,
	}, nil
}

// SetHailUpdater wires the hails service once both exist.
func (s *Service) SetHailUpdater(updater HailUpdater) {
	s.hails = updater
}

// RegisterInput identifies the (vehicle, ads, driver) triple to bind.
type RegisterInput struct {
	LicencePlate      string
	ADSNumero         string
	ADSInsee          string
	DriverDepartement string
	DriverLicence     string
}

// Register binds a vehicle, an ADS and a driver for the operator. The
// triple is idempotent: registering it again returns the existing taxi.
func (s *Service) Register(ctx context.Context, operator *models.User, input RegisterInput) (*models.Taxi, bool, error) {
	vehicle, err := s.repo.FindVehicleByPlate(ctx, input.LicencePlate)
	if err != nil {
		return nil, false, fmt.Errorf("find vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
	}
	if descriptionByOwner(vehicle, operator.ID) == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "vehicle has no description by this operator")
	}

	ads, err := s.repo.FindADS(ctx, input.ADSNumero, input.ADSInsee)
	if err != nil {
		return nil, false, fmt.Errorf("find ads: %w", err)
	}
	if ads == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "ads not found")
	}

	driver, err := s.repo.FindDriver(ctx, input.DriverDepartement, input.DriverLicence)
	if err != nil {
		return nil, false, fmt.Errorf("find driver: %w", err)
	}
	if driver == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
	}

	existing, err := s.repo.FindByTriple(ctx, vehicle.ID, ads.ID, driver.ID, operator.ID)
	if err != nil {
		return nil, false, fmt.Errorf("find taxi: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	taxi := &models.Taxi{
		ID:        models.NewShortID(),
		VehicleID: vehicle.ID,
		ADSID:     ads.ID,
		DriverID:  driver.ID,
		AddedBy:   operator.ID,
		Vehicle:   vehicle,
		ADS:       ads,
		Driver:    driver,
	}
	if err := s.repo.Create(ctx, taxi); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_taxi_triple") {
			existing, findErr := s.repo.FindByTriple(ctx, vehicle.ID, ads.ID, driver.ID, operator.ID)
			if findErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("create taxi: %w", err)
	}
	s.logg.Info(s.logg.WithTaxiID(ctx, taxi.ID), "taxi registered")
	return taxi, true, nil
}

// PositionReport is one taxi position in a geotaxi batch.
type PositionReport struct {
	TaxiID string
	Lat    float64
	Lon    float64
}

// ReportPositions validates and writes one batch of positions for the
// operator. The batch is rejected as a whole when any entry is invalid,
// so partial writes never reach the index.
func (s *Service) ReportPositions(ctx context.Context, operator *models.User, reports []PositionReport) error {
	if len(reports) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "empty position batch")
	}
	if len(reports) > MaxPositionBatch {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("position batch cannot exceed %d entries", MaxPositionBatch))
	}

	ids := make([]string, 0, len(reports))
	for _, report := range reports {
		if report.Lat < -90 || report.Lat > 90 || report.Lon < -180 || report.Lon > 180 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invalid coordinates for taxi %s", report.TaxiID))
		}
		ids = append(ids, report.TaxiID)
	}

	owned, err := s.repo.FindByIDs(ctx, ids, operator.ID)
	if err != nil {
		return fmt.Errorf("load taxis: %w", err)
	}
	known := make(map[string]struct{}, len(owned))
	for _, taxi := range owned {
		known[taxi.ID] = struct{}{}
	}
	for _, report := range reports {
		if _, ok := known[report.TaxiID]; !ok {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("taxi %s is not registered by this operator", report.TaxiID))
		}
	}

	positions := make([]geostore.Position, 0, len(reports))
	for _, report := range reports {
		positions = append(positions, geostore.Position{
			TaxiID: report.TaxiID,
			Lat:    report.Lat,
			Lon:    report.Lon,
		})
	}
	if err := s.geo.UpdatePositions(ctx, operator.Email, s.now(), positions); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write positions")
	}
	return nil
}

// View is the operator-facing read model of a taxi.
type View struct {
	ID           string              `json:"id"`
	LicencePlate string              `json:"licence_plate"`
	InseeCode    string              `json:"insee"`
	Status       enums.VehicleStatus `json:"status"`
	Rating       *float64            `json:"rating,omitempty"`
	Lat          *float64            `json:"lat,omitempty"`
	Lon          *float64            `json:"lon,omitempty"`
	LastUpdate   *int64              `json:"last_update,omitempty"`
}

// Get returns the taxi as its operator sees it, including the last
// reported position when one exists.
func (s *Service) Get(ctx context.Context, user *models.User, id string) (*View, error) {
	taxi, err := s.loadOwned(ctx, user, id)
	if err != nil {
		return nil, err
	}

	view := &View{
		ID:     taxi.ID,
		Rating: taxi.Rating,
	}
	if taxi.Vehicle != nil {
		view.LicencePlate = taxi.Vehicle.LicencePlate
		if desc := descriptionByOwner(taxi.Vehicle, taxi.AddedBy); desc != nil {
			view.Status = desc.Status
		}
	}
	if taxi.ADS != nil {
		view.InseeCode = taxi.ADS.InseeCode
	}

	entry, err := s.geo.GetTaxi(ctx, taxi.ID, user.Email)
	if err != nil {
		s.logg.Error(s.logg.WithTaxiID(ctx, taxi.ID), "read taxi position", err)
	} else if entry != nil {
		view.Lat = &entry.Lat
		view.Lon = &entry.Lon
		view.LastUpdate = &entry.Timestamp
	}
	return view, nil
}

// SetStatus updates the status the operator broadcasts for the taxi,
// mirrors it into the availability set, and triggers the implicit hail
// transition when the taxi is serving a hail.
func (s *Service) SetStatus(ctx context.Context, operator *models.User, taxiID string, status enums.VehicleStatus) (*View, error) {
	taxi, err := s.loadOwned(ctx, operator, taxiID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateDescriptionStatus(ctx, taxi.VehicleID, taxi.AddedBy, status); err != nil {
		return nil, fmt.Errorf("update description status: %w", err)
	}
	if err := s.availability.SetStatus(ctx, taxi.ID, operator.Email, status); err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.geo.LogTaxiStatus(ctx, taxi.ID, string(status), now); err != nil {
		s.logg.Error(s.logg.WithTaxiID(ctx, taxi.ID), "log taxi status", err)
	}

	if s.tx != nil && s.outbox != nil {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventTaxiStatusChanged,
				AggregateType: enums.AggregateTaxi,
				AggregateID:   taxi.ID,
				Actor:         &outbox.ActorRef{UserID: operator.ID, Role: string(enums.RoleOperateur)},
				Data: payloads.TaxiStatusChangedEvent{
					TaxiID:    taxi.ID,
					Operator:  operator.Email,
					Status:    status,
					ChangedAt: now,
				},
				Version: 1,
			})
		})
		if err != nil {
			s.logg.Error(s.logg.WithTaxiID(ctx, taxi.ID), "emit taxi status event", err)
		}
	}

	if taxi.CurrentHailID != nil && s.hails != nil {
		if err := s.hails.ApplyTaxiStatus(ctx, *taxi.CurrentHailID, operator, status); err != nil {
			s.logg.Error(s.logg.WithHailID(ctx, *taxi.CurrentHailID), "implicit hail transition", err)
		}
	}

	if taxi.Vehicle != nil {
		if desc := descriptionByOwner(taxi.Vehicle, taxi.AddedBy); desc != nil {
			desc.Status = status
		}
	}
	return s.Get(ctx, operator, taxi.ID)
}

func (s *Service) loadOwned(ctx context.Context, user *models.User, id string) (*models.Taxi, error) {
	taxi, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find taxi: %w", err)
	}
	if taxi == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "taxi not found")
	}
	if taxi.AddedBy != user.ID && !user.HasRole(string(enums.RoleAdmin)) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "taxi not found")
	}
	return taxi, nil
}

func descriptionByOwner(vehicle *models.Vehicle, ownerID uuid.UUID) *models.VehicleDescription {
	for i := range vehicle.Descriptions {
		if vehicle.Descriptions[i].AddedBy == ownerID {
			return &vehicle.Descriptions[i]
		}
	}
	return nil
}
