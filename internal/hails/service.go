package hails

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"gorm.io/gorm"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/enums"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
	"github.com/openmaraude/apitaxi/pkg/geostore"
	"github.com/openmaraude/apitaxi/pkg/logger"
	"github.com/openmaraude/apitaxi/pkg/outbox"
	"github.com/openmaraude/apitaxi/pkg/outbox/payloads"
	"github.com/openmaraude/apitaxi/pkg/pagination"
	"github.com/openmaraude/apitaxi/pkg/visibility"
)

const (
	// SessionReuseWindow chains a new hail into the previous search
	// session when the same rider hailed through the same moteur
	// recently enough.
	SessionReuseWindow = 5 * time.Minute

	// ReportFreshness is how recent a taxi's last position report must
	// be for the taxi to accept a hail.
	ReportFreshness = 2 * time.Minute

	// TaskStatusCheck is the task type of the watchdog armed on every
	// non-terminal transition.
	TaskStatusCheck = "hail_status_check"
)

// statusCheckTask is the payload of a TaskStatusCheck task.
type statusCheckTask struct {
	HailID   string           `json:"hail_id"`
	Expected enums.HailStatus `json:"expected_status"`
	Target   enums.HailStatus `json:"target_status"`
}

// Store is the persistence surface the service needs.
type Store interface {
	CreateTx(ctx context.Context, tx *gorm.DB, hail *models.Hail) error
	FindByID(ctx context.Context, id string) (*models.Hail, error)
	SaveTx(ctx context.Context, tx *gorm.DB, hail *models.Hail) error
	Save(ctx context.Context, hail *models.Hail) error
	LatestForSession(ctx context.Context, customerID string, moteurID uuid.UUID, since time.Time) (*models.Hail, error)
	SessionBelongsTo(ctx context.Context, sessionID uuid.UUID, customerID string, moteurID uuid.UUID) (bool, error)
	List(ctx context.Context, filters ListFilters, page pagination.Params) ([]models.Hail, int64, error)
}

// TaxiStore is the slice of the taxi registry the service needs.
type TaxiStore interface {
	FindByID(ctx context.Context, id string) (*models.Taxi, error)
	SetCurrentHail(ctx context.Context, taxiID string, hailID *string) error
	UpdateDescriptionStatus(ctx context.Context, vehicleID, addedBy uuid.UUID, status enums.VehicleStatus) error
}

// UserStore resolves accounts.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// GeoStore is the real-time surface the service needs.
type GeoStore interface {
	GetTaxi(ctx context.Context, taxiID, operator string) (*geostore.Entry, error)
	LogHail(ctx context.Context, hailID string, entry geostore.HailLogEntry) error
	HailLog(ctx context.Context, hailID string) ([]geostore.HailLogEntry, error)
	LogTaxiStatus(ctx context.Context, taxiID, status string, now time.Time) error
}

// Availability mirrors vehicle statuses into the not_available set.
type Availability interface {
	SetStatus(ctx context.Context, taxiID, operator string, status enums.VehicleStatus) error
}

// Customers manages rider records and bans.
type Customers interface {
	EnsureCanHail(ctx context.Context, id string, moteurID uuid.UUID) (*models.Customer, error)
	Get(ctx context.Context, id string, moteurID uuid.UUID) (*models.Customer, error)
	Ban(ctx context.Context, customer *models.Customer) error
	Unban(ctx context.Context, customer *models.Customer) error
}

// Scheduler arms delayed watchdog tasks.
type Scheduler interface {
	Enqueue(ctx context.Context, taskType string, payload any, runAt time.Time) error
}

// Notifier triggers the async operator delivery for a freshly created
// hail.
type Notifier interface {
	RequestDelivery(ctx context.Context, hailID string) error
}

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Outbox queues domain events.
type Outbox interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams configure the hails service.
type ServiceParams struct {
	Logger       *logger.Logger
	Repo         Store
	Taxis        TaxiStore
	Users        UserStore
	Geo          GeoStore
	Availability Availability
	Customers    Customers
	Scheduler    Scheduler
	Notifier     Notifier
	Tx           TxRunner
	Outbox       Outbox
	// HTTPClient performs the delivery attempts to operator endpoints.
	// Defaults to a client capped at DeliveryTimeout.
	HTTPClient *http.Client
	Now        func() time.Time
}

// Service drives the hail lifecycle from creation to its terminal
// status.
type Service struct {
	logg         *logger.Logger
	repo         Store
	taxis        TaxiStore
	users        UserStore
	geo          GeoStore
	availability Availability
	customers    Customers
	scheduler    Scheduler
	notifier     Notifier
	tx           TxRunner
	outbox       Outbox
	http         *http.Client
	now          func() time.Time
}

// NewService builds a hails service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repo required")
	}
	if params.Taxis == nil {
		return nil, fmt.Errorf("taxi store required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user store required")
	}
	if params.Geo == nil {
		return nil, fmt.Errorf("geo store required")
	}
	if params.Availability == nil {
		return nil, fmt.Errorf("availability required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customers required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DeliveryTimeout}
	}
	return &Service{
		logg:         params.Logger,
		repo:         params.Repo,
		taxis:        params.Taxis,
		users:        params.Users,
		geo:          params.Geo,
		availability: params.Availability,
		customers:    params.Customers,
		scheduler:    params.Scheduler,
		notifier:     params.Notifier,
		tx:           params.Tx,
		outbox:       params.Outbox,
		http:         httpClient,
		now:          now,
	}, nil
}

// CreateInput is a hail request from a moteur on behalf of a rider.
type CreateInput struct {
	TaxiID              string
	OperateurEmail      string
	CustomerID          string
	CustomerLat         float64
	CustomerLon         float64
	CustomerAddress     string
	CustomerPhoneNumber string
	SessionID           uuid.UUID
}

// Create registers a hail against a taxi and triggers its delivery to
// the operator. The taxi must have reported recently through the named
// operator and be broadcasting free.
func (s *Service) Create(ctx context.Context, moteur *models.User, input CreateInput) (*models.Hail, error) {
	now := s.now()

	operator, err := s.users.FindByEmail(ctx, input.OperateurEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "operator not found")
		}
		return nil, fmt.Errorf("find operator: %w", err)
	}
	if !operator.HasRole(string(enums.RoleOperateur)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account is not an operator")
	}

	customer, err := s.customers.EnsureCanHail(ctx, input.CustomerID, moteur.ID)
	if err != nil {
		return nil, err
	}

	taxi, err := s.taxis.FindByID(ctx, input.TaxiID)
	if err != nil {
		return nil, fmt.Errorf("find taxi: %w", err)
	}
	if taxi == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "taxi not found")
	}
	if taxi.AddedBy != operator.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "taxi is not operated by this operator")
	}

	entry, err := s.geo.GetTaxi(ctx, taxi.ID, operator.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read taxi position")
	}
	if entry == nil || entry.Timestamp < now.Add(-ReportFreshness).Unix() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "taxi has not reported its position recently")
	}
	if entry.Status != string(enums.VehicleStatusFree) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "taxi is not free")
	}

	sessionID, err := s.resolveSession(ctx, input.SessionID, customer.ID, moteur.ID, now)
	if err != nil {
		return nil, err
	}

	hail := &models.Hail{
		ID:                  models.NewShortID(),
		CreationDatetime:    now,
		TaxiID:              taxi.ID,
		Status:              enums.HailStatusReceived,
		LastStatusChange:    now,
		CustomerID:          customer.ID,
		AddedBy:             moteur.ID,
		OperateurID:         operator.ID,
		SessionID:           sessionID,
		CustomerLat:         input.CustomerLat,
		CustomerLon:         input.CustomerLon,
		CustomerAddress:     input.CustomerAddress,
		CustomerPhoneNumber: input.CustomerPhoneNumber,
		InitialTaxiLat:      &entry.Lat,
		InitialTaxiLon:      &entry.Lon,
		TransitionLog: models.TransitionLog{{
			ToStatus:  enums.HailStatusReceived,
			Timestamp: now,
			User:      moteur.Email,
		}},
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(ctx, tx, hail); err != nil {
			return fmt.Errorf("create hail: %w", err)
		}
		if s.outbox == nil {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventHailCreated,
			AggregateType: enums.AggregateHail,
			AggregateID:   hail.ID,
			Actor:         &outbox.ActorRef{UserID: moteur.ID, Role: string(enums.RoleMoteur)},
			Data: payloads.HailCreatedEvent{
				HailID:      hail.ID,
				TaxiID:      taxi.ID,
				MoteurID:    moteur.ID,
				OperateurID: operator.ID,
				CustomerLat: hail.CustomerLat,
				CustomerLon: hail.CustomerLon,
				CreatedAt:   now,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithHailID(ctx, hail.ID)
	if err := s.taxis.SetCurrentHail(ctx, taxi.ID, &hail.ID); err != nil {
		s.logg.Error(ctx, "bind hail to taxi", err)
	}
	s.applyVehicleStatus(ctx, hail, enums.VehicleStatusAnswering)

	if err := s.geo.LogHail(ctx, hail.ID, geostore.HailLogEntry{
		Method:            "POST",
		RequestUser:       moteur.Email,
		HailInitialStatus: "",
		HailFinalStatus:   string(hail.Status),
		At:                now,
	}); err != nil {
		s.logg.Error(ctx, "append hail audit entry", err)
	}

	if s.notifier != nil {
		if err := s.notifier.RequestDelivery(ctx, hail.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request hail delivery")
		}
	}

	s.logg.Info(ctx, "hail created")
	return hail, nil
}

func (s *Service) resolveSession(ctx context.Context, requested uuid.UUID, customerID string, moteurID uuid.UUID, now time.Time) (uuid.UUID, error) {
	if requested != uuid.Nil {
		ok, err := s.repo.SessionBelongsTo(ctx, requested, customerID, moteurID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("check session: %w", err)
		}
		if !ok {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "session_id does not belong to this customer")
		}
		return requested, nil
	}
	latest, err := s.repo.LatestForSession(ctx, customerID, moteurID, now.Add(-SessionReuseWindow))
	if err != nil {
		return uuid.Nil, fmt.Errorf("find previous session: %w", err)
	}
	if latest != nil {
		return latest.SessionID, nil
	}
	return uuid.New(), nil
}

// View is the role-filtered read model of a hail.
type View struct {
	ID                  string           `json:"id"`
	Status              enums.HailStatus `json:"status"`
	TaxiID              string           `json:"taxi_id"`
	Operateur           string           `json:"operateur"`
	CreationDatetime    time.Time        `json:"creation_datetime"`
	LastStatusChange    time.Time        `json:"last_status_change"`
	SessionID           uuid.UUID        `json:"session_id"`
	CustomerID          string           `json:"customer_id"`
	CustomerLat         float64          `json:"customer_lat"`
	CustomerLon         float64          `json:"customer_lon"`
	CustomerAddress     string           `json:"customer_address"`
	CustomerPhoneNumber string           `json:"customer_phone_number,omitempty"`
	TaxiPhoneNumber     *string          `json:"taxi_phone_number,omitempty"`

	TaxiLat         *float64 `json:"taxi_lat,omitempty"`
	TaxiLon         *float64 `json:"taxi_lon,omitempty"`
	CrowflyDistance *float64 `json:"crowfly_distance,omitempty"`

	IncidentCustomerReason  *enums.IncidentCustomerReason  `json:"incident_customer_reason,omitempty"`
	IncidentTaxiReason      *enums.IncidentTaxiReason      `json:"incident_taxi_reason,omitempty"`
	ReportingCustomer       *bool                          `json:"reporting_customer,omitempty"`
	ReportingCustomerReason *enums.ReportingCustomerReason `json:"reporting_customer_reason,omitempty"`
	RatingRide              *int                           `json:"rating_ride,omitempty"`
	RatingRideReason        *enums.RatingRideReason        `json:"rating_ride_reason,omitempty"`
}

// Get returns a hail as the requesting account may see it. The customer
// phone number and the live taxi position are only exposed during the
// lifecycle windows where the counterpart needs them.
func (s *Service) Get(ctx context.Context, user *models.User, id string) (*View, error) {
	hail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find hail: %w", err)
	}
	if err := visibility.EnsureHailVisible(user, hail, s.now()); err != nil {
		return nil, err
	}
	view := s.buildView(hail)
	view.Operateur = s.operateurEmail(ctx, hail)
	s.attachPosition(ctx, hail, view)
	return view, nil
}

func (s *Service) buildView(hail *models.Hail) *View {
	view := &View{
		ID:                      hail.ID,
		Status:                  hail.Status,
		TaxiID:                  hail.TaxiID,
		CreationDatetime:        hail.CreationDatetime,
		LastStatusChange:        hail.LastStatusChange,
		SessionID:               hail.SessionID,
		CustomerID:              hail.CustomerID,
		CustomerLat:             hail.CustomerLat,
		CustomerLon:             hail.CustomerLon,
		CustomerAddress:         hail.CustomerAddress,
		TaxiPhoneNumber:         hail.TaxiPhoneNumber,
		IncidentCustomerReason:  hail.IncidentCustomerReason,
		IncidentTaxiReason:      hail.IncidentTaxiReason,
		ReportingCustomer:       hail.ReportingCustomer,
		ReportingCustomerReason: hail.ReportingCustomerReason,
		RatingRide:              hail.RatingRide,
		RatingRideReason:        hail.RatingRideReason,
	}
	if visibility.CustomerPhoneNumberVisible(hail.Status) {
		view.CustomerPhoneNumber = hail.CustomerPhoneNumber
	}
	return view
}

// operateurEmail resolves the email of the operator account a hail was
// routed to. Lookup failures degrade to an empty field.
func (s *Service) operateurEmail(ctx context.Context, hail *models.Hail) string {
	operator, err := s.users.FindByID(ctx, hail.OperateurID)
	if err != nil {
		s.logg.Error(s.logg.WithHailID(ctx, hail.ID), "resolve hail operator", err)
		return ""
	}
	if operator == nil {
		return ""
	}
	return operator.Email
}

// attachPosition adds the taxi's live position and the crowfly distance
// to the customer while the position window is open. Lookup failures
// degrade to a view without a position. The view's operateur email must
// already be resolved.
func (s *Service) attachPosition(ctx context.Context, hail *models.Hail, view *View) {
	if !visibility.TaxiPositionVisible(hail.Status) {
		return
	}
	if view.Operateur == "" {
		return
	}
	entry, err := s.geo.GetTaxi(ctx, hail.TaxiID, view.Operateur)
	if err != nil {
		s.logg.Error(s.logg.WithHailID(ctx, hail.ID), "read taxi position", err)
		return
	}
	if entry == nil {
		return
	}
	distance := orbgeo.Distance(
		orb.Point{entry.Lon, entry.Lat},
		orb.Point{hail.CustomerLon, hail.CustomerLat},
	)
	view.TaxiLat = &entry.Lat
	view.TaxiLon = &entry.Lon
	view.CrowflyDistance = &distance
}

// ListQuery narrows a hail listing. ID, TaxiID, CustomerID, Moteur and
// Operateur match case-insensitive prefixes.
type ListQuery struct {
	ID         string
	Status     enums.HailStatus
	TaxiID     string
	CustomerID string
	// Emails of the moteur and operateur accounts.
	Moteur    string
	Operateur string
	// Calendar day the hail was created on.
	Date time.Time
	Page pagination.Params
}

// List returns one page of hails the account may see, most recent
// first. Non-admins only see their own hails within the visibility
// horizon.
func (s *Service) List(ctx context.Context, user *models.User, query ListQuery) ([]View, pagination.Meta, error) {
	filters := ListFilters{
		ID:          query.ID,
		Status:      query.Status,
		TaxiID:      query.TaxiID,
		CustomerID:  query.CustomerID,
		MoteurEmail: query.Moteur,
		Date:        query.Date,
	}
	if user.HasRole(string(enums.RoleAdmin)) {
		// Filtering by operateur is reserved to admins; other accounts
		// are already scoped to their own hails.
		filters.OperateurEmail = query.Operateur
	} else {
		filters.AccountIDs = []uuid.UUID{user.ID}
		filters.Since = s.now().Add(-visibility.Horizon)
	}
	page := pagination.Normalize(query.Page)

	hails, total, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("list hails: %w", err)
	}
	views := make([]View, 0, len(hails))
	emails := make(map[uuid.UUID]string)
	for i := range hails {
		view := s.buildView(&hails[i])
		email, seen := emails[hails[i].OperateurID]
		if !seen {
			email = s.operateurEmail(ctx, &hails[i])
			emails[hails[i].OperateurID] = email
		}
		view.Operateur = email
		views = append(views, *view)
	}
	return views, pagination.NewMeta(page, total), nil
}

// Log returns the audit trail of a hail, oldest first. The trail holds
// the raw exchanges with the operator endpoint, so it stays reserved to
// admins at the routing layer.
func (s *Service) Log(ctx context.Context, user *models.User, id string) ([]geostore.HailLogEntry, error) {
	hail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find hail: %w", err)
	}
	if err := visibility.EnsureHailVisible(user, hail, s.now()); err != nil {
		return nil, err
	}
	entries, err := s.geo.HailLog(ctx, hail.ID)
	if err != nil {
		return nil, fmt.Errorf("read hail audit trail: %w", err)
	}
	return entries, nil
}

// UpdateInput carries the writable hail fields of a PUT. Nil fields are
// untouched; write access is scoped by the caller's role.
type UpdateInput struct {
	Status *enums.HailStatus

	// Operator side.
	IncidentTaxiReason      *enums.IncidentTaxiReason
	ReportingCustomer       *bool
	ReportingCustomerReason *enums.ReportingCustomerReason
	TaxiPhoneNumber         *string

	// Moteur side.
	CustomerLat            *float64
	CustomerLon            *float64
	CustomerAddress        *string
	RatingRide             *int
	RatingRideReason       *enums.RatingRideReason
	IncidentCustomerReason *enums.IncidentCustomerReason
}

// Update applies a role-scoped PUT to a hail: field writes, an optional
// status transition, and the customer reporting toggle.
func (s *Service) Update(ctx context.Context, user *models.User, id string, input UpdateInput) (*View, error) {
	hail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find hail: %w", err)
	}
	if err := visibility.EnsureHailVisible(user, hail, s.now()); err != nil {
		return nil, err
	}
	actor := s.actorFor(user, hail)
	initialStatus := hail.Status

	if err := s.applyFieldWrites(hail, actor, input); err != nil {
		return nil, err
	}

	if input.ReportingCustomer != nil {
		if err := s.applyReporting(ctx, hail, user, *input.ReportingCustomer); err != nil {
			return nil, err
		}
	}

	if input.Status != nil && *input.Status != hail.Status {
		if *input.Status == enums.HailStatusAcceptedByTaxi && hail.TaxiPhoneNumber == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "taxi_phone_number is required to accept a hail")
		}
		reason := transitionReason(*input.Status, input)
		if err := s.transition(ctx, hail, *input.Status, actor, user.Email, reason); err != nil {
			return nil, err
		}
	} else {
		if err := s.persist(ctx, hail); err != nil {
			return nil, err
		}
	}

	if err := s.geo.LogHail(ctx, hail.ID, geostore.HailLogEntry{
		Method:            "PUT",
		RequestUser:       user.Email,
		HailInitialStatus: string(initialStatus),
		HailFinalStatus:   string(hail.Status),
		At:                s.now(),
	}); err != nil {
		s.logg.Error(s.logg.WithHailID(ctx, hail.ID), "append hail audit entry", err)
	}

	view := s.buildView(hail)
	view.Operateur = s.operateurEmail(ctx, hail)
	s.attachPosition(ctx, hail, view)
	return view, nil
}

func (s *Service) actorFor(user *models.User, hail *models.Hail) Actor {
	switch {
	case user.HasRole(string(enums.RoleAdmin)):
		return ActorAdmin
	case user.ID == hail.OperateurID:
		return ActorOperateur
	default:
		return ActorMoteur
	}
}

func (s *Service) applyFieldWrites(hail *models.Hail, actor Actor, input UpdateInput) error {
	operatorSide := input.IncidentTaxiReason != nil ||
		input.ReportingCustomer != nil ||
		input.ReportingCustomerReason != nil ||
		input.TaxiPhoneNumber != nil
	moteurSide := input.CustomerLat != nil ||
		input.CustomerLon != nil ||
		input.CustomerAddress != nil ||
		input.RatingRide != nil ||
		input.RatingRideReason != nil ||
		input.IncidentCustomerReason != nil

	if operatorSide && actor != ActorOperateur && actor != ActorAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "field reserved to the operator")
	}
	if moteurSide && actor != ActorMoteur && actor != ActorAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "field reserved to the moteur")
	}

	if input.IncidentTaxiReason != nil {
		if !input.IncidentTaxiReason.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid incident_taxi_reason")
		}
		hail.IncidentTaxiReason = input.IncidentTaxiReason
	}
	if input.ReportingCustomerReason != nil {
		if !input.ReportingCustomerReason.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid reporting_customer_reason")
		}
		hail.ReportingCustomerReason = input.ReportingCustomerReason
	}
	if input.TaxiPhoneNumber != nil {
		hail.TaxiPhoneNumber = input.TaxiPhoneNumber
	}
	if input.CustomerLat != nil {
		if *input.CustomerLat < -90 || *input.CustomerLat > 90 {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid customer_lat")
		}
		hail.CustomerLat = *input.CustomerLat
	}
	if input.CustomerLon != nil {
		if *input.CustomerLon < -180 || *input.CustomerLon > 180 {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid customer_lon")
		}
		hail.CustomerLon = *input.CustomerLon
	}
	if input.CustomerAddress != nil {
		hail.CustomerAddress = *input.CustomerAddress
	}
	if input.RatingRide != nil {
		if *input.RatingRide < 1 || *input.RatingRide > 5 {
			return pkgerrors.New(pkgerrors.CodeValidation, "rating_ride must be between 1 and 5")
		}
		hail.RatingRide = input.RatingRide
	}
	if input.RatingRideReason != nil {
		if !input.RatingRideReason.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid rating_ride_reason")
		}
		hail.RatingRideReason = input.RatingRideReason
	}
	if input.IncidentCustomerReason != nil {
		if !input.IncidentCustomerReason.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid incident_customer_reason")
		}
		hail.IncidentCustomerReason = input.IncidentCustomerReason
	}
	return nil
}

// applyReporting toggles the rider's ban to match the reporting flag.
func (s *Service) applyReporting(ctx context.Context, hail *models.Hail, user *models.User, reported bool) error {
	customer, err := s.customers.Get(ctx, hail.CustomerID, hail.AddedBy)
	if err != nil {
		return err
	}
	hail.ReportingCustomer = &reported

	if !reported {
		return s.customers.Unban(ctx, customer)
	}
	if err := s.customers.Ban(ctx, customer); err != nil {
		return err
	}
	if s.outbox != nil && customer.BanBegin != nil && customer.BanEnd != nil {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCustomerBanned,
				AggregateType: enums.AggregateHail,
				AggregateID:   hail.ID,
				Actor:         &outbox.ActorRef{UserID: user.ID, Role: string(enums.RoleOperateur)},
				Data: payloads.CustomerBannedEvent{
					CustomerID: customer.ID,
					MoteurID:   customer.MoteurID,
					BanBegin:   *customer.BanBegin,
					BanEnd:     *customer.BanEnd,
				},
				Version: 1,
			})
		})
		if err != nil {
			s.logg.Error(s.logg.WithHailID(ctx, hail.ID), "emit customer banned event", err)
		}
	}
	return nil
}

// transitionReason extracts the incident motive accompanying a status
// change, if any.
func transitionReason(to enums.HailStatus, input UpdateInput) string {
	switch to {
	case enums.HailStatusIncidentTaxi:
		if input.IncidentTaxiReason != nil {
			return string(*input.IncidentTaxiReason)
		}
	case enums.HailStatusIncidentCustomer:
		if input.IncidentCustomerReason != nil {
			return string(*input.IncidentCustomerReason)
		}
	}
	return ""
}

func (s *Service) persist(ctx context.Context, hail *models.Hail) error {
	if err := s.repo.Save(ctx, hail); err != nil {
		return fmt.Errorf("save hail: %w", err)
	}
	return nil
}

// transition moves the hail along one edge of its lifecycle, persists
// the change with its outbox event, then applies the taxi side effects
// and arms the next watchdog.
func (s *Service) transition(ctx context.Context, hail *models.Hail, to enums.HailStatus, actor Actor, actorName, reason string) error {
	return s.transitionFull(ctx, hail, to, actor, actorName, reason, true)
}

func (s *Service) transitionFull(ctx context.Context, hail *models.Hail, to enums.HailStatus, actor Actor, actorName, reason string, mirrorVehicle bool) error {
	if err := CheckTransition(hail.Status, to, actor); err != nil {
		return err
	}
	from := hail.Status
	now := s.now()
	hail.Status = to
	hail.LastStatusChange = now
	hail.TransitionLog = append(hail.TransitionLog, models.TransitionLogEntry{
		FromStatus: from,
		ToStatus:   to,
		Timestamp:  now,
		User:       actorName,
		Reason:     reason,
	})

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.SaveTx(ctx, tx, hail); err != nil {
			return fmt.Errorf("save hail: %w", err)
		}
		if s.outbox == nil {
			return nil
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventHailStatusChanged,
			AggregateType: enums.AggregateHail,
			AggregateID:   hail.ID,
			Data: payloads.HailStatusChangedEvent{
				HailID:     hail.ID,
				TaxiID:     hail.TaxiID,
				FromStatus: from,
				ToStatus:   to,
				Reason:     reason,
				ChangedAt:  now,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		if to == enums.HailStatusFinished {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventHailFinished,
				AggregateType: enums.AggregateHail,
				AggregateID:   hail.ID,
				Data: payloads.HailFinishedEvent{
					HailID:     hail.ID,
					TaxiID:     hail.TaxiID,
					Status:     to,
					FinishedAt: now,
				},
				Version: 1,
			})
		}
		return nil
	})
	if err != nil {
		hail.Status = from
		hail.TransitionLog = hail.TransitionLog[:len(hail.TransitionLog)-1]
		return err
	}

	ctx = s.logg.WithHailID(ctx, hail.ID)
	if vs, ok := VehicleStatusAfter(to); ok && mirrorVehicle {
		s.applyVehicleStatus(ctx, hail, vs)
	}
	if to.IsTerminal() {
		if err := s.taxis.SetCurrentHail(ctx, hail.TaxiID, nil); err != nil {
			s.logg.Error(ctx, "release taxi from hail", err)
		}
	} else {
		s.armWatchdog(ctx, hail, now)
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"from_status": from,
		"to_status":   to,
	}), "hail transitioned")
	return nil
}

// applyVehicleStatus mirrors a hail side effect onto the taxi's
// broadcast status. Failures are logged: the hail transition already
// happened and must not roll back on a registry or Redis hiccup.
func (s *Service) applyVehicleStatus(ctx context.Context, hail *models.Hail, status enums.VehicleStatus) {
	taxi, err := s.taxis.FindByID(ctx, hail.TaxiID)
	if err != nil || taxi == nil {
		s.logg.Error(ctx, "load taxi for status side effect", err)
		return
	}
	operator, err := s.users.FindByID(ctx, hail.OperateurID)
	if err != nil {
		s.logg.Error(ctx, "resolve hail operator", err)
		return
	}
	if err := s.taxis.UpdateDescriptionStatus(ctx, taxi.VehicleID, taxi.AddedBy, status); err != nil {
		s.logg.Error(ctx, "update vehicle status", err)
	}
	if err := s.availability.SetStatus(ctx, taxi.ID, operator.Email, status); err != nil {
		s.logg.Error(ctx, "mirror vehicle availability", err)
	}
	if err := s.geo.LogTaxiStatus(ctx, taxi.ID, string(status), s.now()); err != nil {
		s.logg.Error(ctx, "log taxi status", err)
	}
}

func (s *Service) armWatchdog(ctx context.Context, hail *models.Hail, now time.Time) {
	if s.scheduler == nil {
		return
	}
	after, target, ok := TimeoutFor(hail.Status)
	if !ok {
		return
	}
	task := statusCheckTask{
		HailID:   hail.ID,
		Expected: hail.Status,
		Target:   target,
	}
	if err := s.scheduler.Enqueue(ctx, TaskStatusCheck, task, now.Add(time.Duration(after)*time.Second)); err != nil {
		s.logg.Error(ctx, "arm hail watchdog", err)
	}
}

// HandleStatusCheck runs one armed watchdog task. When the hail is
// still stuck in the status the watchdog was armed on, it is forced to
// the timeout status; otherwise the task is a no-op.
func (s *Service) HandleStatusCheck(ctx context.Context, payload json.RawMessage) error {
	var task statusCheckTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("decode status check: %w", err)
	}
	hail, err := s.repo.FindByID(ctx, task.HailID)
	if err != nil {
		return fmt.Errorf("find hail: %w", err)
	}
	if hail == nil || hail.Status != task.Expected {
		return nil
	}
	return s.transition(ctx, hail, task.Target, ActorSystem, "system", "timeout")
}

// ApplyTaxiStatus propagates an operator's taxi status update onto the
// taxi's current hail: occupied during accepted_by_customer means the
// customer boarded, free or off during customer_on_board means the ride
// ended.
func (s *Service) ApplyTaxiStatus(ctx context.Context, hailID string, operator *models.User, status enums.VehicleStatus) error {
	hail, err := s.repo.FindByID(ctx, hailID)
	if err != nil {
		return fmt.Errorf("find hail: %w", err)
	}
	if hail == nil || hail.Status.IsTerminal() {
		return nil
	}

	var to enums.HailStatus
	switch {
	case status == enums.VehicleStatusOccupied && hail.Status == enums.HailStatusAcceptedByCustomer:
		to = enums.HailStatusCustomerOnBoard
	case (status == enums.VehicleStatusFree || status == enums.VehicleStatusOff) &&
		hail.Status == enums.HailStatusCustomerOnBoard:
		to = enums.HailStatusFinished
	default:
		return nil
	}
	// The vehicle status drove the transition, so it is not mirrored
	// back onto the vehicle.
	return s.transitionFull(ctx, hail, to, ActorOperateur, operator.Email, "", false)
}
