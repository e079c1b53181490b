package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/enums"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
	"github.com/openmaraude/apitaxi/pkg/geostore"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

const (
	// SearchRadiusMeters is the hard visibility cap: no taxi further
	// away is ever returned, whatever its driver configured.
	SearchRadiusMeters = 500.0
	// MaxCount bounds how many taxis one search can request.
	MaxCount = 50
	// DefaultCount applies when the client does not ask for a limit.
	DefaultCount = 10
)

// GeoIndex is the real-time surface dispatch reads from.
type GeoIndex interface {
	LocationsByOperator(ctx context.Context, lon, lat, radiusMeters float64) (map[string][]geostore.Location, error)
	GetTaxi(ctx context.Context, taxiID, operator string) (*geostore.Entry, error)
	NotAvailableMembers(ctx context.Context, members []string) (map[string]bool, error)
}

// Registry loads candidate rows from Postgres.
type Registry interface {
	FindTaxisByIDs(ctx context.Context, ids []string) ([]models.Taxi, error)
	FindOperatorsByEmail(ctx context.Context, emails []string) (map[string]models.User, error)
}

// Zones answers pickup authorization questions.
type Zones interface {
	AllowedInsee(lon, lat float64) map[string]struct{}
}

// ServiceParams configure the dispatch service.
type ServiceParams struct {
	Logger          *logger.Logger
	Geo             GeoIndex
	Registry        Registry
	Zones           Zones
	FreshnessWindow time.Duration
	Now             func() time.Time
}

// Service answers "which free taxis can pick up here right now".
type Service struct {
	logg      *logger.Logger
	geo       GeoIndex
	registry  Registry
	zones     Zones
	freshness time.Duration
	now       func() time.Time
}

// NewService builds a dispatch service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Geo == nil {
		return nil, fmt.Errorf("geo index required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	if params.Zones == nil {
		return nil, fmt.Errorf("zones required")
	}
	freshness := params.FreshnessWindow
	if freshness <= 0 {
		freshness = 2 * time.Minute
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:      params.Logger,
		geo:       params.Geo,
		registry:  params.Registry,
		zones:     params.Zones,
		freshness: freshness,
		now:       now,
	}, nil
}

// SearchQuery holds the dispatch search inputs.
type SearchQuery struct {
	Lon              float64
	Lat              float64
	Count            int
	FavoriteOperator string
}

// Result is one dispatchable taxi.
type Result struct {
	TaxiID           string   `json:"id"`
	Operator         string   `json:"operator"`
	Lon              float64  `json:"lon"`
	Lat              float64  `json:"lat"`
	CrowflyDistance  float64  `json:"crowfly_distance"`
	LicencePlate     string   `json:"licence_plate"`
	NbSeats          *int     `json:"nb_seats,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	InseeCode        string   `json:"insee"`
	LastUpdate       int64    `json:"last_update"`
}

// report is one usable operator report for a candidate taxi.
type report struct {
	location  geostore.Location
	entry     geostore.Entry
	operator  models.User
	maxRadius float64
}

// Search returns the dispatchable taxis around a point, nearest first.
//
// A taxi qualifies when: some operator reported it within the freshness
// window, its description for that operator is `free`, the pair is not
// flagged not_available, its ADS allows pickup at the point, and the
// distance fits both the hard cap and the driver radius. A taxi visible
// through several operators yields a single result: the favorite
// operator when requested and fresh, otherwise the most recent report.
func (s *Service) Search(ctx context.Context, query SearchQuery) ([]Result, error) {
	count := query.Count
	if count <= 0 {
		count = DefaultCount
	}
	if count > MaxCount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("count cannot exceed %d", MaxCount))
	}

	allowed := s.zones.AllowedInsee(query.Lon, query.Lat)
	if len(allowed) == 0 {
		return []Result{}, nil
	}

	hits, err := s.geo.LocationsByOperator(ctx, query.Lon, query.Lat, SearchRadiusMeters)
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}
	if len(hits) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, 0, len(hits))
	emailSet := make(map[string]struct{})
	members := make([]string, 0, len(hits))
	for taxiID, locations := range hits {
		ids = append(ids, taxiID)
		for _, loc := range locations {
			emailSet[loc.Operator] = struct{}{}
			members = append(members, geostore.OperatorMember(taxiID, loc.Operator))
		}
	}

	taxis, err := s.registry.FindTaxisByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load taxis: %w", err)
	}
	emails := make([]string, 0, len(emailSet))
	for email := range emailSet {
		emails = append(emails, email)
	}
	operators, err := s.registry.FindOperatorsByEmail(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("load operators: %w", err)
	}
	unavailable, err := s.geo.NotAvailableMembers(ctx, members)
	if err != nil {
		return nil, fmt.Errorf("read not_available: %w", err)
	}

	minTimestamp := s.now().Add(-s.freshness).Unix()

	var results []Result
	for _, taxi := range taxis {
		if taxi.ADS == nil || taxi.Vehicle == nil {
			continue
		}
		if _, ok := allowed[taxi.ADS.InseeCode]; !ok {
			continue
		}

		best := s.pickReport(ctx, taxi, hits[taxi.ID], operators, unavailable, minTimestamp, query.FavoriteOperator)
		if best == nil {
			continue
		}
		result := Result{
			TaxiID:          taxi.ID,
			Operator:        best.operator.Email,
			Lon:             best.location.Lon,
			Lat:             best.location.Lat,
			CrowflyDistance: best.location.Distance,
			LicencePlate:    taxi.Vehicle.LicencePlate,
			Rating:          taxi.Rating,
			InseeCode:       taxi.ADS.InseeCode,
			LastUpdate:      best.entry.Timestamp,
		}
		if desc := descriptionFor(taxi, best.operator.ID); desc != nil {
			result.NbSeats = desc.NbSeats
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CrowflyDistance < results[j].CrowflyDistance
	})
	if len(results) > count {
		results = results[:count]
	}
	if results == nil {
		results = []Result{}
	}
	return results, nil
}

// pickReport selects the operator report to dispatch through, or nil
// when no report is usable.
func (s *Service) pickReport(
	ctx context.Context,
	taxi models.Taxi,
	locations []geostore.Location,
	operators map[string]models.User,
	unavailable map[string]bool,
	minTimestamp int64,
	favoriteOperator string,
) *report {
	var usable []report
	for _, loc := range locations {
		if loc.Distance > SearchRadiusMeters {
			continue
		}
		operator, ok := operators[loc.Operator]
		if !ok {
			continue
		}
		if unavailable[geostore.OperatorMember(taxi.ID, loc.Operator)] {
			continue
		}
		desc := descriptionFor(taxi, operator.ID)
		if desc == nil || desc.Status != enums.VehicleStatusFree {
			continue
		}
		if desc.Radius != nil && loc.Distance > float64(*desc.Radius) {
			continue
		}
		entry, err := s.geo.GetTaxi(ctx, taxi.ID, loc.Operator)
		if err != nil {
			s.logg.Error(s.logg.WithTaxiID(ctx, taxi.ID), "read taxi entry", err)
			continue
		}
		if entry == nil || entry.Timestamp < minTimestamp {
			continue
		}
		usable = append(usable, report{location: loc, entry: *entry, operator: operator})
	}
	if len(usable) == 0 {
		return nil
	}

	if favoriteOperator != "" {
		for i := range usable {
			if usable[i].operator.Email == favoriteOperator {
				return &usable[i]
			}
		}
	}

	best := &usable[0]
	for i := 1; i < len(usable); i++ {
		if usable[i].entry.Timestamp > best.entry.Timestamp {
			best = &usable[i]
		}
	}
	return best
}

func descriptionFor(taxi models.Taxi, operatorID uuid.UUID) *models.VehicleDescription {
	if taxi.Vehicle == nil {
		return nil
	}
	for i := range taxi.Vehicle.Descriptions {
		if taxi.Vehicle.Descriptions[i].AddedBy == operatorID {
			return &taxi.Vehicle.Descriptions[i]
		}
	}
	return nil
}
