package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/enums"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
	"github.com/openmaraude/apitaxi/pkg/geostore"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

type fakeGeo struct {
	hits        map[string][]geostore.Location
	entries     map[string]*geostore.Entry
	unavailable map[string]bool
}

func (f *fakeGeo) LocationsByOperator(context.Context, float64, float64, float64) (map[string][]geostore.Location, error) {
	return f.hits, nil
}

func (f *fakeGeo) GetTaxi(_ context.Context, taxiID, operator string) (*geostore.Entry, error) {
	return f.entries[geostore.OperatorMember(taxiID, operator)], nil
}

func (f *fakeGeo) NotAvailableMembers(_ context.Context, members []string) (map[string]bool, error) {
	flagged := make(map[string]bool, len(members))
	for _, member := range members {
		flagged[member] = f.unavailable[member]
	}
	return flagged, nil
}

type fakeRegistry struct {
	taxis     []models.Taxi
	operators map[string]models.User
}

func (f *fakeRegistry) FindTaxisByIDs(context.Context, []string) ([]models.Taxi, error) {
	return f.taxis, nil
}

func (f *fakeRegistry) FindOperatorsByEmail(context.Context, []string) (map[string]models.User, error) {
	return f.operators, nil
}

type fakeZones struct {
	allowed map[string]struct{}
}

func (f *fakeZones) AllowedInsee(float64, float64) map[string]struct{} {
	return f.allowed
}

type fixture struct {
	geo      *fakeGeo
	registry *fakeRegistry
	zones    *fakeZones
	now      time.Time

	operatorID uuid.UUID
	operator   string
}

func newFixture() *fixture {
	operatorID := uuid.New()
	operator := "op@example.com"
	now := time.Unix(1700000000, 0)
	vehicleID := uuid.New()

	taxi := models.Taxi{
		ID:        "abc1234",
		VehicleID: vehicleID,
		AddedBy:   operatorID,
		ADS:       &models.ADS{InseeCode: "75056"},
		Vehicle: &models.Vehicle{
			ID:           vehicleID,
			LicencePlate: "AB-123-CD",
			Descriptions: []models.VehicleDescription{
				{VehicleID: vehicleID, AddedBy: operatorID, Status: enums.VehicleStatusFree},
			},
		},
	}

	return &fixture{
		geo: &fakeGeo{
			hits: map[string][]geostore.Location{
				"abc1234": {{TaxiID: "abc1234", Operator: operator, Lon: 2.35, Lat: 48.85, Distance: 120}},
			},
			entries: map[string]*geostore.Entry{
				"abc1234:" + operator: {Timestamp: now.Unix() - 30, Lat: 48.85, Lon: 2.35, Status: "free", Device: "phone", Version: 2},
			},
			unavailable: map[string]bool{},
		},
		registry: &fakeRegistry{
			taxis:     []models.Taxi{taxi},
			operators: map[string]models.User{operator: {ID: operatorID, Email: operator}},
		},
		zones:      &fakeZones{allowed: map[string]struct{}{"75056": {}}},
		now:        now,
		operatorID: operatorID,
		operator:   operator,
	}
}

func (f *fixture) service(t *testing.T) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel})
	svc, err := NewService(ServiceParams{
		Logger:   logg,
		Geo:      f.geo,
		Registry: f.registry,
		Zones:    f.zones,
		Now:      func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestSearchReturnsDispatchableTaxi(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	results, err := svc.Search(context.Background(), SearchQuery{Lon: 2.35, Lat: 48.85})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one taxi, got %d", len(results))
	}
	got := results[0]
	if got.TaxiID != "abc1234" || got.Operator != f.operator {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.CrowflyDistance != 120 {
		t.Fatalf("expected distance 120, got %f", got.CrowflyDistance)
	}
	if got.LicencePlate != "AB-123-CD" || got.InseeCode != "75056" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestSearchFreshnessBoundary(t *testing.T) {
	f := newFixture()
	member := "abc1234:" + f.operator

	f.geo.entries[member].Timestamp = f.now.Unix() - 119
	results, err := f.service(t).Search(context.Background(), SearchQuery{Lon: 2.35, Lat: 48.85})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatal("a report 119s old is still fresh")
	}

	f.geo.entries[member].Timestamp = f.now.Unix() - 121
	results, err = f.service(t).Search(context.Background(), SearchQuery{Lon: 2.35, Lat: 48.85})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatal("a report 121s old must be discarded")
	}
}

func TestSearchSkipsNotAvailable(t *testing.T) {
	f := newFixture()
	f.geo.unavailable["abc1234:"+f.operator] = true

	results, err := f.service(t).Search(context.Background(), SearchQuery{Lon: 2.35, Lat: 48.85})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatal("a flagged pair must not be dispatched")
	}
}

func TestSearchSkipsUnauthorizedZone(t *testing.T) {
	f := newFixture()
	f.zones.allowed = map[string]struct{}{"13055": {}}

	results, err := f.service(t).Search(context.Background(), SearchQuery{Lon: 2.35, Lat: 48.85})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatal("a taxi whose ADS is elsewhere must not be dispatched")
	}
}

func TestSearchSkipsNonFreeDescription(t *testing.T) {
	f := newFixture()
	f.registry.taxis[0].Vehicle.Descriptions[0].Status = enums.VehicleStatusOccupied

	results, err := f.service(t).Search(context.Background(), SearchQuery{Lon: 2.35, Lat: 48.85})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatal("an occupied taxi must not be dispatched")
	}
}

func TestSearchHonorsDriverRadius(t *testing.T) {
	f := newFixture()
	radius := 100
	f.registry.taxis[0].Vehicle.Descriptions[0].Radius = &radius

	results, err := f.service(t).Search(context.Background(), SearchQuery{Lon: 2.35, Lat: 48.85})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatal("a taxi at 120m with a 100m driver radius must be skipped")
	}
}

func TestSearchDedupPrefersMostRecentReport(t *testing.T) {
	f := newFixture()
	other := "other@example.com"
	otherID := uuid.New()
	f.registry.operators[other] = models.User{ID: otherID, Email: other}
	f.registry.taxis[0].Vehicle.Descriptions = append(f.registry.taxis[0].Vehicle.Descriptions,
		models.VehicleDescription{AddedBy: otherID, Status: enums.VehicleStatusFree})
	f.geo.hits["abc1234"] = append(f.geo.hits["abc1234"],
		geostore.Location{TaxiID: "abc1234", Operator: other, Lon: 2.351, Lat: 48.851, Distance: 130})
	f.geo.entries["abc1234:"+other] = &geostore.Entry{Timestamp: f.now.Unix() - 5, Status: "free", Device: "phone", Version: 2}

	results, err := f.service(t).Search(context.Background(), SearchQuery{Lon: 2.35, Lat: 48.85})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected a single deduplicated result, got %d", len(results))
	}
	if results[0].Operator != other {
		t.Fatalf("expected the most recent report to win, got %s", results[0].Operator)
	}
}

func TestSearchFavoriteOperatorWins(t *testing.T) {
	f := newFixture()
	other := "other@example.com"
	otherID := uuid.New()
	f.registry.operators[other] = models.User{ID: otherID, Email: other}
	f.registry.taxis[0].Vehicle.Descriptions = append(f.registry.taxis[0].Vehicle.Descriptions,
		models.VehicleDescription{AddedBy: otherID, Status: enums.VehicleStatusFree})
	f.geo.hits["abc1234"] = append(f.geo.hits["abc1234"],
		geostore.Location{TaxiID: "abc1234", Operator: other, Lon: 2.351, Lat: 48.851, Distance: 130})
	f.geo.entries["abc1234:"+other] = &geostore.Entry{Timestamp: f.now.Unix() - 5, Status: "free", Device: "phone", Version: 2}

	results, err := f.service(t).Search(context.Background(), SearchQuery{
		Lon: 2.35, Lat: 48.85, FavoriteOperator: f.operator,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Operator != f.operator {
		t.Fatalf("expected the favorite operator despite an older report, got %+v", results)
	}
}

func TestSearchCountValidation(t *testing.T) {
	f := newFixture()
	_, err := f.service(t).Search(context.Background(), SearchQuery{Lon: 2.35, Lat: 48.85, Count: 51})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearchEmptyWhenNoZone(t *testing.T) {
	f := newFixture()
	f.zones.allowed = map[string]struct{}{}

	results, err := f.service(t).Search(context.Background(), SearchQuery{Lon: 0, Lat: 45})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatal("no zone means no pickup")
	}
}
