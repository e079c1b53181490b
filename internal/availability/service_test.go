package availability

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openmaraude/apitaxi/pkg/enums"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

type fakeGeo struct {
	lastTaxiID    string
	lastOperator  string
	lastAvailable bool
	flagged       map[string]bool
	queried       []string
}

func (f *fakeGeo) SetTaxiAvailability(_ context.Context, taxiID, operator string, available bool) error {
	f.lastTaxiID = taxiID
	f.lastOperator = operator
	f.lastAvailable = available
	return nil
}

func (f *fakeGeo) NotAvailableMembers(_ context.Context, members []string) (map[string]bool, error) {
	f.queried = members
	return f.flagged, nil
}

func newTestService(t *testing.T, geo *fakeGeo) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel})
	svc, err := NewService(ServiceParams{Logger: logg, Geo: geo})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestSetStatusOnlyFreeIsAvailable(t *testing.T) {
	geo := &fakeGeo{}
	svc := newTestService(t, geo)

	if err := svc.SetStatus(context.Background(), "abc1234", "op@example.com", enums.VehicleStatusFree); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if !geo.lastAvailable {
		t.Fatal("free must mark the taxi available")
	}

	for _, status := range []enums.VehicleStatus{
		enums.VehicleStatusOff,
		enums.VehicleStatusOccupied,
		enums.VehicleStatusOncoming,
		enums.VehicleStatusAnswering,
	} {
		if err := svc.SetStatus(context.Background(), "abc1234", "op@example.com", status); err != nil {
			t.Fatalf("SetStatus(%s): %v", status, err)
		}
		if geo.lastAvailable {
			t.Fatalf("%s must flag the taxi as not available", status)
		}
	}
}

func TestFilterUnavailable(t *testing.T) {
	geo := &fakeGeo{flagged: map[string]bool{
		"abc1234:busy@example.com": true,
	}}
	svc := newTestService(t, geo)

	byOperator, err := svc.FilterUnavailable(context.Background(), "abc1234", []string{
		"busy@example.com",
		"free@example.com",
	})
	if err != nil {
		t.Fatalf("FilterUnavailable: %v", err)
	}
	if !byOperator["busy@example.com"] {
		t.Fatal("expected busy operator to be flagged")
	}
	if byOperator["free@example.com"] {
		t.Fatal("expected free operator to be clear")
	}
	if len(geo.queried) != 2 || geo.queried[0] != "abc1234:busy@example.com" {
		t.Fatalf("unexpected queried members %v", geo.queried)
	}
}
