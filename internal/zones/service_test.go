package zones

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

type fakeLoader struct {
	towns      []models.Town
	zupcs      []models.ZUPC
	exclusions []models.Exclusion

	exclusionsErr   error
	exclusionsCalls int
}

func (f *fakeLoader) ListTowns(context.Context) ([]models.Town, error) { return f.towns, nil }
func (f *fakeLoader) ListZUPCs(context.Context) ([]models.ZUPC, error) { return f.zupcs, nil }
func (f *fakeLoader) ListExclusions(context.Context) ([]models.Exclusion, error) {
	f.exclusionsCalls++
	if f.exclusionsErr != nil {
		return nil, f.exclusionsErr
	}
	return f.exclusions, nil
}

func newTestService(t *testing.T, loader *fakeLoader) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel})
	svc, err := NewService(ServiceParams{Logger: logg, Repo: loader})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestServiceLoadAndResolve(t *testing.T) {
	loader := &fakeLoader{towns: testTowns(), zupcs: testZUPCs()}
	svc := newTestService(t, loader)

	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !svc.Authorized("94018", 2.35, 48.85) {
		t.Fatal("expected shared-zone pickup to be authorized")
	}
	if got := svc.InseeAt(2.35, 48.85); got != "75056" {
		t.Fatalf("expected insee 75056, got %q", got)
	}
	if got := svc.InseeAt(0.0, 45.0); got != "" {
		t.Fatalf("expected empty insee outside towns, got %q", got)
	}
}

func TestServiceExclusionsLoadLazily(t *testing.T) {
	loader := &fakeLoader{
		exclusions: []models.Exclusion{
			{Name: "Terminal", Shape: squareShape(2.55, 49.0, 2.60, 49.05)},
		},
	}
	svc := newTestService(t, loader)

	if loader.exclusionsCalls != 0 {
		t.Fatal("exclusions must not load before first use")
	}

	excluded, err := svc.Excluded(context.Background(), 2.57, 49.02)
	if err != nil {
		t.Fatalf("Excluded: %v", err)
	}
	if !excluded {
		t.Fatal("expected point inside the terminal to be excluded")
	}

	if _, err := svc.Excluded(context.Background(), 2.0, 48.0); err != nil {
		t.Fatalf("Excluded: %v", err)
	}
	if loader.exclusionsCalls != 1 {
		t.Fatalf("expected a single load, got %d", loader.exclusionsCalls)
	}
}

func TestServiceExclusionsRetryAfterFailure(t *testing.T) {
	loader := &fakeLoader{exclusionsErr: errors.New("db down")}
	svc := newTestService(t, loader)

	if _, err := svc.Excluded(context.Background(), 2.0, 48.0); err == nil {
		t.Fatal("expected load failure to surface")
	}

	loader.exclusionsErr = nil
	if _, err := svc.Excluded(context.Background(), 2.0, 48.0); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if loader.exclusionsCalls != 2 {
		t.Fatalf("expected two load attempts, got %d", loader.exclusionsCalls)
	}
}
