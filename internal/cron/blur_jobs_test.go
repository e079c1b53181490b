package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/enums"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

type fakeBlurStore struct {
	hails      []models.Hail
	lastCutoff time.Time
	saved      map[string]models.Hail
	listErr    error
	saveErr    error
}

func (f *fakeBlurStore) ListUnblurredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Hail, error) {
	f.lastCutoff = cutoff
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.hails, nil
}

func (f *fakeBlurStore) Save(ctx context.Context, hail *models.Hail) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.saved == nil {
		f.saved = make(map[string]models.Hail)
	}
	f.saved[hail.ID] = *hail
	return nil
}

func oldHail(id string) models.Hail {
	initialLat := 48.8612345
	initialLon := 2.3478901
	phone := "+33700000000"
	return models.Hail{
		ID:                  id,
		Status:              enums.HailStatusFinished,
		CustomerLat:         48.8666123,
		CustomerLon:         2.3333987,
		CustomerAddress:     "20 Avenue de Ségur, Paris",
		CustomerPhoneNumber: "+33600000000",
		CustomerID:          "rider-1",
		TaxiPhoneNumber:     &phone,
		InitialTaxiLat:      &initialLat,
		InitialTaxiLon:      &initialLon,
	}
}

func TestLocationBlurRoundsCoordinates(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeBlurStore{hails: []models.Hail{oldHail("h1")}}
	job, err := NewLocationBlurJob(BlurJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Reader: store,
		Saver:  store,
		Now:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewLocationBlurJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-blurAge)
	if !store.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, store.lastCutoff)
	}
	saved, ok := store.saved["h1"]
	if !ok {
		t.Fatal("hail was not saved")
	}
	if saved.CustomerLat != 48.867 || saved.CustomerLon != 2.333 {
		t.Fatalf("customer position not rounded: %f, %f", saved.CustomerLat, saved.CustomerLon)
	}
	if saved.InitialTaxiLat == nil || *saved.InitialTaxiLat != 48.861 {
		t.Fatalf("initial taxi latitude not rounded: %v", saved.InitialTaxiLat)
	}
	if saved.InitialTaxiLon == nil || *saved.InitialTaxiLon != 2.348 {
		t.Fatalf("initial taxi longitude not rounded: %v", saved.InitialTaxiLon)
	}
	if saved.Blurred {
		t.Fatal("location blur must not mark the row blurred")
	}
	if saved.CustomerAddress == "" {
		t.Fatal("location blur must not scrub personal data")
	}
}

func TestHailBlurScrubsPersonalData(t *testing.T) {
	store := &fakeBlurStore{hails: []models.Hail{oldHail("h2")}}
	job, err := NewHailBlurJob(BlurJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Reader: store,
		Saver:  store,
	})
	if err != nil {
		t.Fatalf("NewHailBlurJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	saved, ok := store.saved["h2"]
	if !ok {
		t.Fatal("hail was not saved")
	}
	if saved.CustomerAddress != "" || saved.CustomerPhoneNumber != "" || saved.CustomerID != "" {
		t.Fatal("expected personal data cleared")
	}
	if saved.TaxiPhoneNumber != nil {
		t.Fatal("expected taxi phone number cleared")
	}
	if !saved.Blurred {
		t.Fatal("expected hail flagged blurred")
	}
}

func TestBlurJobCollectsPerRowErrors(t *testing.T) {
	store := &fakeBlurStore{
		hails:   []models.Hail{oldHail("h3"), oldHail("h4")},
		saveErr: errors.New("db down"),
	}
	job, err := NewHailBlurJob(BlurJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Reader: store,
		Saver:  store,
	})
	if err != nil {
		t.Fatalf("NewHailBlurJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected aggregated error")
	}
}
