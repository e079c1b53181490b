package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/enums"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

type fakeArchiveReader struct {
	hails      []models.Hail
	lastCutoff time.Time
	err        error
}

func (f *fakeArchiveReader) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Hail, error) {
	f.lastCutoff = cutoff
	if f.err != nil {
		return nil, f.err
	}
	return f.hails, nil
}

type fakeArchiveStore struct {
	rows       []models.ArchivedHail
	deleted    []string
	archiveErr error
}

func (f *fakeArchiveStore) ArchiveTx(ctx context.Context, tx *gorm.DB, row *models.ArchivedHail) error {
	if f.archiveErr != nil {
		return f.archiveErr
	}
	f.rows = append(f.rows, *row)
	return nil
}

func (f *fakeArchiveStore) DeleteTx(ctx context.Context, tx *gorm.DB, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeAccountResolver struct {
	byID map[uuid.UUID]*models.User
}

func (f *fakeAccountResolver) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type fakeInseeResolver struct {
	insee string
}

func (f *fakeInseeResolver) InseeAt(lon, lat float64) string { return f.insee }

type passTxRunner struct{}

func (passTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestHailArchiveJobCondensesOldHails(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	moteurID := uuid.New()
	operateurID := uuid.New()
	reader := &fakeArchiveReader{hails: []models.Hail{{
		ID:               "old1",
		Status:           enums.HailStatusFinished,
		CreationDatetime: now.Add(-400 * 24 * time.Hour),
		AddedBy:          moteurID,
		OperateurID:      operateurID,
		CustomerLat:      48.8666123,
		CustomerLon:      2.3333987,
	}}}
	store := &fakeArchiveStore{}
	users := &fakeAccountResolver{byID: map[uuid.UUID]*models.User{
		moteurID:    {ID: moteurID, Email: "moteur@example.com"},
		operateurID: {ID: operateurID, Email: "operateur@example.com"},
	}}
	job, err := NewHailArchiveJob(HailArchiveJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		DB:     passTxRunner{},
		Reader: reader,
		Store:  store,
		Users:  users,
		Zones:  &fakeInseeResolver{insee: "75056"},
		Now:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewHailArchiveJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-archiveAge)
	if !reader.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, reader.lastCutoff)
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected 1 archive row, got %d", len(store.rows))
	}
	row := store.rows[0]
	if row.ID != "old1" || row.Status != "finished" {
		t.Fatalf("unexpected archive row: %+v", row)
	}
	if row.Moteur != "moteur@example.com" || row.Operateur != "operateur@example.com" {
		t.Fatalf("account emails not resolved: %+v", row)
	}
	if row.InseeCode == nil || *row.InseeCode != "75056" {
		t.Fatalf("insee code not resolved: %v", row.InseeCode)
	}
	if row.CustomerLat != 48.867 || row.CustomerLon != 2.333 {
		t.Fatalf("coordinates not rounded: %f, %f", row.CustomerLat, row.CustomerLon)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "old1" {
		t.Fatalf("expected live row deleted, got %v", store.deleted)
	}
}

func TestHailArchiveJobFallsBackToUUIDForGoneAccounts(t *testing.T) {
	moteurID := uuid.New()
	reader := &fakeArchiveReader{hails: []models.Hail{{
		ID:      "old2",
		Status:  enums.HailStatusTimeoutTaxi,
		AddedBy: moteurID,
	}}}
	store := &fakeArchiveStore{}
	job, err := NewHailArchiveJob(HailArchiveJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		DB:     passTxRunner{},
		Reader: reader,
		Store:  store,
		Users:  &fakeAccountResolver{},
		Zones:  &fakeInseeResolver{},
	})
	if err != nil {
		t.Fatalf("NewHailArchiveJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected 1 archive row, got %d", len(store.rows))
	}
	if store.rows[0].Moteur != moteurID.String() {
		t.Fatalf("expected raw uuid fallback, got %q", store.rows[0].Moteur)
	}
	if store.rows[0].InseeCode != nil {
		t.Fatalf("expected no insee code, got %v", store.rows[0].InseeCode)
	}
}

func TestHailArchiveJobKeepsRowOnInsertFailure(t *testing.T) {
	reader := &fakeArchiveReader{hails: []models.Hail{{ID: "old3"}, {ID: "old4"}}}
	store := &fakeArchiveStore{archiveErr: errors.New("db down")}
	job, err := NewHailArchiveJob(HailArchiveJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		DB:     passTxRunner{},
		Reader: reader,
		Store:  store,
		Users:  &fakeAccountResolver{},
		Zones:  &fakeInseeResolver{},
	})
	if err != nil {
		t.Fatalf("NewHailArchiveJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(store.deleted) != 0 {
		t.Fatalf("expected no deletions after failed inserts, got %v", store.deleted)
	}
}
