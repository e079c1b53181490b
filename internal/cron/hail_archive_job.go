package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

const (
	archiveAge       = 365 * 24 * time.Hour
	archiveBatchSize = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type archiveHailReader interface {
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Hail, error)
}

type hailArchiveStore interface {
	ArchiveTx(ctx context.Context, tx *gorm.DB, row *models.ArchivedHail) error
	DeleteTx(ctx context.Context, tx *gorm.DB, id string) error
}

type accountResolver interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type inseeResolver interface {
	InseeAt(lon, lat float64) string
}

// HailArchiveJobParams configure the yearly hail archiver.
type HailArchiveJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Reader archiveHailReader
	Store  hailArchiveStore
	Users  accountResolver
	Zones  inseeResolver
	Age    time.Duration
	Now    func() time.Time
}

// NewHailArchiveJob builds the job that condenses year-old hails into
// anonymized archive rows and drops the live row. Each hail moves in
// its own transaction so one bad row does not wedge the sweep.
func NewHailArchiveJob(params HailArchiveJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("hail reader required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("archive store required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user resolver required")
	}
	if params.Zones == nil {
		return nil, fmt.Errorf("zone resolver required")
	}
	age := params.Age
	if age <= 0 {
		age = archiveAge
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &hailArchiveJob{
		logg:   params.Logger,
		db:     params.DB,
		reader: params.Reader,
		store:  params.Store,
		users:  params.Users,
		zones:  params.Zones,
		age:    age,
		now:    now,
	}, nil
}

type hailArchiveJob struct {
	logg   *logger.Logger
	db     txRunner
	reader archiveHailReader
	store  hailArchiveStore
	users  accountResolver
	zones  inseeResolver
	age    time.Duration
	now    func() time.Time
}

func (j *hailArchiveJob) Name() string { return "hail-archive" }

func (j *hailArchiveJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.age)
	hails, err := j.reader.ListOlderThan(ctx, cutoff, archiveBatchSize)
	if err != nil {
		return fmt.Errorf("list hails to archive: %w", err)
	}

	var errs error
	archived := 0
	for i := range hails {
		if err := j.archive(ctx, &hails[i]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("hail %s: %w", hails[i].ID, err))
			continue
		}
		archived++
	}
	j.logg.Info(j.logg.WithField(ctx, "archived", archived), "hail archive sweep done")
	return errs
}

func (j *hailArchiveJob) archive(ctx context.Context, hail *models.Hail) error {
	row := j.buildRow(ctx, hail)
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := j.store.ArchiveTx(ctx, tx, &row); err != nil {
			return fmt.Errorf("insert archive row: %w", err)
		}
		if err := j.store.DeleteTx(ctx, tx, hail.ID); err != nil {
			return fmt.Errorf("delete live row: %w", err)
		}
		return nil
	})
}

func (j *hailArchiveJob) buildRow(ctx context.Context, hail *models.Hail) models.ArchivedHail {
	row := models.ArchivedHail{
		ID:               hail.ID,
		CreationDatetime: hail.CreationDatetime,
		Status:           string(hail.Status),
		Moteur:           j.accountEmail(ctx, hail.AddedBy),
		Operateur:        j.accountEmail(ctx, hail.OperateurID),
		CustomerLat:      roundCoord(hail.CustomerLat),
		CustomerLon:      roundCoord(hail.CustomerLon),
	}
	if insee := j.zones.InseeAt(hail.CustomerLon, hail.CustomerLat); insee != "" {
		row.InseeCode = &insee
	}
	return row
}

// accountEmail degrades to the raw UUID when the account is gone, so
// old hails still archive after an operator leaves.
func (j *hailArchiveJob) accountEmail(ctx context.Context, id uuid.UUID) string {
	user, err := j.users.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			j.logg.Error(ctx, "resolve account for archive", err)
		}
		return id.String()
	}
	return user.Email
}
