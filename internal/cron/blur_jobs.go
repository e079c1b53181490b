package cron

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

const (
	blurAge       = 60 * 24 * time.Hour
	blurBatchSize = 500

	// Three decimals keep coordinates at district granularity.
	blurPrecision = 1000.0
)

type blurHailReader interface {
	ListUnblurredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Hail, error)
}

type hailSaver interface {
	Save(ctx context.Context, hail *models.Hail) error
}

// BlurJobParams configure the two privacy sweeps over old hails.
type BlurJobParams struct {
	Logger *logger.Logger
	Reader blurHailReader
	Saver  hailSaver
	Age    time.Duration
	Now    func() time.Time
}

func (p *BlurJobParams) normalize() error {
	if p.Logger == nil {
		return fmt.Errorf("logger required")
	}
	if p.Reader == nil {
		return fmt.Errorf("hail reader required")
	}
	if p.Saver == nil {
		return fmt.Errorf("hail saver required")
	}
	if p.Age <= 0 {
		p.Age = blurAge
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return nil
}

// NewLocationBlurJob builds the job that coarsens the coordinates of
// old hails: exact pickup and taxi positions stop mattering once the
// ride is two months gone. It must run before the hail blur, which
// marks the rows done.
func NewLocationBlurJob(params BlurJobParams) (Job, error) {
	if err := params.normalize(); err != nil {
		return nil, err
	}
	return &blurJob{
		name:   "location-blur",
		logg:   params.Logger,
		reader: params.Reader,
		saver:  params.Saver,
		age:    params.Age,
		now:    params.Now,
		apply:  blurLocation,
	}, nil
}

// NewHailBlurJob builds the job that scrubs personal data (addresses,
// phone numbers, the customer identifier) from old hails and flags them
// blurred.
func NewHailBlurJob(params BlurJobParams) (Job, error) {
	if err := params.normalize(); err != nil {
		return nil, err
	}
	return &blurJob{
		name:   "hail-blur",
		logg:   params.Logger,
		reader: params.Reader,
		saver:  params.Saver,
		age:    params.Age,
		now:    params.Now,
		apply:  blurPersonalData,
	}, nil
}

type blurJob struct {
	name   string
	logg   *logger.Logger
	reader blurHailReader
	saver  hailSaver
	age    time.Duration
	now    func() time.Time
	apply  func(*models.Hail)
}

func (j *blurJob) Name() string { return j.name }

func (j *blurJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.age)
	hails, err := j.reader.ListUnblurredBefore(ctx, cutoff, blurBatchSize)
	if err != nil {
		return fmt.Errorf("list hails to blur: %w", err)
	}

	var errs error
	processed := 0
	for i := range hails {
		hail := &hails[i]
		j.apply(hail)
		if err := j.saver.Save(ctx, hail); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("hail %s: %w", hail.ID, err))
			continue
		}
		processed++
	}
	j.logg.Info(j.logg.WithField(ctx, "processed", processed), "blur sweep done")
	return errs
}

func blurLocation(hail *models.Hail) {
	hail.CustomerLat = roundCoord(hail.CustomerLat)
	hail.CustomerLon = roundCoord(hail.CustomerLon)
	if hail.InitialTaxiLat != nil {
		rounded := roundCoord(*hail.InitialTaxiLat)
		hail.InitialTaxiLat = &rounded
	}
	if hail.InitialTaxiLon != nil {
		rounded := roundCoord(*hail.InitialTaxiLon)
		hail.InitialTaxiLon = &rounded
	}
}

func blurPersonalData(hail *models.Hail) {
	hail.CustomerAddress = ""
	hail.CustomerPhoneNumber = ""
	hail.TaxiPhoneNumber = nil
	hail.CustomerID = ""
	hail.Blurred = true
}

func roundCoord(v float64) float64 {
	return math.Round(v*blurPrecision) / blurPrecision
}
