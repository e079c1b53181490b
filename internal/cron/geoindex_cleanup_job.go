package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/openmaraude/apitaxi/pkg/logger"
)

const geoindexMaxAge = 2 * time.Minute

type geoCleaner interface {
	Cleanup(ctx context.Context, now time.Time, maxAge time.Duration) error
}

// GeoindexCleanupJobParams configure the geoindex sweep.
type GeoindexCleanupJobParams struct {
	Logger *logger.Logger
	Geo    geoCleaner
	// MaxAge overrides the report TTL, for tests.
	MaxAge time.Duration
	Now    func() time.Time
}

// NewGeoindexCleanupJob builds the job that expires stale position
// reports out of the live geo indices. Stale entries would otherwise
// surface offline taxis to dispatch searches.
func NewGeoindexCleanupJob(params GeoindexCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Geo == nil {
		return nil, fmt.Errorf("geo store required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = geoindexMaxAge
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &geoindexCleanupJob{
		logg:   params.Logger,
		geo:    params.Geo,
		maxAge: maxAge,
		now:    now,
	}, nil
}

type geoindexCleanupJob struct {
	logg   *logger.Logger
	geo    geoCleaner
	maxAge time.Duration
	now    func() time.Time
}

func (j *geoindexCleanupJob) Name() string { return "geoindex-cleanup" }

func (j *geoindexCleanupJob) Run(ctx context.Context) error {
	if err := j.geo.Cleanup(ctx, j.now(), j.maxAge); err != nil {
		return fmt.Errorf("geoindex cleanup: %w", err)
	}
	return nil
}
