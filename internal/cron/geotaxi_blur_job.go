package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/openmaraude/apitaxi/pkg/logger"
)

const geotaxiBlurAge = 60 * 24 * time.Hour

type staleBlurrer interface {
	BlurStale(ctx context.Context, cutoff time.Time) (int, error)
}

// GeotaxiBlurJobParams configure the privacy sweep over the Redis
// position blobs.
type GeotaxiBlurJobParams struct {
	Logger *logger.Logger
	Geo    staleBlurrer
	Age    time.Duration
	Now    func() time.Time
}

// NewGeotaxiBlurJob builds the job that zeroes the coordinates of
// position blobs not refreshed for two months. The freshness sweep only
// prunes the indexes; without this pass the per-taxi hashes would keep
// exact positions forever.
func NewGeotaxiBlurJob(params GeotaxiBlurJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Geo == nil {
		return nil, fmt.Errorf("geo store required")
	}
	age := params.Age
	if age <= 0 {
		age = geotaxiBlurAge
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &geotaxiBlurJob{
		logg: params.Logger,
		geo:  params.Geo,
		age:  age,
		now:  now,
	}, nil
}

type geotaxiBlurJob struct {
	logg *logger.Logger
	geo  staleBlurrer
	age  time.Duration
	now  func() time.Time
}

func (j *geotaxiBlurJob) Name() string { return "geotaxi-blur" }

func (j *geotaxiBlurJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.age)
	blurred, err := j.geo.BlurStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("blur stale positions: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "blurred", blurred), "geotaxi blur sweep done")
	return nil
}
