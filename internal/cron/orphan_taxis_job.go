package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/openmaraude/apitaxi/pkg/geostore"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

const orphanTaxiAge = 365 * 24 * time.Hour

type orphanTaxiRegistry interface {
	ListInactiveIDs(ctx context.Context, cutoff time.Time) ([]string, error)
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

type orphanGeoStore interface {
	ListTaxis(ctx context.Context, min, max time.Time) ([]geostore.HashEntry, error)
	ListTaxiIDs(ctx context.Context) ([]string, error)
	DropTaxis(ctx context.Context, taxiIDs []string) error
}

// OrphanTaxisJobParams configure the stale taxi sweep.
type OrphanTaxisJobParams struct {
	Logger *logger.Logger
	Taxis  orphanTaxiRegistry
	Geo    orphanGeoStore
	Age    time.Duration
	Now    func() time.Time
}

// NewOrphanTaxisJob builds the job that removes taxis gone for a year.
// A row only qualifies when it never served a hail, so archive rows
// keep a resolvable origin, and when Redis confirms the silence: the
// last position report must be older than the cutoff, or the taxi must
// be unknown to Redis entirely. The matching taxi:<id> hashes go away
// with the rows, along with hashes pointing at taxis the registry no
// longer knows.
func NewOrphanTaxisJob(params OrphanTaxisJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Taxis == nil {
		return nil, fmt.Errorf("taxi registry required")
	}
	if params.Geo == nil {
		return nil, fmt.Errorf("geo store required")
	}
	age := params.Age
	if age <= 0 {
		age = orphanTaxiAge
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &orphanTaxisJob{
		logg:  params.Logger,
		taxis: params.Taxis,
		geo:   params.Geo,
		age:   age,
		now:   now,
	}, nil
}

type orphanTaxisJob struct {
	logg  *logger.Logger
	taxis orphanTaxiRegistry
	geo   orphanGeoStore
	age   time.Duration
	now   func() time.Time
}

func (j *orphanTaxisJob) Name() string { return "orphan-taxis" }

func (j *orphanTaxisJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.age)

	oldRows, err := j.taxis.ListInactiveIDs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list inactive taxis: %w", err)
	}

	staleEntries, err := j.geo.ListTaxis(ctx, time.Unix(0, 0), cutoff)
	if err != nil {
		return fmt.Errorf("list stale position reports: %w", err)
	}
	stale := make(map[string]bool, len(staleEntries))
	for _, entry := range staleEntries {
		stale[entry.TaxiID] = true
	}

	allRedisIDs, err := j.geo.ListTaxiIDs(ctx)
	if err != nil {
		return fmt.Errorf("list reported taxis: %w", err)
	}
	reported := make(map[string]bool, len(allRedisIDs))
	for _, id := range allRedisIDs {
		reported[id] = true
	}

	// An old row only qualifies when its last report is older than the
	// cutoff too, or when the taxi never reported at all.
	candidates := make([]string, 0, len(oldRows))
	candidateSet := make(map[string]bool, len(oldRows))
	for _, id := range oldRows {
		if stale[id] || !reported[id] {
			candidates = append(candidates, id)
			candidateSet[id] = true
		}
	}

	deleted, err := j.taxis.DeleteByIDs(ctx, candidates)
	if err != nil {
		return fmt.Errorf("delete orphan taxis: %w", err)
	}

	// Stale hashes whose taxi is already gone from the registry.
	leftover := make([]string, 0, len(stale))
	for id := range stale {
		if !candidateSet[id] {
			leftover = append(leftover, id)
		}
	}
	known, err := j.taxis.ExistingIDs(ctx, leftover)
	if err != nil {
		return fmt.Errorf("resolve stale hashes: %w", err)
	}
	knownSet := make(map[string]bool, len(known))
	for _, id := range known {
		knownSet[id] = true
	}
	drop := candidates
	for _, id := range leftover {
		if !knownSet[id] {
			drop = append(drop, id)
		}
	}
	if err := j.geo.DropTaxis(ctx, drop); err != nil {
		return fmt.Errorf("drop taxi hashes: %w", err)
	}

	ctx = j.logg.WithField(ctx, "deleted", deleted)
	ctx = j.logg.WithField(ctx, "dropped_hashes", len(drop))
	j.logg.Info(ctx, "orphan taxi sweep done")
	return nil
}
