package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openmaraude/apitaxi/pkg/logger"
)

type fakeGeoCleaner struct {
	called bool
	now    time.Time
	maxAge time.Duration
	err    error
}

func (f *fakeGeoCleaner) Cleanup(ctx context.Context, now time.Time, maxAge time.Duration) error {
	f.called = true
	f.now = now
	f.maxAge = maxAge
	return f.err
}

func TestGeoindexCleanupJobPassesWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	geo := &fakeGeoCleaner{}
	job, err := NewGeoindexCleanupJob(GeoindexCleanupJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Geo:    geo,
		Now:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewGeoindexCleanupJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !geo.called {
		t.Fatal("expected cleanup to be called")
	}
	if !geo.now.Equal(now) {
		t.Fatalf("expected now %s, got %s", now, geo.now)
	}
	if geo.maxAge != geoindexMaxAge {
		t.Fatalf("expected max age %s, got %s", geoindexMaxAge, geo.maxAge)
	}
}

func TestGeoindexCleanupJobPropagatesError(t *testing.T) {
	geo := &fakeGeoCleaner{err: errors.New("redis down")}
	job, err := NewGeoindexCleanupJob(GeoindexCleanupJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Geo:    geo,
	})
	if err != nil {
		t.Fatalf("NewGeoindexCleanupJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
