package cron

import (
	"context"
	"testing"
	"time"
)

func TestEverySkipsRunsInsideInterval(t *testing.T) {
	inner := &testJob{name: "slow"}
	job := Every(time.Hour, inner)

	if job.Name() != "slow" {
		t.Fatalf("expected wrapped name, got %q", job.Name())
	}
	ctx := context.Background()
	if err := job.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := job.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if inner.runs != 1 {
		t.Fatalf("expected inner job to run once, ran %d", inner.runs)
	}
}

func TestEveryRunsAgainAfterInterval(t *testing.T) {
	inner := &testJob{name: "fast"}
	job := Every(time.Nanosecond, inner)

	ctx := context.Background()
	if err := job.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	time.Sleep(time.Millisecond)
	if err := job.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if inner.runs != 2 {
		t.Fatalf("expected inner job to run twice, ran %d", inner.runs)
	}
}
