package cron

import (
	"context"
	"time"
)

// Every wraps a job so it only runs once per interval even though the
// cron cycle ticks more often. The worker runs its cycle at the
// shortest cadence any job needs; slower jobs skip the cycles in
// between.
func Every(interval time.Duration, job Job) Job {
	return &intervalJob{interval: interval, job: job}
}

type intervalJob struct {
	interval time.Duration
	job      Job
	lastRun  time.Time
}

func (j *intervalJob) Name() string {
	return j.job.Name()
}

func (j *intervalJob) Run(ctx context.Context) error {
	now := time.Now()
	if !j.lastRun.IsZero() && now.Sub(j.lastRun) < j.interval {
		return nil
	}
	j.lastRun = now
	return j.job.Run(ctx)
}
