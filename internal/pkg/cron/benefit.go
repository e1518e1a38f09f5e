package cron

import (
	"context"
	"time"
)

// Retrier re-runs monthly aggregates whose last recompute failed.
type Retrier interface {
	RetryFailed(ctx context.Context) error
}

type BenefitJobs struct {
	retrier  Retrier
	interval time.Duration
}

func NewBenefitJobs(retrier Retrier, interval time.Duration) *BenefitJobs {
	if interval <= 0 {
		interval = time.Minute
	}
	return &BenefitJobs{retrier: retrier, interval: interval}
}

// RegisterJobs adds the retry sweep. One sweep may not outlast its interval.
func (j *BenefitJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("retry_failed_aggregates", j.interval, j.retrier.RetryFailed, WithTimeout(j.interval))
}
