package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/classbridge/billing-renewals/internal/renewal"
	"github.com/classbridge/billing-renewals/pkg/logger"
)

type renewalRunner interface {
	Run(ctx context.Context) (*renewal.Report, error)
}

// RenewalJobParams wires the subscription renewal job.
type RenewalJobParams struct {
	Logger *logger.Logger
	Runner renewalRunner
}

type renewalJob struct {
	logg   *logger.Logger
	runner renewalRunner
}

// NewRenewalJob wraps a renewal coordinator as a cron job.
func NewRenewalJob(params RenewalJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Runner == nil {
		return nil, errors.New("renewal runner required")
	}
	return &renewalJob{logg: params.Logger, runner: params.Runner}, nil
}

func (j *renewalJob) Name() string { return "subscription-renewal" }

func (j *renewalJob) Run(ctx context.Context) error {
	report, err := j.runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("renewal run: %w", err)
	}
	if report.LockNotAcquired {
		j.logg.Info(ctx, "renewal run skipped; lock held elsewhere")
		return nil
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"run_id":     report.RunID,
		"processed":  report.Processed(),
		"successful": report.Successful(),
		"failed":     report.Failed(),
		"skipped":    report.Skipped(),
	}), "renewal job finished")
	return nil
}
