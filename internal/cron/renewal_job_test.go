package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/classbridge/billing-renewals/internal/renewal"
	"github.com/classbridge/billing-renewals/pkg/logger"
)

type fakeRunner struct {
	report *renewal.Report
	err    error
	runs   int
}

func (f *fakeRunner) Run(context.Context) (*renewal.Report, error) {
	f.runs++
	return f.report, f.err
}

func TestRenewalJobRunsCoordinator(t *testing.T) {
	runner := &fakeRunner{report: &renewal.Report{RunID: "run-1"}}
	job, err := NewRenewalJob(RenewalJobParams{Logger: logger.Discard(), Runner: runner})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "subscription-renewal" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if runner.runs != 1 {
		t.Fatalf("expected one run, got %d", runner.runs)
	}
}

func TestRenewalJobPropagatesRunError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("db down")}
	job, _ := NewRenewalJob(RenewalJobParams{Logger: logger.Discard(), Runner: runner})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRenewalJobLockNotAcquiredIsNotFailure(t *testing.T) {
	runner := &fakeRunner{report: &renewal.Report{LockNotAcquired: true}}
	job, _ := NewRenewalJob(RenewalJobParams{Logger: logger.Discard(), Runner: runner})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestNewRenewalJobValidation(t *testing.T) {
	if _, err := NewRenewalJob(RenewalJobParams{Runner: &fakeRunner{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewRenewalJob(RenewalJobParams{Logger: logger.Discard()}); err == nil {
		t.Fatal("expected runner error")
	}
}
