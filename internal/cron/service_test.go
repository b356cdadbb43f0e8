package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/classbridge/billing-renewals/pkg/logger"
	"github.com/classbridge/billing-renewals/pkg/metrics"
)

type fakeLock struct {
	acquired bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.Discard()
	registry := NewRegistry(&testJob{name: "success"}, &testJob{name: "fail", err: errors.New("boom")})
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     &fakeLock{},
		Interval: 0,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx := context.Background()
	if err := service.runCycle(ctx); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if success, ok := jobs[0].(*testJob); ok {
		if success.runs != 1 {
			t.Fatalf("expected success job to run once, ran %d", success.runs)
		}
	} else {
		t.Fatalf("first job type mismatch")
	}
	if failure, ok := jobs[1].(*testJob); ok {
		if failure.runs != 1 {
			t.Fatalf("expected failure job to run once, ran %d", failure.runs)
		}
	} else {
		t.Fatalf("second job type mismatch")
	}
}

func TestServiceRunCycleSkipsWhenLocked(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := &testJob{name: "subscription-renewal"}
	service, err := NewService(ServiceParams{
		Logger:   logger.Discard(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquired: true},
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job not to run, ran %d", job.runs)
	}
	if got := counterValue(t, reg, "classbridge_cron_job_lock_skipped_total", "subscription-renewal"); got != 1 {
		t.Fatalf("expected lock skipped counter 1, got %v", got)
	}
}

func TestNewServiceRejectsBadSchedule(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.Discard(), Lock: &fakeLock{}, Schedule: "every day"})
	if err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestNewServiceRequiresLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: logger.Discard()}); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestServiceScheduledRunStopsOnCancel(t *testing.T) {
	service, err := NewService(ServiceParams{
		Logger:   logger.Discard(),
		Lock:     &fakeLock{},
		Schedule: "0 2 * * *",
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, job string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabel(m.GetLabel(), "job", job) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, l := range labels {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}

type leasedLock struct {
	fakeLock
	extends  atomic.Int32
	released atomic.Bool
}

func (l *leasedLock) Extend(context.Context) (bool, error) {
	if l.released.Load() {
		return false, errors.New("extend after release")
	}
	l.extends.Add(1)
	return true, nil
}

func (l *leasedLock) Release(ctx context.Context) error {
	l.released.Store(true)
	return l.fakeLock.Release(ctx)
}

type waitJob struct {
	until func() bool
}

func (w *waitJob) Name() string { return "subscription-renewal" }

func (w *waitJob) Run(context.Context) error {
	deadline := time.Now().Add(2 * time.Second)
	for !w.until() {
		if time.Now().After(deadline) {
			return errors.New("lease was never extended")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

func TestServiceExtendsLeaseWhileJobsRun(t *testing.T) {
	lock := &leasedLock{}
	job := &waitJob{until: func() bool { return lock.extends.Load() >= 2 }}
	service, err := NewService(ServiceParams{
		Logger:       logger.Discard(),
		Registry:     NewRegistry(job),
		Lock:         lock,
		LeaseRefresh: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if got := lock.extends.Load(); got < 2 {
		t.Fatalf("expected at least 2 extensions, got %d", got)
	}
	extended := lock.extends.Load()
	time.Sleep(30 * time.Millisecond)
	if lock.extends.Load() != extended {
		t.Fatal("lease refresher kept running after the cycle")
	}
}

func TestServiceDefaultsLeaseRefresh(t *testing.T) {
	service, err := NewService(ServiceParams{Logger: logger.Discard(), Lock: &fakeLock{}})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if service.leaseRefresh != defaultLeaseRefresh {
		t.Fatalf("expected default lease refresh, got %v", service.leaseRefresh)
	}
}
