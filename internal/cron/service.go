package cron

import (
	"context"
	"fmt"
	"time"

	robfig "github.com/robfig/cron/v3"

	"github.com/classbridge/billing-renewals/pkg/logger"
	"github.com/classbridge/billing-renewals/pkg/metrics"
)

const (
	defaultInterval     = 24 * time.Hour
	defaultLeaseRefresh = defaultLockTTL / 3
)

// leaseExtender is implemented by locks whose lease can be pushed out while
// jobs are still running. RedisLock satisfies it.
type leaseExtender interface {
	Extend(ctx context.Context) (bool, error)
}

// ServiceParams configure the cron service. When Schedule is set it wins over
// Interval.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Schedule string
	Interval time.Duration
	// LeaseRefresh is how often a held lease is extended during a cycle. It
	// should sit well inside the lock ttl.
	LeaseRefresh time.Duration
}

// Service executes registered cron jobs on a cron schedule or a fixed cadence.
type Service struct {
	logg         *logger.Logger
	registry     *Registry
	lock         Lock
	metrics      *metrics.CronJobMetrics
	schedule     string
	interval     time.Duration
	leaseRefresh time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Schedule != "" {
		if _, err := robfig.ParseStandard(params.Schedule); err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", params.Schedule, err)
		}
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	leaseRefresh := params.LeaseRefresh
	if leaseRefresh <= 0 {
		leaseRefresh = defaultLeaseRefresh
	}
	return &Service{
		logg:         params.Logger,
		registry:     registry,
		lock:         params.Lock,
		metrics:      params.Metrics,
		schedule:     params.Schedule,
		interval:     interval,
		leaseRefresh: leaseRefresh,
	}, nil
}

// Run starts the cron loop until the context is canceled. A cycle already in
// progress is allowed to finish.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.schedule != "" {
		return s.runScheduled(ctx)
	}
	return s.runTicker(ctx)
}

func (s *Service) runScheduled(ctx context.Context) error {
	c := robfig.New(robfig.WithChain(robfig.Recover(cronLogger{logg: s.logg, ctx: ctx})))
	cycleCtx := context.WithoutCancel(ctx)
	if _, err := c.AddFunc(s.schedule, func() {
		if err := s.runCycle(cycleCtx); err != nil {
			s.logg.Error(cycleCtx, "scheduled run failed", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule jobs: %w", err)
	}
	c.Start()
	s.logg.Info(s.logg.WithField(ctx, "schedule", s.schedule), "cron schedule started")

	<-ctx.Done()
	s.logg.Info(ctx, "cron service context canceled")
	<-c.Stop().Done()
	return ctx.Err()
}

func (s *Service) runTicker(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		for _, job := range s.registry.Jobs() {
			s.recordLockSkipped(job.Name())
		}
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	stopLease := s.holdLease(ctx)
	defer stopLease()

	s.logg.Info(ctx, "scheduled run starting")
	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	s.logg.Info(ctx, "scheduled run complete")
	return nil
}

// holdLease keeps extending the lock while a cycle runs. The returned func
// stops the refresher and waits for it, so Release never races an Extend.
func (s *Service) holdLease(ctx context.Context) func() {
	ext, ok := s.lock.(leaseExtender)
	if !ok {
		return func() {}
	}
	leaseCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.leaseRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-leaseCtx.Done():
				return
			case <-ticker.C:
				held, err := ext.Extend(leaseCtx)
				if err != nil {
					s.logg.Error(ctx, "failed to extend cron lock", err)
					continue
				}
				if !held {
					s.logg.Warn(ctx, "cron lock lease lost while jobs were running")
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.observeDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.recordFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.recordSuccess(job.Name())
}

func (s *Service) observeDuration(job string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(job, duration)
}

func (s *Service) recordSuccess(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSuccess(job)
}

func (s *Service) recordFailure(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncFailure(job)
}

func (s *Service) recordLockSkipped(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncLockSkipped(job)
}

// cronLogger routes robfig/cron's internal logs into the service logger.
type cronLogger struct {
	logg *logger.Logger
	ctx  context.Context
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logg.Debug(l.logg.WithFields(l.ctx, pairs(keysAndValues)), msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logg.Error(l.logg.WithFields(l.ctx, pairs(keysAndValues)), msg, err)
}

func pairs(keysAndValues []interface{}) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
