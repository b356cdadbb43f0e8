package renewal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/billing-renewals/internal/payments"
	"github.com/classbridge/billing-renewals/pkg/db/models"
	"github.com/classbridge/billing-renewals/pkg/enums"
	"github.com/classbridge/billing-renewals/pkg/logger"
	"github.com/classbridge/billing-renewals/pkg/metrics"
)

// Lock guards against overlapping runs. cron.RedisLock satisfies it.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// leaseExtender is implemented by locks whose lease can be renewed mid-run.
type leaseExtender interface {
	Extend(ctx context.Context) (bool, error)
}

// Notifier receives the summary at the end of every run.
type Notifier interface {
	NotifyRunSummary(ctx context.Context, summary Summary) error
}

// CoordinatorParams wire a Coordinator. Lock, Notifier and Metrics are optional.
type CoordinatorParams struct {
	Store    Store
	Gateway  payments.Gateway
	Logger   *logger.Logger
	Settings Settings
	Lock     Lock
	Notifier Notifier
	Metrics  *metrics.RenewalMetrics
	Now      func() time.Time
	Sleep    func(time.Duration)
}

// Coordinator drives one renewal run end to end.
type Coordinator struct {
	selector *Selector
	executor *Executor
	logg     *logger.Logger
	settings Settings
	lock     Lock
	notifier Notifier
	metrics  *metrics.RenewalMetrics
	now      func() time.Time
	sleep    func(time.Duration)
}

func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Store == nil {
		return nil, errors.New("store required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	settings := params.Settings.withDefaults()
	selector, err := NewSelector(params.Store, settings)
	if err != nil {
		return nil, err
	}
	executor, err := NewExecutor(ExecutorParams{
		Store:    params.Store,
		Gateway:  params.Gateway,
		Logger:   params.Logger,
		Settings: settings,
	})
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	sleep := params.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Coordinator{
		selector: selector,
		executor: executor,
		logg:     params.Logger,
		settings: settings,
		lock:     params.Lock,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		now:      now,
		sleep:    sleep,
	}, nil
}

// Run renews every eligible subscription once. It returns an error when the
// lock or the eligibility query fails, or when the gateway rejects our own
// credentials mid-run (the partial report is returned too). Per-subscription
// problems end up in the report.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: c.now()}
	ctx = c.logg.WithRunID(ctx, report.RunID)

	if c.lock != nil {
		locked, err := c.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire renewal lock: %w", err)
		}
		if !locked {
			c.logg.Warn(ctx, "another renewal run holds the lock; skipping")
			report.LockNotAcquired = true
			report.FinishedAt = c.now()
			return report, nil
		}
		defer func() {
			if err := c.lock.Release(ctx); err != nil {
				c.logg.Error(ctx, "failed to release renewal lock", err)
			}
		}()
	}

	subs, err := c.selector.Eligible(ctx, report.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("find eligible subscriptions: %w", err)
	}
	c.logg.Info(c.logg.WithField(ctx, "eligible", len(subs)), "renewal run starting")

	seen := make(map[uuid.UUID]struct{}, len(subs))
	for i, sub := range subs {
		if _, dup := seen[sub.ID]; dup {
			continue
		}
		seen[sub.ID] = struct{}{}
		if i > 0 && c.settings.Delay > 0 {
			c.sleep(c.settings.Delay)
		}
		if !c.keepLease(ctx) {
			report.LeaseLost = true
			break
		}
		entry, fatal := c.process(ctx, sub)
		report.Entries = append(report.Entries, entry)
		if fatal {
			report.AbortReason = entry.Reason
			c.logg.Warn(c.logg.WithField(ctx, "reason", entry.Reason), "gateway setup error; stopping run")
			break
		}
	}

	report.FinishedAt = c.now()
	c.metrics.ObserveRun(report.FinishedAt.Sub(report.StartedAt), report.FinishedAt)

	summary := report.Summary()
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"processed":  summary.Processed,
		"successful": summary.Successful,
		"failed":     summary.Failed,
		"skipped":    summary.Skipped,
	}), "renewal run complete")

	if c.notifier != nil {
		if err := c.notifier.NotifyRunSummary(ctx, summary); err != nil {
			c.logg.Error(ctx, "failed to deliver renewal summary", err)
		}
	}
	if report.AbortReason != "" {
		return report, fmt.Errorf("renewal run aborted: %s", report.AbortReason)
	}
	return report, nil
}

// keepLease extends the run lock when it supports leases. Losing the lease
// stops the run so a second runner cannot overlap with this one.
func (c *Coordinator) keepLease(ctx context.Context) bool {
	ext, ok := c.lock.(leaseExtender)
	if !ok {
		return true
	}
	held, err := ext.Extend(ctx)
	if err != nil {
		c.logg.Error(ctx, "failed to extend renewal lock", err)
		return true
	}
	if !held {
		c.logg.Warn(ctx, "renewal lock lease lost; stopping run")
	}
	return held
}

func (c *Coordinator) process(ctx context.Context, sub models.Subscription) (entry Entry, fatal bool) {
	entry = Entry{SubscriptionID: sub.ID}
	if sub.User != nil {
		entry.UserEmail = sub.User.Email
	}
	// Executor.Renew recovers its own panics; this catches one raised while
	// recording the failure itself.
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			c.logg.Error(c.logg.WithSubscriptionID(ctx, sub.ID.String()), "renewal panicked", err)
			entry.Outcome = enums.RenewalOutcomeFailed
			entry.Reason = err.Error()
			entry.NewEndDate = nil
			c.metrics.IncOutcome(entry.Outcome.String())
		}
	}()

	result := c.executor.Renew(ctx, sub, c.now())
	fatal = result.Fatal
	entry.Outcome = result.Outcome
	entry.Reason = result.Reason
	entry.IntentID = result.IntentID
	entry.Reconciled = result.Reconciled
	entry.NeedsReconciliation = result.NeedsReconciliation
	if !result.NewEndDate.IsZero() {
		newEnd := result.NewEndDate
		entry.NewEndDate = &newEnd
	}

	c.metrics.IncOutcome(result.Outcome.String())
	if result.ChargedMinor > 0 {
		c.metrics.AddCharged(result.Currency.String(), result.ChargedMinor)
	}
	if result.NeedsReconciliation {
		c.metrics.IncNeedsReconciliation()
	}
	return entry, fatal
}
