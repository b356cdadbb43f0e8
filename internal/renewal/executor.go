package renewal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/classbridge/billing-renewals/internal/payments"
	"github.com/classbridge/billing-renewals/pkg/db/models"
	"github.com/classbridge/billing-renewals/pkg/enums"
	pkgerrors "github.com/classbridge/billing-renewals/pkg/errors"
	"github.com/classbridge/billing-renewals/pkg/logger"
)

const ReasonNoPaymentMethod = "no payment method"

// Result is the outcome of renewing one subscription.
type Result struct {
	Outcome    enums.RenewalOutcome
	Reason     string
	NewEndDate time.Time
	IntentID   string
	// ChargedMinor is non-zero only when money moved in this run.
	ChargedMinor int64
	Currency     enums.Currency
	// Reconciled is set when an earlier run's charge was applied without charging again.
	Reconciled bool
	// NeedsReconciliation is set when a charge succeeded but the subscription write failed.
	NeedsReconciliation bool
	// Fatal is set when the gateway rejected our own credentials or setup. No
	// attempt is counted and the run should stop.
	Fatal bool
}

func succeeded(newEnd time.Time) Result {
	return Result{Outcome: enums.RenewalOutcomeSucceeded, NewEndDate: newEnd}
}

func failed(reason string) Result {
	return Result{Outcome: enums.RenewalOutcomeFailed, Reason: reason}
}

func skipped(reason string) Result {
	return Result{Outcome: enums.RenewalOutcomeSkipped, Reason: reason}
}

// ExecutorParams wires an Executor.
type ExecutorParams struct {
	Store    Store
	Gateway  payments.Gateway
	Logger   *logger.Logger
	Settings Settings
}

// Executor renews a single subscription synchronously. It never returns an
// error: every problem becomes a failed or skipped Result.
type Executor struct {
	store    Store
	gateway  payments.Gateway
	logg     *logger.Logger
	policy   Policy
	settings Settings
}

func NewExecutor(params ExecutorParams) (*Executor, error) {
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
	return &Executor{
		store:    params.Store,
		gateway:  params.Gateway,
		logg:     params.Logger,
		policy:   NewPolicy(settings.MaxAttempts),
		settings: settings,
	}, nil
}

// IdempotencyKey identifies one charge attempt for one billing period.
func IdempotencyKey(sub models.Subscription, attempt int) string {
	return fmt.Sprintf("renewal:%s:%s:%d", sub.ID, sub.EndDate.UTC().Format("20060102"), attempt)
}

// Renew charges and advances one subscription. A panic anywhere in the flow is
// treated like any other failure, so the retry policy still applies.
func (e *Executor) Renew(ctx context.Context, sub models.Subscription, now time.Time) (result Result) {
	ctx = e.logg.WithSubscriptionID(ctx, sub.ID.String())
	ctx = e.logg.WithUserID(ctx, sub.UserID.String())
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			e.logg.Error(ctx, "renewal panicked", err)
			result = e.fail(ctx, sub, err.Error(), now)
		}
	}()
	return e.renew(ctx, sub, now)
}

func (e *Executor) renew(ctx context.Context, sub models.Subscription, now time.Time) Result {
	if sub.Status.IsTerminal() {
		e.logg.Warn(e.logg.WithField(ctx, "status", sub.Status.String()), "renewal skipped: subscription already closed")
		return skipped(fmt.Sprintf("subscription is %s", sub.Status))
	}
	attempt := sub.AutoRenewAttempts + 1

	customerID, instrumentID, ok := sub.User.PaymentProfile()
	if !ok {
		if !e.settings.PenalizeMissingPaymentMethod {
			e.logg.Warn(ctx, "renewal skipped: no payment method")
			return skipped(ReasonNoPaymentMethod)
		}
		return e.fail(ctx, sub, ReasonNoPaymentMethod, now)
	}
	if sub.Package == nil {
		return e.fail(ctx, sub, "package not found", now)
	}

	currency, err := enums.ParseCurrency(sub.Package.Currency)
	if err != nil {
		return e.fail(ctx, sub, err.Error(), now)
	}
	amountMinor, err := ToMinorUnits(sub.Package.CurrentPrice, currency)
	if err != nil {
		return e.fail(ctx, sub, err.Error(), now)
	}

	prior, err := e.store.FindSucceededIntent(ctx, sub.ID, sub.EndDate)
	if err != nil {
		e.logg.Error(e.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "reconciliation lookup failed; not charging", err)
		return skipped("reconciliation lookup failed")
	}
	if prior != nil {
		ctx = e.logg.WithField(ctx, "gateway_intent_id", prior.GatewayIntentID)
		e.logg.Warn(ctx, "found succeeded charge for this period; applying renewal without charging")
		result := e.succeed(ctx, sub, now)
		result.IntentID = prior.GatewayIntentID
		result.Currency = currency
		result.Reconciled = true
		return result
	}

	req := payments.PaymentIntentRequest{
		AmountMinor:     amountMinor,
		Currency:        currency,
		CustomerID:      customerID,
		PaymentMethodID: instrumentID,
		IdempotencyKey:  IdempotencyKey(sub, attempt),
		Metadata: map[string]string{
			"subscription_id": sub.ID.String(),
			"user_id":         sub.UserID.String(),
			"package_id":      sub.PackageID.String(),
			"attempt":         strconv.Itoa(attempt),
		},
	}
	ctx = e.logg.WithFields(ctx, map[string]any{
		"attempt":      attempt,
		"amount_minor": amountMinor,
		"currency":     currency.String(),
		"provider":     e.gateway.Provider().String(),
	})

	intent, chargeErr := e.charge(ctx, req)
	record := e.intentRecord(sub, req, attempt, intent, chargeErr)
	if err := e.store.AppendPaymentIntentRecord(ctx, record); err != nil {
		e.logg.Error(e.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "failed to append payment intent record", err)
	}

	if chargeErr != nil && pkgerrors.IsFatal(chargeErr) {
		e.logg.Error(ctx, "gateway rejected renewal credentials; not counting an attempt", chargeErr)
		result := failed(chargeErr.Error())
		result.IntentID = record.GatewayIntentID
		result.Fatal = true
		return result
	}
	if chargeErr != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error_code", string(pkgerrors.CodeOf(chargeErr))), "renewal charge failed")
		result := e.fail(ctx, sub, chargeErr.Error(), now)
		result.IntentID = record.GatewayIntentID
		return result
	}
	if !intent.Succeeded() {
		reason := intent.ErrorDetail
		if reason == "" {
			reason = fmt.Sprintf("payment status %s", intent.ProviderStatus)
		}
		result := e.fail(ctx, sub, reason, now)
		result.IntentID = intent.ID
		return result
	}

	result := e.succeed(e.logg.WithField(ctx, "gateway_intent_id", intent.ID), sub, now)
	result.IntentID = intent.ID
	result.ChargedMinor = amountMinor
	result.Currency = currency
	return result
}

// charge calls the gateway and turns a panic inside the adapter into an error.
func (e *Executor) charge(ctx context.Context, req payments.PaymentIntentRequest) (intent *payments.PaymentIntentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			intent = nil
			err = pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("gateway panic: %v", r))
		}
	}()
	intent, err = e.gateway.CreateConfirmedPaymentIntent(ctx, req)
	if err == nil && intent == nil {
		err = pkgerrors.New(pkgerrors.CodeDependency, "gateway returned no payment intent")
	}
	return intent, err
}

func (e *Executor) intentRecord(sub models.Subscription, req payments.PaymentIntentRequest, attempt int, intent *payments.PaymentIntentResult, chargeErr error) *models.PaymentIntentRecord {
	record := &models.PaymentIntentRecord{
		Provider:           e.gateway.Provider(),
		SubscriptionID:     sub.ID,
		UserID:             sub.UserID,
		PackageID:          sub.PackageID,
		Amount:             sub.Package.CurrentPrice,
		AmountMinor:        req.AmountMinor,
		Currency:           req.Currency.String(),
		Status:             enums.PaymentIntentStatusFailed,
		Attempt:            attempt,
		IdempotencyKey:     req.IdempotencyKey,
		RenewedFromEndDate: sub.EndDate,
		Metadata:           req.Metadata,
	}
	if intent != nil {
		record.GatewayIntentID = intent.ID
		record.Status = intent.Status
		if intent.ErrorDetail != "" {
			detail := intent.ErrorDetail
			record.FailureReason = &detail
		}
	}
	if chargeErr != nil {
		record.Status = enums.PaymentIntentStatusFailed
		detail := chargeErr.Error()
		record.FailureReason = &detail
	}
	return record
}

func (e *Executor) succeed(ctx context.Context, sub models.Subscription, now time.Time) Result {
	newEnd, known := AdvanceEndDate(sub.EndDate, now, sub.Package.SubscriptionFrequency)
	if !known {
		e.logg.Warn(e.logg.WithField(ctx, "frequency", sub.Package.SubscriptionFrequency.String()),
			"unrecognized billing frequency; advanced one month")
	}
	next := e.policy.OnSuccess(StateOf(sub), newEnd, sub.Package.TotalClasses, now)
	if err := e.store.UpdateSubscription(ctx, sub.ID, next.Patch()); err != nil {
		ctx = e.logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		e.logg.Error(ctx, "charge succeeded but subscription update failed; needs reconciliation", err)
		result := failed(fmt.Sprintf("charged but subscription update failed: %v", err))
		result.NewEndDate = newEnd
		result.NeedsReconciliation = true
		return result
	}
	e.logg.Info(e.logg.WithField(ctx, "new_end_date", newEnd.Format(time.RFC3339)), "subscription renewed")
	return succeeded(newEnd)
}

func (e *Executor) fail(ctx context.Context, sub models.Subscription, reason string, now time.Time) Result {
	next := e.policy.OnFailure(StateOf(sub), reason, now)
	ctx = e.logg.WithFields(ctx, map[string]any{
		"reason":   reason,
		"attempts": next.Attempts,
		"status":   next.Status.String(),
	})
	if err := e.store.UpdateSubscription(ctx, sub.ID, next.FailurePatch()); err != nil {
		e.logg.Error(e.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "failed to record renewal failure", err)
		return failed(fmt.Sprintf("%s (state not saved: %v)", reason, err))
	}
	if next.Status == enums.SubscriptionStatusExpired {
		e.logg.Warn(ctx, "renewal attempts exhausted; subscription expired")
	} else {
		e.logg.Info(ctx, "renewal failed; will retry next run")
	}
	return failed(reason)
}
