package notify

import (
	"context"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"

	"github.com/classbridge/billing-renewals/internal/renewal"
	"github.com/classbridge/billing-renewals/pkg/config"
	"github.com/classbridge/billing-renewals/pkg/logger"
)

// Multi fans a summary out to every notifier and joins their errors.
type Multi []renewal.Notifier

func (m Multi) NotifyRunSummary(ctx context.Context, summary renewal.Summary) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.NotifyRunSummary(ctx, summary))
	}
	return err
}

// Subject is the one-line headline used for mail and logs.
func Subject(summary renewal.Summary) string {
	return fmt.Sprintf("Renewal run: %d processed, %d succeeded, %d failed",
		summary.Processed, summary.Successful, summary.Failed)
}

// Body renders the summary as plain text.
func Body(summary renewal.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n\n", summary.RunID)
	fmt.Fprintf(&b, "Processed:  %d\n", summary.Processed)
	fmt.Fprintf(&b, "Successful: %d\n", summary.Successful)
	fmt.Fprintf(&b, "Failed:     %d\n", summary.Failed)
	fmt.Fprintf(&b, "Skipped:    %d\n", summary.Skipped)
	if len(summary.Errors) == 0 {
		return b.String()
	}
	b.WriteString("\nFailures:\n")
	for _, e := range summary.Errors {
		fmt.Fprintf(&b, "- %s (%s): %s\n", e.SubscriptionID, e.UserEmail, e.Reason)
	}
	return b.String()
}

// FromConfig builds the notifier set for a run: the log notifier always, plus
// email and Pub/Sub when configured. pub may be nil when Pub/Sub is disabled.
func FromConfig(cfg config.NotifyConfig, logg *logger.Logger, pub *gcppubsub.Publisher) (Multi, error) {
	logNotifier, err := NewLogNotifier(logg)
	if err != nil {
		return nil, err
	}
	notifiers := Multi{logNotifier}
	if cfg.EmailEnabled() {
		email, err := NewEmailNotifier(cfg)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, email)
	}
	if cfg.PubSubEnabled() {
		ps, err := NewPubSubNotifier(pub)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, ps)
	}
	return notifiers, nil
}
