package notify

import (
	"context"
	"errors"

	"github.com/classbridge/billing-renewals/internal/renewal"
	"github.com/classbridge/billing-renewals/pkg/logger"
)

// LogNotifier writes the summary to the structured log. It is always wired.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) (*LogNotifier, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &LogNotifier{logg: logg}, nil
}

func (n *LogNotifier) NotifyRunSummary(ctx context.Context, summary renewal.Summary) error {
	ctx = n.logg.WithFields(ctx, map[string]any{
		"event":      "renewal.summary",
		"processed":  summary.Processed,
		"successful": summary.Successful,
		"failed":     summary.Failed,
		"skipped":    summary.Skipped,
	})
	if summary.Failed == 0 {
		n.logg.Info(ctx, Subject(summary))
		return nil
	}
	n.logg.Warn(n.logg.WithField(ctx, "errors", summary.Errors), Subject(summary))
	return nil
}
