package renewal

import (
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/billing-renewals/pkg/enums"
)

// Entry records what happened to one subscription during a run.
type Entry struct {
	SubscriptionID      uuid.UUID
	UserEmail           string
	Outcome             enums.RenewalOutcome
	Reason              string
	NewEndDate          *time.Time
	IntentID            string
	Reconciled          bool
	NeedsReconciliation bool
}

// Report is the full result of one renewal run.
type Report struct {
	RunID           string
	StartedAt       time.Time
	FinishedAt      time.Time
	LockNotAcquired bool
	// LeaseLost is set when the run stopped early because its lock expired.
	LeaseLost bool
	// AbortReason is set when a gateway setup error stopped the run early.
	AbortReason string
	Entries     []Entry
}

func (r *Report) count(outcome enums.RenewalOutcome) int {
	n := 0
	for _, entry := range r.Entries {
		if entry.Outcome == outcome {
			n++
		}
	}
	return n
}

func (r *Report) Processed() int  { return len(r.Entries) }
func (r *Report) Successful() int { return r.count(enums.RenewalOutcomeSucceeded) }
func (r *Report) Failed() int     { return r.count(enums.RenewalOutcomeFailed) }
func (r *Report) Skipped() int    { return r.count(enums.RenewalOutcomeSkipped) }

// SummaryError is one failed subscription in the operator summary.
type SummaryError struct {
	SubscriptionID string `json:"subscriptionId"`
	UserEmail      string `json:"userEmail"`
	Reason         string `json:"reason"`
}

// Summary is the operator-facing digest of a run.
type Summary struct {
	RunID      string         `json:"runId"`
	Processed  int            `json:"processed"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Errors     []SummaryError `json:"errors"`
}

func (r *Report) Summary() Summary {
	summary := Summary{
		RunID:      r.RunID,
		Processed:  r.Processed(),
		Successful: r.Successful(),
		Failed:     r.Failed(),
		Skipped:    r.Skipped(),
		Errors:     []SummaryError{},
	}
	for _, entry := range r.Entries {
		if entry.Outcome != enums.RenewalOutcomeFailed {
			continue
		}
		summary.Errors = append(summary.Errors, SummaryError{
			SubscriptionID: entry.SubscriptionID.String(),
			UserEmail:      entry.UserEmail,
			Reason:         entry.Reason,
		})
	}
	return summary
}
