package enums

// RenewalOutcome summarizes what happened to one subscription during a run.
type RenewalOutcome string

const (
	RenewalOutcomeSucceeded RenewalOutcome = "succeeded"
	RenewalOutcomeFailed    RenewalOutcome = "failed"
	RenewalOutcomeSkipped   RenewalOutcome = "skipped"
)

// String implements fmt.Stringer.
func (r RenewalOutcome) String() string {
	return string(r)
}
