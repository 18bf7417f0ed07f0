package domain

// Outcome is the memoized result of an environment's one-time start attempt.
// Once recorded for an identity it never changes; the start logic is not
// retried even after a failure.
type Outcome int

const (
	// OutcomeUnknown means no start attempt has completed for the identity.
	OutcomeUnknown Outcome = iota

	// OutcomeSuccess means the start attempt returned without error.
	OutcomeSuccess

	// OutcomeFailed means the start attempt returned an error. The error is
	// logged and recorded but never raised to callers.
	OutcomeFailed
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnknown:
		return "Unknown"
	case OutcomeSuccess:
		return "Success"
	case OutcomeFailed:
		return "Failed"
	default:
		return "Invalid"
	}
}
