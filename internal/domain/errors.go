package domain

import "fmt"

// ValidationError is a whole-batch precondition failure: malformed file set,
// bad identifiers, missing files. It aborts the run before any side effect.
type ValidationError struct {
	ReferralID string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.ReferralID == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}

	return fmt.Sprintf("validation failed for %s: %s", e.ReferralID, e.Reason)
}

// ConsistencyError marks a state the pipeline should never observe, such as
// a duplicate tracker row or a downloaded workbook missing on disk. It is
// always surfaced, never swallowed.
type ConsistencyError struct {
	ReferralID string
	Reason     string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error for %s: %s", e.ReferralID, e.Reason)
}
