package domain

import (
	"fmt"
	"strings"
)

// LaunchError pairs a sample with its failed submission.
type LaunchError struct {
	ReferralID string
	Err        error
}

func (e LaunchError) Error() string {
	return fmt.Sprintf("%s: %v", e.ReferralID, e.Err)
}

// FailureReason classifies a monitor outcome that was not a clean success.
type FailureReason string

const (
	FailureTerminal      FailureReason = "terminal"
	FailureTimeout       FailureReason = "timeout"
	FailureInconsistency FailureReason = "inconsistency"
	FailureCancelled     FailureReason = "cancelled"
)

// FailureReport is one line of the monitor's aggregate failure digest.
type FailureReport struct {
	ReferralID string
	JobID      string
	JobStatus  JobState
	Reason     FailureReason
	Detail     string
}

// Line renders the failure the way it is posted to the alert channel.
func (f FailureReport) Line() string {
	switch f.Reason {
	case FailureTimeout:
		return fmt.Sprintf("- `%s` has been running for more than 1h", f.JobID)
	case FailureInconsistency:
		return fmt.Sprintf("- `%s` | %s", f.JobID, f.Detail)
	case FailureCancelled:
		return fmt.Sprintf("- `%s` | monitoring was interrupted", f.JobID)
	default:
		return fmt.Sprintf("- `%s` | %s", f.JobID, f.JobStatus)
	}
}

// SummaryRow is one line of the run summary CSV uploaded next to the batch
// for the Confluence import.
type SummaryRow struct {
	Name           string `csv:"name"`
	DateJobStarted string `csv:"date_job_started"`
}

// BatchReport is the outcome of one invocation: every attempted sample
// appears in exactly one of Launched (and possibly Failures), LaunchErrors
// or AlreadySeen.
type BatchReport struct {
	RunID        string
	AlreadySeen  []string
	Launched     map[string]*JobHandle
	LaunchErrors []LaunchError
	Failures     []FailureReport
}

// NothingToDo reports whether the run found no new work.
func (r *BatchReport) NothingToDo() bool {
	return len(r.Launched) == 0 && len(r.LaunchErrors) == 0
}

// Digest renders the end-of-run notification body. Empty when there is
// nothing worth alerting on.
func (r *BatchReport) Digest() string {
	var b strings.Builder

	if len(r.LaunchErrors) > 0 {
		fmt.Fprintf(&b, "Failed to start jobs for %d sample(s):\n", len(r.LaunchErrors))
		for _, le := range r.LaunchErrors {
			fmt.Fprintf(&b, "- `%s`: %v\n", le.ReferralID, le.Err)
		}
	}

	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "%d job(s) did not complete cleanly:\n", len(r.Failures))
		for _, f := range r.Failures {
			b.WriteString(f.Line())
			b.WriteByte('\n')
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
