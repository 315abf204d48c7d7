package domain

// ProcessingStatus is the pipeline-local state recorded in the tracker. The
// values are the audit-trail vocabulary used by the reporting side and must
// not be reworded.
type ProcessingStatus string

const (
	StatusPreprocessing      ProcessingStatus = "Preprocessing before job start"
	StatusJobStarted         ProcessingStatus = "Job started"
	StatusJobFinished        ProcessingStatus = "Job finished"
	StatusJobFailed          ProcessingStatus = "Job didn't finish successfully"
	StatusJobTimedOut        ProcessingStatus = "Job has been running for more than 1h"
	StatusWorkbookDownloaded ProcessingStatus = "Workbook downloaded"
)

// JobState mirrors the platform's job-state vocabulary.
type JobState string

const (
	JobStateIdle       JobState = "idle"
	JobStateRunnable   JobState = "runnable"
	JobStateRunning    JobState = "running"
	JobStateDone       JobState = "done"
	JobStateFailed     JobState = "failed"
	JobStateTerminated JobState = "terminated"
	JobStateDebugHold  JobState = "debug_hold"
)

// Terminal reports whether the platform will make no further progress on a
// job in this state.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateDone, JobStateFailed, JobStateTerminated, JobStateDebugHold:
		return true
	}

	return false
}
