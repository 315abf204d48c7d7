package domain

import "time"

// SampleRecord is one row of the wgs_sc_tracker table: the permanent audit
// trail for one sample's run. Rows are never deleted.
type SampleRecord struct {
	ReferralID               string           `db:"referral_id"                json:"referral_id"`
	Date                     time.Time        `db:"date"                       json:"date"`
	JobID                    string           `db:"job_id"                     json:"job_id"`
	JobStatus                JobState         `db:"job_status"                 json:"job_status"`
	ProcessingStatus         ProcessingStatus `db:"processing_status"          json:"processing_status"`
	WorkbookDNAnexusLocation string           `db:"workbook_dnanexus_location" json:"workbook_dnanexus_location"`
	WorkbookClinGenLocation  string           `db:"workbook_clingen_location"  json:"workbook_clingen_location"`
}

// RecordUpdate carries the fields of an update-by-key write. Nil fields are
// left untouched.
type RecordUpdate struct {
	JobID                    *string
	JobStatus                *JobState
	ProcessingStatus         *ProcessingStatus
	WorkbookDNAnexusLocation *string
	WorkbookClinGenLocation  *string
}

// JobRequest is everything needed to submit one workbook job.
type JobRequest struct {
	ReferralID string
	AppID      string
	// Inputs maps workbook app input names to platform file IDs.
	Inputs       map[string]string
	OutputFolder string
}

// JobHandle references a submitted platform job.
type JobHandle struct {
	ID      string
	Name    string
	Project string
	Folder  string
}

// JobDescription is the subset of the platform's describe output the
// monitor acts on.
type JobDescription struct {
	ID           string
	Name         string
	State        JobState
	OutputFileID string
}
