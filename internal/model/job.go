package model

import "time"

// JobStatus represents the current state of a contact job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
)

// Job is the durable unit of work for one contact within one ingestion run.
// Its persisted record lives in the queue collection matching Status; the
// status field is always written before the record is relocated.
type Job struct {
	ContactKey string     `json:"contact_key"` // normalized phone digits
	Name       string     `json:"name,omitempty"`
	Email      string     `json:"email,omitempty"`
	RunID      string     `json:"run_id"`
	Attempt    int        `json:"attempt"`
	Status     JobStatus  `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DoneAt     *time.Time `json:"done_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// ObjectName returns the job's store object name, unique per
// (contact_key, run).
func (j *Job) ObjectName() string {
	return j.ContactKey + "__" + j.RunID + ".json"
}
