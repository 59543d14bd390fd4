package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReportJobStatus represents the state of an asynchronous report render job.
type ReportJobStatus string

const (
	ReportJobStatusPending    ReportJobStatus = "pending"
	ReportJobStatusProcessing ReportJobStatus = "processing"
	ReportJobStatusCompleted  ReportJobStatus = "completed"
	ReportJobStatusFailed     ReportJobStatus = "failed"

	// ReportJobStatusNotFound is the sentinel returned by JobStore lookups when
	// neither the in-memory index nor the durable store has the job.
	ReportJobStatusNotFound ReportJobStatus = "not_found"
)

// ReportJob is the metadata record for one render job. It is created with
// status pending on submission, mutated only by the worker that owns it, and
// never mutated again once it reaches completed or failed. Every mutation is
// written through to durable storage so the record survives process restarts.
type ReportJob struct {
	JobID         string          `json:"job_id"`
	Status        ReportJobStatus `json:"status"`
	OutputPath    string          `json:"output_path"`
	QueuedAt      time.Time       `json:"queued_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	SearchQueryID int64           `json:"search_query_id,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// IsTerminal reports whether the job has reached a final state.
func (j *ReportJob) IsTerminal() bool {
	return j.Status == ReportJobStatusCompleted || j.Status == ReportJobStatusFailed
}

// ToJSON returns the job metadata as indented JSON.
func (j *ReportJob) ToJSON() (string, error) {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report job: %w", err)
	}
	return string(data), nil
}

// ReportJobNotFound builds the not-found sentinel for a job id.
func ReportJobNotFound(jobID string) *ReportJob {
	return &ReportJob{JobID: jobID, Status: ReportJobStatusNotFound}
}
