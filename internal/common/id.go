package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique report-job ID with the "job_" prefix
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewCorrelationID generates a bare UUID for log correlation across one run
func NewCorrelationID() string {
	return uuid.New().String()
}
