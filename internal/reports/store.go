package reports

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/models"
)

// JobStore keeps render job metadata in memory with one JSON file per job on
// disk. Every mutation is written through to disk before it becomes visible,
// so job status survives process restarts. Reads prefer the in-memory index
// and fall back to disk for jobs recorded by a previous process.
type JobStore struct {
	dir    string
	logger arbor.ILogger

	mu   sync.Mutex
	jobs map[string]*models.ReportJob
}

// NewJobStore creates the store and ensures the jobs directory exists.
func NewJobStore(dir string, logger arbor.ILogger) (*JobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create jobs directory: %w", err)
	}

	return &JobStore{
		dir:    dir,
		logger: logger,
		jobs:   make(map[string]*models.ReportJob),
	}, nil
}

// Put records the job in memory and on disk. The disk write happens first so
// a crash never leaves an in-memory state that disk does not reflect.
func (s *JobStore) Put(job *models.ReportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeFile(job); err != nil {
		return err
	}

	saved := *job
	s.jobs[job.JobID] = &saved
	return nil
}

// Get returns the metadata for a job id. Jobs unknown to this process are
// looked up on disk; a job found nowhere yields a not-found placeholder.
func (s *JobStore) Get(jobID string) *models.ReportJob {
	s.mu.Lock()
	if job, ok := s.jobs[jobID]; ok {
		result := *job
		s.mu.Unlock()
		return &result
	}
	s.mu.Unlock()

	job, err := s.readFile(jobID)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to read job metadata from disk")
		}
		return models.ReportJobNotFound(jobID)
	}

	s.mu.Lock()
	s.jobs[jobID] = job
	result := *job
	s.mu.Unlock()
	return &result
}

// SweepStale walks the jobs directory and marks non-terminal jobs older than
// the cutoff as failed. A process restart abandons any in-flight render, so
// without the sweep those jobs would report as queued or processing forever.
func (s *JobStore) SweepStale(staleAfter time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list jobs directory: %w", err)
	}

	now := time.Now()
	swept := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		jobID := strings.TrimSuffix(entry.Name(), ".json")
		job, err := s.readFile(jobID)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Skipping unreadable job file during sweep")
			continue
		}
		if job.IsTerminal() {
			continue
		}
		if now.Sub(job.QueuedAt) < staleAfter {
			continue
		}

		job.Status = models.ReportJobStatusFailed
		job.Error = "abandoned by restart"
		completed := now
		job.CompletedAt = &completed

		if err := s.Put(job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to persist swept job")
			continue
		}

		swept++
		s.logger.Info().
			Str("job_id", jobID).
			Str("queued_at", job.QueuedAt.Format(time.RFC3339)).
			Msg("Marked stale render job as failed")
	}

	return swept, nil
}

func (s *JobStore) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

func (s *JobStore) writeFile(job *models.ReportJob) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode job metadata: %w", err)
	}
	if err := os.WriteFile(s.path(job.JobID), data, 0644); err != nil {
		return fmt.Errorf("failed to write job metadata: %w", err)
	}
	return nil
}

func (s *JobStore) readFile(jobID string) (*models.ReportJob, error) {
	data, err := os.ReadFile(s.path(jobID))
	if err != nil {
		return nil, err
	}
	var job models.ReportJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job metadata: %w", err)
	}
	return &job, nil
}
