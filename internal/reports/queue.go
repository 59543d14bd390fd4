package reports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/common"
	"github.com/ternarybob/inquiro/internal/models"
	"github.com/ternarybob/inquiro/internal/pipeline"
)

// renderTask pairs a queued job id with the report it renders.
type renderTask struct {
	jobID  string
	report *models.Report
}

// JobQueue accepts render requests and processes them on a fixed pool of
// workers. Submit returns queued metadata immediately; the caller polls the
// job store for progress. A job reaches exactly one terminal status and
// failed jobs are not retried.
type JobQueue struct {
	store   *JobStore
	render  *Renderer
	audit   *pipeline.AuditLog
	logger  arbor.ILogger
	timeout time.Duration

	tasks  chan renderTask
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobQueue creates the queue and starts its workers.
func NewJobQueue(cfg *common.ReportsConfig, store *JobStore, render *Renderer, audit *pipeline.AuditLog, logger arbor.ILogger) *JobQueue {
	ctx, cancel := context.WithCancel(context.Background())

	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}

	q := &JobQueue{
		store:   store,
		render:  render,
		audit:   audit,
		logger:  logger,
		timeout: common.ParseDuration(cfg.RenderTimeout, 2*time.Minute),
		tasks:   make(chan renderTask, workers*8),
		ctx:     ctx,
		cancel:  cancel,
	}

	logger.Info().Int("workers", workers).Msg("Starting render worker pool")
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	return q
}

// Submit records a pending job and hands the report to the worker pool. The
// returned metadata reflects the queued state; rendering happens later.
func (q *JobQueue) Submit(ctx context.Context, report *models.Report) (*models.ReportJob, error) {
	job := &models.ReportJob{
		JobID:         common.NewJobID(),
		Status:        models.ReportJobStatusPending,
		QueuedAt:      time.Now(),
		SearchQueryID: report.SearchQueryID,
	}
	job.OutputPath = q.render.OutputPath(job.JobID)

	if err := q.store.Put(job); err != nil {
		return nil, fmt.Errorf("failed to record render job: %w", err)
	}

	select {
	case q.tasks <- renderTask{jobID: job.JobID, report: report}:
	default:
		job.Status = models.ReportJobStatusFailed
		job.Error = "render queue is full"
		now := time.Now()
		job.CompletedAt = &now
		if err := q.store.Put(job); err != nil {
			q.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to record rejected job")
		}
		return nil, fmt.Errorf("render queue is full")
	}

	q.logger.Debug().
		Str("job_id", job.JobID).
		Int64("search_query_id", report.SearchQueryID).
		Msg("Render job queued")

	result := *job
	return &result, nil
}

// Status returns the current metadata for a job id.
func (q *JobQueue) Status(jobID string) *models.ReportJob {
	return q.store.Get(jobID)
}

// Stop cancels the workers and waits for in-flight renders to settle.
func (q *JobQueue) Stop() {
	q.logger.Info().Msg("Stopping render worker pool")
	q.cancel()
	q.wg.Wait()
}

func (q *JobQueue) worker(workerID int) {
	defer q.wg.Done()

	q.logger.Debug().Int("worker_id", workerID).Msg("Render worker started")
	for {
		select {
		case <-q.ctx.Done():
			q.logger.Debug().Int("worker_id", workerID).Msg("Render worker stopped")
			return
		case task := <-q.tasks:
			q.process(workerID, task)
		}
	}
}

// process runs a single render and moves the job from processing to exactly
// one terminal status.
func (q *JobQueue) process(workerID int, task renderTask) {
	job := q.store.Get(task.jobID)
	if job.Status == models.ReportJobStatusNotFound {
		q.logger.Warn().Str("job_id", task.jobID).Msg("Dequeued job has no stored metadata")
		return
	}

	started := time.Now()
	job.Status = models.ReportJobStatusProcessing
	job.StartedAt = &started
	if err := q.store.Put(job); err != nil {
		q.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to record job start")
	}

	outputPath, err := q.renderWithTimeout(task)

	completed := time.Now()
	job.CompletedAt = &completed
	if err != nil {
		job.Status = models.ReportJobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = models.ReportJobStatusCompleted
		job.OutputPath = outputPath
	}

	if putErr := q.store.Put(job); putErr != nil {
		q.logger.Error().Err(putErr).Str("job_id", job.JobID).Msg("Failed to record job completion")
	}

	if err != nil {
		q.logger.Warn().
			Err(err).
			Int("worker_id", workerID).
			Str("job_id", job.JobID).
			Msg("Render job failed")
		q.audit.Append(q.ctx, job.SearchQueryID, fmt.Sprintf("render job %s failed: %s", job.JobID, err))
		return
	}

	q.logger.Info().
		Int("worker_id", workerID).
		Str("job_id", job.JobID).
		Str("output", outputPath).
		Dur("duration", completed.Sub(started)).
		Msg("Render job completed")
	q.audit.Append(q.ctx, job.SearchQueryID, fmt.Sprintf("render job %s completed: %s", job.JobID, outputPath))
}

// renderWithTimeout bounds a single render. A render that outlives the
// deadline fails the job; its output file, if it ever appears, is ignored.
func (q *JobQueue) renderWithTimeout(task renderTask) (string, error) {
	type renderResult struct {
		path string
		err  error
	}

	done := make(chan renderResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- renderResult{err: fmt.Errorf("render panicked: %v", r)}
			}
		}()
		path, err := q.render.Render(task.report, task.jobID)
		done <- renderResult{path: path, err: err}
	}()

	select {
	case result := <-done:
		return result.path, result.err
	case <-time.After(q.timeout):
		return "", fmt.Errorf("render timed out after %s", q.timeout)
	case <-q.ctx.Done():
		return "", fmt.Errorf("render cancelled: %w", q.ctx.Err())
	}
}
