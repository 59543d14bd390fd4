package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/common"
	"github.com/ternarybob/inquiro/internal/models"
)

// QueryStore is the slice of the datastore the orchestrator needs for status
// transitions.
type QueryStore interface {
	UpdateQueryStatus(ctx context.Context, id int64, status models.QueryStatus) error
}

// RenderSubmitter accepts a finished report for asynchronous rendering.
type RenderSubmitter interface {
	Submit(ctx context.Context, report *models.Report) (*models.ReportJob, error)
}

// Orchestrator drives one analysis run through the stage transition table:
// Init -> Collecting -> Classifying -> Analyzing -> Visualizing -> Reporting.
// Stage errors are absorbed, recorded once on the run state, and written to
// the audit log; they never propagate to the caller. Reporting always runs
// and Run always returns a report.
type Orchestrator struct {
	stages   []StageDescriptor
	executor *StageExecutor
	queries  QueryStore
	audit    *AuditLog
	queue    RenderSubmitter
	logger   arbor.ILogger
}

// NewOrchestrator assembles an orchestrator. queue may be nil when rendering
// is disabled (the run then completes without submitting a render job).
func NewOrchestrator(stages []StageDescriptor, executor *StageExecutor, queries QueryStore, audit *AuditLog, queue RenderSubmitter, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		stages:   stages,
		executor: executor,
		queries:  queries,
		audit:    audit,
		queue:    queue,
		logger:   logger,
	}
}

// Run executes the pipeline for the given state and returns the final
// report. The report is never nil; partial failures surface through its
// ErrorMessage field.
func (o *Orchestrator) Run(ctx context.Context, state *State) *models.Report {
	log := o.logger.WithCorrelationId(common.NewCorrelationID())

	if state.SearchCriteria == "" || state.SearchQueryID == 0 {
		err := &ValidationError{Field: "run", Reason: "search criteria and search query id must be set"}
		o.fail(ctx, state, log, "init", err)
	} else {
		o.audit.Append(ctx, state.SearchQueryID,
			fmt.Sprintf("run started for criteria %q", state.SearchCriteria))
		log.Info().
			Int64("search_query_id", state.SearchQueryID).
			Str("criteria", state.SearchCriteria).
			Msg("Pipeline run started")
	}

	for _, stage := range o.stages {
		// Global short-circuit: once an error is recorded, remaining stages
		// perform no work. The loop still runs to termination so that
		// reporting happens structurally.
		if state.Failed() {
			continue
		}

		o.runStage(ctx, state, log, stage)
	}

	return o.report(ctx, state, log)
}

func (o *Orchestrator) runStage(ctx context.Context, state *State, log arbor.ILogger, stage StageDescriptor) {
	log.Debug().Str("stage", stage.Name).Msg("Stage starting")

	out, err := o.executor.Execute(ctx, stage.Capabilities, state.Output(stage.Input), stage.Selector, stage.Retries)
	if err != nil {
		o.fail(ctx, state, log, stage.Name, err)
		return
	}

	state.SetOutput(stage.Output, out)

	switch stage.Name {
	case StageCollect:
		n := len(DecodeList(out))
		o.audit.Append(ctx, state.SearchQueryID, fmt.Sprintf("collection finished: %d raw results obtained", n))
		log.Info().Int("raw_results", n).Msg("Collection finished")
	case StageClassify:
		n := len(DecodeList(out))
		o.audit.Append(ctx, state.SearchQueryID, fmt.Sprintf("classification finished: %d results classified", n))
		log.Info().Int("classified", n).Msg("Classification finished")
	case StageAnalyze:
		o.audit.Append(ctx, state.SearchQueryID, "analysis finished")
		log.Info().Msg("Analysis finished")
	case StageVisualize:
		o.audit.Append(ctx, state.SearchQueryID, "visualizations generated")
		log.Info().Msg("Visualizations generated")
	}
}

// fail records a stage error exactly once, formatted as "<stage>: <message>".
func (o *Orchestrator) fail(ctx context.Context, state *State, log arbor.ILogger, stage string, err error) {
	message := fmt.Sprintf("%s: %v", stage, err)
	log.Warn().Str("stage", stage).Err(err).Msg("Stage failed")
	o.audit.Append(ctx, state.SearchQueryID, message)
	state.SetError(message)
}

// report is the unconditional terminal stage. It decodes whatever partial
// data is present, assembles the final report, marks the query completed
// (completed means the pipeline ran to termination, not that every stage
// succeeded), and submits a render job without waiting for it.
func (o *Orchestrator) report(ctx context.Context, state *State, log arbor.ILogger) *models.Report {
	var analysis models.AnalysisResults
	DecodeObject(state.Output(FieldAnalysisResults), &analysis)

	var classified []models.StructuredResult
	DecodeObject(state.Output(FieldClassifiedData), &classified)

	visualizations := map[string]any{}
	DecodeObject(state.Output(FieldVisualizations), &visualizations)

	report := &models.Report{
		SearchQueryID:  state.SearchQueryID,
		SearchCriteria: state.SearchCriteria,
		DataCollected:  len(DecodeList(state.Output(FieldRawData))),
		ClassifiedData: classified,
		Analysis:       analysis,
		Visualizations: visualizations,
		Insights:       analysis.Insights,
		ErrorMessage:   state.ErrorMessage,
	}
	if report.Insights == "" {
		report.Insights = "No insights generated."
	}

	if state.SearchQueryID != 0 && o.queries != nil {
		if err := o.queries.UpdateQueryStatus(ctx, state.SearchQueryID, models.QueryStatusCompleted); err != nil {
			log.Warn().Err(err).Msg("Failed to mark search query completed")
			o.audit.Append(ctx, state.SearchQueryID, fmt.Sprintf("status update failed: %v", err))
		}
	}

	if o.queue != nil {
		job, err := o.queue.Submit(ctx, report)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to enqueue render job")
			o.audit.Append(ctx, state.SearchQueryID, fmt.Sprintf("render job enqueue failed: %v", err))
		} else {
			report.RenderJob = &models.ReportJobRef{
				JobID:      job.JobID,
				Status:     job.Status,
				OutputPath: job.OutputPath,
			}
			o.audit.Append(ctx, state.SearchQueryID, fmt.Sprintf("render job queued: %s", job.JobID))
		}
	}

	o.audit.Append(ctx, state.SearchQueryID, "run finished, final report assembled")
	log.Info().
		Int("data_collected", report.DataCollected).
		Bool("succeeded", report.Succeeded()).
		Msg("Pipeline run finished")

	state.FinalReport = report
	return report
}
