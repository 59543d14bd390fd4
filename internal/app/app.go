package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/capabilities"
	"github.com/ternarybob/inquiro/internal/common"
	"github.com/ternarybob/inquiro/internal/models"
	"github.com/ternarybob/inquiro/internal/pipeline"
	"github.com/ternarybob/inquiro/internal/reports"
	"github.com/ternarybob/inquiro/internal/storage/sqlite"
	"gopkg.in/yaml.v3"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	DB     *sqlite.SQLiteDB
	Search *sqlite.SearchStorage

	JobStore *reports.JobStore
	Renderer *reports.Renderer
	Queue    *reports.JobQueue

	Orchestrator *pipeline.Orchestrator

	scheduler *cron.Cron
}

// batchFile is the YAML document accepted by RunBatch.
type batchFile struct {
	Criteria []string `yaml:"criteria"`
}

// batchResult is one entry in the batch output file.
type batchResult struct {
	Criteria string         `json:"criteria"`
	Status   string         `json:"status"`
	Error    string         `json:"error,omitempty"`
	Report   *models.Report `json:"report,omitempty"`
}

// New assembles the application: storage, render subsystem, capabilities and
// the pipeline orchestrator.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	db, err := sqlite.NewSQLiteDB(logger, &config.Storage.SQLite)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	search := sqlite.NewSearchStorage(db, logger)
	audit := pipeline.NewAuditLog(search, logger)

	jobStore, err := reports.NewJobStore(config.Reports.JobsDir, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	staleAfter := common.ParseDuration(config.Reports.StaleAfter, 0)
	if staleAfter > 0 {
		swept, err := jobStore.SweepStale(staleAfter)
		if err != nil {
			logger.Warn().Err(err).Msg("Stale job sweep failed")
		} else if swept > 0 {
			logger.Info().Int("swept", swept).Msg("Stale render jobs marked as failed")
		}
	}

	renderer, err := reports.NewRenderer(config.Reports.OutputDir, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	queue := reports.NewJobQueue(&config.Reports, jobStore, renderer, audit, logger)

	stages, err := buildStages(config, search, logger)
	if err != nil {
		queue.Stop()
		db.Close()
		return nil, err
	}

	executor := pipeline.NewStageExecutor(config.Pipeline.RetryDelay())
	orchestrator := pipeline.NewOrchestrator(stages, executor, search, audit, queue, logger)

	app := &App{
		Config:       config,
		Logger:       logger,
		DB:           db,
		Search:       search,
		JobStore:     jobStore,
		Renderer:     renderer,
		Queue:        queue,
		Orchestrator: orchestrator,
	}

	if config.Scheduler.Enabled {
		if err := app.startScheduler(); err != nil {
			app.Close()
			return nil, err
		}
	}

	return app, nil
}

// buildStages registers capabilities per configuration and returns the stage
// transition table.
func buildStages(config *common.Config, search *sqlite.SearchStorage, logger arbor.ILogger) ([]pipeline.StageDescriptor, error) {
	var collection pipeline.Set
	for _, source := range config.Collector.Sources {
		switch source {
		case "websearch":
			collection = append(collection, capabilities.NewWebSearchCollector(&config.Collector, search, logger))
		case "register":
			collection = append(collection, capabilities.NewRegisterCollector(&config.Collector, search, logger))
		default:
			return nil, fmt.Errorf("unknown collector source %q", source)
		}
	}

	classification := pipeline.Set{capabilities.NewRuleClassifier(search, logger)}
	if config.Pipeline.Classifier == "llm" {
		llm, err := capabilities.NewLLMClassifier(&config.Claude, search, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM classifier: %w", err)
		}
		classification = append(classification, llm)
	}

	analysis := pipeline.Set{capabilities.NewAnalyzer(logger)}
	visualization := pipeline.Set{capabilities.NewVisualizer(logger)}

	return pipeline.Stages(collection, classification, analysis, visualization,
		config.Pipeline.Classifier, config.Pipeline.StageRetries), nil
}

// RunOnce executes one analysis run for the given criteria. Registering the
// search query must succeed before the pipeline starts; everything after that
// point degrades into the report's error field instead of failing the call.
func (a *App) RunOnce(ctx context.Context, criteria string) (*models.Report, error) {
	if criteria == "" {
		return nil, &pipeline.ValidationError{Field: "criteria", Reason: "must not be empty"}
	}

	queryID, err := a.Search.InsertQuery(ctx, criteria, models.QueryStatusPending)
	if err != nil {
		return nil, &pipeline.PersistenceError{Op: "insert search query", Err: err}
	}

	if err := a.Search.UpdateQueryStatus(ctx, queryID, models.QueryStatusProcessing); err != nil {
		a.Logger.Warn().Err(err).Int64("query_id", queryID).Msg("Failed to mark query processing")
	}

	state := pipeline.NewState(queryID, criteria)
	return a.Orchestrator.Run(ctx, state), nil
}

// RunBatch executes an independent run per criteria entry in a YAML file and
// writes the collected results to the configured output file. One failed run
// does not stop the batch.
func (a *App) RunBatch(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read batch file: %w", err)
	}

	var batch batchFile
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}
	if len(batch.Criteria) == 0 {
		return fmt.Errorf("batch file %s lists no criteria", path)
	}

	a.Logger.Info().Int("runs", len(batch.Criteria)).Str("file", path).Msg("Batch started")

	results := make([]batchResult, 0, len(batch.Criteria))
	for _, criteria := range batch.Criteria {
		result := batchResult{Criteria: criteria, Status: "completed"}

		report, err := a.RunOnce(ctx, criteria)
		switch {
		case err != nil:
			result.Status = "failed"
			result.Error = err.Error()
		case !report.Succeeded():
			result.Status = "failed"
			result.Error = report.ErrorMessage
			result.Report = report
		default:
			result.Report = report
		}

		results = append(results, result)
	}

	encoded, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode batch results: %w", err)
	}
	if err := os.WriteFile(a.Config.Batch.OutputFile, encoded, 0644); err != nil {
		return fmt.Errorf("failed to write batch results: %w", err)
	}

	a.Logger.Info().
		Int("runs", len(results)).
		Str("output", a.Config.Batch.OutputFile).
		Msg("Batch finished")
	return nil
}

// JobStatus returns the metadata for a render job id.
func (a *App) JobStatus(jobID string) *models.ReportJob {
	return a.Queue.Status(jobID)
}

// startScheduler launches the cron runner for recurring analyses.
func (a *App) startScheduler() error {
	if a.Config.Scheduler.Schedule == "" {
		return fmt.Errorf("scheduler is enabled but scheduler.schedule is empty")
	}
	if len(a.Config.Scheduler.Criteria) == 0 {
		return fmt.Errorf("scheduler is enabled but scheduler.criteria is empty")
	}

	a.scheduler = cron.New()
	_, err := a.scheduler.AddFunc(a.Config.Scheduler.Schedule, func() {
		for _, criteria := range a.Config.Scheduler.Criteria {
			report, err := a.RunOnce(context.Background(), criteria)
			if err != nil {
				a.Logger.Error().Err(err).Str("criteria", criteria).Msg("Scheduled run failed to start")
				continue
			}
			a.Logger.Info().
				Str("criteria", criteria).
				Bool("succeeded", report.Succeeded()).
				Msg("Scheduled run finished")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid scheduler expression %q: %w", a.Config.Scheduler.Schedule, err)
	}

	a.scheduler.Start()
	a.Logger.Info().
		Str("schedule", a.Config.Scheduler.Schedule).
		Int("criteria", len(a.Config.Scheduler.Criteria)).
		Msg("Scheduler started")
	return nil
}

// Close shuts the application down in reverse dependency order.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.Queue != nil {
		a.Queue.Stop()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close database")
		}
	}
}
