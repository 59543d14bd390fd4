package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/inquiro/internal/app"
	"github.com/ternarybob/inquiro/internal/common"
	"github.com/ternarybob/inquiro/internal/models"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	criteria     = flag.String("criteria", "", "Search criteria for a single analysis run")
	batchFile    = flag.String("batch", "", "YAML file listing criteria for batch analysis")
	jobID        = flag.String("job", "", "Print the status of a render job and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	version := common.LoadVersionFromFile()

	if *showVersion || *showVersionV {
		fmt.Printf("Inquiro version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("inquiro.toml"); err == nil {
			configFiles = append(configFiles, "inquiro.toml")
		} else if _, err := os.Stat("deployments/local/inquiro.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/inquiro.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		common.GetLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(version)

	logger.Info().
		Strs("config_files", configFiles).
		Str("sqlite_path", config.Storage.SQLite.Path).
		Str("classifier", config.Pipeline.Classifier).
		Msg("Application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("Interrupt signal received")
		cancel()
	}()

	switch {
	case *jobID != "":
		printJobStatus(application, *jobID)

	case *batchFile != "":
		if err := application.RunBatch(ctx, *batchFile); err != nil {
			logger.Fatal().Err(err).Str("file", *batchFile).Msg("Batch run failed")
			os.Exit(1)
		}

	case *criteria != "":
		runSingle(ctx, application, logger, *criteria)

	case config.Scheduler.Enabled:
		logger.Info().Msg("Running in scheduler mode - Press Ctrl+C to stop")
		<-ctx.Done()

	default:
		fmt.Fprintln(os.Stderr, "Nothing to do: pass -criteria, -batch or -job, or enable the scheduler in config")
		flag.Usage()
		os.Exit(2)
	}
}

// runSingle executes one analysis run and waits for its render job so the
// PDF exists before the process exits.
func runSingle(ctx context.Context, application *app.App, logger arbor.ILogger, criteria string) {
	report, err := application.RunOnce(ctx, criteria)
	if err != nil {
		logger.Fatal().Err(err).Msg("Analysis run failed to start")
		os.Exit(1)
	}

	output, err := report.ToJSON()
	if err == nil {
		fmt.Println(output)
	}

	if !report.Succeeded() {
		logger.Warn().Str("error", report.ErrorMessage).Msg("Analysis run finished with errors")
	}

	if report.RenderJob == nil {
		return
	}

	job := waitForJob(ctx, application, report.RenderJob.JobID)
	switch job.Status {
	case models.ReportJobStatusCompleted:
		logger.Info().Str("pdf", job.OutputPath).Msg("Report PDF ready")
	case models.ReportJobStatusFailed:
		logger.Warn().Str("error", job.Error).Msg("Report PDF rendering failed")
	default:
		logger.Warn().Str("status", string(job.Status)).Msg("Exiting before report PDF finished")
	}
}

// waitForJob polls the job store until the render job reaches a terminal
// status or the context is cancelled.
func waitForJob(ctx context.Context, application *app.App, jobID string) *models.ReportJob {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		job := application.JobStatus(jobID)
		if job.IsTerminal() || job.Status == models.ReportJobStatusNotFound {
			return job
		}

		select {
		case <-ctx.Done():
			return job
		case <-ticker.C:
		}
	}
}

func printJobStatus(application *app.App, jobID string) {
	job := application.JobStatus(jobID)
	data, err := job.ToJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode job status: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(data)
}
