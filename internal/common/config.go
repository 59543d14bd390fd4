package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Collector   CollectorConfig `toml:"collector"`
	Claude      ClaudeConfig    `toml:"claude"`
	Reports     ReportsConfig   `toml:"reports"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Batch       BatchConfig     `toml:"batch"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
}

// SQLiteConfig represents SQLite-specific configuration
type SQLiteConfig struct {
	Path          string `toml:"path" validate:"required"`
	CacheSizeMB   int    `toml:"cache_size_mb" validate:"gte=1"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms" validate:"gte=0"`
	WALMode       bool   `toml:"wal_mode"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"`
	Output []string `toml:"output" validate:"min=1,dive,oneof=stdout console file"`
}

// PipelineConfig controls stage execution behavior for one analysis run.
type PipelineConfig struct {
	StageRetries int    `toml:"stage_retries" validate:"gte=0,lte=10"`
	RetryDelayMS int    `toml:"retry_delay_ms" validate:"gte=0"`
	Classifier   string `toml:"classifier" validate:"oneof=rules llm"` // capability preferred by the classification stage
}

// CollectorConfig configures the data-collection capabilities.
type CollectorConfig struct {
	Sources        []string `toml:"sources" validate:"min=1,dive,oneof=websearch register"`
	SearchEndpoint string   `toml:"search_endpoint"` // web-search API base URL
	SearchAPIKey   string   `toml:"search_api_key"`  // web-search API key
	RegisterURL    string   `toml:"register_url"`    // HTML patent-register base URL
	RequestTimeout string   `toml:"request_timeout"` // e.g. "30s"
	RatePerSecond  float64  `toml:"rate_per_second" validate:"gt=0"`
	Burst          int      `toml:"burst" validate:"gte=1"`
	MaxResults     int      `toml:"max_results" validate:"gte=1"`
}

// ClaudeConfig configures the optional LLM classification capability.
type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"`
}

// ReportsConfig configures the asynchronous report-rendering subsystem.
type ReportsConfig struct {
	OutputDir     string `toml:"output_dir" validate:"required"` // rendered PDF artifacts
	JobsDir       string `toml:"jobs_dir" validate:"required"`   // one metadata file per job id
	Workers       int    `toml:"workers" validate:"gte=1,lte=16"`
	RenderTimeout string `toml:"render_timeout"` // per-job deadline, e.g. "2m"
	StaleAfter    string `toml:"stale_after"`    // startup sweep: non-terminal jobs older than this are marked failed
}

// SchedulerConfig enables cron-driven recurring analyses.
type SchedulerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Schedule string   `toml:"schedule"` // cron expression
	Criteria []string `toml:"criteria"` // criteria to re-run on each tick
}

type BatchConfig struct {
	OutputFile string `toml:"output_file"`
}

// NewDefaultConfig returns the configuration defaults applied before any file
// or environment override.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path:          "./data/inquiro.db",
				CacheSizeMB:   64,
				BusyTimeoutMS: 5000,
				WALMode:       true,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Pipeline: PipelineConfig{
			StageRetries: 2,
			RetryDelayMS: 200,
			Classifier:   "rules",
		},
		Collector: CollectorConfig{
			Sources:        []string{"websearch"},
			RequestTimeout: "30s",
			RatePerSecond:  2,
			Burst:          4,
			MaxResults:     20,
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
			Timeout:   "60s",
		},
		Reports: ReportsConfig{
			OutputDir:     "./reports",
			JobsDir:       "./reports/jobs",
			Workers:       2,
			RenderTimeout: "2m",
			StaleAfter:    "24h",
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
		},
		Batch: BatchConfig{
			OutputFile: "batch_results.json",
		},
	}
}

// LoadFromFiles loads configuration with precedence: defaults -> file(s) ->
// environment. Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration using go-playground/validator tags plus
// the duration fields that tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for name, value := range map[string]string{
		"collector.request_timeout": c.Collector.RequestTimeout,
		"reports.render_timeout":    c.Reports.RenderTimeout,
		"reports.stale_after":       c.Reports.StaleAfter,
		"claude.timeout":            c.Claude.Timeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid configuration: %s: %w", name, err)
		}
	}

	return nil
}

// RetryDelay returns the fixed delay between stage retry attempts.
func (c *PipelineConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// ParseDuration returns the parsed duration for a config value, falling back
// to def when the value is empty or malformed. Validate rejects malformed
// values on the load path; the fallback covers hand-built configs in tests.
func ParseDuration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("INQUIRO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if path := os.Getenv("INQUIRO_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}

	if level := os.Getenv("INQUIRO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if key := os.Getenv("INQUIRO_SEARCH_API_KEY"); key != "" {
		config.Collector.SearchAPIKey = key
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = key
	}

	if workers := os.Getenv("INQUIRO_REPORT_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			config.Reports.Workers = w
		}
	}
}
