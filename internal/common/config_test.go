package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inquiro.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "rules", config.Pipeline.Classifier)
	assert.Equal(t, 2, config.Pipeline.StageRetries)
	assert.Equal(t, 2, config.Reports.Workers)
	assert.Equal(t, "info", config.Logging.Level)

	require.NoError(t, config.Validate())
}

func TestLoadFromFiles_Precedence(t *testing.T) {
	first := writeConfig(t, `
[pipeline]
stage_retries = 5

[reports]
workers = 4
`)
	second := writeConfig(t, `
[reports]
workers = 8
`)

	config, err := LoadFromFiles(first, second)
	require.NoError(t, err)

	// Later file overrides the earlier one; untouched keys keep defaults
	assert.Equal(t, 5, config.Pipeline.StageRetries)
	assert.Equal(t, 8, config.Reports.Workers)
	assert.Equal(t, "rules", config.Pipeline.Classifier)
}

func TestLoadFromFiles_EnvOverride(t *testing.T) {
	t.Setenv("INQUIRO_SQLITE_PATH", "/tmp/override.db")
	t.Setenv("INQUIRO_LOG_LEVEL", "debug")

	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", config.Storage.SQLite.Path)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles("/does/not/exist.toml")
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	config := NewDefaultConfig()
	config.Pipeline.Classifier = "magic"
	assert.Error(t, config.Validate())

	config = NewDefaultConfig()
	config.Reports.Workers = 99
	assert.Error(t, config.Validate())

	config = NewDefaultConfig()
	config.Reports.RenderTimeout = "two minutes"
	assert.Error(t, config.Validate())

	config = NewDefaultConfig()
	config.Collector.Sources = []string{"carrier-pigeon"}
	assert.Error(t, config.Validate())
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, ParseDuration("30s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("bogus", time.Minute))
}

func TestPipelineConfig_RetryDelay(t *testing.T) {
	config := PipelineConfig{RetryDelayMS: 250}
	assert.Equal(t, 250*time.Millisecond, config.RetryDelay())
}
