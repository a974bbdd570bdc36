package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, DefaultUserAgent, config.Crawler.UserAgent)
	assert.Equal(t, 3*time.Second, config.CrawlDelay())
	assert.Equal(t, 30*time.Second, config.RequestTimeout())
	assert.Equal(t, time.Hour, config.RetryInterval())
	assert.Equal(t, 24*time.Hour, config.CrawlInterval())
	assert.Equal(t, 3, config.Scheduler.MaxAttempts)
	assert.Equal(t, 2, config.Triggers.CronMaxAttempts)
	assert.False(t, config.IsProduction())
	assert.NoError(t, config.Validate())
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	base := writeConfigFile(t, "base.toml", `
environment = "production"

[crawler]
delay = "5s"
exclude_categories = ["angebote-der-woche"]

[scheduler]
max_attempts = 4
`)
	override := writeConfigFile(t, "override.toml", `
[crawler]
delay = "1s"
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.True(t, config.IsProduction())
	assert.Equal(t, time.Second, config.CrawlDelay())
	assert.Equal(t, 4, config.Scheduler.MaxAttempts)
	assert.Equal(t, []string{"angebote-der-woche"}, config.Crawler.ExcludeCategories)
	// Untouched defaults survive
	assert.Equal(t, 30*time.Second, config.RequestTimeout())
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("PRICEWATCH_SERVER_PORT", "9191")
	t.Setenv("PRICEWATCH_CRON_SECRET", "s3cret")
	t.Setenv("PRICEWATCH_ENV", "prod")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 9191, config.Server.Port)
	assert.Equal(t, "s3cret", config.Triggers.CronSecret)
	assert.True(t, config.IsProduction())
}

func TestLoadFromFiles_InvalidValues(t *testing.T) {
	badDuration := writeConfigFile(t, "bad.toml", `
[scheduler]
retry_interval = "soon"
`)
	_, err := LoadFromFiles(badDuration)
	assert.Error(t, err)

	badKind := writeConfigFile(t, "kind.toml", `
[scheduler]
kinds = ["flyers"]
`)
	_, err = LoadFromFiles(badKind)
	assert.Error(t, err)

	_, err = LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 8080, config.Server.Port)

	ApplyFlagOverrides(config, 7070, "0.0.0.0")
	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestValidateJobSchedule(t *testing.T) {
	assert.NoError(t, ValidateJobSchedule("0 6 * * *"))
	assert.NoError(t, ValidateJobSchedule("*/15 * * * *"))
	assert.Error(t, ValidateJobSchedule("* * * * *"))
	assert.Error(t, ValidateJobSchedule("*/2 * * * *"))
	assert.Error(t, ValidateJobSchedule("not a schedule"))
}
