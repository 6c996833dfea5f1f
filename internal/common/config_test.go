package common

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "./data", config.Storage.Badger.Path)
	assert.Equal(t, "https://api.semrush.com", config.Semrush.APIURL)
	assert.Equal(t, 1000, config.Semrush.PageLimit)
	assert.Equal(t, 2, config.Semrush.UserAgentType)
	assert.True(t, config.Semrush.CrawlSubdomains)
	assert.False(t, config.Semrush.RespectCrawlDelay)
	assert.Equal(t, LLMProviderClaude, config.Insights.Provider)
	assert.Equal(t, "*/2 * * * *", config.Scheduler.SweepSchedule)
	assert.Equal(t, "0 1 * * 1", config.Scheduler.AuditSchedule)
	assert.Equal(t, "0 3 * * *", config.Scheduler.InsightsSchedule)
	assert.True(t, config.Scheduler.Enabled)
}

func TestLoadFromFiles_MergesAndOverrides(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.toml")
	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9090

[semrush]
api_key = "base-key"
page_limit = 500
`), 0644))

	override := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(override, []byte(`
[semrush]
api_key = "override-key"
`), 0644))

	config, err := LoadFromFiles(nil, base, override)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "override-key", config.Semrush.APIKey)
	// Values set only in the base file survive the merge
	assert.Equal(t, 500, config.Semrush.PageLimit)
	// Defaults remain for untouched sections
	assert.Equal(t, "https://api.semrush.com", config.Semrush.APIURL)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(nil, "/nonexistent/semanalyzer.toml")
	assert.Error(t, err)
}

func TestApplyEnvOverrides_Semrush(t *testing.T) {
	t.Setenv("SEMRUSH_API_KEY", "env-semrush-key")
	t.Setenv("SEMANALYZER_SERVER_PORT", "7070")

	config := NewDefaultConfig()
	applyEnvOverrides(config)

	assert.Equal(t, "env-semrush-key", config.Semrush.APIKey)
	assert.Equal(t, 7070, config.Server.Port)
}

func TestApplyEnvOverrides_PrefixedKeyWins(t *testing.T) {
	t.Setenv("SEMRUSH_API_KEY", "bare-key")
	t.Setenv("SEMANALYZER_SEMRUSH_API_KEY", "prefixed-key")

	config := NewDefaultConfig()
	applyEnvOverrides(config)

	assert.Equal(t, "prefixed-key", config.Semrush.APIKey)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 3000, "0.0.0.0")
	assert.Equal(t, 3000, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)

	// Zero port and empty host leave config untouched
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 3000, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestResolveAPIKey_EnvPriority(t *testing.T) {
	t.Setenv("SEMRUSH_API_KEY", "from-env")

	key, err := ResolveAPIKey(context.Background(), nil, "semrush_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}

func TestResolveAPIKey_ConfigFallback(t *testing.T) {
	t.Setenv("SEMRUSH_API_KEY", "")
	t.Setenv("SEMANALYZER_SEMRUSH_API_KEY", "")

	key, err := ResolveAPIKey(context.Background(), nil, "semrush_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)
}

func TestResolveAPIKey_NotFound(t *testing.T) {
	t.Setenv("SEMRUSH_API_KEY", "")
	t.Setenv("SEMANALYZER_SEMRUSH_API_KEY", "")

	_, err := ResolveAPIKey(context.Background(), nil, "semrush_api_key", "")
	assert.Error(t, err)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("*/2 * * * *"))
	assert.NoError(t, ValidateSchedule("0 1 * * 1"))
	assert.Error(t, ValidateSchedule("* * * * *"))
	assert.Error(t, ValidateSchedule("not a cron"))
	assert.Error(t, ValidateSchedule("0 1"))
}

func TestIsProduction(t *testing.T) {
	config := &Config{Environment: "production"}
	assert.True(t, config.IsProduction())

	config.Environment = "PROD"
	assert.True(t, config.IsProduction())

	config.Environment = "development"
	assert.False(t, config.IsProduction())
}

func TestSemrushDurations(t *testing.T) {
	config := NewDefaultConfig()
	assert.Equal(t, 30*time.Second, config.SemrushRequestTimeout())
	assert.Equal(t, time.Second, config.SemrushRateInterval())

	config.Semrush.RequestTimeout = "bogus"
	config.Semrush.RateLimit = ""
	assert.Equal(t, 30*time.Second, config.SemrushRequestTimeout())
	assert.Equal(t, time.Second, config.SemrushRateInterval())
}
