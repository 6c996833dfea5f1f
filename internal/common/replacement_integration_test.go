package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// TestConfigReplacement_Integration tests that config replacement works with
// the actual Config struct from the application
func TestConfigReplacement_Integration(t *testing.T) {
	logger := arbor.NewLogger()
	kvMap := map[string]string{
		"semrush-api-key": "sk-semrush-12345",
		"claude-api-key":  "sk-ant-67890",
		"gemini-api-key":  "sk-gemini-abcde",
		"db-path":         "/data/semanalyzer",
	}

	config := NewDefaultConfig()
	config.Semrush.APIKey = "{semrush-api-key}"
	config.Insights.Claude.APIKey = "{claude-api-key}"
	config.Insights.Gemini.APIKey = "{gemini-api-key}"
	config.Storage.Badger.Path = "{db-path}"

	err := ReplaceInStruct(config, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "sk-semrush-12345", config.Semrush.APIKey)
	assert.Equal(t, "sk-ant-67890", config.Insights.Claude.APIKey)
	assert.Equal(t, "sk-gemini-abcde", config.Insights.Gemini.APIKey)
	assert.Equal(t, "/data/semanalyzer", config.Storage.Badger.Path)

	// Untouched fields keep their defaults
	assert.Equal(t, "https://api.semrush.com", config.Semrush.APIURL)
	assert.Equal(t, "claude-haiku-3-5-20241022", config.Insights.Claude.Model)
}

// TestReplaceInStruct_MapStringString tests map[string]string support
func TestReplaceInStruct_MapStringString(t *testing.T) {
	logger := arbor.NewLogger()
	kvMap := map[string]string{
		"value1": "replaced1",
		"value2": "replaced2",
	}

	type Config struct {
		Name    string
		Options map[string]string
	}

	config := &Config{
		Name: "test",
		Options: map[string]string{
			"key1": "{value1}",
			"key2": "{value2}",
			"key3": "static",
		},
	}

	err := ReplaceInStruct(config, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "replaced1", config.Options["key1"])
	assert.Equal(t, "replaced2", config.Options["key2"])
	assert.Equal(t, "static", config.Options["key3"])
}

// TestReplaceInStruct_SliceOfStrings tests []string support
func TestReplaceInStruct_SliceOfStrings(t *testing.T) {
	logger := arbor.NewLogger()
	kvMap := map[string]string{
		"out1": "stdout",
		"out2": "file",
	}

	type LogConfig struct {
		Output []string
	}

	logCfg := &LogConfig{
		Output: []string{"{out1}", "{out2}", "static"},
	}

	err := ReplaceInStruct(logCfg, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, []string{"stdout", "file", "static"}, logCfg.Output)
}
