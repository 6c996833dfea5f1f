// Package llm provides chat completion services backed by hosted language
// model providers. The active provider is selected by the insights
// configuration; both implementations satisfy interfaces.LLMService.
package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

// NewLLMService creates the LLM service implementation selected by
// insights.provider. Construction fails with an error wrapping
// interfaces.ErrNoCredential when the selected provider has no API key;
// callers treat that case as "insights disabled" rather than fatal.
func NewLLMService(cfg *common.InsightsConfig, storage interfaces.StorageManager, logger arbor.ILogger) (interfaces.LLMService, error) {
	if logger == nil {
		logger = common.GetLogger()
	}

	provider := cfg.Provider
	if provider == "" {
		provider = common.LLMProviderClaude
	}

	logger.Info().Str("provider", string(provider)).Msg("Initializing LLM service")

	switch provider {
	case common.LLMProviderClaude:
		return NewClaudeService(&cfg.Claude, storage, logger)

	case common.LLMProviderGemini:
		return NewGeminiService(&cfg.Gemini, storage, logger)

	default:
		return nil, fmt.Errorf("unsupported LLM provider '%s': must be 'claude' or 'gemini'", provider)
	}
}
