package llm

import (
	"errors"
	"strings"
	"testing"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/ternarybob/arbor"
)

func TestNewLLMService_SelectsClaude(t *testing.T) {
	clearProviderEnv(t)

	cfg := &common.InsightsConfig{
		Provider: common.LLMProviderClaude,
		Claude:   common.ClaudeConfig{APIKey: "test-key"},
	}

	service, err := NewLLMService(cfg, nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewLLMService() error = %v", err)
	}
	defer service.Close()

	if service.Provider() != "claude" {
		t.Errorf("Provider() = %q, want claude", service.Provider())
	}
}

func TestNewLLMService_SelectsGemini(t *testing.T) {
	clearProviderEnv(t)

	cfg := &common.InsightsConfig{
		Provider: common.LLMProviderGemini,
		Gemini:   common.GeminiConfig{APIKey: "test-key"},
	}

	service, err := NewLLMService(cfg, nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewLLMService() error = %v", err)
	}
	defer service.Close()

	if service.Provider() != "gemini" {
		t.Errorf("Provider() = %q, want gemini", service.Provider())
	}
}

func TestNewLLMService_DefaultsToClaude(t *testing.T) {
	clearProviderEnv(t)

	cfg := &common.InsightsConfig{
		Claude: common.ClaudeConfig{APIKey: "test-key"},
	}

	service, err := NewLLMService(cfg, nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewLLMService() error = %v", err)
	}
	defer service.Close()

	if service.Provider() != "claude" {
		t.Errorf("Provider() = %q, want claude for empty provider", service.Provider())
	}
}

func TestNewLLMService_WithoutCredential(t *testing.T) {
	clearProviderEnv(t)

	_, err := NewLLMService(&common.InsightsConfig{Provider: common.LLMProviderClaude}, nil, arbor.NewLogger())
	if !errors.Is(err, interfaces.ErrNoCredential) {
		t.Errorf("NewLLMService() error = %v, want ErrNoCredential", err)
	}
}

func TestNewLLMService_UnsupportedProvider(t *testing.T) {
	clearProviderEnv(t)

	_, err := NewLLMService(&common.InsightsConfig{Provider: "openai"}, nil, arbor.NewLogger())
	if err == nil || !strings.Contains(err.Error(), "unsupported LLM provider") {
		t.Errorf("NewLLMService() error = %v, want unsupported provider error", err)
	}
}
