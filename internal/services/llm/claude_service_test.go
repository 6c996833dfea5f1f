package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// clearProviderEnv blanks every API key environment variable so tests
// exercise the config fallback deterministically.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SEMANALYZER_CLAUDE_API_KEY",
		"ANTHROPIC_API_KEY",
		"SEMANALYZER_GEMINI_API_KEY",
		"GEMINI_API_KEY",
	} {
		t.Setenv(name, "")
	}
}

func TestConvertMessagesToClaude(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "You are an SEO analyst."},
		{Role: "user", Content: "Summarize the audit."},
		{Role: "assistant", Content: "The audit found 12 errors."},
		{Role: "user", Content: "What should we fix first?"},
	}

	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		t.Fatalf("convertMessagesToClaude() error = %v", err)
	}

	if systemText != "You are an SEO analyst." {
		t.Errorf("systemText = %q, want system message content", systemText)
	}
	if len(claudeMessages) != 3 {
		t.Fatalf("len(claudeMessages) = %d, want 3 (system excluded)", len(claudeMessages))
	}
	if string(claudeMessages[0].Role) != "user" {
		t.Errorf("claudeMessages[0].Role = %q, want user", claudeMessages[0].Role)
	}
	if string(claudeMessages[1].Role) != "assistant" {
		t.Errorf("claudeMessages[1].Role = %q, want assistant", claudeMessages[1].Role)
	}
}

func TestConvertMessagesToClaude_KeepsFirstSystemMessage(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "first"},
		{Role: "system", Content: "second"},
		{Role: "user", Content: "hello"},
	}

	_, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		t.Fatalf("convertMessagesToClaude() error = %v", err)
	}
	if systemText != "first" {
		t.Errorf("systemText = %q, want first system message only", systemText)
	}
}

func TestConvertMessagesToClaude_Empty(t *testing.T) {
	if _, _, err := convertMessagesToClaude(nil); err == nil {
		t.Error("convertMessagesToClaude(nil) should return error")
	}
}

func TestConvertMessagesToClaude_RequiresUserMessage(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "instructions"},
		{Role: "assistant", Content: "response"},
	}

	if _, _, err := convertMessagesToClaude(messages); err == nil {
		t.Error("convertMessagesToClaude() should require at least one user message")
	}
}

func TestConvertMessagesToClaude_UnknownRoleTreatedAsUser(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "user", Content: "hello"},
		{Role: "tool", Content: "tool output"},
	}

	claudeMessages, _, err := convertMessagesToClaude(messages)
	if err != nil {
		t.Fatalf("convertMessagesToClaude() error = %v", err)
	}
	if len(claudeMessages) != 2 {
		t.Fatalf("len(claudeMessages) = %d, want 2", len(claudeMessages))
	}
	if string(claudeMessages[1].Role) != "user" {
		t.Errorf("claudeMessages[1].Role = %q, want user for unknown role", claudeMessages[1].Role)
	}
}

func TestNewClaudeService(t *testing.T) {
	clearProviderEnv(t)

	cfg := &common.ClaudeConfig{
		APIKey:      "test-key",
		Model:       "claude-haiku-3-5-20241022",
		MaxTokens:   2000,
		Timeout:     "2m",
		RateLimit:   "1s",
		Temperature: 0.7,
	}

	service, err := NewClaudeService(cfg, nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewClaudeService() error = %v", err)
	}
	defer service.Close()

	if service.Provider() != "claude" {
		t.Errorf("Provider() = %q, want claude", service.Provider())
	}
	if err := service.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestNewClaudeService_AppliesDefaults(t *testing.T) {
	clearProviderEnv(t)

	service, err := NewClaudeService(&common.ClaudeConfig{APIKey: "test-key"}, nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewClaudeService() error = %v", err)
	}
	defer service.Close()

	if service.model != "claude-haiku-3-5-20241022" {
		t.Errorf("model = %q, want default model", service.model)
	}
	if service.maxTokens != 2000 {
		t.Errorf("maxTokens = %d, want 2000", service.maxTokens)
	}
}

func TestNewClaudeService_WithoutAPIKey(t *testing.T) {
	clearProviderEnv(t)

	_, err := NewClaudeService(&common.ClaudeConfig{}, nil, arbor.NewLogger())
	if !errors.Is(err, interfaces.ErrNoCredential) {
		t.Errorf("NewClaudeService() error = %v, want ErrNoCredential", err)
	}
}

func TestClaudeService_CloseDisablesHealthCheck(t *testing.T) {
	clearProviderEnv(t)

	service, err := NewClaudeService(&common.ClaudeConfig{APIKey: "test-key"}, nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewClaudeService() error = %v", err)
	}

	if err := service.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := service.HealthCheck(context.Background()); !errors.Is(err, interfaces.ErrNoCredential) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNoCredential", err)
	}
}
