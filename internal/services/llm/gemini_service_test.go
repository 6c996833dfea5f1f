package llm

import (
	"errors"
	"testing"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

func TestConvertMessagesToGemini(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "You are an SEO analyst."},
		{Role: "user", Content: "Summarize the audit."},
		{Role: "assistant", Content: "The audit found 12 errors."},
	}

	contents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		t.Fatalf("convertMessagesToGemini() error = %v", err)
	}

	if systemText != "You are an SEO analyst." {
		t.Errorf("systemText = %q, want system message content", systemText)
	}
	if len(contents) != 2 {
		t.Fatalf("len(contents) = %d, want 2 (system excluded)", len(contents))
	}
	if contents[0].Role != genai.RoleUser {
		t.Errorf("contents[0].Role = %q, want %q", contents[0].Role, genai.RoleUser)
	}
	if contents[1].Role != genai.RoleModel {
		t.Errorf("contents[1].Role = %q, want %q", contents[1].Role, genai.RoleModel)
	}
}

func TestConvertMessagesToGemini_Empty(t *testing.T) {
	if _, _, err := convertMessagesToGemini(nil); err == nil {
		t.Error("convertMessagesToGemini(nil) should return error")
	}
}

func TestConvertMessagesToGemini_RequiresUserMessage(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "assistant", Content: "response"},
	}

	if _, _, err := convertMessagesToGemini(messages); err == nil {
		t.Error("convertMessagesToGemini() should require at least one user message")
	}
}

func TestNewGeminiService(t *testing.T) {
	clearProviderEnv(t)

	cfg := &common.GeminiConfig{
		APIKey:      "test-key",
		Model:       "gemini-3-flash-preview",
		Timeout:     "2m",
		RateLimit:   "4s",
		Temperature: 0.7,
	}

	service, err := NewGeminiService(cfg, nil, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewGeminiService() error = %v", err)
	}
	defer service.Close()

	if service.Provider() != "gemini" {
		t.Errorf("Provider() = %q, want gemini", service.Provider())
	}
}

func TestNewGeminiService_WithoutAPIKey(t *testing.T) {
	clearProviderEnv(t)

	_, err := NewGeminiService(&common.GeminiConfig{}, nil, arbor.NewLogger())
	if !errors.Is(err, interfaces.ErrNoCredential) {
		t.Errorf("NewGeminiService() error = %v, want ErrNoCredential", err)
	}
}
