package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

// ClaudeService implements interfaces.LLMService using the Anthropic
// Messages API. A single service instance is safe for concurrent use;
// the rate limiter serializes calls to stay within the configured quota.
type ClaudeService struct {
	client      anthropic.Client
	apiKey      string
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	retry       *RetryConfig
	logger      arbor.ILogger
}

// NewClaudeService creates a Claude-backed LLM service for insight generation.
//
// The API key is resolved in priority order: environment variables
// (SEMANALYZER_CLAUDE_API_KEY, ANTHROPIC_API_KEY), the key/value store
// entry "anthropic_api_key", then the config value. Returns an error
// wrapping interfaces.ErrNoCredential when no key can be resolved.
func NewClaudeService(cfg *common.ClaudeConfig, storage interfaces.StorageManager, logger arbor.ILogger) (*ClaudeService, error) {
	if logger == nil {
		logger = common.GetLogger()
	}

	var kv interfaces.KeyValueStorage
	if storage != nil {
		kv = storage.KVStorage()
	}

	apiKey, err := common.ResolveAPIKey(context.Background(), kv, "anthropic_api_key", cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("claude: %w", interfaces.ErrNoCredential)
	}

	model := cfg.Model
	if model == "" {
		model = "claude-haiku-3-5-20241022"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	timeout := 2 * time.Minute
	if d, parseErr := time.ParseDuration(cfg.Timeout); parseErr == nil && d > 0 {
		timeout = d
	}

	rateInterval := time.Second
	if d, parseErr := time.ParseDuration(cfg.RateLimit); parseErr == nil && d > 0 {
		rateInterval = d
	}

	service := &ClaudeService{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		apiKey:      apiKey,
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		limiter:     rate.NewLimiter(rate.Every(rateInterval), 1),
		retry:       NewDefaultRetryConfig(),
		logger:      logger,
	}

	logger.Info().
		Str("provider", string(common.LLMProviderClaude)).
		Str("model", model).
		Int("max_tokens", maxTokens).
		Msg("Claude LLM service initialized")

	return service, nil
}

// Chat generates a completion for the given conversation history.
// Rate limit errors are retried with exponential backoff.
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait failed: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(s.maxTokens),
		Messages:  claudeMessages,
	}

	if s.temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.temperature))
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	var resp *anthropic.Message
	var apiErr error

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		resp, apiErr = s.client.Messages.New(ctx, params)
		if apiErr == nil {
			break
		}

		if attempt == s.retry.MaxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * 2 * time.Second
		if IsRateLimitError(apiErr) {
			backoff = s.retry.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		}

		s.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Claude API call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("claude API call failed after %d retries: %w", s.retry.MaxRetries, apiErr)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}

	return text.String(), nil
}

// HealthCheck verifies a credential is configured. No live probe is made;
// insight generation is the only consumer and tolerates call-time failures.
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	if s.apiKey == "" {
		return fmt.Errorf("claude: %w", interfaces.ErrNoCredential)
	}
	return nil
}

// Provider returns the provider name.
func (s *ClaudeService) Provider() string {
	return string(common.LLMProviderClaude)
}

// Close releases the API client.
func (s *ClaudeService) Close() error {
	s.client = anthropic.Client{}
	s.apiKey = ""
	return nil
}

// convertMessagesToClaude converts []interfaces.Message to Claude MessageParam
// format. System messages are extracted separately for use with the System
// parameter; only the first one is kept. At least one message must have role
// "user". Unknown roles are treated as user input.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return claudeMessages, systemText, nil
}
