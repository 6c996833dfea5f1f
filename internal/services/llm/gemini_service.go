package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

// GeminiService implements interfaces.LLMService using the Google Gemini
// API. The free tier allows 15 requests per minute, hence the default 4s
// rate interval; rate limit errors honor the API-suggested retry delay.
type GeminiService struct {
	client      *genai.Client
	apiKey      string
	model       string
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	retry       *RetryConfig
	logger      arbor.ILogger
}

// NewGeminiService creates a Gemini-backed LLM service for insight generation.
//
// The API key is resolved in priority order: environment variables
// (SEMANALYZER_GEMINI_API_KEY, GEMINI_API_KEY), the key/value store entry
// "gemini_api_key", then the config value. Returns an error wrapping
// interfaces.ErrNoCredential when no key can be resolved.
func NewGeminiService(cfg *common.GeminiConfig, storage interfaces.StorageManager, logger arbor.ILogger) (*GeminiService, error) {
	if logger == nil {
		logger = common.GetLogger()
	}

	ctx := context.Background()

	var kv interfaces.KeyValueStorage
	if storage != nil {
		kv = storage.KVStorage()
	}

	apiKey, err := common.ResolveAPIKey(ctx, kv, "gemini_api_key", cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", interfaces.ErrNoCredential)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-3-flash-preview"
	}

	timeout := 2 * time.Minute
	if d, parseErr := time.ParseDuration(cfg.Timeout); parseErr == nil && d > 0 {
		timeout = d
	}

	rateInterval := 4 * time.Second
	if d, parseErr := time.ParseDuration(cfg.RateLimit); parseErr == nil && d > 0 {
		rateInterval = d
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		client:      client,
		apiKey:      apiKey,
		model:       model,
		temperature: cfg.Temperature,
		timeout:     timeout,
		limiter:     rate.NewLimiter(rate.Every(rateInterval), 1),
		retry:       NewDefaultRetryConfig(),
		logger:      logger,
	}

	logger.Info().
		Str("provider", string(common.LLMProviderGemini)).
		Str("model", model).
		Dur("rate_interval", rateInterval).
		Msg("Gemini LLM service initialized")

	return service, nil
}

// Chat generates a completion for the given conversation history.
// Rate limit errors are retried with backoff honoring the API-suggested
// retry delay when one is present in the error message.
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	geminiContents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait failed: %w", err)
	}

	config := &genai.GenerateContentConfig{}
	if s.temperature > 0 {
		config.Temperature = genai.Ptr(s.temperature)
	}

	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	var resp *genai.GenerateContentResponse
	var apiErr error

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		resp, apiErr = s.client.Models.GenerateContent(ctx, s.model, geminiContents, config)
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
			Msg("Retrying Gemini API call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("gemini API call failed after %d retries: %w", s.retry.MaxRetries, apiErr)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	responseText := resp.Text()
	if responseText == "" {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	return responseText, nil
}

// HealthCheck verifies a credential is configured. No live probe is made;
// insight generation is the only consumer and tolerates call-time failures.
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	if s.apiKey == "" || s.client == nil {
		return fmt.Errorf("gemini: %w", interfaces.ErrNoCredential)
	}
	return nil
}

// Provider returns the provider name.
func (s *GeminiService) Provider() string {
	return string(common.LLMProviderGemini)
}

// Close releases the API client.
func (s *GeminiService) Close() error {
	s.client = nil
	s.apiKey = ""
	return nil
}

// convertMessagesToGemini converts []interfaces.Message to Gemini Content
// format. System messages are extracted separately for use with
// SystemInstruction; only the first one is kept. At least one message must
// have role "user". Unknown roles are treated as user input.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
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

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		var geminiRole string
		switch msg.Role {
		case "assistant":
			geminiRole = genai.RoleModel
		default:
			geminiRole = genai.RoleUser
		}

		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents, systemText, nil
}
