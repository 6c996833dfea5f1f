package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Semrush     SemrushConfig   `toml:"semrush"`
	Insights    InsightsConfig  `toml:"insights"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Profiles    ProfilesConfig  `toml:"profiles"`
	Variables   KeysDirConfig   `toml:"variables"` // Variables directory (./keys/*.toml) for key/value pairs
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level         string   `toml:"level"`           // "debug", "info", "warn", "error"
	Format        string   `toml:"format"`          // "json" or "text"
	Output        []string `toml:"output"`          // "stdout", "file"
	TimeFormat    string   `toml:"time_format"`     // Time format for logs (default: "15:04:05.000")
	MinEventLevel string   `toml:"min_event_level"` // Minimum log level to publish as events to UI
}

// SemrushConfig contains SEMrush Site Audit API configuration
type SemrushConfig struct {
	APIURL            string `toml:"api_url"`             // Base URL for the SEMrush API (default: "https://api.semrush.com")
	APIKey            string `toml:"api_key"`             // SEMrush API key (SEMRUSH_API_KEY or config)
	RequestTimeout    string `toml:"request_timeout"`     // HTTP request timeout as duration string (default: "30s")
	RateLimit         string `toml:"rate_limit"`          // Minimum spacing between API calls (default: "1s")
	PageLimit         int    `toml:"page_limit"`          // Crawl page budget sent when enabling audits (default: 1000)
	UserAgentType     int    `toml:"user_agent_type"`     // SEMrush crawler user agent type (default: 2)
	CrawlSubdomains   bool   `toml:"crawl_subdomains"`    // Include subdomains in the crawl (default: true)
	RespectCrawlDelay bool   `toml:"respect_crawl_delay"` // Honor robots.txt crawl-delay (default: false)
	Notify            bool   `toml:"notify"`              // Email notification flag passed to SEMrush (default: true)
}

// GeminiConfig contains Google Gemini API configuration for insight generation
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for insight generation (default: "gemini-3-flash-preview")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration for insight generation
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key (ANTHROPIC_API_KEY or config)
	Model       string  `toml:"model"`       // Model for insight generation (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 2000)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
)

// InsightsConfig contains configuration for AI insight generation
type InsightsConfig struct {
	Provider LLMProvider  `toml:"provider"` // "claude" or "gemini" (default: "claude")
	Claude   ClaudeConfig `toml:"claude"`
	Gemini   GeminiConfig `toml:"gemini"`
}

// SchedulerConfig contains cron schedules for background jobs
type SchedulerConfig struct {
	Enabled          bool   `toml:"enabled"`           // Master switch for scheduled jobs (default: true)
	SweepSchedule    string `toml:"sweep_schedule"`    // Pending/running task sweep (default: "*/2 * * * *")
	AuditSchedule    string `toml:"audit_schedule"`    // Weekly audit launch for all clients (default: "0 1 * * 1")
	InsightsSchedule string `toml:"insights_schedule"` // Daily insight generation pass (default: "0 3 * * *")
	CatalogSchedule  string `toml:"catalog_schedule"`  // Issue catalog refresh (default: "30 4 * * 0")
}

// WebSocketConfig contains configuration for WebSocket event streaming
type WebSocketConfig struct {
	MinLevel        string   `toml:"min_level"`        // Minimum event severity to broadcast ("debug", "info", "warn", "error")
	ExcludePatterns []string `toml:"exclude_patterns"` // Payload text patterns to exclude from broadcasting
	// Whitelist of event types to broadcast via WebSocket. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
	// Throttle intervals for high-frequency events. Map of event type to duration string.
	// Example: {"task_progress": "1s"}
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// ProfilesConfig contains configuration for crawl profile files
type ProfilesConfig struct {
	Dir string `toml:"dir"` // Directory containing crawl profile YAML files (default: "./profiles")
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in semanalyzer.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development", // Default to development mode
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:         "info",                     // Info level for production (debug|info|warn|error)
			Format:        "text",                     // Human-readable text format (text|json)
			Output:        []string{"stdout", "file"}, // Log to both console and file
			MinEventLevel: "info",                     // Publish info and above as events to UI
		},
		Semrush: SemrushConfig{
			APIURL:            "https://api.semrush.com",
			APIKey:            "", // User must provide API key (SEMRUSH_API_KEY or config)
			RequestTimeout:    "30s",
			RateLimit:         "1s", // 1 request per second respects SEMrush quotas
			PageLimit:         1000,
			UserAgentType:     2,
			CrawlSubdomains:   true,
			RespectCrawlDelay: false,
			Notify:            true,
		},
		Insights: InsightsConfig{
			Provider: LLMProviderClaude,
			Claude: ClaudeConfig{
				APIKey:      "",                          // User must provide API key (ANTHROPIC_API_KEY or config)
				Model:       "claude-haiku-3-5-20241022", // Model for insight generation
				MaxTokens:   2000,                        // Insights are short structured lists
				Timeout:     "2m",
				RateLimit:   "1s",
				Temperature: 0.7,
			},
			Gemini: GeminiConfig{
				APIKey:      "",                       // User must provide API key (GEMINI_API_KEY or config)
				Model:       "gemini-3-flash-preview", // Model for insight generation
				Timeout:     "2m",
				RateLimit:   "4s", // Default to 4s (15 RPM) for free tier
				Temperature: 0.7,
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			SweepSchedule:    "*/2 * * * *", // Sweep pending/running tasks every 2 minutes
			AuditSchedule:    "0 1 * * 1",   // Weekly audits Monday 1 AM
			InsightsSchedule: "0 3 * * *",   // Daily insight pass 3 AM
			CatalogSchedule:  "30 4 * * 0",  // Issue catalog refresh Sunday 4:30 AM
		},
		WebSocket: WebSocketConfig{
			MinLevel:        "info", // Default: info severity and above
			ExcludePatterns: []string{},
			// Empty AllowedEvents allows all events
			AllowedEvents: []string{},
			// Throttle high-frequency events to prevent WebSocket flooding during sweeps
			ThrottleIntervals: map[string]string{
				"task_progress": "1s", // Max 1 task progress update per second per task
			},
		},
		Profiles: ProfilesConfig{
			Dir: "./profiles", // Default directory for crawl profile YAML files
		},
		Variables: KeysDirConfig{
			Dir: "./", // Default directory for variables.toml file
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// Priority system: CLI flags > Environment variables > Config file > Defaults
// kvStorage can be nil for backward compatibility (replacement will be skipped)
func LoadFromFile(kvStorage interfaces.KeyValueStorage, path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles(kvStorage)
	}
	return LoadFromFiles(kvStorage, path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env -> CLI
// Later files override earlier files.
// Example: LoadFromFiles(kvStorage, "base.toml", "override.toml") - override.toml settings take precedence
// kvStorage can be nil for backward compatibility (replacement will be skipped)
func LoadFromFiles(kvStorage interfaces.KeyValueStorage, paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Perform {key-name} replacement if KV storage is available
	if kvStorage != nil {
		ctx := context.Background()
		kvMap, err := kvStorage.GetAll(ctx)
		if err != nil {
			logger := arbor.NewLogger()
			logger.Warn().Err(err).Msg("Failed to fetch KV map for config replacement, skipping replacement")
		} else {
			logger := arbor.NewLogger()
			if err := ReplaceInStruct(config, kvMap, logger); err != nil {
				logger.Warn().Err(err).Msg("Failed to replace key references in config")
			} else {
				logger.Info().Int("keys", len(kvMap)).Msg("Applied key/value replacements to config")
			}
		}
	}

	// Apply environment variables (overrides all file configs and replacements)
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: SEMANALYZER_ENV, fallback: GO_ENV)
	if env := os.Getenv("SEMANALYZER_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("SEMANALYZER_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SEMANALYZER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("SEMANALYZER_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("SEMANALYZER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("SEMANALYZER_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("SEMANALYZER_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	if minEventLevel := os.Getenv("SEMANALYZER_LOG_MIN_EVENT_LEVEL"); minEventLevel != "" {
		config.Logging.MinEventLevel = minEventLevel
	}

	// SEMrush configuration
	if apiURL := os.Getenv("SEMANALYZER_SEMRUSH_API_URL"); apiURL != "" {
		config.Semrush.APIURL = apiURL
	}
	if apiKey := os.Getenv("SEMRUSH_API_KEY"); apiKey != "" {
		config.Semrush.APIKey = apiKey
	}
	if apiKey := os.Getenv("SEMANALYZER_SEMRUSH_API_KEY"); apiKey != "" {
		config.Semrush.APIKey = apiKey // SEMANALYZER_ prefix takes priority
	}
	if timeout := os.Getenv("SEMANALYZER_SEMRUSH_REQUEST_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Semrush.RequestTimeout = timeout
		}
	}
	if rateLimit := os.Getenv("SEMANALYZER_SEMRUSH_RATE_LIMIT"); rateLimit != "" {
		if _, err := time.ParseDuration(rateLimit); err == nil {
			config.Semrush.RateLimit = rateLimit
		}
	}
	if pageLimit := os.Getenv("SEMANALYZER_SEMRUSH_PAGE_LIMIT"); pageLimit != "" {
		if pl, err := strconv.Atoi(pageLimit); err == nil && pl > 0 {
			config.Semrush.PageLimit = pl
		}
	}
	if crawlSubdomains := os.Getenv("SEMANALYZER_SEMRUSH_CRAWL_SUBDOMAINS"); crawlSubdomains != "" {
		if cs, err := strconv.ParseBool(crawlSubdomains); err == nil {
			config.Semrush.CrawlSubdomains = cs
		}
	}

	// Insights configuration
	if provider := os.Getenv("SEMANALYZER_INSIGHTS_PROVIDER"); provider != "" {
		config.Insights.Provider = LLMProvider(provider)
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Insights.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("SEMANALYZER_CLAUDE_API_KEY"); apiKey != "" {
		config.Insights.Claude.APIKey = apiKey // SEMANALYZER_ prefix takes priority
	}
	if model := os.Getenv("SEMANALYZER_CLAUDE_MODEL"); model != "" {
		config.Insights.Claude.Model = model
	}
	if maxTokens := os.Getenv("SEMANALYZER_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Insights.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("SEMANALYZER_CLAUDE_TIMEOUT"); timeout != "" {
		config.Insights.Claude.Timeout = timeout
	}
	if temperature := os.Getenv("SEMANALYZER_CLAUDE_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Insights.Claude.Temperature = float32(t)
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Insights.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("SEMANALYZER_GEMINI_API_KEY"); apiKey != "" {
		config.Insights.Gemini.APIKey = apiKey // SEMANALYZER_ prefix takes priority
	}
	if model := os.Getenv("SEMANALYZER_GEMINI_MODEL"); model != "" {
		config.Insights.Gemini.Model = model
	}
	if timeout := os.Getenv("SEMANALYZER_GEMINI_TIMEOUT"); timeout != "" {
		config.Insights.Gemini.Timeout = timeout
	}
	if temperature := os.Getenv("SEMANALYZER_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Insights.Gemini.Temperature = float32(t)
		}
	}

	// Scheduler configuration
	if enabled := os.Getenv("SEMANALYZER_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("SEMANALYZER_SWEEP_SCHEDULE"); schedule != "" {
		config.Scheduler.SweepSchedule = schedule
	}
	if schedule := os.Getenv("SEMANALYZER_AUDIT_SCHEDULE"); schedule != "" {
		config.Scheduler.AuditSchedule = schedule
	}
	if schedule := os.Getenv("SEMANALYZER_INSIGHTS_SCHEDULE"); schedule != "" {
		config.Scheduler.InsightsSchedule = schedule
	}
	if schedule := os.Getenv("SEMANALYZER_CATALOG_SCHEDULE"); schedule != "" {
		config.Scheduler.CatalogSchedule = schedule
	}

	// WebSocket configuration
	if minLevel := os.Getenv("SEMANALYZER_WEBSOCKET_MIN_LEVEL"); minLevel != "" {
		config.WebSocket.MinLevel = minLevel
	}
	if allowedEvents := os.Getenv("SEMANALYZER_WEBSOCKET_ALLOWED_EVENTS"); allowedEvents != "" {
		events := []string{}
		for _, e := range strings.Split(allowedEvents, ",") {
			if trimmed := strings.TrimSpace(e); trimmed != "" {
				events = append(events, trimmed)
			}
		}
		if len(events) > 0 {
			config.WebSocket.AllowedEvents = events
		}
	}

	// Profiles configuration
	if profilesDir := os.Getenv("SEMANALYZER_PROFILES_DIR"); profilesDir != "" {
		config.Profiles.Dir = profilesDir
	}

	// Variables configuration
	if variablesDir := os.Getenv("SEMANALYZER_VARIABLES_DIR"); variablesDir != "" {
		config.Variables.Dir = variablesDir
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority
// Resolution order: environment variables → KV store → config fallback → error
// This ensures SEMANALYZER_* environment variables always take precedence
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	// Map of KV store key names to environment variable names
	// Environment variables have highest priority
	keyToEnvMapping := map[string][]string{
		"semrush_api_key":   {"SEMANALYZER_SEMRUSH_API_KEY", "SEMRUSH_API_KEY"},
		"anthropic_api_key": {"SEMANALYZER_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"claude_api_key":    {"SEMANALYZER_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"gemini_api_key":    {"SEMANALYZER_GEMINI_API_KEY", "GEMINI_API_KEY"},
	}

	// Check environment variables (highest priority)
	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// Try to resolve from KV store (medium priority - file-based variables)
	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	// Fallback to config value (lowest priority)
	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateSchedule validates a cron schedule expression and rejects every-minute schedules.
// Sweeps and audit launches hit the SEMrush API, so anything tighter than one minute is a mistake.
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	if parts[0] == "*" {
		return fmt.Errorf("schedule must not run every minute")
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// SemrushRequestTimeout returns the parsed SEMrush HTTP timeout, falling back to 30s
func (c *Config) SemrushRequestTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Semrush.RequestTimeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// SemrushRateInterval returns the parsed spacing between SEMrush API calls, falling back to 1s
func (c *Config) SemrushRateInterval() time.Duration {
	if d, err := time.ParseDuration(c.Semrush.RateLimit); err == nil && d > 0 {
		return d
	}
	return time.Second
}

// DeepCloneConfig creates a deep copy of the Config struct
// Used by the system handler to redact secrets without mutating the live config.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	// Clone the config struct (shallow copy first)
	clone := *c

	// Deep clone slice fields to prevent shared memory
	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	if len(c.WebSocket.ExcludePatterns) > 0 {
		clone.WebSocket.ExcludePatterns = make([]string, len(c.WebSocket.ExcludePatterns))
		copy(clone.WebSocket.ExcludePatterns, c.WebSocket.ExcludePatterns)
	}

	if len(c.WebSocket.AllowedEvents) > 0 {
		clone.WebSocket.AllowedEvents = make([]string, len(c.WebSocket.AllowedEvents))
		copy(clone.WebSocket.AllowedEvents, c.WebSocket.AllowedEvents)
	}

	if len(c.WebSocket.ThrottleIntervals) > 0 {
		clone.WebSocket.ThrottleIntervals = make(map[string]string, len(c.WebSocket.ThrottleIntervals))
		for k, v := range c.WebSocket.ThrottleIntervals {
			clone.WebSocket.ThrottleIntervals[k] = v
		}
	}

	return &clone
}
