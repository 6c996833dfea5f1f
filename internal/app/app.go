package app

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/handlers"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/services/audit"
	"github.com/afpkennettt/semanalyzer/internal/services/catalog"
	"github.com/afpkennettt/semanalyzer/internal/services/events"
	"github.com/afpkennettt/semanalyzer/internal/services/insights"
	"github.com/afpkennettt/semanalyzer/internal/services/llm"
	"github.com/afpkennettt/semanalyzer/internal/services/reports"
	"github.com/afpkennettt/semanalyzer/internal/services/scheduler"
	"github.com/afpkennettt/semanalyzer/internal/services/semrush"
	"github.com/afpkennettt/semanalyzer/internal/services/sitecontent"
	"github.com/afpkennettt/semanalyzer/internal/services/status"
	"github.com/afpkennettt/semanalyzer/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService  interfaces.EventService
	StatusService *status.Service

	// SEMrush provider; nil when no credential is configured, in which
	// case audit operations report the missing credential per request.
	Provider interfaces.AuditProvider

	// Audit workflow services
	CatalogService interfaces.CatalogService
	AuditService   interfaces.AuditService

	// Insight generation
	LLMService     interfaces.LLMService
	ContentService interfaces.SiteContentService
	InsightService interfaces.InsightService

	// Reporting
	ReportService interfaces.ReportService

	// Background jobs
	SchedulerService interfaces.SchedulerService

	// HTTP handlers
	WSHandler        *handlers.WebSocketHandler
	ClientHandler    *handlers.ClientHandler
	TaskHandler      *handlers.TaskHandler
	AnalysisHandler  *handlers.AnalysisHandler
	CatalogHandler   *handlers.CatalogHandler
	KVHandler        *handlers.KVHandler
	SchedulerHandler *handlers.SchedulerHandler
	SystemHandler    *handlers.SystemHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Event service and WebSocket handler are created early so every
	// service constructed below can publish to the dashboard stream.
	app.EventService = events.NewService(app.Logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, app.Logger, &app.Config.WebSocket)

	// Initialize services
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Initialize handlers
	if err := app.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	// Start WebSocket background tasks for real-time dashboard updates
	app.WSHandler.StartStatusBroadcaster()

	// Populate the issue catalog on first run so analyses can resolve
	// issue titles immediately. Requires a provider and a linked project;
	// failure is logged, not fatal.
	if app.Provider != nil {
		if err := app.CatalogService.EnsureSynced(context.Background()); err != nil {
			app.Logger.Warn().Err(err).Msg("Issue catalog not synced at startup")
		}
	}

	logger.Info().
		Bool("semrush_configured", app.Provider != nil).
		Bool("insights_enabled", app.LLMService != nil).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	ctx := context.Background()

	// Seed default variables, then load API keys from files so explicit
	// files win over seeds
	a.seedDefaultVariables(ctx)
	if err := a.StorageManager.LoadKeyFiles(ctx, a.Config.Variables.Dir); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load key files")
	}

	// Load crawl profiles so audit settings can reference them
	if err := a.StorageManager.LoadCrawlProfiles(ctx, a.Config.Profiles.Dir); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load crawl profiles")
	}

	// Resolve {key-name} references now that the store is available. Config
	// files are loaded before storage exists, so this is the second phase.
	if kvMap, err := a.StorageManager.KVStorage().GetAll(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to fetch variables for config replacement")
	} else if len(kvMap) > 0 {
		if err := common.ReplaceInStruct(a.Config, kvMap, a.Logger); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to replace key references in config")
		}
	}

	return nil
}

// seedDefaultVariables inserts the built-in variables when absent, leaving
// user-edited values alone.
func (a *App) seedDefaultVariables(ctx context.Context) {
	kv := a.StorageManager.KVStorage()
	for _, def := range common.GetDefaultKVValues() {
		if _, err := kv.GetPair(ctx, def.Key); err == nil {
			continue
		}
		if err := kv.Set(ctx, def.Key, def.Value, def.Description); err != nil {
			a.Logger.Warn().Err(err).Str("key", def.Key).Msg("Failed to seed default variable")
		}
	}
}

func (a *App) initServices() error {
	ctx := context.Background()

	// Status service tracks aggregate system state from audit events
	a.StatusService = status.NewService(a.EventService, a.Logger)
	a.StatusService.SubscribeToAuditEvents()
	a.Logger.Debug().Msg("Status service initialized")

	// Resolve the SEMrush credential: environment, then stored variables,
	// then config. Without one the provider stays nil and audit endpoints
	// answer 503 until a key is added via the variables API.
	apiKey, err := common.ResolveAPIKey(ctx, a.StorageManager.KVStorage(), "semrush_api_key", a.Config.Semrush.APIKey)
	if err != nil {
		a.Logger.Debug().Err(err).Msg("SEMrush credential lookup failed")
	}
	if apiKey == "" {
		a.Logger.Warn().Msg("No SEMrush API key configured - audit features unavailable")
		a.Logger.Info().Msg("To enable audits, set SEMRUSH_API_KEY or add semrush_api_key via the variables API")
	} else {
		opts := []semrush.ClientOption{
			semrush.WithHTTPClient(&http.Client{Timeout: a.Config.SemrushRequestTimeout()}),
			semrush.WithRateInterval(a.Config.SemrushRateInterval()),
			semrush.WithLogger(a.Logger),
		}
		if a.Config.Semrush.APIURL != "" {
			opts = append(opts, semrush.WithBaseURL(a.Config.Semrush.APIURL))
		}
		a.Provider = semrush.NewClient(apiKey, opts...)
		a.Logger.Debug().Msg("SEMrush provider initialized")
	}

	// Issue catalog service
	a.CatalogService = catalog.NewService(a.StorageManager, a.Provider, a.EventService, a.Logger)

	// LLM service selected by insights.provider; a missing key disables
	// generation and insights fall back to deterministic summaries.
	llmService, err := llm.NewLLMService(&a.Config.Insights, a.StorageManager, a.Logger)
	if err != nil {
		a.LLMService = nil
		a.Logger.Warn().Err(err).Msg("Failed to initialize LLM service - insight generation will use fallback text")
		a.Logger.Info().Msg("To enable AI insights, set ANTHROPIC_API_KEY or GEMINI_API_KEY")
	} else {
		a.LLMService = llmService
		a.Logger.Debug().Msg("LLM service initialized")
	}

	// Site content service fetches homepage text for insight prompts
	a.ContentService = sitecontent.NewService(nil, a.Logger)

	// Insight generation service
	a.InsightService = insights.NewService(a.StorageManager, a.LLMService, a.ContentService, a.EventService, a.Logger)

	// Audit workflow service
	a.AuditService = audit.NewService(a.StorageManager, a.Provider, a.EventService, a.CatalogService, a.InsightService, a.Logger)

	// PDF report service
	a.ReportService = reports.NewService(a.StorageManager, a.Logger)

	// Scheduler with the four recurring jobs. Job toggles persist in the
	// variables store so a disabled job stays disabled across restarts.
	a.SchedulerService = scheduler.NewService(a.StorageManager.KVStorage(), a.Logger)
	a.registerScheduledJobs(ctx)

	if a.Config.Scheduler.Enabled {
		if err := a.SchedulerService.Start(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to start scheduler")
		}
	} else {
		a.Logger.Info().Msg("Scheduler disabled by configuration")
	}

	return nil
}

// registerScheduledJobs wires the recurring audit jobs into the scheduler.
// A registration failure disables that one job, not the scheduler.
func (a *App) registerScheduledJobs(ctx context.Context) {
	jobs := []struct {
		name        string
		schedule    string
		description string
		handler     func() error
	}{
		{
			name:        "sweep",
			schedule:    a.Config.Scheduler.SweepSchedule,
			description: "Poll pending and running audit tasks",
			handler: func() error {
				_, err := a.AuditService.Sweep(ctx)
				return err
			},
		},
		{
			name:        "audit",
			schedule:    a.Config.Scheduler.AuditSchedule,
			description: "Launch audits for all active clients",
			handler: func() error {
				_, err := a.AuditService.StartDueAudits(ctx)
				return err
			},
		},
		{
			name:        "insights",
			schedule:    a.Config.Scheduler.InsightsSchedule,
			description: "Generate insights for recent analyses without them",
			handler: func() error {
				_, err := a.InsightService.Backfill(ctx, time.Now().AddDate(0, 0, -a.insightsBackfillDays(ctx)))
				return err
			},
		},
		{
			name:        "catalog",
			schedule:    a.Config.Scheduler.CatalogSchedule,
			description: "Refresh the SEMrush issue catalog",
			handler: func() error {
				_, _, err := a.CatalogService.Sync(ctx)
				return err
			},
		},
	}

	for _, job := range jobs {
		if err := a.SchedulerService.RegisterJob(job.name, job.schedule, job.description, job.handler); err != nil {
			a.Logger.Warn().Err(err).Str("job", job.name).Msg("Failed to register scheduled job")
		}
	}
}

// insightsBackfillDays reads the backfill window from the variables store,
// so it can be tuned without a restart. Falls back to the seeded default.
func (a *App) insightsBackfillDays(ctx context.Context) int {
	value, err := a.StorageManager.KVStorage().Get(ctx, "insights_backfill_days")
	if err == nil {
		if days, convErr := strconv.Atoi(strings.TrimSpace(value)); convErr == nil && days > 0 {
			return days
		}
	}
	return 7
}

func (a *App) initHandlers() error {
	// Event subscriber bridges service events onto the WebSocket stream
	_ = handlers.NewEventSubscriber(a.WSHandler, a.EventService, a.Logger, &a.Config.WebSocket)

	a.ClientHandler = handlers.NewClientHandler(a.StorageManager, a.AuditService, a.Logger)
	a.TaskHandler = handlers.NewTaskHandler(a.StorageManager, a.AuditService, a.Config.Scheduler.SweepSchedule, a.Logger)
	a.AnalysisHandler = handlers.NewAnalysisHandler(a.StorageManager, a.InsightService, a.ReportService, a.Logger)
	a.CatalogHandler = handlers.NewCatalogHandler(a.StorageManager, a.CatalogService, a.Logger)
	a.KVHandler = handlers.NewKVHandler(a.StorageManager.KVStorage(), a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.Logger)
	a.SystemHandler = handlers.NewSystemHandler(a.Config, a.StatusService, a.StorageManager, a.SchedulerService, a.WSHandler, a.Logger)

	a.Logger.Debug().Msg("HTTP handlers initialized")
	return nil
}

// Close shuts down application components in reverse dependency order.
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
