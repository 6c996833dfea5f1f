package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

// Event severities for MinLevel filtering. Failure events rank as errors,
// everything else is informational.
const (
	severityDebug = iota
	severityInfo
	severityWarn
	severityError
)

// AuditLaunchedUpdate is broadcast when a site audit starts crawling.
type AuditLaunchedUpdate struct {
	TaskID     string    `json:"task_id"`
	ClientID   string    `json:"client_id"`
	ProjectID  string    `json:"project_id"`
	SnapshotID string    `json:"snapshot_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// TaskProgressUpdate is broadcast on each poll of a running audit.
type TaskProgressUpdate struct {
	TaskID    string    `json:"task_id"`
	ClientID  string    `json:"client_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskCompletedUpdate is broadcast when a task finishes with an analysis.
type TaskCompletedUpdate struct {
	TaskID     string    `json:"task_id"`
	ClientID   string    `json:"client_id"`
	AnalysisID string    `json:"analysis_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// TaskFailedUpdate is broadcast when a task fails terminally.
type TaskFailedUpdate struct {
	TaskID    string    `json:"task_id"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// AnalysisCreatedUpdate is broadcast when a new analysis is stored.
type AnalysisCreatedUpdate struct {
	AnalysisID string    `json:"analysis_id"`
	ClientID   string    `json:"client_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// InsightsGeneratedUpdate is broadcast when AI insights land on an analysis.
type InsightsGeneratedUpdate struct {
	TaskID     string    `json:"task_id"`
	AnalysisID string    `json:"analysis_id"`
	ClientID   string    `json:"client_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// CatalogSyncedUpdate is broadcast after an issue catalog refresh.
type CatalogSyncedUpdate struct {
	Added     int       `json:"added"`
	Updated   int       `json:"updated"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSubscriber bridges audit lifecycle events to WebSocket broadcasts with
// config-driven whitelisting, severity filtering and throttling.
type EventSubscriber struct {
	handler         *WebSocketHandler
	eventService    interfaces.EventService
	logger          arbor.ILogger
	allowedEvents   map[string]bool          // Whitelist of events to broadcast (empty = allow all)
	excludePatterns []string                 // Payload text patterns that suppress a broadcast
	minSeverity     int                      // Minimum event severity to broadcast
	throttlers      map[string]*rate.Limiter // Rate limiters for high-frequency events
}

// NewEventSubscriber creates and initializes an event subscriber
// Automatically subscribes to all audit lifecycle events with config-driven filtering and throttling
func NewEventSubscriber(handler *WebSocketHandler, eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *EventSubscriber {
	s := &EventSubscriber{
		handler:      handler,
		eventService: eventService,
		logger:       logger,
		minSeverity:  severityInfo,
	}

	// Initialize allowedEvents map (whitelist pattern)
	// Empty list means allow all events
	s.allowedEvents = make(map[string]bool)
	if config != nil && len(config.AllowedEvents) > 0 {
		for _, eventType := range config.AllowedEvents {
			s.allowedEvents[eventType] = true
		}
	}

	if config != nil {
		s.excludePatterns = config.ExcludePatterns
		if config.MinLevel != "" {
			s.minSeverity = severityRank(config.MinLevel)
		}
	}

	// Initialize throttlers for high-frequency events
	s.throttlers = make(map[string]*rate.Limiter)
	if config != nil && len(config.ThrottleIntervals) > 0 {
		for eventType, intervalStr := range config.ThrottleIntervals {
			if duration, err := time.ParseDuration(intervalStr); err == nil {
				// Create rate limiter: 1 event per interval (burst=1)
				s.throttlers[eventType] = rate.NewLimiter(rate.Every(duration), 1)
				logger.Debug().
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Throttler initialized for event type")
			} else {
				logger.Warn().
					Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Failed to parse throttle interval - skipping throttler")
			}
		}
	}

	if eventService == nil {
		logger.Warn().Msg("EventSubscriber created with nil eventService - subscriptions will be skipped")
		return s
	}

	s.SubscribeAll()

	return s
}

// SubscribeAll registers subscriptions for all audit lifecycle events
func (s *EventSubscriber) SubscribeAll() {
	if s.eventService == nil {
		s.logger.Warn().Msg("Cannot subscribe to events - eventService is nil")
		return
	}

	s.eventService.Subscribe(interfaces.EventAuditLaunched, s.handleAuditLaunched)
	s.eventService.Subscribe(interfaces.EventTaskProgress, s.handleTaskProgress)
	s.eventService.Subscribe(interfaces.EventTaskCompleted, s.handleTaskCompleted)
	s.eventService.Subscribe(interfaces.EventTaskFailed, s.handleTaskFailed)
	s.eventService.Subscribe(interfaces.EventAnalysisCreated, s.handleAnalysisCreated)
	s.eventService.Subscribe(interfaces.EventInsightsGenerated, s.handleInsightsGenerated)
	s.eventService.Subscribe(interfaces.EventCatalogSynced, s.handleCatalogSynced)

	s.logger.Info().Msg("EventSubscriber registered for all audit lifecycle events (launched, progress, completed, failed, analysis, insights, catalog)")
}

func (s *EventSubscriber) handleAuditLaunched(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		s.logger.Warn().Msg("Invalid audit launched event payload type")
		return nil
	}

	if !s.shouldBroadcastEvent(string(event.Type), payload) {
		return nil
	}

	s.handler.broadcast(WSMessage{
		Type: string(event.Type),
		Payload: AuditLaunchedUpdate{
			TaskID:     getString(payload, "task_id"),
			ClientID:   getString(payload, "client_id"),
			ProjectID:  getString(payload, "project_id"),
			SnapshotID: getString(payload, "snapshot_id"),
			Timestamp:  time.Now(),
		},
	})
	return nil
}

func (s *EventSubscriber) handleTaskProgress(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		s.logger.Warn().Msg("Invalid task progress event payload type")
		return nil
	}

	if !s.shouldBroadcastEvent(string(event.Type), payload) {
		return nil
	}

	s.handler.broadcast(WSMessage{
		Type: string(event.Type),
		Payload: TaskProgressUpdate{
			TaskID:    getString(payload, "task_id"),
			ClientID:  getString(payload, "client_id"),
			Status:    getString(payload, "status"),
			Timestamp: time.Now(),
		},
	})
	return nil
}

func (s *EventSubscriber) handleTaskCompleted(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		s.logger.Warn().Msg("Invalid task completed event payload type")
		return nil
	}

	if !s.shouldBroadcastEvent(string(event.Type), payload) {
		return nil
	}

	s.handler.broadcast(WSMessage{
		Type: string(event.Type),
		Payload: TaskCompletedUpdate{
			TaskID:     getString(payload, "task_id"),
			ClientID:   getString(payload, "client_id"),
			AnalysisID: getString(payload, "analysis_id"),
			Timestamp:  time.Now(),
		},
	})
	return nil
}

func (s *EventSubscriber) handleTaskFailed(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		s.logger.Warn().Msg("Invalid task failed event payload type")
		return nil
	}

	if !s.shouldBroadcastEvent(string(event.Type), payload) {
		return nil
	}

	s.handler.broadcast(WSMessage{
		Type: string(event.Type),
		Payload: TaskFailedUpdate{
			TaskID:    getString(payload, "task_id"),
			Error:     getString(payload, "error"),
			Timestamp: time.Now(),
		},
	})
	return nil
}

func (s *EventSubscriber) handleAnalysisCreated(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		s.logger.Warn().Msg("Invalid analysis created event payload type")
		return nil
	}

	if !s.shouldBroadcastEvent(string(event.Type), payload) {
		return nil
	}

	s.handler.broadcast(WSMessage{
		Type: string(event.Type),
		Payload: AnalysisCreatedUpdate{
			AnalysisID: getString(payload, "analysis_id"),
			ClientID:   getString(payload, "client_id"),
			Timestamp:  time.Now(),
		},
	})
	return nil
}

func (s *EventSubscriber) handleInsightsGenerated(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		s.logger.Warn().Msg("Invalid insights generated event payload type")
		return nil
	}

	if !s.shouldBroadcastEvent(string(event.Type), payload) {
		return nil
	}

	s.handler.broadcast(WSMessage{
		Type: string(event.Type),
		Payload: InsightsGeneratedUpdate{
			TaskID:     getString(payload, "task_id"),
			AnalysisID: getString(payload, "analysis_id"),
			ClientID:   getString(payload, "client_id"),
			Timestamp:  time.Now(),
		},
	})
	return nil
}

func (s *EventSubscriber) handleCatalogSynced(ctx context.Context, event interfaces.Event) error {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		s.logger.Warn().Msg("Invalid catalog synced event payload type")
		return nil
	}

	if !s.shouldBroadcastEvent(string(event.Type), payload) {
		return nil
	}

	s.handler.broadcast(WSMessage{
		Type: string(event.Type),
		Payload: CatalogSyncedUpdate{
			Added:     getInt(payload, "added"),
			Updated:   getInt(payload, "updated"),
			Timestamp: time.Now(),
		},
	})
	return nil
}

// shouldBroadcastEvent applies the whitelist, severity floor, exclude
// patterns and throttling in that order.
func (s *EventSubscriber) shouldBroadcastEvent(eventType string, payload map[string]interface{}) bool {
	// Check whitelist (empty allowedEvents = allow all)
	if len(s.allowedEvents) > 0 && !s.allowedEvents[eventType] {
		return false
	}

	if eventSeverity(eventType) < s.minSeverity {
		return false
	}

	if s.matchesExcludePattern(payload) {
		return false
	}

	// Check throttling
	if limiter, ok := s.throttlers[eventType]; ok {
		if !limiter.Allow() {
			s.logger.Debug().
				Str("event_type", eventType).
				Msg("Event throttled - rate limit exceeded")
			return false
		}
	}

	return true
}

// matchesExcludePattern reports whether any configured pattern appears in the
// payload's human-readable fields.
func (s *EventSubscriber) matchesExcludePattern(payload map[string]interface{}) bool {
	if len(s.excludePatterns) == 0 {
		return false
	}

	for _, key := range []string{"message", "error", "status"} {
		value := getString(payload, key)
		if value == "" {
			continue
		}
		for _, pattern := range s.excludePatterns {
			if strings.Contains(value, pattern) {
				return true
			}
		}
	}
	return false
}

func eventSeverity(eventType string) int {
	if eventType == string(interfaces.EventTaskFailed) {
		return severityError
	}
	return severityInfo
}

func severityRank(level string) int {
	switch strings.ToLower(level) {
	case "debug":
		return severityDebug
	case "info":
		return severityInfo
	case "warn", "warning":
		return severityWarn
	case "error":
		return severityError
	default:
		return severityInfo
	}
}

// Helper functions for safe type conversion from map[string]interface{}
func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if val, ok := m[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
