// Package status derives the application's activity state from audit
// lifecycle events for the status endpoint and the dashboard.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

// AppState represents the application state
type AppState string

const (
	StateIdle     AppState = "idle"
	StateAuditing AppState = "auditing"
	StateOffline  AppState = "offline"
)

// Service tracks in-flight audit tasks. The state is auditing while at
// least one launched audit has not reached a terminal status.
type Service struct {
	mu     sync.RWMutex
	active map[string]string // task id -> client id
	events interfaces.EventService
	logger arbor.ILogger
}

// NewService creates a new status service
func NewService(events interfaces.EventService, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		active: make(map[string]string),
		events: events,
		logger: logger,
	}
}

// GetState returns the current application state (thread-safe)
func (s *Service) GetState() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.active) > 0 {
		return StateAuditing
	}
	return StateIdle
}

// GetStatus returns the state together with the in-flight audit tasks
func (s *Service) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := StateIdle
	if len(s.active) > 0 {
		state = StateAuditing
	}

	tasks := make([]map[string]string, 0, len(s.active))
	for taskID, clientID := range s.active {
		tasks = append(tasks, map[string]string{
			"task_id":   taskID,
			"client_id": clientID,
		})
	}

	return map[string]interface{}{
		"state":        string(state),
		"active_tasks": tasks,
		"timestamp":    time.Now(),
	}
}

// SubscribeToAuditEvents wires the service to the event bus so launched and
// finished audits move the state automatically. Tasks already running when
// the server starts are not tracked here; the status endpoint reports those
// from storage counts.
func (s *Service) SubscribeToAuditEvents() {
	s.events.Subscribe(interfaces.EventAuditLaunched, func(ctx context.Context, event interfaces.Event) error {
		payload, ok := event.Payload.(map[string]interface{})
		if !ok {
			return nil
		}
		taskID, _ := payload["task_id"].(string)
		if taskID == "" {
			return nil
		}
		clientID, _ := payload["client_id"].(string)

		s.mu.Lock()
		s.active[taskID] = clientID
		count := len(s.active)
		s.mu.Unlock()

		s.logger.Debug().Str("task_id", taskID).Int("active", count).Msg("Audit task active")
		return nil
	})

	finished := func(ctx context.Context, event interfaces.Event) error {
		payload, ok := event.Payload.(map[string]interface{})
		if !ok {
			return nil
		}
		taskID, _ := payload["task_id"].(string)
		if taskID == "" {
			return nil
		}

		s.mu.Lock()
		delete(s.active, taskID)
		count := len(s.active)
		s.mu.Unlock()

		s.logger.Debug().Str("task_id", taskID).Int("active", count).Msg("Audit task finished")
		return nil
	}

	s.events.Subscribe(interfaces.EventTaskCompleted, finished)
	s.events.Subscribe(interfaces.EventTaskFailed, finished)

	s.logger.Info().Msg("Status service subscribed to audit events")
}
