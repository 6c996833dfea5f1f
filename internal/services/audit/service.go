// Package audit orchestrates the SEMrush site audit workflow: provisioning
// projects for clients, launching crawls and polling running audits until
// their results can be stored as analysis records.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// Service drives analysis tasks through the SEMrush provisioning and polling
// lifecycle. All task finalization goes through the storage CAS helpers, so
// concurrent sweeps and manual checks never double-complete a task.
type Service struct {
	storage  interfaces.StorageManager
	provider interfaces.AuditProvider
	events   interfaces.EventService
	catalog  interfaces.CatalogService
	insights interfaces.InsightService
	logger   arbor.ILogger

	mu          sync.Mutex
	domainLocks map[string]*sync.Mutex
}

// NewService creates the audit service. The provider may be nil when no
// SEMrush credential is configured; StartAnalysis then refuses new work and
// Sweep leaves running tasks untouched.
func NewService(storage interfaces.StorageManager, provider interfaces.AuditProvider, events interfaces.EventService, catalog interfaces.CatalogService, insights interfaces.InsightService, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		storage:     storage,
		provider:    provider,
		events:      events,
		catalog:     catalog,
		insights:    insights,
		logger:      logger,
		domainLocks: make(map[string]*sync.Mutex),
	}
}

// StartAnalysis creates an analysis task for the client and kicks off the
// SEMrush provisioning workflow in the background. The returned task is in
// the pending state; callers observe progress via CheckTask or the task API.
func (s *Service) StartAnalysis(ctx context.Context, clientID string) (*models.Task, error) {
	if s.provider == nil {
		return nil, interfaces.ErrNoCredential
	}

	client, err := s.storage.ClientStorage().GetClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	active, err := s.storage.TaskStorage().GetActiveTaskForClient(ctx, clientID, models.TaskTypeAnalysis)
	if err != nil {
		return nil, fmt.Errorf("failed to check for active tasks: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("an analysis is already running for client %s", client.Name)
	}

	task := models.NewTask(client.ID, models.TaskTypeAnalysis, map[string]interface{}{
		models.ParamWebsite: client.Website,
	})
	if err := s.storage.TaskStorage().CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("client_id", client.ID).
		Str("website", client.Website).
		Msg("Analysis task created")

	common.SafeGo(s.logger, "provisionAudit", func() {
		s.provision(context.Background(), task.ID)
	})

	return task, nil
}

// StartDueAudits launches an analysis for every active client without one
// already in flight. Used by the weekly audit job.
func (s *Service) StartDueAudits(ctx context.Context) (int, error) {
	if s.provider == nil {
		s.logger.Warn().Msg("SEMrush provider not configured, skipping scheduled audits")
		return 0, nil
	}

	clients, err := s.storage.ClientStorage().ListClients(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load clients: %w", err)
	}

	started := 0
	for _, client := range clients {
		if !client.Active {
			continue
		}
		active, err := s.storage.TaskStorage().GetActiveTaskForClient(ctx, client.ID, models.TaskTypeAnalysis)
		if err != nil {
			s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("Failed to check for active tasks")
			continue
		}
		if active != nil {
			s.logger.Debug().
				Str("client_id", client.ID).
				Str("task_id", active.ID).
				Msg("Client already has an analysis in flight, skipping")
			continue
		}
		if _, err := s.StartAnalysis(ctx, client.ID); err != nil {
			s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("Failed to start scheduled audit")
			continue
		}
		started++
	}

	s.logger.Info().Int("started", started).Int("clients", len(clients)).Msg("Scheduled audits launched")
	return started, nil
}

// provision runs the start phase of one analysis task: create or reuse the
// SEMrush project, enable the site audit and launch a crawl. Safe to call
// more than once; only a pending task is picked up.
func (s *Service) provision(ctx context.Context, taskID string) {
	task, err := s.storage.TaskStorage().GetTask(ctx, taskID)
	if err != nil {
		s.logger.Warn().Err(err).Str("task_id", taskID).Msg("Failed to load task for provisioning")
		return
	}
	if task.Status != models.TaskStatusPending {
		return
	}

	client, err := s.storage.ClientStorage().GetClient(ctx, task.ClientID)
	if err != nil {
		s.failTask(ctx, task.ID, fmt.Sprintf("Error initiating analysis task: %v", err))
		return
	}

	// Serialize provisioning per domain so two clients sharing a website
	// never race each other into SEMrush project creation.
	lock := s.domainLock(common.CleanDomain(client.Website))
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock; a concurrent sweep may have picked the
	// task up already.
	task, err = s.storage.TaskStorage().GetTask(ctx, taskID)
	if err != nil {
		s.logger.Warn().Err(err).Str("task_id", taskID).Msg("Failed to load task for provisioning")
		return
	}
	if task.Status != models.TaskStatusPending {
		return
	}

	if err := task.Begin(); err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to begin task")
		return
	}
	if err := s.storage.TaskStorage().UpdateTask(ctx, task); err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to persist task state")
		return
	}

	if err := s.runWorkflow(ctx, task, client); err != nil {
		s.failTask(ctx, task.ID, err.Error())
	}
}

// runWorkflow performs the provider calls for the start phase. The returned
// error message is stored verbatim as the task failure reason.
func (s *Service) runWorkflow(ctx context.Context, task *models.Task, client *models.Client) error {
	domain := common.CleanDomain(client.Website)

	if err := task.Advance(models.StageStartingAnalysis, map[string]interface{}{
		models.ParamWebsite: client.Website,
	}); err != nil {
		return fmt.Errorf("Error initiating analysis task: %v", err)
	}
	if err := s.storage.TaskStorage().UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("Error initiating analysis task: %v", err)
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("client_id", client.ID).
		Str("domain", domain).
		Msg("Starting SEMrush analysis workflow")

	var project *models.ProjectInfo
	if client.HasProject() {
		project = &models.ProjectInfo{
			ID:      client.SemrushProjectID,
			Name:    client.SemrushProjectName,
			OwnerID: client.SemrushOwnerID,
			URL:     domain,
		}
		s.logger.Debug().
			Str("task_id", task.ID).
			Str("project_id", project.ID).
			Msg("Reusing existing SEMrush project")
	} else {
		if s.provider.ProjectExists(ctx, domain, client.Name) {
			return fmt.Errorf("A project for %s already exists in SEMrush. Please use a different website or client name.", domain)
		}

		created, err := s.provider.CreateProject(ctx, domain, client.Name)
		if err != nil {
			if isDuplicateProject(err) {
				return fmt.Errorf("A project for %s already exists in SEMrush. Please use a different website or client name.", domain)
			}
			return fmt.Errorf("Error in SEMrush workflow: %v", err)
		}
		project = created

		client.SemrushProjectID = project.ID
		client.SemrushProjectName = project.Name
		client.SemrushOwnerID = project.OwnerID
		client.Touch()
		if err := s.storage.ClientStorage().UpdateClient(ctx, client); err != nil {
			s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("Failed to store SEMrush project reference on client")
		}

		s.logger.Info().
			Str("task_id", task.ID).
			Str("project_id", project.ID).
			Str("project_name", project.Name).
			Msg("SEMrush project created")
	}

	profile, err := s.storage.GetCrawlProfile(ctx, "")
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load crawl profile, using defaults")
		profile = nil
	}

	if err := s.provider.EnableAudit(ctx, project.ID, domain, profile); err != nil {
		return fmt.Errorf("Failed to enable site audit for project ID: %s", project.ID)
	}

	snapshotID, err := s.provider.LaunchAudit(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("Error in SEMrush workflow: %v", err)
	}

	if err := task.Advance(models.StageAuditStarted, map[string]interface{}{
		models.ParamProjectID:  project.ID,
		models.ParamSnapshotID: snapshotID,
	}); err != nil {
		return fmt.Errorf("Error initiating analysis task: %v", err)
	}
	if err := s.storage.TaskStorage().UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("Error initiating analysis task: %v", err)
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("project_id", project.ID).
		Str("snapshot_id", snapshotID).
		Msg("SEMrush audit launched")

	s.publish(ctx, interfaces.EventAuditLaunched, map[string]interface{}{
		"task_id":     task.ID,
		"client_id":   client.ID,
		"project_id":  project.ID,
		"snapshot_id": snapshotID,
	})

	return nil
}

// failTask finalizes the task as failed. Losing the finalization race to a
// competing sweep is not an error.
func (s *Service) failTask(ctx context.Context, taskID, message string) {
	if err := s.storage.TaskStorage().FailTask(ctx, taskID, message); err != nil {
		if errors.Is(err, interfaces.ErrTaskFinalized) {
			s.logger.Debug().Str("task_id", taskID).Msg("Task already finalized, skipping failure")
			return
		}
		s.logger.Warn().Err(err).Str("task_id", taskID).Msg("Failed to mark task as failed")
		return
	}

	s.logger.Warn().Str("task_id", taskID).Str("reason", message).Msg("Analysis task failed")

	s.publish(ctx, interfaces.EventTaskFailed, map[string]interface{}{
		"task_id": taskID,
		"error":   message,
	})
}

// publish emits an event when an event service is wired.
func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Debug().Err(err).Str("event", string(eventType)).Msg("Failed to publish event")
	}
}

// domainLock returns the mutex guarding provisioning for a domain.
func (s *Service) domainLock(domain string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.domainLocks[domain]
	if !ok {
		lock = &sync.Mutex{}
		s.domainLocks[domain] = lock
	}
	return lock
}

// isDuplicateProject reports whether the provider rejected project creation
// because one already exists for the domain.
func isDuplicateProject(err error) bool {
	return errors.Is(err, interfaces.ErrDuplicateProject)
}
