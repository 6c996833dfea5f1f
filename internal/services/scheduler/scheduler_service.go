package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

// settingsKeyPrefix namespaces persisted job settings in the KV store.
const settingsKeyPrefix = "scheduler:job:"

// jobEntry represents a registered job with metadata
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func() error
	enabled     bool
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	lastError   string
}

// jobSettings is the persisted slice of a jobEntry. Runtime toggles and the
// last run timestamp survive restarts through the KV store.
type jobSettings struct {
	Schedule string     `json:"schedule"`
	Enabled  bool       `json:"enabled"`
	LastRun  *time.Time `json:"last_run,omitempty"`
}

// Service implements SchedulerService interface
type Service struct {
	kvStorage interfaces.KeyValueStorage
	cron      *cron.Cron
	logger    arbor.ILogger
	jobMu     sync.Mutex // Protects jobs map
	globalMu  sync.Mutex // Prevents concurrent job execution
	jobs      map[string]*jobEntry
	running   bool
}

// NewService creates a new scheduler service. kvStorage may be nil, in which
// case job settings are not persisted across restarts.
func NewService(kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) interfaces.SchedulerService {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		kvStorage: kvStorage,
		cron:      cron.New(),
		logger:    logger,
		jobs:      make(map[string]*jobEntry),
	}
}

// Start applies persisted job settings and begins running registered jobs on
// their schedules. Jobs must be registered before Start.
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if err := s.loadJobSettings(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load persisted job settings")
		// Non-critical error - continue starting scheduler
	}

	s.cron.Start()
	s.running = true

	s.jobMu.Lock()
	count := len(s.jobs)
	s.jobMu.Unlock()

	s.logger.Info().Int("jobs", count).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for any in-flight job to finish.
func (s *Service) Stop() error {
	if !s.running {
		return nil
	}

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Jobs did not finish within shutdown timeout")
	}

	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	return s.running
}

// RegisterJob registers a new job with the scheduler
func (s *Service) RegisterJob(name, schedule, description string, handler func() error) error {
	// Validate schedule before attempting to register
	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
		enabled:     true,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.executeJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}

	entry.cronID = cronID
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")

	return nil
}

// EnableJob enables a disabled job
func (s *Service) EnableJob(name string) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	return s.enableJobLocked(name)
}

func (s *Service) enableJobLocked(name string) error {
	entry, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	if entry.enabled {
		return nil // Already enabled
	}

	// Add back to cron scheduler
	cronID, err := s.cron.AddFunc(entry.schedule, func() {
		s.executeJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}

	entry.cronID = cronID
	entry.enabled = true

	s.logger.Info().
		Str("job_name", name).
		Msg("Job enabled")

	s.persistJobLocked(entry)
	return nil
}

// DisableJob disables an enabled job
func (s *Service) DisableJob(name string) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	return s.disableJobLocked(name)
}

func (s *Service) disableJobLocked(name string) error {
	entry, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	if !entry.enabled {
		return nil // Already disabled
	}

	// Remove from cron scheduler
	s.cron.Remove(entry.cronID)
	entry.enabled = false

	s.logger.Info().
		Str("job_name", name).
		Msg("Job disabled")

	s.persistJobLocked(entry)
	return nil
}

// TriggerJobNow manually triggers a specific job to run immediately
func (s *Service) TriggerJobNow(name string) error {
	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.jobMu.Unlock()
		return fmt.Errorf("job %s not found", name)
	}

	if entry.isRunning {
		s.jobMu.Unlock()
		return fmt.Errorf("job %s is already running", name)
	}
	s.jobMu.Unlock()

	s.logger.Info().
		Str("job_name", name).
		Msg("Manually triggering job execution")

	go s.executeJob(name)

	return nil
}

// GetJobStatus returns the status of a specific job
func (s *Service) GetJobStatus(name string) (*interfaces.JobStatus, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}

	// Get next run time from cron
	var nextRun *time.Time
	if entry.enabled {
		for _, cronEntry := range s.cron.Entries() {
			if cronEntry.ID == entry.cronID {
				next := cronEntry.Next
				nextRun = &next
				break
			}
		}
	}

	return &interfaces.JobStatus{
		Name:        entry.name,
		Enabled:     entry.enabled,
		Schedule:    entry.schedule,
		Description: entry.description,
		LastRun:     entry.lastRun,
		NextRun:     nextRun,
		IsRunning:   entry.isRunning,
		LastError:   entry.lastError,
	}, nil
}

// GetAllJobStatuses returns all job statuses
func (s *Service) GetAllJobStatuses() map[string]*interfaces.JobStatus {
	// Copy job names while holding lock to avoid concurrent map iteration
	s.jobMu.Lock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	s.jobMu.Unlock()

	statuses := make(map[string]*interfaces.JobStatus)
	for _, name := range names {
		status, err := s.GetJobStatus(name)
		if err == nil {
			statuses[name] = status
		}
	}

	return statuses
}

// executeJob wraps job execution with mutex, panic recovery, and status tracking
func (s *Service) executeJob(name string) {
	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_name", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in job execution")

			s.jobMu.Lock()
			if entry, exists := s.jobs[name]; exists {
				entry.isRunning = false
				entry.lastError = fmt.Sprintf("panic: %v", r)
				now := time.Now()
				entry.lastRun = &now
				s.persistJobLocked(entry)
			}
			s.jobMu.Unlock()
		}
	}()

	// Acquire global mutex to prevent concurrent execution
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.jobMu.Unlock()
		s.logger.Warn().
			Str("job_name", name).
			Msg("Job not found")
		return
	}

	entry.isRunning = true
	handler := entry.handler
	s.jobMu.Unlock()

	s.logger.Info().
		Str("job_name", name).
		Msg("🚀 Job execution started")

	started := time.Now()
	err := handler()

	completionTime := time.Now()
	s.jobMu.Lock()
	entry.isRunning = false
	entry.lastRun = &completionTime
	if err != nil {
		entry.lastError = err.Error()
		s.logger.Error().
			Str("job_name", name).
			Err(err).
			Dur("duration", time.Since(started)).
			Msg("❌ Job execution failed")
	} else {
		entry.lastError = ""
		s.logger.Info().
			Str("job_name", name).
			Dur("duration", time.Since(started)).
			Msg("✅ Job execution completed successfully")
	}
	s.persistJobLocked(entry)
	s.jobMu.Unlock()
}

// persistJobLocked saves the entry's settings to the KV store. Callers must
// hold jobMu.
func (s *Service) persistJobLocked(entry *jobEntry) {
	if s.kvStorage == nil {
		return
	}

	settings := jobSettings{
		Schedule: entry.schedule,
		Enabled:  entry.enabled,
		LastRun:  entry.lastRun,
	}
	data, err := json.Marshal(settings)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_name", entry.name).Msg("Failed to marshal job settings")
		return
	}

	ctx := context.Background()
	if err := s.kvStorage.Set(ctx, settingsKeyPrefix+entry.name, string(data), "Scheduler job settings for "+entry.name); err != nil {
		s.logger.Warn().Err(err).Str("job_name", entry.name).Msg("Failed to persist job settings")
	}
}

// loadJobSettings applies persisted settings to registered jobs. Called once
// from Start, after registration.
func (s *Service) loadJobSettings() error {
	if s.kvStorage == nil {
		s.logger.Debug().Msg("No KV storage available, skipping job settings load")
		return nil
	}

	pairs, err := s.kvStorage.ListByPrefix(context.Background(), settingsKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to load job settings: %w", err)
	}

	loaded := 0
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	for _, pair := range pairs {
		name := pair.Key[len(settingsKeyPrefix):]

		entry, exists := s.jobs[name]
		if !exists {
			s.logger.Warn().Str("job_name", name).Msg("Job setting found but job not registered, skipping")
			continue
		}

		var settings jobSettings
		if err := json.Unmarshal([]byte(pair.Value), &settings); err != nil {
			s.logger.Warn().Err(err).Str("job_name", name).Msg("Failed to parse job settings")
			continue
		}

		if settings.LastRun != nil {
			entry.lastRun = settings.LastRun
		}

		// Persisted schedule wins over the registered default when valid
		if settings.Schedule != "" && settings.Schedule != entry.schedule {
			if err := s.rescheduleLocked(entry, settings.Schedule); err != nil {
				s.logger.Error().Err(err).Str("job_name", name).Msg("Failed to apply persisted schedule")
			} else {
				loaded++
			}
		}

		if entry.enabled != settings.Enabled {
			var err error
			if settings.Enabled {
				err = s.enableJobLocked(name)
			} else {
				err = s.disableJobLocked(name)
			}
			if err != nil {
				s.logger.Error().Err(err).Str("job_name", name).Msg("Failed to apply persisted enabled state")
			} else {
				loaded++
			}
		}
	}

	if loaded > 0 {
		s.logger.Info().Int("count", loaded).Msg("Loaded job settings from KV store")
	}

	return nil
}

// rescheduleLocked swaps the cron entry for a new schedule. Callers must
// hold jobMu.
func (s *Service) rescheduleLocked(entry *jobEntry, schedule string) error {
	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	if entry.enabled {
		s.cron.Remove(entry.cronID)
		cronID, err := s.cron.AddFunc(schedule, func() {
			s.executeJob(entry.name)
		})
		if err != nil {
			// Restore old schedule if new one fails
			oldCronID, restoreErr := s.cron.AddFunc(entry.schedule, func() {
				s.executeJob(entry.name)
			})
			if restoreErr != nil {
				s.logger.Error().
					Str("job_name", entry.name).
					Err(restoreErr).
					Msg("Failed to restore old schedule after update failure")
				entry.enabled = false
			} else {
				entry.cronID = oldCronID
			}
			return fmt.Errorf("failed to update job schedule: %w", err)
		}
		entry.cronID = cronID
	}

	entry.schedule = schedule

	s.logger.Info().
		Str("job_name", entry.name).
		Str("new_schedule", schedule).
		Msg("Job schedule updated")

	return nil
}
