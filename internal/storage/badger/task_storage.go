package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// TaskStorage implements the TaskStorage interface for Badger
type TaskStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTaskStorage creates a new TaskStorage instance
func NewTaskStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TaskStorage {
	return &TaskStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TaskStorage) CreateTask(ctx context.Context, task *models.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if err := s.db.Store().Insert(task.ID, task); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (s *TaskStorage) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := s.db.Store().Get(id, &task); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("task not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

func (s *TaskStorage) UpdateTask(ctx context.Context, task *models.Task) error {
	if err := s.db.Store().Update(task.ID, task); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("task not found: %s", task.ID)
		}
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

func (s *TaskStorage) DeleteTask(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Task{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("task not found: %s", id)
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (s *TaskStorage) ListTasks(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Task, error) {
	if opts == nil {
		opts = &interfaces.ListOptions{}
	}

	var query *badgerhold.Query
	if opts.Status != "" {
		query = badgerhold.Where("Status").Eq(models.TaskStatus(opts.Status))
	}
	if opts.ClientID != "" {
		if query == nil {
			query = badgerhold.Where("ClientID").Eq(opts.ClientID)
		} else {
			query = query.And("ClientID").Eq(opts.ClientID)
		}
	}
	if query == nil {
		query = badgerhold.Where("ID").Ne("")
	}

	query = query.SortBy(taskOrderField(opts.OrderBy))
	if opts.OrderDir != "asc" {
		query = query.Reverse()
	}
	if opts.Offset > 0 {
		query = query.Skip(opts.Offset)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var tasks []models.Task
	if err := s.db.Store().Find(&tasks, query); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	result := make([]*models.Task, len(tasks))
	for i := range tasks {
		result[i] = &tasks[i]
	}
	return result, nil
}

// taskOrderField maps API sort keys onto struct field names
func taskOrderField(orderBy string) string {
	switch orderBy {
	case "started_at":
		return "StartedAt"
	case "completed_at":
		return "CompletedAt"
	case "status":
		return "Status"
	case "type":
		return "Type"
	default:
		return "CreatedAt"
	}
}

func (s *TaskStorage) GetTasksByClient(ctx context.Context, clientID string) ([]*models.Task, error) {
	query := badgerhold.Where("ClientID").Eq(clientID).SortBy("CreatedAt").Reverse()

	var tasks []models.Task
	if err := s.db.Store().Find(&tasks, query); err != nil {
		return nil, fmt.Errorf("failed to get tasks for client: %w", err)
	}

	result := make([]*models.Task, len(tasks))
	for i := range tasks {
		result[i] = &tasks[i]
	}
	return result, nil
}

func (s *TaskStorage) CountTasks(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Task{}, nil)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *TaskStorage) CountTasksByStatus(ctx context.Context, status models.TaskStatus) (int, error) {
	count, err := s.db.Store().Count(&models.Task{}, badgerhold.Where("Status").Eq(status))
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// GetPollableTasks returns non-terminal analysis tasks in creation order.
// Tasks flagged skip_future_checks are filtered here because parameter map
// entries are not indexable.
func (s *TaskStorage) GetPollableTasks(ctx context.Context) ([]*models.Task, error) {
	query := badgerhold.Where("Status").In(models.TaskStatusPending, models.TaskStatusRunning).
		And("Type").Eq(models.TaskTypeAnalysis).
		SortBy("CreatedAt")

	var tasks []models.Task
	if err := s.db.Store().Find(&tasks, query); err != nil {
		return nil, fmt.Errorf("failed to get pollable tasks: %w", err)
	}

	result := make([]*models.Task, 0, len(tasks))
	for i := range tasks {
		if tasks[i].SkipFutureChecks() {
			continue
		}
		result = append(result, &tasks[i])
	}
	return result, nil
}

// GetActiveTaskForClient returns the newest pending or running task of the
// given type for a client, or nil when the client has none in flight.
func (s *TaskStorage) GetActiveTaskForClient(ctx context.Context, clientID string, taskType models.TaskType) (*models.Task, error) {
	query := badgerhold.Where("ClientID").Eq(clientID).
		And("Type").Eq(taskType).
		And("Status").In(models.TaskStatusPending, models.TaskStatusRunning).
		SortBy("CreatedAt").Reverse().Limit(1)

	var tasks []models.Task
	if err := s.db.Store().Find(&tasks, query); err != nil {
		return nil, fmt.Errorf("failed to get active task: %w", err)
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

// CompleteWithAnalysis finalizes a task and persists its analysis plus the
// per-issue error rows in a single transaction. Concurrent finalizers race on
// the task row: the loser sees a terminal task, a skip_future_checks flag or
// a Badger conflict, all of which surface as ErrTaskFinalized, so exactly one
// analysis is ever written per audit.
func (s *TaskStorage) CompleteWithAnalysis(ctx context.Context, taskID string, analysis *models.Analysis, analysisErrors []*models.AnalysisError) error {
	store := s.db.Store()

	err := store.Badger().Update(func(tx *badgerdb.Txn) error {
		var task models.Task
		if err := store.TxGet(tx, taskID, &task); err != nil {
			if err == badgerhold.ErrNotFound {
				return interfaces.ErrTaskFinalized
			}
			return err
		}
		if task.IsTerminal() || task.SkipFutureChecks() {
			return interfaces.ErrTaskFinalized
		}

		if err := task.Complete(map[string]interface{}{
			models.ParamAnalysisID: analysis.ID,
		}); err != nil {
			return err
		}
		task.MarkSkipFutureChecks()

		if err := store.TxUpdate(tx, taskID, &task); err != nil {
			return fmt.Errorf("failed to finalize task: %w", err)
		}
		if err := store.TxInsert(tx, analysis.ID, analysis); err != nil {
			return fmt.Errorf("failed to save analysis: %w", err)
		}
		for _, analysisError := range analysisErrors {
			if err := store.TxInsert(tx, analysisError.ID, analysisError); err != nil {
				return fmt.Errorf("failed to save analysis error: %w", err)
			}
		}
		return nil
	})
	if err == badgerdb.ErrConflict {
		return interfaces.ErrTaskFinalized
	}
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("analysis_id", analysis.ID).
		Int("error_rows", len(analysisErrors)).
		Msg("Task completed with analysis")
	return nil
}

// FailTask finalizes a task as failed under the same race rules as
// CompleteWithAnalysis.
func (s *TaskStorage) FailTask(ctx context.Context, taskID string, message string) error {
	store := s.db.Store()

	err := store.Badger().Update(func(tx *badgerdb.Txn) error {
		var task models.Task
		if err := store.TxGet(tx, taskID, &task); err != nil {
			if err == badgerhold.ErrNotFound {
				return interfaces.ErrTaskFinalized
			}
			return err
		}
		if task.IsTerminal() || task.SkipFutureChecks() {
			return interfaces.ErrTaskFinalized
		}

		if err := task.Fail(message); err != nil {
			return err
		}
		task.MarkSkipFutureChecks()

		if err := store.TxUpdate(tx, taskID, &task); err != nil {
			return fmt.Errorf("failed to finalize task: %w", err)
		}
		return nil
	})
	if err == badgerdb.ErrConflict {
		return interfaces.ErrTaskFinalized
	}
	if err != nil {
		return err
	}

	s.logger.Warn().Str("task_id", taskID).Str("error", message).Msg("Task failed")
	return nil
}
