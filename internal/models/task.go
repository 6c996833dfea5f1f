// -----------------------------------------------------------------------
// Task - Audit workflow state machine persisted in Badger
// -----------------------------------------------------------------------

package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskType identifies the kind of work a task tracks.
type TaskType string

const (
	TaskTypeAnalysis         TaskType = "analysis"
	TaskTypeGenerateInsights TaskType = "generate_insights"
)

// Workflow stages recorded in Parameters[ParamStage]. A running analysis
// task moves starting -> starting_analysis -> audit_started; scheduled
// tasks begin at init before the worker picks them up.
const (
	StageInit             = "init"
	StageStarting         = "starting"
	StageStartingAnalysis = "starting_analysis"
	StageAuditStarted     = "audit_started"
)

// Recognized parameter keys. Parameters are the single source of truth for
// workflow phase; columns never duplicate them.
const (
	ParamClientID         = "client_id"
	ParamWebsite          = "website"
	ParamStage            = "stage"
	ParamProjectID        = "project_id"
	ParamSnapshotID       = "snapshot_id"
	ParamAuditStatus      = "audit_status"
	ParamSkipFutureChecks = "skip_future_checks"
	ParamAnalysisID       = "analysis_id"
)

// ErrInvalidTransition is returned when a lifecycle method is called on a
// task whose status does not permit it. Completed and failed are terminal.
var ErrInvalidTransition = errors.New("invalid task transition")

// Task is a unit of audit work tracked by the dashboard. Status moves
// pending -> running -> completed|failed and never leaves a terminal state.
// Transient polling state (stage, snapshot ids, raw audit status) lives in
// the Parameters bag, not in dedicated fields.
type Task struct {
	ID       string     `json:"id"`
	ClientID string     `json:"client_id" badgerhold:"index"`
	Type     TaskType   `json:"task_type" badgerhold:"index"`
	Status   TaskStatus `json:"status" badgerhold:"index"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ErrorMessage is only populated when status is failed. It is shown to
	// users verbatim, so keep it actionable.
	ErrorMessage string `json:"error_message,omitempty"`

	Parameters map[string]interface{} `json:"parameters"`
	Result     map[string]interface{} `json:"result,omitempty"`
}

// NewTask creates a pending task. A nil params map is replaced with an
// empty one so callers can always write into it.
func NewTask(clientID string, taskType TaskType, params map[string]interface{}) *Task {
	if params == nil {
		params = make(map[string]interface{})
	}
	return &Task{
		ID:         uuid.New().String(),
		ClientID:   clientID,
		Type:       taskType,
		Status:     TaskStatusPending,
		CreatedAt:  time.Now(),
		Parameters: params,
	}
}

// Begin moves a pending task to running, stamps StartedAt and resets the
// stage to starting.
func (t *Task) Begin() error {
	if t.Status != TaskStatusPending {
		return fmt.Errorf("%w: cannot begin task %s in status %s", ErrInvalidTransition, t.ID, t.Status)
	}
	t.Status = TaskStatusRunning
	now := time.Now()
	t.StartedAt = &now
	t.SetParam(ParamStage, StageStarting)
	return nil
}

// Advance merges extra parameters and moves the workflow to the given
// stage. Only running tasks advance.
func (t *Task) Advance(stage string, extra map[string]interface{}) error {
	if t.Status != TaskStatusRunning {
		return fmt.Errorf("%w: cannot advance task %s in status %s", ErrInvalidTransition, t.ID, t.Status)
	}
	for k, v := range extra {
		t.SetParam(k, v)
	}
	t.SetParam(ParamStage, stage)
	return nil
}

// Complete moves a running task to completed with the given result.
func (t *Task) Complete(result map[string]interface{}) error {
	if t.Status != TaskStatusRunning {
		return fmt.Errorf("%w: cannot complete task %s in status %s", ErrInvalidTransition, t.ID, t.Status)
	}
	t.Status = TaskStatusCompleted
	now := time.Now()
	t.CompletedAt = &now
	t.Result = result
	return nil
}

// Fail moves a running task to failed with a user-facing message.
func (t *Task) Fail(message string) error {
	if t.Status != TaskStatusRunning {
		return fmt.Errorf("%w: cannot fail task %s in status %s", ErrInvalidTransition, t.ID, t.Status)
	}
	t.Status = TaskStatusFailed
	now := time.Now()
	t.CompletedAt = &now
	t.ErrorMessage = message
	return nil
}

// MarkSkipFutureChecks freezes the task against further poller activity.
// Set together with the terminal transition so a concurrent sweep that
// already loaded the task skips it on the next pass.
func (t *Task) MarkSkipFutureChecks() {
	t.SetParam(ParamSkipFutureChecks, true)
}

// SkipFutureChecks reports whether the poller must leave this task alone.
func (t *Task) SkipFutureChecks() bool {
	v, _ := t.GetParamBool(ParamSkipFutureChecks)
	return v
}

// IsTerminal returns true once the task reached completed or failed.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// Stage returns the current workflow stage, or "" when none was recorded.
func (t *Task) Stage() string {
	s, _ := t.GetParamString(ParamStage)
	return s
}

// SetParam writes a single parameter, allocating the bag when needed.
func (t *Task) SetParam(key string, value interface{}) {
	if t.Parameters == nil {
		t.Parameters = make(map[string]interface{})
	}
	t.Parameters[key] = value
}

// GetParamString retrieves a string parameter.
func (t *Task) GetParamString(key string) (string, bool) {
	v, ok := t.Parameters[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetParamInt retrieves an int parameter. JSON round-trips store numbers
// as float64, so both are accepted.
func (t *Task) GetParamInt(key string) (int, bool) {
	v, ok := t.Parameters[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// GetParamBool retrieves a bool parameter.
func (t *Task) GetParamBool(key string) (bool, bool) {
	v, ok := t.Parameters[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Validate checks the structural invariants before persistence.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if t.ClientID == "" {
		return fmt.Errorf("task client ID is required")
	}
	if t.Type == "" {
		return fmt.Errorf("task type is required")
	}
	switch t.Status {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
	default:
		return fmt.Errorf("unknown task status %q", t.Status)
	}
	return nil
}

// Clone returns a deep copy. Poll attempts mutate the copy and persist it
// with a compare-and-set, leaving the original untouched on conflict.
func (t *Task) Clone() *Task {
	params := make(map[string]interface{}, len(t.Parameters))
	for k, v := range t.Parameters {
		params[k] = v
	}
	var result map[string]interface{}
	if t.Result != nil {
		result = make(map[string]interface{}, len(t.Result))
		for k, v := range t.Result {
			result[k] = v
		}
	}
	clone := *t
	clone.Parameters = params
	clone.Result = result
	return &clone
}
