package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// CheckTask advances one analysis task by a single step and returns its
// refreshed state. A pending task runs the provisioning workflow; a running
// task at the audit stage is polled once. Transient provider failures are
// logged and retried on the next check, never returned.
func (s *Service) CheckTask(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.storage.TaskStorage().GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if task.Type != models.TaskTypeAnalysis || task.IsTerminal() {
		return task, nil
	}
	if s.provider == nil {
		s.logger.Warn().Str("task_id", task.ID).Msg("SEMrush provider not configured, leaving task untouched")
		return task, nil
	}

	switch task.Status {
	case models.TaskStatusPending:
		s.provision(ctx, task.ID)
	case models.TaskStatusRunning:
		s.pollTask(ctx, task)
	}

	return s.storage.TaskStorage().GetTask(ctx, taskID)
}

// Sweep polls every pollable analysis task once. One task's failure never
// aborts the batch; the count of examined tasks is returned.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if s.provider == nil {
		s.logger.Warn().Msg("SEMrush provider not configured, skipping audit sweep")
		return 0, nil
	}

	tasks, err := s.storage.TaskStorage().GetPollableTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load pollable tasks: %w", err)
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	s.logger.Debug().Int("count", len(tasks)).Msg("Sweeping running audits")

	for _, task := range tasks {
		if _, err := s.CheckTask(ctx, task.ID); err != nil {
			s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Audit check failed during sweep")
		}
	}

	return len(tasks), nil
}

// pollTask asks the provider for the audit state of one running task and
// finalizes the task when the audit is done or failed.
func (s *Service) pollTask(ctx context.Context, task *models.Task) {
	if task.SkipFutureChecks() {
		return
	}
	if task.Stage() != models.StageAuditStarted {
		s.logger.Debug().
			Str("task_id", task.ID).
			Str("stage", task.Stage()).
			Msg("Task has not reached the audit stage yet, skipping poll")
		return
	}

	projectID, _ := task.GetParamString(models.ParamProjectID)
	snapshotID, _ := task.GetParamString(models.ParamSnapshotID)
	if projectID == "" || snapshotID == "" {
		s.logger.Warn().
			Str("task_id", task.ID).
			Err(interfaces.ErrMissingCorrelationID).
			Msg("Task cannot be polled")
		s.failTask(ctx, task.ID, "Missing SEMrush project ID or snapshot ID")
		return
	}

	check, err := s.provider.CheckStatus(ctx, projectID, snapshotID)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("task_id", task.ID).
			Str("project_id", projectID).
			Msg("Audit status check failed, will retry on next sweep")
		return
	}

	switch check.State {
	case models.AuditStateDone:
		s.completeTask(ctx, task, projectID, snapshotID)
	case models.AuditStateFailed:
		s.failTask(ctx, task.ID, "SEMrush audit failed")
	default:
		raw := check.RawStatus
		if raw == "" {
			raw = string(check.State)
		}
		task.SetParam(models.ParamAuditStatus, raw)
		if err := s.storage.TaskStorage().UpdateTask(ctx, task); err != nil {
			s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to record audit status on task")
			return
		}
		s.logger.Debug().
			Str("task_id", task.ID).
			Str("status", raw).
			Msg("Audit still in progress")
		s.publish(ctx, interfaces.EventTaskProgress, map[string]interface{}{
			"task_id":   task.ID,
			"client_id": task.ClientID,
			"status":    raw,
		})
	}
}

// completeTask fetches the finished audit, materializes the analysis and its
// issue rows and finalizes the task in one storage transaction.
func (s *Service) completeTask(ctx context.Context, task *models.Task, projectID, snapshotID string) {
	domain, _ := task.GetParamString(models.ParamWebsite)
	domain = common.CleanDomain(domain)

	result, err := s.provider.FetchResults(ctx, projectID, snapshotID, domain)
	if err != nil || result == nil || result.IsError() {
		if err != nil {
			s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Audit results unavailable")
		}
		s.failTask(ctx, task.ID, "Failed to get audit issues data")
		return
	}

	analysis := models.NewAnalysisFromResult(task.ClientID, result)
	analysis.SemrushProjectID = projectID
	if analysis.SemrushSnapshotID == "" {
		analysis.SemrushSnapshotID = snapshotID
	}

	analysis.PagesWithIssuesDelta = result.Summary.HaveIssuesDelta
	if analysis.PagesWithIssuesDelta == 0 {
		if previous, err := s.storage.AnalysisStorage().GetLatestByClient(ctx, task.ClientID); err == nil && previous != nil {
			analysis.PagesWithIssuesDelta = analysis.PagesWithIssues - previous.PagesWithIssues
		}
	}

	rows := s.buildAnalysisErrors(ctx, analysis, result)

	if err := s.storage.TaskStorage().CompleteWithAnalysis(ctx, task.ID, analysis, rows); err != nil {
		if errors.Is(err, interfaces.ErrTaskFinalized) {
			s.logger.Debug().Str("task_id", task.ID).Msg("Task already finalized, discarding duplicate completion")
			return
		}
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to store analysis")
		return
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("client_id", task.ClientID).
		Str("analysis_id", analysis.ID).
		Int("errors", analysis.TotalErrors).
		Int("warnings", analysis.TotalWarnings).
		Int("notices", analysis.TotalNotices).
		Int("issue_rows", len(rows)).
		Msg("Analysis completed")

	s.publish(ctx, interfaces.EventTaskCompleted, map[string]interface{}{
		"task_id":     task.ID,
		"client_id":   task.ClientID,
		"analysis_id": analysis.ID,
	})
	s.publish(ctx, interfaces.EventAnalysisCreated, map[string]interface{}{
		"analysis_id": analysis.ID,
		"client_id":   task.ClientID,
	})

	if s.insights != nil && s.insights.Enabled() {
		analysisID := analysis.ID
		common.SafeGo(s.logger, "generateInsights", func() {
			if _, err := s.insights.GenerateForAnalysis(context.Background(), analysisID); err != nil {
				s.logger.Warn().Err(err).Str("analysis_id", analysisID).Msg("Failed to generate insights for completed analysis")
			}
		})
	}
}
