package semrush

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/afpkennettt/semanalyzer/internal/models"
)

// snapshotList is the envelope of the snapshot history endpoint.
type snapshotList struct {
	Snapshots []map[string]interface{} `json:"snapshots"`
}

// CheckStatus resolves the state of a launched audit. The campaign info
// report answers first; the snapshot list and the per-snapshot status
// endpoint back it up when the report is unavailable. Indeterminate
// responses resolve to in_progress so polling continues instead of failing
// a live crawl.
func (c *Client) CheckStatus(ctx context.Context, projectID, snapshotID string) (models.AuditCheck, error) {
	if check, ok := c.statusFromInfo(ctx, projectID); ok {
		return check, nil
	}
	if check, ok := c.statusFromSnapshotList(ctx, projectID, snapshotID); ok {
		return check, nil
	}
	return c.statusFromSnapshot(ctx, projectID, snapshotID)
}

// statusFromInfo reads the campaign info report. Any 200 response settles
// the verdict; only transport failures and non-200s defer to the fallbacks.
func (c *Client) statusFromInfo(ctx context.Context, projectID string) (models.AuditCheck, bool) {
	var info map[string]interface{}
	path := fmt.Sprintf("/reports/v1/projects/%s/siteaudit/info", projectID)
	if err := c.get(ctx, path, &info); err != nil {
		c.logger.Debug().
			Err(err).
			Str("project_id", projectID).
			Msg("Campaign info unavailable, checking snapshots")
		return models.AuditCheck{}, false
	}

	if status, ok := info["status"].(string); ok && status != "" {
		switch status {
		case "completed", "done", "DONE", "FINISHED":
			return models.AuditCheck{State: models.AuditStateDone, RawStatus: status}, true
		case "failed", "FAILED":
			return models.AuditCheck{State: models.AuditStateFailed, RawStatus: status}, true
		default:
			return models.AuditCheck{State: models.AuditStateInProgress, RawStatus: status}, true
		}
	}

	// A report carrying issue data without a status is a finished crawl
	if _, ok := info["issues"]; ok {
		return models.AuditCheck{State: models.AuditStateDone}, true
	}
	return models.AuditCheck{State: models.AuditStateInProgress}, true
}

// statusFromSnapshotList scans the snapshot history for our snapshot. A
// recorded finish date means the crawl completed even when the info report
// is lagging.
func (c *Client) statusFromSnapshotList(ctx context.Context, projectID, snapshotID string) (models.AuditCheck, bool) {
	var list snapshotList
	path := fmt.Sprintf("/reports/v1/projects/%s/siteaudit/snapshots", projectID)
	if err := c.get(ctx, path, &list); err != nil {
		return models.AuditCheck{}, false
	}

	for _, snapshot := range list.Snapshots {
		if asString(snapshot["snapshot_id"]) != snapshotID {
			continue
		}
		if _, finished := snapshot["finish_date"]; finished {
			return models.AuditCheck{State: models.AuditStateDone, RawStatus: "finished"}, true
		}
	}
	return models.AuditCheck{}, false
}

// statusFromSnapshot is the terminal fallback. A 404 means the snapshot is
// not registered yet, so the audit reads as still running.
func (c *Client) statusFromSnapshot(ctx context.Context, projectID, snapshotID string) (models.AuditCheck, error) {
	var statusData map[string]interface{}
	path := fmt.Sprintf("/reports/v1/projects/%s/siteaudit/snapshots/%s/status", projectID, snapshotID)
	if err := c.get(ctx, path, &statusData); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.AuditCheck{State: models.AuditStateInProgress}, ctxErr
		}
		if statusCodeOf(err) != http.StatusNotFound {
			c.logger.Warn().
				Err(err).
				Str("project_id", projectID).
				Str("snapshot_id", snapshotID).
				Msg("Snapshot status lookup failed, treating audit as in progress")
		}
		return models.AuditCheck{State: models.AuditStateInProgress}, nil
	}

	raw := asString(statusData["status"])
	switch strings.ToUpper(raw) {
	case "DONE", "FINISHED", "COMPLETED":
		return models.AuditCheck{State: models.AuditStateDone, RawStatus: raw}, nil
	case "FAILED":
		return models.AuditCheck{State: models.AuditStateFailed, RawStatus: raw}, nil
	default:
		return models.AuditCheck{State: models.AuditStateInProgress, RawStatus: raw}, nil
	}
}

// FetchResults retrieves and normalizes the finished audit. The campaign
// info report carries counters and defect lists in one call; when it is
// unavailable the issue metadata endpoint serves as fallback, resolving a
// finished snapshot from the history first if the caller has none.
func (c *Client) FetchResults(ctx context.Context, projectID, snapshotID, domain string) (*models.AuditResult, error) {
	var info map[string]interface{}
	infoPath := fmt.Sprintf("/reports/v1/projects/%s/siteaudit/info", projectID)
	if err := c.get(ctx, infoPath, &info); err != nil {
		c.logger.Debug().
			Err(err).
			Str("project_id", projectID).
			Msg("Campaign info unavailable, falling back to issue metadata")
	} else if isFinishedInfo(info) {
		c.logger.Info().
			Str("project_id", projectID).
			Str("domain", domain).
			Msg("Fetched audit results from campaign info")
		return Normalize(info, snapshotID), nil
	}

	if snapshotID == "" {
		resolved, err := c.firstFinishedSnapshot(ctx, projectID)
		if err != nil {
			return nil, err
		}
		snapshotID = resolved
	}

	var meta map[string]interface{}
	metaPath := fmt.Sprintf("/reports/v1/projects/%s/siteaudit/meta/issues", projectID)
	if err := c.get(ctx, metaPath, &meta); err != nil {
		return nil, fmt.Errorf("failed to fetch audit issues: %w", err)
	}

	c.logger.Info().
		Str("project_id", projectID).
		Str("snapshot_id", snapshotID).
		Msg("Fetched audit results from issue metadata")
	return Normalize(meta, snapshotID), nil
}

// isFinishedInfo reports whether the info payload describes a completed
// crawl worth normalizing.
func isFinishedInfo(info map[string]interface{}) bool {
	if status, _ := info["status"].(string); status == "FINISHED" {
		return true
	}
	_, hasSnapshot := info["snapshot_id"]
	return hasSnapshot
}

// firstFinishedSnapshot picks the newest snapshot with a finish date from
// the project history.
func (c *Client) firstFinishedSnapshot(ctx context.Context, projectID string) (string, error) {
	var list snapshotList
	path := fmt.Sprintf("/reports/v1/projects/%s/siteaudit/snapshots", projectID)
	if err := c.get(ctx, path, &list); err != nil {
		return "", fmt.Errorf("failed to list snapshots: %w", err)
	}

	for _, snapshot := range list.Snapshots {
		if _, finished := snapshot["finish_date"]; !finished {
			continue
		}
		if id := asString(snapshot["snapshot_id"]); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("no finished snapshots for project %s", projectID)
}
