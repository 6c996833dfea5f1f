package semrush

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// ProjectExists reports whether a SEMrush project already covers the domain
// or the client's canonical project name. Lookup failures report false; a
// real conflict still surfaces when creation is attempted.
func (c *Client) ProjectExists(ctx context.Context, domain, clientName string) bool {
	var projects []map[string]interface{}
	if err := c.get(ctx, "/management/v1/projects", &projects); err != nil {
		c.logger.Warn().Err(err).Msg("Project listing failed, assuming project does not exist")
		return false
	}

	cleanDomain := common.CleanDomain(domain)
	projectName := ""
	if clientName != "" {
		projectName = common.ProjectNameForClient(clientName)
	}

	for _, project := range projects {
		if projectURL, _ := project["url"].(string); projectURL == cleanDomain {
			c.logger.Info().
				Str("domain", cleanDomain).
				Str("project_id", asString(project["project_id"])).
				Msg("Found existing SEMrush project for domain")
			return true
		}
		if projectName == "" {
			continue
		}
		if name, _ := project["project_name"].(string); name == projectName {
			c.logger.Info().
				Str("project_name", projectName).
				Str("project_id", asString(project["project_id"])).
				Msg("Found existing SEMrush project for client name")
			return true
		}
	}

	return false
}

// CreateProject registers a new SEMrush project for the domain. The project
// name derives from the client name when one is given, otherwise from the
// domain itself.
func (c *Client) CreateProject(ctx context.Context, domain, clientName string) (*models.ProjectInfo, error) {
	cleanDomain := common.CleanDomain(domain)

	projectName := common.ProjectNameForDomain(cleanDomain)
	if clientName != "" {
		projectName = common.ProjectNameForClient(clientName)
	}

	payload := map[string]interface{}{
		"project_name": projectName,
		"url":          cleanDomain,
	}

	var created map[string]interface{}
	if err := c.post(ctx, "/management/v1/projects", payload, &created); err != nil {
		if isDuplicateProjectErr(err) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrDuplicateProject, cleanDomain)
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	projectID := asString(created["project_id"])
	if projectID == "" {
		return nil, fmt.Errorf("project creation response carries no project_id")
	}

	c.logger.Info().
		Str("project_id", projectID).
		Str("project_name", projectName).
		Str("domain", cleanDomain).
		Msg("Created SEMrush project")

	return &models.ProjectInfo{
		ID:      projectID,
		Name:    projectName,
		OwnerID: asString(created["owner_id"]),
		URL:     cleanDomain,
	}, nil
}

// enableAuditPayload is the campaign configuration in the wire casing the
// site audit API expects, which differs from the snake_case profile files.
type enableAuditPayload struct {
	Domain            string   `json:"domain"`
	ScheduleDay       int      `json:"scheduleDay"`
	Notify            bool     `json:"notify"`
	Allow             []string `json:"allow"`
	Disallow          []string `json:"disallow"`
	PageLimit         int      `json:"pageLimit"`
	UserAgentType     int      `json:"userAgentType"`
	RemovedParameters []string `json:"removedParameters"`
	CrawlSubdomains   bool     `json:"crawlSubdomains"`
	RespectCrawlDelay bool     `json:"respectCrawlDelay"`
}

// EnableAudit configures the site audit campaign on a project. A nil
// profile falls back to the default crawl profile.
func (c *Client) EnableAudit(ctx context.Context, projectID, domain string, profile *models.CrawlProfile) error {
	if profile == nil {
		profile = models.DefaultCrawlProfile(0)
	}

	payload := enableAuditPayload{
		Domain:            common.CleanDomain(domain),
		ScheduleDay:       profile.ScheduleDay,
		Notify:            profile.Notify,
		Allow:             orEmpty(profile.Allow),
		Disallow:          orEmpty(profile.Disallow),
		PageLimit:         profile.PageLimit,
		UserAgentType:     profile.UserAgentType,
		RemovedParameters: orEmpty(profile.RemovedParameters),
		CrawlSubdomains:   profile.CrawlSubdomains,
		RespectCrawlDelay: profile.RespectCrawlDelay,
	}

	path := fmt.Sprintf("/management/v1/projects/%s/siteaudit/enable", projectID)
	if err := c.post(ctx, path, payload, nil); err != nil {
		return fmt.Errorf("failed to enable site audit: %w", err)
	}

	c.logger.Info().
		Str("project_id", projectID).
		Str("profile", profile.Name).
		Int("page_limit", payload.PageLimit).
		Msg("Enabled site audit")
	return nil
}

// LaunchAudit starts a full crawl and returns the snapshot id that
// identifies this audit run.
func (c *Client) LaunchAudit(ctx context.Context, projectID string) (string, error) {
	payload := map[string]interface{}{
		"audit_type": "full",
		"check_all":  true,
	}

	var launched map[string]interface{}
	path := fmt.Sprintf("/reports/v1/projects/%s/siteaudit/launch", projectID)
	if err := c.post(ctx, path, payload, &launched); err != nil {
		return "", fmt.Errorf("failed to launch site audit: %w", err)
	}

	snapshotID := asString(launched["snapshot_id"])
	if snapshotID == "" {
		return "", fmt.Errorf("audit launch response carries no snapshot_id")
	}

	c.logger.Info().
		Str("project_id", projectID).
		Str("snapshot_id", snapshotID).
		Msg("Launched site audit")
	return snapshotID, nil
}

// isDuplicateProjectErr recognizes the conflict responses SEMrush returns
// when a project for the URL is already registered.
func isDuplicateProjectErr(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusConflict {
		return true
	}
	message := strings.ToLower(apiErr.Message)
	return strings.Contains(message, "already exists") || strings.Contains(message, "duplicate")
}

// orEmpty keeps list fields as empty JSON arrays instead of null.
func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
