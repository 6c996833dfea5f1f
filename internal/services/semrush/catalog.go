package semrush

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/afpkennettt/semanalyzer/internal/models"
)

// FetchIssueCatalog retrieves the static metadata for every issue id the
// audit engine can report. The endpoint is project-scoped; any registered
// project id works. SEMrush has served the catalog as a list under an
// issues key, as a bare list, and as an id-keyed map; all three parse.
func (c *Client) FetchIssueCatalog(ctx context.Context, projectID string) ([]*models.IssueDefinition, error) {
	var payload json.RawMessage
	path := fmt.Sprintf("/reports/v1/projects/%s/siteaudit/meta/issues", projectID)
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch issue catalog: %w", err)
	}

	defs, skipped := parseIssueCatalog(payload)
	if len(defs) == 0 {
		return nil, fmt.Errorf("issue catalog response carries no parsable issues")
	}
	if skipped > 0 {
		c.logger.Warn().
			Int("skipped", skipped).
			Msg("Skipped issue catalog entries without numeric ids")
	}

	c.logger.Info().
		Int("count", len(defs)).
		Str("project_id", projectID).
		Msg("Fetched issue catalog")
	return defs, nil
}

func parseIssueCatalog(payload []byte) ([]*models.IssueDefinition, int) {
	var decoded interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, 0
	}

	switch data := decoded.(type) {
	case map[string]interface{}:
		if issues, ok := data["issues"].([]interface{}); ok {
			return catalogFromList(issues)
		}
		return catalogFromMap(data)
	case []interface{}:
		return catalogFromList(data)
	}
	return nil, 0
}

func catalogFromList(items []interface{}) ([]*models.IssueDefinition, int) {
	defs := make([]*models.IssueDefinition, 0, len(items))
	skipped := 0

	for _, raw := range items {
		fields, ok := raw.(map[string]interface{})
		if !ok {
			skipped++
			continue
		}
		id, ok := issueID(fields["id"])
		if !ok {
			skipped++
			continue
		}
		defs = append(defs, definitionFromFields(id, fields))
	}
	return defs, skipped
}

func catalogFromMap(data map[string]interface{}) ([]*models.IssueDefinition, int) {
	defs := make([]*models.IssueDefinition, 0, len(data))
	skipped := 0

	for key, raw := range data {
		id, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			skipped++
			continue
		}
		fields, ok := raw.(map[string]interface{})
		if !ok {
			// A scalar value is the title itself
			defs = append(defs, &models.IssueDefinition{ID: id, Title: asString(raw)})
			continue
		}
		defs = append(defs, definitionFromFields(id, fields))
	}
	return defs, skipped
}

func definitionFromFields(id int, fields map[string]interface{}) *models.IssueDefinition {
	return &models.IssueDefinition{
		ID:             id,
		Title:          asString(fields["title"]),
		Description:    asString(fields["description"]),
		Group:          asString(fields["group"]),
		IssueType:      asString(fields["type"]),
		Recommendation: asString(fields["recommendation"]),
	}
}

// issueID parses an issue id that may arrive as a JSON number or a numeric
// string. The ok result distinguishes a real zero from an unparsable id.
func issueID(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		id, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return id, true
	}
	return 0, false
}
