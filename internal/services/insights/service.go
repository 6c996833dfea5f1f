// Package insights generates AI commentary for completed analyses: a
// summary, numbered insight and recommendation blocks, and per-issue
// impact/solution enrichment. Generation never fails the caller; without
// a model credential it produces deterministic placeholder text, and a
// model failure produces an error summary instead of surfacing upstream.
package insights

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// issueSampleLimit caps how many defect rows are serialized into the
// prompt, mirroring the token budget of the model.
const issueSampleLimit = 5

// Service implements interfaces.InsightService.
type Service struct {
	storage interfaces.StorageManager
	llm     interfaces.LLMService
	content interfaces.SiteContentService
	events  interfaces.EventService
	logger  arbor.ILogger
}

// NewService creates the insight generation service. The LLM service may be
// nil (no credential configured); generation then yields placeholder text.
// The site content service may be nil; the prompt simply omits page context.
func NewService(storage interfaces.StorageManager, llm interfaces.LLMService, content interfaces.SiteContentService, events interfaces.EventService, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		storage: storage,
		llm:     llm,
		content: content,
		events:  events,
		logger:  logger,
	}
}

// Enabled reports whether a model credential is configured.
func (s *Service) Enabled() bool {
	return s.llm != nil
}

// generatedText is the flattened output of one generation run: the three
// text fields stored on the analysis plus the issue-id keyed enrichment.
type generatedText struct {
	summary         string
	insights        string
	recommendations string
	impacts         map[string]string
	solutions       map[string]string
}

// GenerateForAnalysis runs insight generation for one analysis under a
// generate_insights task. The task always converges: generation itself
// never fails, only storage errors fail the task.
func (s *Service) GenerateForAnalysis(ctx context.Context, analysisID string) (*models.Task, error) {
	analysis, err := s.storage.AnalysisStorage().GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}

	client, err := s.storage.ClientStorage().GetClient(ctx, analysis.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	task := models.NewTask(client.ID, models.TaskTypeGenerateInsights, map[string]interface{}{
		models.ParamAnalysisID: analysisID,
	})
	if err := s.storage.TaskStorage().CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := task.Begin(); err != nil {
		return task, err
	}
	if err := s.storage.TaskStorage().UpdateTask(ctx, task); err != nil {
		return task, fmt.Errorf("failed to update task: %w", err)
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("analysis_id", analysisID).
		Str("client", client.Name).
		Msg("Generating insights")

	text := s.generate(ctx, client, analysis)

	if err := s.storage.AnalysisStorage().UpdateInsights(ctx, analysis.ID, text.summary, text.insights, text.recommendations); err != nil {
		s.failTask(ctx, task, fmt.Sprintf("Error generating insights: %v", err))
		return task, fmt.Errorf("failed to store insights: %w", err)
	}

	enriched := s.applyEnrichment(ctx, analysis.ID, text)

	if err := task.Complete(map[string]interface{}{
		"success":              true,
		models.ParamAnalysisID: analysisID,
	}); err == nil {
		if err := s.storage.TaskStorage().UpdateTask(ctx, task); err != nil {
			s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to persist task completion")
		}
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("analysis_id", analysisID).
		Int("enriched_errors", enriched).
		Msg("Insights generated")

	s.publish(ctx, interfaces.EventInsightsGenerated, map[string]interface{}{
		"task_id":     task.ID,
		"analysis_id": analysisID,
		"client_id":   client.ID,
	})

	return task, nil
}

// Backfill generates insights for analyses created after the cutoff that
// have none yet. A no-op without a credential: scheduled runs must not
// paper over every stored analysis with placeholder text.
func (s *Service) Backfill(ctx context.Context, since time.Time) (int, error) {
	if !s.Enabled() {
		s.logger.Debug().Msg("Insight backfill skipped, no LLM credential configured")
		return 0, nil
	}

	analyses, err := s.storage.AnalysisStorage().GetAnalysesMissingInsights(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to load analyses missing insights: %w", err)
	}

	processed := 0
	for _, analysis := range analyses {
		if _, err := s.GenerateForAnalysis(ctx, analysis.ID); err != nil {
			s.logger.Warn().Err(err).Str("analysis_id", analysis.ID).Msg("Insight backfill failed for analysis")
			continue
		}
		processed++
	}

	if processed > 0 {
		s.logger.Info().Int("processed", processed).Msg("Insight backfill completed")
	}

	return processed, nil
}

// generate produces the insight text for an analysis. Never fails: a
// missing credential yields the placeholder, a model or parse failure
// yields an error summary.
func (s *Service) generate(ctx context.Context, client *models.Client, analysis *models.Analysis) generatedText {
	if s.llm == nil {
		return placeholderText()
	}

	previous, err := s.storage.AnalysisStorage().GetPreviousAnalysis(ctx, analysis)
	if err != nil {
		s.logger.Debug().Err(err).Msg("No previous analysis for comparison")
		previous = nil
	}

	sample, err := s.storage.AnalysisStorage().GetAnalysisErrors(ctx, analysis.ID)
	if err != nil {
		sample = nil
	}
	if len(sample) > issueSampleLimit {
		sample = sample[:issueSampleLimit]
	}

	excerpt := s.fetchExcerpt(ctx, client.Website)

	messages := []interfaces.Message{
		{Role: "system", Content: insightSystemPrompt},
		{Role: "user", Content: buildInsightPrompt(client, analysis, models.Compare(previous, analysis), sample, excerpt)},
	}

	response, err := s.llm.Chat(ctx, messages)
	if err != nil {
		s.logger.Warn().Err(err).Str("analysis_id", analysis.ID).Msg("LLM chat failed")
		return errorText(err)
	}

	report, err := parseInsightResponse(response)
	if err != nil {
		s.logger.Warn().Err(err).Str("analysis_id", analysis.ID).Msg("Failed to parse LLM response")
		return errorText(err)
	}

	return generatedText{
		summary:         report.Summary,
		insights:        report.FormatInsights(),
		recommendations: report.FormatRecommendations(),
		impacts:         report.ErrorImpacts,
		solutions:       report.ErrorSolutions,
	}
}

// fetchExcerpt pulls the homepage excerpt when a content service is wired.
// Failure is expected and only drops page context from the prompt.
func (s *Service) fetchExcerpt(ctx context.Context, website string) *interfaces.SiteExcerpt {
	if s.content == nil {
		return nil
	}
	excerpt, err := s.content.FetchExcerpt(ctx, website)
	if err != nil {
		s.logger.Debug().Err(err).Str("website", website).Msg("Homepage excerpt unavailable")
		return nil
	}
	return excerpt
}

// applyEnrichment writes model-supplied impact and solution text onto the
// matching error rows, keyed by SEMrush issue id. Returns how many rows
// were updated; failures are logged and skipped.
func (s *Service) applyEnrichment(ctx context.Context, analysisID string, text generatedText) int {
	if len(text.impacts) == 0 && len(text.solutions) == 0 {
		return 0
	}

	rows, err := s.storage.AnalysisStorage().GetAnalysisErrors(ctx, analysisID)
	if err != nil {
		s.logger.Warn().Err(err).Str("analysis_id", analysisID).Msg("Failed to load error rows for enrichment")
		return 0
	}

	enriched := 0
	for _, row := range rows {
		if row.SemrushIssueID == 0 {
			continue
		}
		key := strconv.Itoa(row.SemrushIssueID)

		changed := false
		if impact, ok := text.impacts[key]; ok && impact != "" {
			row.Impact = impact
			changed = true
		}
		if solution, ok := text.solutions[key]; ok && solution != "" {
			row.Solution = solution
			changed = true
		}
		if !changed {
			continue
		}

		if err := s.storage.AnalysisStorage().UpdateAnalysisError(ctx, row); err != nil {
			s.logger.Warn().Err(err).Str("error_id", row.ID).Msg("Failed to persist error enrichment")
			continue
		}
		enriched++
	}

	return enriched
}

// parseInsightResponse extracts the YAML document from a model response
// (tolerating markdown fences) and unmarshals it into the report contract.
func parseInsightResponse(response string) (*models.InsightReport, error) {
	yamlContent := response
	if strings.Contains(response, "```yaml") {
		start := strings.Index(response, "```yaml") + 7
		end := strings.LastIndex(response, "```")
		if end > start {
			yamlContent = response[start:end]
		}
	} else if strings.Contains(response, "```") {
		start := strings.Index(response, "```") + 3
		end := strings.LastIndex(response, "```")
		if end > start {
			yamlContent = response[start:end]
		}
	}

	var report models.InsightReport
	if err := yaml.Unmarshal([]byte(yamlContent), &report); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if report.Summary == "" && len(report.Insights) == 0 && len(report.Recommendations) == 0 {
		return nil, fmt.Errorf("model response contained no usable content")
	}

	return &report, nil
}

// placeholderText is stored when no model credential is configured.
func placeholderText() generatedText {
	return generatedText{
		summary:         "An AI provider API key is required for AI-driven insights",
		insights:        "To generate intelligent insights from your SEO data, add an Anthropic or Gemini API key via the settings.",
		recommendations: "After adding an API key, you'll be able to get detailed recommendations for improving your website's SEO performance.",
	}
}

// errorText is stored when the model call or parse fails.
func errorText(err error) generatedText {
	return generatedText{
		summary: fmt.Sprintf("Error generating insights: %v", err),
	}
}

func (s *Service) failTask(ctx context.Context, task *models.Task, message string) {
	if err := task.Fail(message); err != nil {
		return
	}
	if err := s.storage.TaskStorage().UpdateTask(ctx, task); err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to persist task failure")
	}
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Debug().Err(err).Str("event", string(eventType)).Msg("Event publish failed")
	}
}
