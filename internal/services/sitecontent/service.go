// Package sitecontent fetches a client's homepage and condenses it into a
// short excerpt (title, meta description, markdown body) for the insight
// prompt. Failures are routine: sites block bots, time out or serve
// non-HTML, and callers treat any error as "no page context available".
package sitecontent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

const (
	defaultTimeout = 15 * time.Second
	userAgent      = "semanalyzer/1.0 (+site-audit)"

	// maxBodyBytes caps how much of the response is read
	maxBodyBytes = 2 << 20

	// maxMarkdownChars caps the excerpt length stored in the prompt
	maxMarkdownChars = 2000
)

// Service implements interfaces.SiteContentService.
type Service struct {
	httpClient *http.Client
	logger     arbor.ILogger
}

// NewService creates the homepage excerpt service. A nil http client gets a
// default with a short timeout; homepage context is never worth waiting for.
func NewService(httpClient *http.Client, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Service{
		httpClient: httpClient,
		logger:     logger,
	}
}

// FetchExcerpt downloads the homepage and condenses it: title and meta
// description from the head, the main content converted to markdown and
// truncated.
func (s *Service) FetchExcerpt(ctx context.Context, website string) (*interfaces.SiteExcerpt, error) {
	pageURL := normalizeURL(website)
	if pageURL == "" {
		return nil, fmt.Errorf("no website configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("homepage fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("homepage fetch failed: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse homepage: %w", err)
	}

	excerpt := &interfaces.SiteExcerpt{
		Title:           strings.TrimSpace(doc.Find("title").First().Text()),
		MetaDescription: strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", "")),
		FetchedAt:       time.Now(),
	}

	markdown, err := s.extractMarkdown(doc, pageURL)
	if err != nil {
		s.logger.Debug().Err(err).Str("url", pageURL).Msg("Markdown conversion failed, excerpt keeps metadata only")
	} else {
		excerpt.Markdown = markdown
	}

	s.logger.Debug().
		Str("url", pageURL).
		Str("title", excerpt.Title).
		Int("markdown_len", len(excerpt.Markdown)).
		Msg("Homepage excerpt fetched")

	return excerpt, nil
}

// extractMarkdown converts the page's main content to markdown. Prefers a
// main/article container; otherwise strips boilerplate from the body.
func (s *Service) extractMarkdown(doc *goquery.Document, pageURL string) (string, error) {
	selection := doc.Find("main, article, [role=main]").First()
	if selection.Length() == 0 {
		doc.Find("nav, header, footer, aside, script, style, noscript").Remove()
		selection = doc.Find("body").First()
	}
	if selection.Length() == 0 {
		return "", fmt.Errorf("no body content")
	}

	html, err := selection.Html()
	if err != nil {
		return "", fmt.Errorf("failed to extract HTML: %w", err)
	}

	converter := md.NewConverter(pageURL, true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert to markdown: %w", err)
	}

	return truncate(strings.TrimSpace(markdown), maxMarkdownChars), nil
}

// normalizeURL turns a stored website value into a fetchable URL.
func normalizeURL(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if strings.HasPrefix(website, "http://") || strings.HasPrefix(website, "https://") {
		return website
	}
	return "https://" + website
}

// truncate cuts text at the last whitespace before the limit.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndexAny(cut, " \n\t"); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
