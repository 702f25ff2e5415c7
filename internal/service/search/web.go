package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
)

const noWebResult = "No good web search result was found"

// webSearchTool queries the DuckDuckGo HTML endpoint, which needs no API key.
type webSearchTool struct {
	fetcher
	endpoint   string
	maxResults int
}

func newWebSearchTool(cfg Config, client *http.Client, logger *log.Logger) *webSearchTool {
	return &webSearchTool{
		fetcher:    fetcher{client: client, userAgent: cfg.UserAgent, logger: logger},
		endpoint:   cfg.DuckDuckGoURL,
		maxResults: cfg.MaxResults,
	}
}

func (t *webSearchTool) Kind() Kind   { return WebSearch }
func (t *webSearchTool) Name() string { return WebSearch.String() }

func (t *webSearchTool) Description() string {
	return "Searches the web with DuckDuckGo. Useful for current events and general questions " +
		"that papers or encyclopedias will not cover. Input should be a search query."
}

// Query returns the snippets of the top results joined by spaces.
func (t *webSearchTool) Query(ctx context.Context, text string) (string, error) {
	query := trimQuery(text)
	if query == "" {
		return noWebResult, nil
	}

	body, err := t.get(ctx, t.endpoint+"?q="+url.QueryEscape(query), "text/html")
	if err != nil {
		return "", errors.Wrap(err, "duckduckgo")
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "duckduckgo: parse html"), ErrParseFailed)
	}

	snippets := extractSnippets(doc, t.maxResults)
	t.logger.Debug("web search", "results", len(snippets))
	if len(snippets) == 0 {
		return noWebResult, nil
	}
	return strings.Join(snippets, " "), nil
}

func extractSnippets(doc *goquery.Document, maxResults int) []string {
	var snippets []string
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		snippet := strings.Join(strings.Fields(s.Find(".result__snippet").Text()), " ")
		if snippet == "" {
			return true
		}
		snippets = append(snippets, snippet)
		return len(snippets) < maxResults
	})
	return snippets
}
