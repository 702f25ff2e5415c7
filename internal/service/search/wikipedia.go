package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
)

const noWikipediaResult = "No good Wikipedia search result was found"

type wikiResponse struct {
	Query struct {
		Pages map[string]wikiPage `json:"pages"`
	} `json:"query"`
}

type wikiPage struct {
	PageID  int             `json:"pageid"`
	Title   string          `json:"title"`
	Index   int             `json:"index"`
	Extract string          `json:"extract"`
	Missing json.RawMessage `json:"missing,omitempty"`
}

// wikipediaTool searches MediaWiki and returns the intro extract of the best pages.
type wikipediaTool struct {
	fetcher
	endpoint string
	topK     int
	maxChars int
}

func newWikipediaTool(cfg Config, client *http.Client, logger *log.Logger) *wikipediaTool {
	return &wikipediaTool{
		fetcher:  fetcher{client: client, userAgent: cfg.UserAgent, logger: logger},
		endpoint: cfg.WikipediaURL,
		topK:     cfg.WikiTopK,
		maxChars: cfg.DocCharsMax,
	}
}

func (t *wikipediaTool) Kind() Kind   { return WikipediaLookup }
func (t *wikipediaTool) Name() string { return WikipediaLookup.String() }

func (t *wikipediaTool) Description() string {
	return "Looks up Wikipedia. Useful for general questions about people, places, companies, facts, " +
		"historical events or other subjects. Input should be a search query."
}

// Query renders "Page/Summary" blocks for the best matches, truncated to the configured length.
func (t *wikipediaTool) Query(ctx context.Context, text string) (string, error) {
	query := trimQuery(text)
	if query == "" {
		return noWikipediaResult, nil
	}

	body, err := t.get(ctx, t.requestURL(query), "application/json")
	if err != nil {
		return "", errors.Wrap(err, "wikipedia")
	}
	defer body.Close()

	var resp wikiResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", errors.Mark(errors.Wrap(err, "wikipedia: decode response"), ErrParseFailed)
	}

	pages := make([]wikiPage, 0, len(resp.Query.Pages))
	for _, page := range resp.Query.Pages {
		if len(page.Missing) > 0 || strings.TrimSpace(page.Extract) == "" {
			continue
		}
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	if len(pages) > t.topK {
		pages = pages[:t.topK]
	}
	t.logger.Debug("wikipedia lookup", "results", len(pages))

	if len(pages) == 0 {
		return noWikipediaResult, nil
	}

	docs := make([]string, 0, len(pages))
	for _, page := range pages {
		docs = append(docs, fmt.Sprintf("Page: %s\nSummary: %s", page.Title, strings.TrimSpace(page.Extract)))
	}
	return truncate(strings.Join(docs, "\n\n"), t.maxChars), nil
}

func (t *wikipediaTool) requestURL(query string) string {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrlimit", strconv.Itoa(t.topK))
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("exlimit", "max")
	params.Set("redirects", "1")
	return t.endpoint + "?" + params.Encode()
}
