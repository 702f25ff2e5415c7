package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
)

const noArxivResult = "No good Arxiv result was found"

var arxivIDPattern = regexp.MustCompile(`^(\d{2}(0[1-9]|1[0-2])\.\d{4,5}(v\d+)?|\d{7}(v\d+)?)$`)

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

// arxivTool queries the arXiv Atom API.
type arxivTool struct {
	fetcher
	endpoint string
	topK     int
	maxChars int
}

func newArxivTool(cfg Config, client *http.Client, logger *log.Logger) *arxivTool {
	return &arxivTool{
		fetcher:  fetcher{client: client, userAgent: cfg.UserAgent, logger: logger},
		endpoint: cfg.ArxivURL,
		topK:     cfg.ArxivTopK,
		maxChars: cfg.DocCharsMax,
	}
}

func (t *arxivTool) Kind() Kind   { return ArxivLookup }
func (t *arxivTool) Name() string { return ArxivLookup.String() }

func (t *arxivTool) Description() string {
	return "Looks up scientific papers on arxiv.org. Useful for physics, mathematics, computer science, " +
		"quantitative biology, quantitative finance, statistics, electrical engineering and economics. " +
		"Input should be a search query or an arxiv identifier."
}

// Query renders the top papers and truncates the result to the configured length.
func (t *arxivTool) Query(ctx context.Context, text string) (string, error) {
	query := trimQuery(text)
	if query == "" {
		return noArxivResult, nil
	}

	body, err := t.get(ctx, t.requestURL(query), "application/atom+xml")
	if err != nil {
		return "", errors.Wrap(err, "arxiv")
	}
	defer body.Close()

	var feed arxivFeed
	if err := xml.NewDecoder(body).Decode(&feed); err != nil {
		return "", errors.Mark(errors.Wrap(err, "arxiv: decode feed"), ErrParseFailed)
	}

	docs := make([]string, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if len(docs) >= t.topK {
			break
		}
		if strings.TrimSpace(entry.Title) == "" || strings.TrimSpace(entry.Title) == "Error" {
			continue
		}
		docs = append(docs, formatArxivEntry(entry))
	}
	t.logger.Debug("arxiv lookup", "results", len(docs))

	if len(docs) == 0 {
		return noArxivResult, nil
	}
	return truncate(strings.Join(docs, "\n\n"), t.maxChars), nil
}

func (t *arxivTool) requestURL(query string) string {
	params := url.Values{}
	if isArxivIdentifierQuery(query) {
		params.Set("id_list", strings.Join(strings.Fields(query), ","))
	} else {
		params.Set("search_query", "all:"+query)
	}
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(t.topK))
	return t.endpoint + "?" + params.Encode()
}

func isArxivIdentifierQuery(query string) bool {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return false
	}
	for _, field := range fields {
		if !arxivIDPattern.MatchString(field) {
			return false
		}
	}
	return true
}

func formatArxivEntry(entry arxivEntry) string {
	published := strings.TrimSpace(entry.Published)
	if len(published) > 10 {
		published = published[:10]
	}

	names := make([]string, 0, len(entry.Authors))
	for _, author := range entry.Authors {
		if name := strings.TrimSpace(author.Name); name != "" {
			names = append(names, name)
		}
	}

	return fmt.Sprintf("Published: %s\nTitle: %s\nAuthors: %s\nSummary: %s",
		published,
		collapseSpace(entry.Title),
		strings.Join(names, ", "),
		collapseSpace(entry.Summary),
	)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
