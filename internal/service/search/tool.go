package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"

	"github.com/zhouzirui/research-desk/backend/internal/config"
	"github.com/zhouzirui/research-desk/backend/pkg/logging"
)

var (
	ErrLookupFailed = errors.New("search lookup failed")
	ErrParseFailed  = errors.New("search response parse failed")
)

// Kind enumerates the fixed set of lookup capabilities.
type Kind int

const (
	WebSearch Kind = iota
	ArxivLookup
	WikipediaLookup
)

func (k Kind) String() string {
	switch k {
	case WebSearch:
		return "web_search"
	case ArxivLookup:
		return "arxiv"
	case WikipediaLookup:
		return "wikipedia"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Tool is a lookup capability the reasoning agent may call with free text.
type Tool interface {
	Kind() Kind
	Name() string
	Description() string
	Query(ctx context.Context, text string) (string, error)
}

// Config tunes the three lookup tools. Zero values fall back to defaults.
type Config struct {
	HTTPTimeout time.Duration
	UserAgent   string
	MaxResults  int
	ArxivTopK   int
	WikiTopK    int
	WikiLang    string
	DocCharsMax int

	// Endpoint overrides, mainly for tests.
	DuckDuckGoURL string
	ArxivURL      string
	WikipediaURL  string
}

// ConfigFrom maps the environment-level tools configuration.
func ConfigFrom(c config.ToolsConfig) Config {
	return Config{
		HTTPTimeout: c.HTTPTimeout,
		UserAgent:   c.UserAgent,
		MaxResults:  c.SearchMaxResults,
		ArxivTopK:   c.ArxivTopK,
		WikiTopK:    c.WikiTopK,
		WikiLang:    c.WikiLang,
		DocCharsMax: c.DocCharsMax,
	}
}

const (
	defaultHTTPTimeout = 20 * time.Second
	defaultUserAgent   = "Mozilla/5.0 (compatible; research-desk/1.0)"
	maxQueryLength     = 300
)

func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.ArxivTopK <= 0 {
		c.ArxivTopK = 1
	}
	if c.WikiTopK <= 0 {
		c.WikiTopK = 1
	}
	if c.WikiLang == "" {
		c.WikiLang = "en"
	}
	if c.DocCharsMax <= 0 {
		c.DocCharsMax = 200
	}
	if c.DuckDuckGoURL == "" {
		c.DuckDuckGoURL = "https://html.duckduckgo.com/html/"
	}
	if c.ArxivURL == "" {
		c.ArxivURL = "https://export.arxiv.org/api/query"
	}
	if c.WikipediaURL == "" {
		c.WikipediaURL = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", c.WikiLang)
	}
	return c
}

// NewToolset builds web search, arxiv and wikipedia lookups in that order.
func NewToolset(cfg Config) []Tool {
	cfg = cfg.withDefaults()
	client := &http.Client{Timeout: cfg.HTTPTimeout}
	logger := logging.Named("search")

	return []Tool{
		newWebSearchTool(cfg, client, logger),
		newArxivTool(cfg, client, logger),
		newWikipediaTool(cfg, client, logger),
	}
}

type fetcher struct {
	client    *http.Client
	userAgent string
	logger    *log.Logger
}

// get performs a GET and returns the body reader when the status is 200.
func (f fetcher) get(ctx context.Context, rawURL, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "build request"), ErrLookupFailed)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "request"), ErrLookupFailed)
	}
	f.logger.Debug("lookup request", "host", req.URL.Host, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Mark(errors.Newf("HTTP %d from %s", resp.StatusCode, req.URL.Host), ErrLookupFailed)
	}
	return resp.Body, nil
}

func trimQuery(text string) string {
	return truncate(strings.TrimSpace(text), maxQueryLength)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
