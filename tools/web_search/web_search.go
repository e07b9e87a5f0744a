package web_search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/brieferhq/briefer/tools/web_search/brave"
	"github.com/brieferhq/briefer/tools/web_search/models"
	"github.com/brieferhq/briefer/tools/web_search/serper"
)

// WebSearcher is a raw search transport. Implementations may fail; the Tool
// wrapper guarantees failures never reach its callers.
type WebSearcher interface {
	Discover(ctx context.Context, q string, k int, recency int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("unsupported provider")

func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}

// Response is the structured outcome of one search call, with confidence and
// hand-off notes derived from result volume.
type Response struct {
	Results           []models.Result `json:"results"`
	Query             string          `json:"query"`
	OverallConfidence string          `json:"overall_confidence"`
	Notes             []string        `json:"notes,omitempty"`
}

// Tool wraps a transport so that search never raises: transport failures
// are logged and degrade to an empty result list.
type Tool struct {
	searcher   WebSearcher
	maxResults int
	logger     *log.Logger
}

func NewTool(searcher WebSearcher, maxResults int, logger *log.Logger) *Tool {
	if maxResults <= 0 {
		maxResults = 8
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	}
	return &Tool{searcher: searcher, maxResults: maxResults, logger: logger}
}

// Search runs a query and normalizes the hits. A nil transport or transport
// error yields an empty list, never an error.
func (t *Tool) Search(ctx context.Context, query string) []models.Result {
	if t.searcher == nil {
		return nil
	}
	raw, err := t.searcher.Discover(ctx, query, t.maxResults, 0)
	if err != nil {
		t.logger.Printf("search transport failed for query %q: %v", query, err)
		return nil
	}
	for i := range raw {
		if raw[i].SourceType == "" {
			raw[i].SourceType = ClassifySourceType(raw[i].URL)
		}
	}
	return raw
}

// SearchWithResponse runs a search and annotates it with an overall
// confidence and notes for downstream agents.
func (t *Tool) SearchWithResponse(ctx context.Context, query string) Response {
	results := t.Search(ctx, query)

	confidence := "high"
	var notes []string
	switch {
	case len(results) == 0:
		confidence = "low"
		notes = append(notes, "No search results found. Consider refining the query or checking search parameters.")
	case len(results) < 3:
		confidence = "medium"
		notes = append(notes, fmt.Sprintf("Limited results (%d). Consider expanding search terms or checking alternative sources.", len(results)))
	}

	return Response{
		Results:           results,
		Query:             query,
		OverallConfidence: confidence,
		Notes:             notes,
	}
}

// ClassifySourceType maps a result URL to a coarse source-type label based
// on its host.
func ClassifySourceType(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	host := strings.ToLower(u.Host)

	switch {
	case strings.Contains(host, "sec.gov"):
		return "filing"
	case strings.HasSuffix(host, ".gov") || strings.Contains(host, ".gov."):
		return "regulator"
	case strings.Contains(host, "reddit.com"), strings.Contains(host, "stackoverflow.com"),
		strings.Contains(host, "stackexchange.com"), strings.Contains(host, "news.ycombinator.com"):
		return "community"
	case strings.Contains(host, "reuters.com"), strings.Contains(host, "bloomberg.com"),
		strings.Contains(host, "ft.com"), strings.Contains(host, "wsj.com"),
		strings.Contains(host, "nytimes.com"), strings.Contains(host, "bbc.co"),
		strings.Contains(host, "cnbc.com"), strings.Contains(host, "techcrunch.com"):
		return "news"
	case strings.Contains(host, "gartner.com"), strings.Contains(host, "forrester.com"),
		strings.Contains(host, "mckinsey.com"), strings.Contains(host, "statista.com"):
		return "analyst"
	case strings.HasPrefix(host, "docs.") || strings.HasPrefix(host, "developer.") ||
		strings.Contains(host, "wikipedia.org"):
		return "official"
	default:
		return "unknown"
	}
}
