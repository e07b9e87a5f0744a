package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/brieferhq/briefer/internal/agent/telemetry"
	"github.com/brieferhq/briefer/internal/cache"
	"github.com/brieferhq/briefer/tools/web_search"
)

const preferredNoteLimit = 5

// ResearchAgent executes one research pass: it selects a strategy for the
// routed profile and depth, gathers sources through the web search tool or a
// deep research backend, and ranks them by source preference.
type ResearchAgent struct {
	search    *web_search.Tool
	cache     cache.Cache
	deep      DeepResearcher
	cacheTTL  time.Duration
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

func NewResearchAgent(search *web_search.Tool, c cache.Cache, deep DeepResearcher, cacheTTL time.Duration, logger *log.Logger) *ResearchAgent {
	if c == nil {
		c = cache.NewMemory()
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags)
	}
	return &ResearchAgent{search: search, cache: c, deep: deep, cacheTTL: cacheTTL, logger: logger}
}

// WithTelemetry installs search metric recording. Safe to skip.
func (a *ResearchAgent) WithTelemetry(t *telemetry.Telemetry) *ResearchAgent {
	a.telemetry = t
	return a
}

// queryVariations fans one query out into depth-appropriate variants, capped
// by the strategy's search budget.
func queryVariations(query, depth string, maxSearches int) []string {
	var variations []string
	switch strings.ToLower(depth) {
	case "quick":
		variations = []string{query}
	case "deep":
		variations = []string{query, "recent developments " + query, "risks and outlook " + query}
	default:
		variations = []string{query, "latest news " + query}
	}
	if maxSearches > 0 && len(variations) > maxSearches {
		variations = variations[:maxSearches]
	}
	return variations
}

func (a *ResearchAgent) Research(ctx context.Context, req NormalizedRequest, decision RouterDecision, plan ResearchPlan, passIndex int, task *ResearchTask) (ResearchOutput, error) {
	strategy := SelectStrategy(decision.Profile, decision.Depth)

	output := ResearchOutput{
		PassIndex: passIndex,
		Profile:   decision.Profile,
		Model:     strategy.Model,
		Effort:    strategy.Effort,
	}

	// Pre-gathered deep results take priority over live search. The key is
	// checked for presence, not emptiness: an injected empty slice means deep
	// research already ran and must not be attempted again.
	if injected, ok := req.Metadata["deep_results"]; ok {
		results := coerceSearchResults(injected)
		output.Results = ResearchResults{Preferred: SortByPreference(results), All: results}
		output.SearchQueries = []string{req.Query}
		output.Notes = preferredNotes(output.Results.Preferred)
		output.OverallConfidence = "high"
		a.updateTask(task, passIndex, len(results))
		return output, nil
	}

	if strings.Contains(strategy.Model, "deep-research") && strings.EqualFold(decision.Depth, "deep") && a.deep != nil {
		results, notes, err := a.deep.RunSync(ctx, req.Query, strategy.MaxSearches)
		if err != nil {
			a.logger.Printf("deep research failed, continuing with empty results: %v", err)
			results = nil
			notes = append(notes, "Deep research unavailable; report is based on prior context only.")
		}
		output.Results = ResearchResults{Preferred: SortByPreference(results), All: results}
		output.SearchQueries = []string{req.Query}
		output.Notes = append(preferredNotes(output.Results.Preferred), notes...)
		output.OverallConfidence = "high"
		a.updateTask(task, passIndex, len(results))
		return output, nil
	}

	queries := queryVariations(req.Query, decision.Depth, strategy.MaxSearches)

	var all []SearchResult
	var toolNotes []string
	var confidences []string
	for _, q := range queries {
		resp := a.cachedSearch(ctx, q)
		for _, r := range resp.Results {
			all = append(all, SearchResult{
				Title:      r.Title,
				URL:        r.URL,
				Snippet:    r.Snippet,
				SourceType: r.SourceType,
			})
		}
		toolNotes = append(toolNotes, resp.Notes...)
		confidences = append(confidences, resp.OverallConfidence)
	}

	preferred := SortByPreference(all)
	if strategy.MaxSearches > 0 && len(preferred) > strategy.MaxSearches {
		preferred = preferred[:strategy.MaxSearches]
	}

	output.Results = ResearchResults{Preferred: preferred, All: all}
	output.SearchQueries = queries
	output.Notes = append(preferredNotes(preferred), toolNotes...)
	output.OverallConfidence = mergeConfidences(confidences)
	a.updateTask(task, passIndex, len(all))
	return output, nil
}

// cachedSearch memoizes tool responses by query so repeated passes and
// retries do not burn search quota.
func (a *ResearchAgent) cachedSearch(ctx context.Context, query string) web_search.Response {
	key := "search:" + query
	if raw, ok := a.cache.Get(ctx, key); ok {
		var resp web_search.Response
		if err := json.Unmarshal(raw, &resp); err == nil {
			return resp
		}
	}

	var resp web_search.Response
	if a.search != nil {
		a.telemetry.RecordSearchQuery()
		resp = a.search.SearchWithResponse(ctx, query)
	} else {
		resp = web_search.Response{
			Query:             query,
			OverallConfidence: "low",
			Notes:             []string{"No search results found. Consider refining the query or checking search parameters."},
		}
	}

	if raw, err := json.Marshal(resp); err == nil {
		a.cache.Set(ctx, key, raw, a.cacheTTL)
	}
	return resp
}

func (a *ResearchAgent) updateTask(task *ResearchTask, passIndex, resultCount int) {
	if task == nil {
		return
	}
	task.PassIndex = passIndex
	task.Status = "updated"
	task.Notes = fmt.Sprintf("pass %d: %d results", passIndex, resultCount)
}

func preferredNotes(preferred []SearchResult) []string {
	var notes []string
	for i, r := range preferred {
		if i >= preferredNoteLimit {
			break
		}
		notes = append(notes, r.Title+": "+r.Snippet)
	}
	return notes
}

// mergeConfidences folds per-query confidences into one: unanimous high stays
// high, any low drags the whole pass low, everything else is medium.
func mergeConfidences(confidences []string) string {
	if len(confidences) == 0 {
		return "medium"
	}
	allHigh := true
	for _, c := range confidences {
		switch c {
		case "low":
			return "low"
		case "high":
		default:
			allHigh = false
		}
	}
	if allHigh {
		return "high"
	}
	return "medium"
}

// coerceSearchResults accepts either typed results or the loose JSON shapes
// that survive a metadata round trip.
func coerceSearchResults(value any) []SearchResult {
	switch v := value.(type) {
	case []SearchResult:
		return v
	case []any:
		var results []SearchResult
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			results = append(results, SearchResult{
				Title:      str(m["title"]),
				URL:        str(m["url"]),
				Snippet:    str(m["snippet"]),
				SourceType: str(m["source_type"]),
			})
		}
		return results
	default:
		return nil
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
