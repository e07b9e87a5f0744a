package web_search

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/brieferhq/briefer/tools/web_search/models"
)

type stubSearcher struct {
	results []models.Result
	err     error
}

func (s stubSearcher) Discover(context.Context, string, int, int) ([]models.Result, error) {
	return s.results, s.err
}

func quietTool(searcher WebSearcher) *Tool {
	return NewTool(searcher, 8, log.New(io.Discard, "", 0))
}

func TestNewWebSearcher(t *testing.T) {
	if _, err := NewWebSearcher(SerperProvider, "key"); err != nil {
		t.Fatalf("serper should be supported: %v", err)
	}
	if _, err := NewWebSearcher(BraveProvider, "key"); err != nil {
		t.Fatalf("brave should be supported: %v", err)
	}
	if _, err := NewWebSearcher("duckduckgo", "key"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestToolSearchDegradesToEmpty(t *testing.T) {
	tool := quietTool(stubSearcher{err: errors.New("transport down")})
	if results := tool.Search(context.Background(), "q"); len(results) != 0 {
		t.Fatalf("transport errors must degrade to empty, got %d results", len(results))
	}

	nilTool := quietTool(nil)
	if results := nilTool.Search(context.Background(), "q"); results != nil {
		t.Fatalf("nil transport must yield nil results")
	}
}

func TestToolSearchFillsSourceType(t *testing.T) {
	tool := quietTool(stubSearcher{results: []models.Result{
		{Title: "a", URL: "https://www.sec.gov/filing"},
		{Title: "b", URL: "https://example.com", SourceType: "news"},
	}})
	results := tool.Search(context.Background(), "q")
	if results[0].SourceType != "filing" {
		t.Fatalf("missing source type should be classified, got %q", results[0].SourceType)
	}
	if results[1].SourceType != "news" {
		t.Fatalf("existing source type must be preserved, got %q", results[1].SourceType)
	}
}

func TestSearchWithResponseConfidence(t *testing.T) {
	empty := quietTool(stubSearcher{})
	resp := empty.SearchWithResponse(context.Background(), "q")
	if resp.OverallConfidence != "low" {
		t.Fatalf("no results should be low confidence, got %q", resp.OverallConfidence)
	}
	if len(resp.Notes) != 1 || !strings.Contains(resp.Notes[0], "No search results found") {
		t.Fatalf("unexpected notes: %v", resp.Notes)
	}

	limited := quietTool(stubSearcher{results: []models.Result{{Title: "a"}, {Title: "b"}}})
	resp = limited.SearchWithResponse(context.Background(), "q")
	if resp.OverallConfidence != "medium" {
		t.Fatalf("two results should be medium confidence, got %q", resp.OverallConfidence)
	}
	if len(resp.Notes) != 1 || !strings.Contains(resp.Notes[0], "Limited results (2)") {
		t.Fatalf("unexpected notes: %v", resp.Notes)
	}

	rich := quietTool(stubSearcher{results: []models.Result{{Title: "a"}, {Title: "b"}, {Title: "c"}}})
	resp = rich.SearchWithResponse(context.Background(), "q")
	if resp.OverallConfidence != "high" {
		t.Fatalf("three results should be high confidence, got %q", resp.OverallConfidence)
	}
	if len(resp.Notes) != 0 {
		t.Fatalf("high confidence carries no notes, got %v", resp.Notes)
	}
}

func TestClassifySourceType(t *testing.T) {
	cases := map[string]string{
		"https://www.sec.gov/cgi-bin/browse-edgar": "filing",
		"https://www.ftc.gov/news":                 "regulator",
		"https://www.reddit.com/r/investing":       "community",
		"https://news.ycombinator.com/item":        "community",
		"https://www.reuters.com/business":         "news",
		"https://www.gartner.com/en/research":      "analyst",
		"https://docs.python.org/3/":               "official",
		"https://en.wikipedia.org/wiki/OAuth":      "official",
		"https://randomblog.example.com":           "unknown",
		"not a url":                                "unknown",
	}
	for rawURL, want := range cases {
		if got := ClassifySourceType(rawURL); got != want {
			t.Fatalf("%s: expected %s, got %s", rawURL, want, got)
		}
	}
}
