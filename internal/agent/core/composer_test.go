package core

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestComposerEmptyResearchUsesPlaceholderSources(t *testing.T) {
	composer := NewDocumentComposer(nil, "", nil)
	payload := ComposePayload{
		Router:  RouterDecision{Purpose: "custom", Depth: "standard"},
		Plan:    BuildResearchPlan("standard"),
		Request: NormalizedRequest{Query: "anything at all"},
	}
	out, err := composer.Write(context.Background(), payload)
	if err != nil {
		t.Fatalf("empty research must not fail composition: %v", err)
	}
	if !strings.Contains(out.Document, "- (no sources)") {
		t.Fatalf("document should carry the placeholder sources bullet:\n%s", out.Document)
	}
	if out.Quality == nil {
		t.Fatalf("composer must always produce a quality report")
	}
	if out.Bibliography != "- (no sources)" {
		t.Fatalf("unexpected bibliography: %q", out.Bibliography)
	}
	if out.OutputFormat != "markdown" {
		t.Fatalf("default format should be markdown, got %q", out.OutputFormat)
	}
	if out.Envelope.Metadata.Status != "completed" {
		t.Fatalf("unexpected envelope status %q", out.Envelope.Metadata.Status)
	}
}

func TestComposerBuildsBibliographyAndSourceMap(t *testing.T) {
	composer := NewDocumentComposer(nil, "", nil)
	payload := ComposePayload{
		Router:  RouterDecision{Purpose: "company_research", Depth: "standard"},
		Request: NormalizedRequest{Query: "Acme Corp"},
		Research: []ResearchOutput{{
			Results: ResearchResults{Preferred: []SearchResult{
				{Title: "Annual report", URL: "http://a", Snippet: "revenue grew"},
				{Title: "Press release", URL: "http://b", Snippet: "new product"},
			}},
			Notes: []string{"Annual report: revenue grew"},
		}},
	}
	out, err := composer.Write(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SourceMap["S1"] != "http://a" || out.SourceMap["S2"] != "http://b" {
		t.Fatalf("unexpected source map: %v", out.SourceMap)
	}
	if !strings.Contains(out.Bibliography, "S1. Annual report (http://a)") {
		t.Fatalf("unexpected bibliography: %q", out.Bibliography)
	}
	if len(out.Findings) != 2 || len(out.Evidence) != 2 {
		t.Fatalf("expected findings and evidence for each preferred result, got %d/%d", len(out.Findings), len(out.Evidence))
	}
	if len(out.Notes) != 1 {
		t.Fatalf("research notes should flow through, got %v", out.Notes)
	}
	if len(out.Envelope.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(out.Envelope.Citations))
	}
}

func TestComposerJSONOutput(t *testing.T) {
	composer := NewDocumentComposer(nil, "", nil)
	payload := ComposePayload{
		Router: RouterDecision{Purpose: "custom", Depth: "quick"},
		Request: NormalizedRequest{
			Query:    "what is OAuth",
			Metadata: map[string]any{"controls": Controls{OutputFormat: "json"}},
		},
	}
	out, err := composer.Write(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.OutputFormat != "json" {
		t.Fatalf("expected json format, got %q", out.OutputFormat)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out.Document), &decoded); err != nil {
		t.Fatalf("document should be valid JSON: %v", err)
	}
	if _, ok := decoded["envelope"]; !ok {
		t.Fatalf("structured output missing envelope: %v", decoded)
	}
	if _, ok := decoded["quality"]; !ok {
		t.Fatalf("structured output missing quality: %v", decoded)
	}
}

func TestComposerControlsFlowIntoEnvelope(t *testing.T) {
	composer := NewDocumentComposer(nil, "", nil)
	payload := ComposePayload{
		Router: RouterDecision{Purpose: "market_query", Depth: "standard"},
		Request: NormalizedRequest{
			Query: "EV market",
			Metadata: map[string]any{
				"controls": Controls{Audience: "executive", Region: "EU", Timeframe: "2025"},
			},
		},
	}
	out, err := composer.Write(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md := out.Envelope.Metadata
	if md.Audience != "executive" || md.Region != "EU" || md.Timeframe != "2025" {
		t.Fatalf("controls should land in envelope metadata: %+v", md)
	}
	if md.Purpose != "market_query" || md.Depth != "standard" {
		t.Fatalf("router decision should land in envelope metadata: %+v", md)
	}
}

func TestRenderCitationsPlaceholder(t *testing.T) {
	if got := renderCitations(nil); got != "- (no sources)" {
		t.Fatalf("unexpected placeholder: %q", got)
	}
	got := renderCitations([]Citation{{Source: "A", URL: "http://a", Note: "n"}})
	if !strings.Contains(got, "[A](http://a)") {
		t.Fatalf("unexpected rendering: %q", got)
	}
}
