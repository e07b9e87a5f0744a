package core

import (
	"math"
	"testing"
)

func TestEstimateClaims(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"One sentence.", 1},
		{"One. Two! Three?", 3},
		{"Trailing punctuation only...", 1},
		{"   ", 0},
	}
	for _, tc := range cases {
		if got := estimateClaims(tc.text); got != tc.want {
			t.Fatalf("%q: expected %d claims, got %d", tc.text, tc.want, got)
		}
	}
}

func TestCountCitations(t *testing.T) {
	if got := countCitations("Claim one [S1]. Claim two (Smith 2024)."); got != 2 {
		t.Fatalf("expected 2 citations, got %d", got)
	}
	if got := countCitations("no markers here"); got != 0 {
		t.Fatalf("expected 0 citations, got %d", got)
	}
}

func TestEvaluateReportSectionsCoverage(t *testing.T) {
	sections := []Section{
		{Name: "Executive Summary", Text: "Claim one [S1]. Claim two."},
		{Name: "Deliverable", Text: "Fully cited [S1] (S2)."},
	}
	eval := EvaluateReportSections(sections, []string{"Executive Summary", "Deliverable"})

	if len(eval.SectionEvaluations) != 2 {
		t.Fatalf("expected 2 section evaluations, got %d", len(eval.SectionEvaluations))
	}
	// Section one: 2 claims, 1 citation -> 0.5. Section two: 1 claim, capped at 1.0.
	if math.Abs(eval.SectionEvaluations[0].CoverageRatio-0.5) > 1e-9 {
		t.Fatalf("expected 0.5 coverage, got %f", eval.SectionEvaluations[0].CoverageRatio)
	}
	if eval.SectionEvaluations[1].CoverageRatio != 1.0 {
		t.Fatalf("coverage must cap at 1.0, got %f", eval.SectionEvaluations[1].CoverageRatio)
	}
	// Overall: 2 of 3 claims covered.
	if math.Abs(eval.CitationCoverageScore-2.0/3.0) > 1e-9 {
		t.Fatalf("expected 2/3 overall coverage, got %f", eval.CitationCoverageScore)
	}
	if eval.TemplateCompletenessScore != 1.0 {
		t.Fatalf("all required sections present, expected 1.0, got %f", eval.TemplateCompletenessScore)
	}
	if len(eval.MissingSections) != 0 {
		t.Fatalf("expected no missing sections, got %v", eval.MissingSections)
	}
}

func TestEvaluateReportSectionsMissing(t *testing.T) {
	sections := []Section{
		{Name: "Executive Summary", Text: "Present."},
		{Name: "Deliverable", Text: "   "},
	}
	eval := EvaluateReportSections(sections, []string{"Executive Summary", "Deliverable", "Sources"})
	if len(eval.MissingSections) != 2 {
		t.Fatalf("expected 2 missing sections, got %v", eval.MissingSections)
	}
	if math.Abs(eval.TemplateCompletenessScore-1.0/3.0) > 1e-9 {
		t.Fatalf("expected 1/3 completeness, got %f", eval.TemplateCompletenessScore)
	}
}

func TestEvaluateReportSectionsEmpty(t *testing.T) {
	eval := EvaluateReportSections(nil, nil)
	if eval.CitationCoverageScore != 0 {
		t.Fatalf("no claims means zero coverage, got %f", eval.CitationCoverageScore)
	}
	if eval.TemplateCompletenessScore != 1.0 {
		t.Fatalf("no required sections means full completeness, got %f", eval.TemplateCompletenessScore)
	}
}

func TestSummarizeCoverageBySection(t *testing.T) {
	lookup := SummarizeCoverageBySection([]SectionEvaluation{
		{SectionName: "A", CoverageRatio: 0.25},
		{SectionName: "B", CoverageRatio: 1.0},
	})
	if lookup["A"] != 0.25 || lookup["B"] != 1.0 {
		t.Fatalf("unexpected lookup: %v", lookup)
	}
}
