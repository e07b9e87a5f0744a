package core

import (
	"regexp"
	"strings"
)

// Section is one named block of a rendered report. Order matters for the
// rendered document, so callers pass a slice rather than a map.
type Section struct {
	Name string
	Text string
}

// SectionEvaluation scores one report section.
type SectionEvaluation struct {
	SectionName   string  `json:"section_name"`
	ClaimCount    int     `json:"claim_count"`
	CitationCount int     `json:"citation_count"`
	CoverageRatio float64 `json:"coverage_ratio"`
}

// TemplateEvaluation summarizes citation coverage and template completeness
// across a rendered report.
type TemplateEvaluation struct {
	SectionEvaluations        []SectionEvaluation `json:"section_evaluations"`
	CitationCoverageScore     float64             `json:"citation_coverage_score"`
	TemplateCompletenessScore float64             `json:"template_completeness_score"`
	MissingSections           []string            `json:"missing_sections"`
}

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)
	bracketedRe     = regexp.MustCompile(`\[[^\]]+\]`)
	parentheticalRe = regexp.MustCompile(`\([^)]*?\)`)
)

// estimateClaims treats every sentence as one claim.
func estimateClaims(text string) int {
	count := 0
	for _, segment := range sentenceSplitRe.Split(text, -1) {
		if strings.TrimSpace(segment) != "" {
			count++
		}
	}
	return count
}

// countCitations counts bracketed and parenthetical markers as citations.
func countCitations(text string) int {
	return len(bracketedRe.FindAllString(text, -1)) + len(parentheticalRe.FindAllString(text, -1))
}

// EvaluateReportSections checks template completeness and citation coverage.
// A claim is covered when a citation marker can be paired with it, so a
// section's coverage is capped at 1.0 regardless of citation density.
func EvaluateReportSections(sections []Section, requiredSections []string) TemplateEvaluation {
	byName := make(map[string]string, len(sections))
	evaluations := make([]SectionEvaluation, 0, len(sections))
	totalClaims := 0
	totalCited := 0

	for _, section := range sections {
		byName[section.Name] = section.Text
		claims := estimateClaims(section.Text)
		citations := countCitations(section.Text)
		covered := citations
		if covered > claims {
			covered = claims
		}
		ratio := 0.0
		if claims > 0 {
			ratio = float64(covered) / float64(claims)
		}
		totalClaims += claims
		totalCited += covered
		evaluations = append(evaluations, SectionEvaluation{
			SectionName:   section.Name,
			ClaimCount:    claims,
			CitationCount: citations,
			CoverageRatio: ratio,
		})
	}

	coverage := 0.0
	if totalClaims > 0 {
		coverage = float64(totalCited) / float64(totalClaims)
	}

	missing := []string{}
	for _, name := range requiredSections {
		if strings.TrimSpace(byName[name]) == "" {
			missing = append(missing, name)
		}
	}
	completeness := 1.0
	if len(requiredSections) > 0 {
		completeness = float64(len(requiredSections)-len(missing)) / float64(len(requiredSections))
	}

	return TemplateEvaluation{
		SectionEvaluations:        evaluations,
		CitationCoverageScore:     coverage,
		TemplateCompletenessScore: completeness,
		MissingSections:           missing,
	}
}

// SummarizeCoverageBySection flattens evaluations into a name to ratio lookup.
func SummarizeCoverageBySection(evaluations []SectionEvaluation) map[string]float64 {
	coverage := make(map[string]float64, len(evaluations))
	for _, e := range evaluations {
		coverage[e.SectionName] = e.CoverageRatio
	}
	return coverage
}
