package core

import "fmt"

// Citations surfaced to the composer are bounded.
const maxCitations = 5

// BuildFindings normalizes the merged preferred results of all research
// passes into sequentially numbered findings (F1, F2, ...) in traversal
// order. Empty snippets are preserved, never dropped.
func BuildFindings(research []ResearchOutput) []Finding {
	var findings []Finding
	counter := 1
	for _, result := range research {
		for _, item := range result.Results.Preferred {
			title := item.Title
			if title == "" {
				title = "Finding"
			}
			var keyPoints []string
			if item.Snippet != "" {
				keyPoints = []string{item.Snippet}
			}
			findings = append(findings, Finding{
				ID:         fmt.Sprintf("F%d", counter),
				Title:      title,
				Type:       "web",
				Relevance:  "medium",
				SourceURL:  item.URL,
				SourceName: item.Title,
				Snippet:    item.Snippet,
				KeyPoints:  keyPoints,
			})
			counter++
		}
	}
	return findings
}

// BuildEvidence derives one evidence item per finding. The claim is the
// first key point, falling back to the snippet, then the title.
func BuildEvidence(findings []Finding) []Evidence {
	evidence := make([]Evidence, 0, len(findings))
	for _, finding := range findings {
		claim := finding.Title
		if finding.Snippet != "" {
			claim = finding.Snippet
		}
		if len(finding.KeyPoints) > 0 {
			claim = finding.KeyPoints[0]
		}
		evidence = append(evidence, Evidence{
			ID:         "E" + finding.ID,
			Claim:      claim,
			Excerpt:    finding.Snippet,
			SourceID:   finding.ID,
			SourceURL:  finding.SourceURL,
			Confidence: "medium",
		})
	}
	return evidence
}

// SelectCitations converts preferred research results into citations,
// capped at maxCitations across all passes.
func SelectCitations(research []ResearchOutput) []Citation {
	var citations []Citation
	for _, result := range research {
		for _, item := range result.Results.Preferred {
			if len(citations) >= maxCitations {
				return citations
			}
			source := item.Title
			if source == "" {
				source = "Source"
			}
			citations = append(citations, Citation{
				Source: source,
				URL:    item.URL,
				Note:   item.Snippet,
			})
		}
	}
	return citations
}
