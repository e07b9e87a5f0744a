package core

import (
	"fmt"
	"strings"
	"text/template"
)

const documentTemplate = `# {{.Title}}

**Purpose:** {{.Purpose}} | **Depth:** {{.Depth}} | **Audience:** {{.Audience}} | **Region/Timeframe:** {{.RegionTimeframe}}

## Executive Summary

{{.ExecutiveSummary}}

## Deliverable

{{.Deliverable}}

## Sources

{{.Sources}}

## Assumptions & Gaps

{{.AssumptionsAndGaps}}

## Open Questions

{{range .OpenQuestions}}- {{.}}
{{end}}
## Next Steps

{{range .NextSteps}}- {{.}}
{{end}}
## Bibliography

{{.Bibliography}}
`

var documentTmpl = template.Must(template.New("document").Parse(documentTemplate))

type documentFields struct {
	Title              string
	Purpose            string
	Depth              string
	Audience           string
	RegionTimeframe    string
	ExecutiveSummary   string
	Deliverable        string
	Sources            string
	AssumptionsAndGaps string
	OpenQuestions      []string
	NextSteps          []string
	Bibliography       string
}

func renderDocument(fields documentFields) (string, error) {
	var b strings.Builder
	if err := documentTmpl.Execute(&b, fields); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return b.String(), nil
}

// renderCitations formats citations as a markdown bullet list. An empty list
// renders the fixed placeholder bullet so the Sources section is never blank.
func renderCitations(citations []Citation) string {
	if len(citations) == 0 {
		return "- (no sources)"
	}
	lines := make([]string, 0, len(citations))
	for _, c := range citations {
		lines = append(lines, fmt.Sprintf("- [%s](%s) %s", c.Source, c.URL, c.Note))
	}
	return strings.Join(lines, "\n")
}

type bibliographyEntry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Annotation string `json:"annotation"`
}

func buildBibliography(citations []Citation) ([]bibliographyEntry, map[string]string) {
	entries := make([]bibliographyEntry, 0, len(citations))
	sourceMap := make(map[string]string, len(citations))
	for i, c := range citations {
		id := fmt.Sprintf("S%d", i+1)
		entries = append(entries, bibliographyEntry{ID: id, Title: c.Source, URL: c.URL, Annotation: c.Note})
		sourceMap[id] = c.URL
	}
	return entries, sourceMap
}

func renderBibliography(entries []bibliographyEntry) string {
	if len(entries) == 0 {
		return "- (no sources)"
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("%s. %s (%s)", e.ID, e.Title, e.URL)
		if e.Annotation != "" {
			line += " - " + e.Annotation
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
