package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/brieferhq/briefer/provider"
)

const composerSystemPrompt = `You are the writer. Merge the research findings into a structured deliverable.
Preserve section headings, include citation markers like [S1] next to claims, and keep formatting clean.
Surface unknowns under assumptions rather than discarding them.
Respond ONLY with JSON: {"executive_summary": "...", "deliverable": "..."}`

const defaultAssumptions = "Research findings synthesized. Key assumptions and gaps identified in deliverable."

var (
	defaultOpenQuestions = []string{
		"Validate key claims with additional sources",
		"Confirm numerical estimates",
	}
	defaultNextSteps = []string{
		"Review deliverable for completeness",
		"Validate citations",
	}
)

// DocumentComposer turns the accumulated pipeline state into the final
// envelope, rendered document, bibliography and quality report. With no LLM
// configured it degrades to a deterministic findings digest.
type DocumentComposer struct {
	llm    provider.ChatProvider
	model  string
	logger *log.Logger
	now    func() time.Time
}

func NewDocumentComposer(llm provider.ChatProvider, model string, logger *log.Logger) *DocumentComposer {
	if logger == nil {
		logger = log.New(log.Writer(), "[COMPOSE] ", log.LstdFlags)
	}
	return &DocumentComposer{llm: llm, model: model, logger: logger, now: time.Now}
}

func (c *DocumentComposer) Write(ctx context.Context, payload ComposePayload) (ComposerOutput, error) {
	controls := ControlsFromMetadata(payload.Request.Metadata)
	audience := controls.Audience
	if audience == "" {
		audience = "general"
	}
	regionTimeframe := controls.Region
	if regionTimeframe == "" {
		regionTimeframe = controls.Timeframe
	}
	if regionTimeframe == "" {
		regionTimeframe = "n/a"
	}

	citations := SelectCitations(payload.Research)
	sourceBlock := renderCitations(citations)
	entries, sourceMap := buildBibliography(citations)
	findings := BuildFindings(payload.Research)
	evidence := BuildEvidence(findings)

	var notes []string
	for _, pass := range payload.Research {
		notes = append(notes, pass.Notes...)
	}

	summary, deliverable, err := c.composeBody(ctx, payload, findings, notes)
	if err != nil {
		return ComposerOutput{}, err
	}

	envelope := Envelope{
		Title: "Research: " + payload.Request.Query,
		Metadata: EnvelopeMetadata{
			Purpose:   payload.Router.Purpose,
			Depth:     payload.Router.Depth,
			Audience:  audience,
			Region:    controls.Region,
			Timeframe: controls.Timeframe,
			Status:    "completed",
			CreatedAt: c.now().UTC(),
		},
		ExecutiveSummary:   summary,
		Deliverable:        deliverable,
		Citations:          citations,
		AssumptionsAndGaps: defaultAssumptions,
		OpenQuestions:      defaultOpenQuestions,
		NextSteps:          defaultNextSteps,
	}

	sections := []Section{
		{Name: "Executive Summary", Text: envelope.ExecutiveSummary},
		{Name: "Deliverable", Text: envelope.Deliverable},
		{Name: "Assumptions & Gaps", Text: envelope.AssumptionsAndGaps},
		{Name: "Open Questions", Text: strings.Join(envelope.OpenQuestions, "\n")},
	}
	required := make([]string, 0, len(sections))
	for _, s := range sections {
		required = append(required, s.Name)
	}
	evaluation := EvaluateReportSections(sections, required)

	quality := &QualityReport{
		CitationCoverageScore:     evaluation.CitationCoverageScore,
		TemplateCompletenessScore: evaluation.TemplateCompletenessScore,
		MissingSections:           evaluation.MissingSections,
		SectionCoverage:           SummarizeCoverageBySection(evaluation.SectionEvaluations),
	}

	outputFormat := controls.OutputFormat
	if outputFormat == "" {
		outputFormat = "markdown"
	}

	output := ComposerOutput{
		Envelope:          envelope,
		OutputFormat:      outputFormat,
		Quality:           quality,
		Bibliography:      renderBibliography(entries),
		SourceMap:         sourceMap,
		Notes:             notes,
		Findings:          findings,
		Evidence:          evidence,
		OverallConfidence: "medium",
	}

	if outputFormat == "json" {
		structured := map[string]any{
			"envelope":           envelope,
			"quality":            quality,
			"bibliography":       entries,
			"source_map":         sourceMap,
			"findings":           findings,
			"evidence":           evidence,
			"overall_confidence": output.OverallConfidence,
		}
		raw, err := json.MarshalIndent(structured, "", "  ")
		if err != nil {
			return ComposerOutput{}, fmt.Errorf("failed to encode structured output: %w", err)
		}
		output.Document = string(raw)
		return output, nil
	}

	document, err := renderDocument(documentFields{
		Title:              envelope.Title,
		Purpose:            envelope.Metadata.Purpose,
		Depth:              envelope.Metadata.Depth,
		Audience:           audience,
		RegionTimeframe:    regionTimeframe,
		ExecutiveSummary:   envelope.ExecutiveSummary,
		Deliverable:        envelope.Deliverable,
		Sources:            sourceBlock,
		AssumptionsAndGaps: envelope.AssumptionsAndGaps,
		OpenQuestions:      envelope.OpenQuestions,
		NextSteps:          envelope.NextSteps,
		Bibliography:       output.Bibliography,
	})
	if err != nil {
		return ComposerOutput{}, err
	}
	output.Document = document
	return output, nil
}

// composeBody produces the executive summary and deliverable text, through
// the LLM when one is wired and a findings digest otherwise.
func (c *DocumentComposer) composeBody(ctx context.Context, payload ComposePayload, findings []Finding, notes []string) (summary, deliverable string, err error) {
	if c.llm == nil {
		return heuristicBody(payload.Request.Query, findings)
	}

	input := map[string]any{
		"query":    payload.Request.Query,
		"purpose":  payload.Router.Purpose,
		"depth":    payload.Router.Depth,
		"findings": findings,
		"notes":    notes,
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode composer input: %w", err)
	}

	raw, err := c.llm.Complete(ctx, c.model, composerSystemPrompt, string(encoded))
	if err != nil {
		return "", "", fmt.Errorf("writer completion failed: %w", err)
	}

	var body struct {
		ExecutiveSummary string `json:"executive_summary"`
		Deliverable      string `json:"deliverable"`
	}
	if jsonErr := json.Unmarshal([]byte(extractJSON(raw)), &body); jsonErr != nil || body.Deliverable == "" {
		c.logger.Printf("writer reply not structured, using raw text as deliverable")
		fallbackSummary, _, _ := heuristicBody(payload.Request.Query, findings)
		return fallbackSummary, raw, nil
	}
	return body.ExecutiveSummary, body.Deliverable, nil
}

// heuristicBody digests findings into bullets with bracketed source markers.
func heuristicBody(query string, findings []Finding) (summary, deliverable string, err error) {
	if len(findings) == 0 {
		summary = fmt.Sprintf("No supporting sources were found for %q.", query)
		deliverable = "No findings available. Refine the query or broaden the search scope."
		return summary, deliverable, nil
	}

	var titles []string
	var lines []string
	for i, f := range findings {
		if i < 3 {
			titles = append(titles, f.Title)
		}
		line := fmt.Sprintf("- %s [%s]", f.Title, f.ID)
		if f.Snippet != "" {
			line = fmt.Sprintf("- %s: %s [%s]", f.Title, f.Snippet, f.ID)
		}
		lines = append(lines, line)
	}
	summary = fmt.Sprintf("Synthesis of %d findings for %q, led by %s.", len(findings), query, strings.Join(titles, "; "))
	deliverable = strings.Join(lines, "\n")
	return summary, deliverable, nil
}
