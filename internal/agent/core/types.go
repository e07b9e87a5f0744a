package core

import (
	"context"
	"time"
)

// NormalizedRequest represents the input after initial normalization from the API layer.
// Metadata updates never mutate in place; WithUpdates returns a merged copy.
type NormalizedRequest struct {
	Query    string         `json:"query"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// WithUpdates returns a new request whose metadata is the merge of the
// existing metadata and updates, last writer wins by key.
func (r NormalizedRequest) WithUpdates(updates map[string]any) NormalizedRequest {
	merged := make(map[string]any, len(r.Metadata)+len(updates))
	for k, v := range r.Metadata {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return NormalizedRequest{Query: r.Query, Metadata: merged}
}

// RouterDecision is the outcome of the classification stage.
type RouterDecision struct {
	Purpose            string `json:"purpose"`
	Depth              string `json:"depth"`
	NeedsClarification bool   `json:"needs_clarification"`
	Profile            string `json:"profile,omitempty"`
	NeedDeepResearch   bool   `json:"need_deep_research"`
}

// ResearchTask is a persistent-mode placeholder unit of work (deep mode only).
type ResearchTask struct {
	TaskID    string `json:"task_id"`
	PassIndex int    `json:"pass_index"`
	Notes     string `json:"notes"`
	Status    string `json:"status"`
}

// ResearchPlan controls how the researcher should operate for a request.
type ResearchPlan struct {
	Passes         int            `json:"passes"`
	PersistentTask bool           `json:"persistent_task"`
	SearchProfile  string         `json:"search_profile"`
	Tasks          []ResearchTask `json:"tasks,omitempty"`
}

// SearchResult is one normalized search hit.
type SearchResult struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet"`
	SourceType string `json:"source_type"`
}

// Finding is a structured research nugget derived from a search hit.
type Finding struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Relevance  string   `json:"relevance"`
	SourceURL  string   `json:"source_url"`
	SourceName string   `json:"source_name"`
	Snippet    string   `json:"snippet"`
	KeyPoints  []string `json:"key_points"`
}

// Evidence anchors a claim to exactly one Finding.
type Evidence struct {
	ID         string `json:"id"`
	Claim      string `json:"claim"`
	Excerpt    string `json:"excerpt"`
	SourceID   string `json:"source_id"`
	SourceURL  string `json:"source_url"`
	Confidence string `json:"confidence"`
}

// Citation is a bibliography-ready reference surfaced to the composer.
type Citation struct {
	Source string `json:"source"`
	URL    string `json:"url"`
	Note   string `json:"note"`
}

// QualityReport scores the produced document. Placeholder marks the fixed
// neutral report synthesized when the composer did not return one.
type QualityReport struct {
	CitationCoverageScore     float64            `json:"citation_coverage_score"`
	TemplateCompletenessScore float64            `json:"template_completeness_score"`
	MissingSections           []string           `json:"missing_sections"`
	SectionCoverage           map[string]float64 `json:"section_coverage,omitempty"`
	UncitedNumbers            bool               `json:"uncited_numbers"`
	Contradictions            bool               `json:"contradictions"`
	Placeholder               bool               `json:"placeholder,omitempty"`
}

// ResearchResults groups the hits of one pass by preference.
type ResearchResults struct {
	Preferred []SearchResult `json:"preferred"`
	All       []SearchResult `json:"all"`
}

// ResearchOutput is the product of a single research pass.
type ResearchOutput struct {
	PassIndex         int             `json:"pass_index"`
	Profile           string          `json:"profile"`
	Model             string          `json:"model"`
	Effort            string          `json:"effort"`
	Results           ResearchResults `json:"results"`
	SearchQueries     []string        `json:"search_queries"`
	Notes             []string        `json:"notes"`
	OverallConfidence string          `json:"overall_confidence"`
}

// EnvelopeMetadata carries the request controls into the final document.
type EnvelopeMetadata struct {
	Purpose   string    `json:"purpose"`
	Depth     string    `json:"depth"`
	Audience  string    `json:"audience"`
	Region    string    `json:"region,omitempty"`
	Timeframe string    `json:"timeframe,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Envelope is the structured final document object.
type Envelope struct {
	Title              string           `json:"title"`
	Metadata           EnvelopeMetadata `json:"metadata"`
	ExecutiveSummary   string           `json:"executive_summary"`
	Deliverable        string           `json:"deliverable"`
	Citations          []Citation       `json:"citations"`
	AssumptionsAndGaps string           `json:"assumptions_and_gaps"`
	OpenQuestions      []string         `json:"open_questions"`
	NextSteps          []string         `json:"next_steps"`
}

// ComposerOutput bundles the envelope with its rendered form and the
// bibliography/quality side products.
type ComposerOutput struct {
	Envelope          Envelope          `json:"envelope"`
	Document          string            `json:"document"`
	OutputFormat      string            `json:"output_format"`
	Quality           *QualityReport    `json:"quality,omitempty"`
	Bibliography      string            `json:"bibliography"`
	SourceMap         map[string]string `json:"source_map,omitempty"`
	Notes             []string          `json:"notes,omitempty"`
	Findings          []Finding         `json:"findings,omitempty"`
	Evidence          []Evidence        `json:"evidence,omitempty"`
	OverallConfidence string            `json:"overall_confidence"`
}

// ComposePayload is everything the composition stage receives.
type ComposePayload struct {
	Router   RouterDecision    `json:"router"`
	Plan     ResearchPlan      `json:"plan"`
	Research []ResearchOutput  `json:"research"`
	Request  NormalizedRequest `json:"request"`
}

// RunResult is the synchronous output bundle of a full pipeline run.
type RunResult struct {
	Decision        RouterDecision   `json:"decision"`
	Plan            ResearchPlan     `json:"plan"`
	ResearchResults []ResearchOutput `json:"research_results"`
	Output          ComposerOutput   `json:"output"`
}

// Controls are the structured knobs the caller can set alongside the query.
type Controls struct {
	Purpose      string `json:"purpose,omitempty"`
	Depth        string `json:"depth,omitempty"`
	Audience     string `json:"audience,omitempty"`
	Region       string `json:"region,omitempty"`
	Timeframe    string `json:"timeframe,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
}

// ControlsFromMetadata extracts caller controls from request metadata.
// Accepts either a Controls value or the raw map the API layer decodes.
func ControlsFromMetadata(metadata map[string]any) Controls {
	raw, ok := metadata["controls"]
	if !ok {
		return Controls{}
	}
	switch v := raw.(type) {
	case Controls:
		return v
	case *Controls:
		if v != nil {
			return *v
		}
	case map[string]any:
		return Controls{
			Purpose:      stringValue(v["purpose"]),
			Depth:        stringValue(v["depth"]),
			Audience:     stringValue(v["audience"]),
			Region:       stringValue(v["region"]),
			Timeframe:    stringValue(v["timeframe"]),
			OutputFormat: stringValue(v["output_format"]),
		}
	}
	return Controls{}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// Classifier turns a request into a routing decision. May fail; the stage
// executor retries it.
type Classifier interface {
	Classify(ctx context.Context, req NormalizedRequest) (RouterDecision, error)
}

// Clarifier augments an ambiguous request. Implementations never fail; a
// broken clarifier returns a skipped marker instead of an error.
type Clarifier interface {
	Clarify(ctx context.Context, req NormalizedRequest, decision RouterDecision) (map[string]any, error)
}

// Researcher runs one research pass.
type Researcher interface {
	Research(ctx context.Context, req NormalizedRequest, decision RouterDecision, plan ResearchPlan, passIndex int, task *ResearchTask) (ResearchOutput, error)
}

// Composer produces the final document from the accumulated pipeline state.
type Composer interface {
	Write(ctx context.Context, payload ComposePayload) (ComposerOutput, error)
}

// FactChecker re-scores a composed document. Pluggable and unused in the
// default wiring; the composer's own evaluation is authoritative.
type FactChecker interface {
	Check(ctx context.Context, output ComposerOutput) (QualityReport, error)
}

// DeepJob is a snapshot of a provider-side background research job.
type DeepJob struct {
	ID      string         `json:"id"`
	Status  string         `json:"status"`
	Results []SearchResult `json:"results,omitempty"`
	Notes   []string       `json:"notes,omitempty"`
}

// DeepResearcher drives provider-side background research jobs.
type DeepResearcher interface {
	Start(ctx context.Context, query string) (string, error)
	Fetch(ctx context.Context, id string) (DeepJob, error)
	RunSync(ctx context.Context, query string, maxResults int) ([]SearchResult, []string, error)
}
