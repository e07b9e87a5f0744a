package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/brieferhq/briefer/provider"
)

type keywordRule struct {
	keyword string
	mapped  string
}

// Keyword tables for the heuristic router. Ordered: the first match wins.
var purposeKeywords = []keywordRule{
	{"brd", "brd"},
	{"business requirements", "brd"},
	{"company", "company_research"},
	{"market", "market_query"},
	{"requirement", "req_elaboration"},
}

var depthKeywords = []keywordRule{
	{"quick", "quick"},
	{"fast", "quick"},
	{"deep", "deep"},
	{"thorough", "deep"},
}

// RouteRequest maps user text to an explicit purpose and depth using keyword
// matches, honouring caller hints as defaults.
func RouteRequest(userText, purposeHint, depthHint string) (purpose, depth string) {
	normalized := strings.ToLower(userText)
	purpose = purposeHint
	if purpose == "" {
		purpose = "custom"
	}
	depth = depthHint
	if depth == "" {
		depth = "standard"
	}

	for _, rule := range purposeKeywords {
		if strings.Contains(normalized, rule.keyword) {
			purpose = rule.mapped
			break
		}
	}
	for _, rule := range depthKeywords {
		if strings.Contains(normalized, rule.keyword) {
			depth = rule.mapped
			break
		}
	}
	return purpose, depth
}

// ProfileFromPurpose maps a routed purpose to its search profile.
func ProfileFromPurpose(purpose string) string {
	switch strings.ToLower(purpose) {
	case "brd":
		return ProfileBRDModeling
	case "company_research":
		return ProfileCompanyResearch
	case "req_elaboration":
		return ProfileReqElaboration
	case "market_query":
		return ProfileMarketOrTrendQuery
	default:
		return ProfileDefinitionOrSimple
	}
}

// HeuristicClassifier routes requests by keyword tables only. It is the soft
// mode fallback when no LLM provider is configured and never needs
// clarification.
type HeuristicClassifier struct{}

func (HeuristicClassifier) Classify(_ context.Context, req NormalizedRequest) (RouterDecision, error) {
	controls := ControlsFromMetadata(req.Metadata)
	purpose, depth := RouteRequest(req.Query, controls.Purpose, controls.Depth)
	profile := ProfileFromPurpose(purpose)
	return RouterDecision{
		Purpose:            purpose,
		Depth:              depth,
		NeedsClarification: false,
		Profile:            profile,
		NeedDeepResearch:   depth == "deep",
	}, nil
}

const classifierSystemPrompt = `You are a research request router. Classify the user's request.
Respond ONLY with valid JSON:
{
  "purpose": "brd|company_research|req_elaboration|market_query|custom",
  "depth": "quick|standard|deep",
  "needs_clarification": false,
  "profile": "BRD_MODELING|COMPANY_RESEARCH|REQUIREMENT_ELABORATION|MARKET_OR_TREND_QUERY|DEFINITION_OR_SIMPLE_QUERY",
  "need_deep_research": false
}
Do not include any other text or explanation.`

// LLMClassifier routes via a completion call that returns a JSON decision.
// Network and parse errors surface to the stage executor for retry.
type LLMClassifier struct {
	llm    provider.ChatProvider
	model  string
	logger *log.Logger
}

func NewLLMClassifier(llm provider.ChatProvider, model string, logger *log.Logger) *LLMClassifier {
	if logger == nil {
		logger = log.New(log.Writer(), "[ROUTER] ", log.LstdFlags)
	}
	return &LLMClassifier{llm: llm, model: model, logger: logger}
}

func (c *LLMClassifier) Classify(ctx context.Context, req NormalizedRequest) (RouterDecision, error) {
	controls := ControlsFromMetadata(req.Metadata)
	userPrompt := fmt.Sprintf("REQUEST: %q\nPURPOSE HINT: %q\nDEPTH HINT: %q", req.Query, controls.Purpose, controls.Depth)

	raw, err := c.llm.Complete(ctx, c.model, classifierSystemPrompt, userPrompt)
	if err != nil {
		return RouterDecision{}, fmt.Errorf("router completion failed: %w", err)
	}

	var decision RouterDecision
	if err := json.Unmarshal([]byte(extractJSON(raw)), &decision); err != nil {
		return RouterDecision{}, fmt.Errorf("failed to parse router decision: %w", err)
	}

	// Explicit caller hints take precedence over the model's guess.
	if controls.Purpose != "" {
		decision.Purpose = controls.Purpose
	}
	if controls.Depth != "" {
		decision.Depth = controls.Depth
	}
	if decision.Depth == "" {
		decision.Depth = "standard"
	}
	if decision.Profile == "" {
		decision.Profile = ProfileFromPurpose(decision.Purpose)
	}
	c.logger.Printf("classified purpose=%s depth=%s profile=%s", decision.Purpose, decision.Depth, decision.Profile)
	return decision, nil
}

// extractJSON trims chatter around the first top-level JSON object in a
// model reply.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
