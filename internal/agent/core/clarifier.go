package core

import (
	"context"
	"encoding/json"
	"log"

	"github.com/brieferhq/briefer/provider"
)

const clarifierSystemPrompt = `You refine ambiguous research requests. Given a request and its routing,
produce a JSON object of clarified assumptions the downstream research should adopt, for example:
{"scope": "...", "timeframe": "...", "audience": "...", "assumed_intent": "..."}
Respond ONLY with the JSON object.`

// LLMClarifier asks a model to pin down scope and assumptions for ambiguous
// requests. Clarification is best effort: any failure degrades to echoing
// the query back so the run continues.
type LLMClarifier struct {
	llm    provider.ChatProvider
	model  string
	logger *log.Logger
}

func NewLLMClarifier(llm provider.ChatProvider, model string, logger *log.Logger) *LLMClarifier {
	if logger == nil {
		logger = log.New(log.Writer(), "[CLARIFY] ", log.LstdFlags)
	}
	return &LLMClarifier{llm: llm, model: model, logger: logger}
}

func (c *LLMClarifier) Clarify(ctx context.Context, req NormalizedRequest, decision RouterDecision) (map[string]any, error) {
	skipped := map[string]any{"query": req.Query}
	if c.llm == nil {
		return skipped, nil
	}

	userPrompt := "REQUEST: " + req.Query + "\nPURPOSE: " + decision.Purpose + "\nDEPTH: " + decision.Depth
	raw, err := c.llm.Complete(ctx, c.model, clarifierSystemPrompt, userPrompt)
	if err != nil {
		c.logger.Printf("clarification skipped: %v", err)
		return skipped, nil
	}

	var clarified map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &clarified); err != nil || len(clarified) == 0 {
		c.logger.Printf("clarification reply unusable, continuing without it")
		return skipped, nil
	}
	return clarified, nil
}
