package core

import (
	"context"
	"log"
	"time"

	"github.com/brieferhq/briefer/internal/agent/telemetry"
)

// Stage names used for retry reporting, logging and metrics.
const (
	StageClassification = "classification"
	StageClarification  = "clarification"
	StageResearch       = "research"
	StageComposition    = "composition"
)

// Orchestrator sequences the pipeline: classify, optionally clarify, run the
// planned research passes, then compose. Every fallible stage goes through
// the retry executor; clarification is best effort and never fails a run.
type Orchestrator struct {
	classifier  Classifier
	clarifier   Clarifier
	researcher  Researcher
	composer    Composer
	factChecker FactChecker
	executor    *Executor
	telemetry   *telemetry.Telemetry
	logger      *log.Logger
}

func NewOrchestrator(classifier Classifier, clarifier Clarifier, researcher Researcher, composer Composer, executor *Executor, logger *log.Logger) *Orchestrator {
	if executor == nil {
		executor = NewExecutor(DefaultRetryConfig(), nil)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Orchestrator{
		classifier: classifier,
		clarifier:  clarifier,
		researcher: researcher,
		composer:   composer,
		executor:   executor,
		logger:     logger,
	}
}

// WithFactChecker installs an optional post-composition checker whose report
// replaces the composer's when it succeeds.
func (o *Orchestrator) WithFactChecker(checker FactChecker) *Orchestrator {
	o.factChecker = checker
	return o
}

// WithTelemetry installs metric recording. Safe to skip.
func (o *Orchestrator) WithTelemetry(t *telemetry.Telemetry) *Orchestrator {
	o.telemetry = t
	return o
}

// Run executes the full pipeline for one request.
func (o *Orchestrator) Run(ctx context.Context, req NormalizedRequest) (RunResult, error) {
	return o.RunWithObserver(ctx, req, nil)
}

// RunWithObserver executes the pipeline and reports each stage as it starts,
// so callers tracking task lifecycle can surface transient statuses.
func (o *Orchestrator) RunWithObserver(ctx context.Context, req NormalizedRequest, observe func(stage string)) (RunResult, error) {
	notify := func(stage string) {
		if observe != nil {
			observe(stage)
		}
	}

	notify(StageClassification)
	start := time.Now()
	decision, err := ExecuteStage(ctx, o.executor, StageClassification, func(ctx context.Context) (RouterDecision, error) {
		return o.classifier.Classify(ctx, req)
	})
	o.telemetry.ObserveStage(StageClassification, time.Since(start), err == nil)
	if err != nil {
		return RunResult{}, err
	}

	plan := BuildResearchPlan(decision.Depth)
	o.logger.Printf("purpose=%s depth=%s passes=%d profile=%s", decision.Purpose, decision.Depth, plan.Passes, plan.SearchProfile)

	if decision.NeedsClarification && o.clarifier != nil {
		notify(StageClarification)
		clarified, cerr := o.clarifier.Clarify(ctx, req, decision)
		if cerr != nil {
			o.logger.Printf("clarification error ignored: %v", cerr)
		} else if len(clarified) > 0 {
			req = req.WithUpdates(map[string]any{"clarification": clarified})
		}
	}

	var persisted *ResearchTask
	if len(plan.Tasks) > 0 {
		persisted = &plan.Tasks[0]
	}

	research := make([]ResearchOutput, 0, plan.Passes)
	for pass := 0; pass < plan.Passes; pass++ {
		notify(StageResearch)
		passIndex := pass
		start = time.Now()
		output, err := ExecuteStage(ctx, o.executor, StageResearch, func(ctx context.Context) (ResearchOutput, error) {
			return o.researcher.Research(ctx, req, decision, plan, passIndex, persisted)
		})
		o.telemetry.ObserveStage(StageResearch, time.Since(start), err == nil)
		if err != nil {
			return RunResult{}, err
		}
		research = append(research, output)
	}

	notify(StageComposition)
	payload := ComposePayload{Router: decision, Plan: plan, Research: research, Request: req}
	start = time.Now()
	composed, err := ExecuteStage(ctx, o.executor, StageComposition, func(ctx context.Context) (ComposerOutput, error) {
		return o.composer.Write(ctx, payload)
	})
	o.telemetry.ObserveStage(StageComposition, time.Since(start), err == nil)
	if err != nil {
		return RunResult{}, err
	}

	if composed.Quality == nil {
		composed.Quality = placeholderQuality()
	}

	if o.factChecker != nil {
		if report, cerr := o.factChecker.Check(ctx, composed); cerr != nil {
			o.logger.Printf("fact check failed, keeping composer quality: %v", cerr)
		} else {
			composed.Quality = &report
		}
	}

	if cost, tokens, _ := o.telemetry.CostSummary(); tokens > 0 {
		o.logger.Printf("llm usage to date: tokens=%d cost=$%.4f", tokens, cost)
	}

	return RunResult{
		Decision:        decision,
		Plan:            plan,
		ResearchResults: research,
		Output:          composed,
	}, nil
}

// placeholderQuality is the fixed neutral report used when composition did
// not produce one. Resolved exactly once, at the pipeline boundary.
func placeholderQuality() *QualityReport {
	return &QualityReport{
		CitationCoverageScore:     0.8,
		TemplateCompletenessScore: 0.7,
		MissingSections:           []string{},
		Placeholder:               true,
	}
}
