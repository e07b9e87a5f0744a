package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/brieferhq/briefer/config"
)

// Collectors are package level so repeated Telemetry construction in one
// process never double-registers them.
var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "briefer",
		Name:      "stage_duration_seconds",
		Help:      "Wall-clock duration of pipeline stages.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"stage", "outcome"})

	stageRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briefer",
		Name:      "stage_retries_total",
		Help:      "Retry attempts per pipeline stage.",
	}, []string{"stage"})

	taskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briefer",
		Name:      "task_transitions_total",
		Help:      "Task lifecycle transitions by target status.",
	}, []string{"status"})

	searchQueries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "briefer",
		Name:      "search_queries_total",
		Help:      "Web search queries issued.",
	})

	llmTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briefer",
		Name:      "llm_tokens_total",
		Help:      "Tokens consumed per model.",
	}, []string{"model"})
)

// Telemetry records pipeline metrics and tracks LLM spend. All methods are
// nil-safe and cheap no-ops when telemetry is disabled.
type Telemetry struct {
	cfg    config.TelemetryConfig
	logger *log.Logger

	mu          sync.Mutex
	modelCosts  map[string]float64
	totalCost   float64
	totalTokens int64
}

func New(cfg config.TelemetryConfig) *Telemetry {
	return &Telemetry{
		cfg:        cfg,
		logger:     log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		modelCosts: make(map[string]float64),
	}
}

func (t *Telemetry) enabled() bool { return t != nil && t.cfg.Enabled }

// ObserveStage records one stage execution.
func (t *Telemetry) ObserveStage(stage string, duration time.Duration, success bool) {
	if !t.enabled() {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	stageDuration.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}

// RecordStageRetry counts one retried attempt for a stage.
func (t *Telemetry) RecordStageRetry(stage string) {
	if !t.enabled() {
		return
	}
	stageRetries.WithLabelValues(stage).Inc()
}

// RecordTaskTransition counts a task entering the given status.
func (t *Telemetry) RecordTaskTransition(status string) {
	if !t.enabled() {
		return
	}
	taskTransitions.WithLabelValues(status).Inc()
}

// RecordSearchQuery counts one issued web search.
func (t *Telemetry) RecordSearchQuery() {
	if !t.enabled() {
		return
	}
	searchQueries.Inc()
}

// RecordLLMUsage accumulates token and cost totals per model.
func (t *Telemetry) RecordLLMUsage(model string, tokens int64, cost float64) {
	if !t.enabled() {
		return
	}
	llmTokens.WithLabelValues(model).Add(float64(tokens))

	if !t.cfg.CostTracking {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modelCosts[model] += cost
	t.totalCost += cost
	t.totalTokens += tokens
	t.logger.Printf("LLM usage: model=%s tokens=%d cost=$%.4f total=$%.4f", model, tokens, cost, t.totalCost)
}

// CostSummary returns the accumulated spend snapshot.
func (t *Telemetry) CostSummary() (totalCost float64, totalTokens int64, byModel map[string]float64) {
	if t == nil {
		return 0, 0, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	byModel = make(map[string]float64, len(t.modelCosts))
	for model, cost := range t.modelCosts {
		byModel[model] = cost
	}
	return t.totalCost, t.totalTokens, byModel
}
