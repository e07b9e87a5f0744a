package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/brieferhq/briefer/config"
)

func TestRecordLLMUsageAccumulates(t *testing.T) {
	tel := New(config.TelemetryConfig{Enabled: true, CostTracking: true})
	tel.RecordLLMUsage("gpt-5.1", 1200, 0.05)
	tel.RecordLLMUsage("gpt-5.1", 800, 0.03)
	tel.RecordLLMUsage("o3-deep-research", 500, 0.10)

	cost, tokens, byModel := tel.CostSummary()
	if tokens != 2500 {
		t.Fatalf("expected 2500 tokens, got %d", tokens)
	}
	if math.Abs(cost-0.18) > 1e-9 {
		t.Fatalf("expected total cost 0.18, got %f", cost)
	}
	if math.Abs(byModel["gpt-5.1"]-0.08) > 1e-9 {
		t.Fatalf("expected gpt-5.1 cost 0.08, got %f", byModel["gpt-5.1"])
	}
}

func TestCostTrackingDisabledKeepsNoTotals(t *testing.T) {
	tel := New(config.TelemetryConfig{Enabled: true})
	tel.RecordLLMUsage("gpt-5.1", 1000, 0.05)

	cost, tokens, _ := tel.CostSummary()
	if cost != 0 || tokens != 0 {
		t.Fatalf("cost tracking off should keep no totals, got cost=%f tokens=%d", cost, tokens)
	}
}

func TestDisabledTelemetryRecordsNothing(t *testing.T) {
	tel := New(config.TelemetryConfig{})
	tel.RecordLLMUsage("gpt-5.1", 1000, 0.05)
	tel.RecordStageRetry("research")
	tel.RecordSearchQuery()

	cost, tokens, _ := tel.CostSummary()
	if cost != 0 || tokens != 0 {
		t.Fatalf("disabled telemetry should record nothing, got cost=%f tokens=%d", cost, tokens)
	}
}

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry
	tel.ObserveStage("research", time.Second, true)
	tel.RecordStageRetry("research")
	tel.RecordTaskTransition("running")
	tel.RecordSearchQuery()
	tel.RecordLLMUsage("gpt-5.1", 10, 0.01)

	cost, tokens, byModel := tel.CostSummary()
	if cost != 0 || tokens != 0 || byModel != nil {
		t.Fatalf("nil telemetry should report zeros, got cost=%f tokens=%d byModel=%v", cost, tokens, byModel)
	}
}
