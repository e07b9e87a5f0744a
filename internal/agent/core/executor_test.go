package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brieferhq/briefer/config"
	"github.com/brieferhq/briefer/internal/agent/telemetry"
)

// counterValue reads a counter from the default registry. An empty labelName
// matches the first (unlabeled) series.
func counterValue(t *testing.T, name, labelName, labelValue string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelName == "" {
				return m.GetCounter().GetValue()
			}
			for _, l := range m.GetLabel() {
				if l.GetName() == labelName && l.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func newTestExecutor(cfg config.RetryConfig) (*Executor, *[]time.Duration) {
	x := NewExecutor(cfg, log.New(io.Discard, "", 0))
	var sleeps []time.Duration
	x.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return x, &sleeps
}

func TestExecuteStageFirstSuccessShortCircuits(t *testing.T) {
	x, sleeps := newTestExecutor(config.RetryConfig{MaxAttempts: 3, BackoffFactor: 0.5, Timeout: time.Second})
	calls := 0
	got, err := ExecuteStage(context.Background(), x, "classification", func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Fatalf("expected one call returning 42, got %d calls returning %d", calls, got)
	}
	if len(*sleeps) != 0 {
		t.Fatalf("success must not sleep, slept %v", *sleeps)
	}
}

func TestExecuteStageRetriesThenSucceeds(t *testing.T) {
	x, sleeps := newTestExecutor(config.RetryConfig{MaxAttempts: 3, BackoffFactor: 0.5, Timeout: time.Second})
	calls := 0
	got, err := ExecuteStage(context.Background(), x, "research", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("expected success on attempt 3, got %q after %d calls", got, calls)
	}
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), *sleeps)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Fatalf("sleep %d: expected %v, got %v", i, d, (*sleeps)[i])
		}
	}
}

func TestExecuteStageExhaustionYieldsStageError(t *testing.T) {
	x, sleeps := newTestExecutor(config.RetryConfig{MaxAttempts: 3, BackoffFactor: 0.5, Timeout: time.Second})
	calls := 0
	boom := errors.New("boom")
	_, err := ExecuteStage(context.Background(), x, "composition", func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if err == nil {
		t.Fatalf("expected error after exhaustion")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	// No sleep after the final attempt.
	if len(*sleeps) != 2 {
		t.Fatalf("expected 2 sleeps, got %v", *sleeps)
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %T", err)
	}
	if stageErr.Stage != "composition" || stageErr.Attempts != 3 {
		t.Fatalf("unexpected stage error: %+v", stageErr)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("StageError must unwrap to the last error")
	}
	wantMsg := fmt.Sprintf("composition stage failed after 3 attempts: %T: %v", boom, boom)
	if err.Error() != wantMsg {
		t.Fatalf("expected message %q, got %q", wantMsg, err.Error())
	}
}

func TestExecuteStageRecordsRetryMetric(t *testing.T) {
	x, _ := newTestExecutor(config.RetryConfig{MaxAttempts: 3, BackoffFactor: 0, Timeout: time.Second})
	x.WithTelemetry(telemetry.New(config.TelemetryConfig{Enabled: true}))

	_, err := ExecuteStage(context.Background(), x, "retry-metric-stage", func(ctx context.Context) (int, error) {
		return 0, errors.New("transient")
	})
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}
	// Three attempts, two of them retries; the final attempt is not counted.
	if got := counterValue(t, "briefer_stage_retries_total", "stage", "retry-metric-stage"); got != 2 {
		t.Fatalf("expected 2 recorded retries, got %v", got)
	}
}

func TestExecuteStageAttemptTimeout(t *testing.T) {
	x, _ := newTestExecutor(config.RetryConfig{MaxAttempts: 2, BackoffFactor: 0, Timeout: 20 * time.Millisecond})
	_, err := ExecuteStage(context.Background(), x, "research", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected a timeout in the chain, got %v", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
	}
	for _, tc := range cases {
		if got := backoffDelay(0.5, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}
