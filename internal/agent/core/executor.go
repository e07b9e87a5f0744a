package core

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/brieferhq/briefer/config"
	"github.com/brieferhq/briefer/internal/agent/telemetry"
)

// StageError is the single aggregated error raised when a stage exhausts its
// retry budget.
type StageError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed after %d attempts: %T: %v", e.Stage, e.Attempts, e.Err, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// DefaultRetryConfig mirrors the pipeline defaults: three attempts, half a
// second backoff factor, five minute per-attempt ceiling.
func DefaultRetryConfig() config.RetryConfig {
	return config.RetryConfig{MaxAttempts: 3, BackoffFactor: 0.5, Timeout: 300 * time.Second}
}

// Executor wraps stage invocations with per-attempt wall-clock timeouts and
// exponential backoff. It knows nothing about what the wrapped operation
// does.
type Executor struct {
	cfg       config.RetryConfig
	logger    *log.Logger
	telemetry *telemetry.Telemetry
	sleep     func(time.Duration)
}

func NewExecutor(cfg config.RetryConfig, logger *log.Logger) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg = DefaultRetryConfig()
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[EXEC] ", log.LstdFlags)
	}
	return &Executor{cfg: cfg, logger: logger, sleep: time.Sleep}
}

// WithTelemetry installs retry metric recording. Safe to skip.
func (x *Executor) WithTelemetry(t *telemetry.Telemetry) *Executor {
	x.telemetry = t
	return x
}

// ExecuteStage runs op with retry and timeout controls. The first success
// short-circuits; timeouts and errors are both retryable. Between attempts
// it sleeps backoff_factor * 2^(attempt-1) seconds, with no sleep after the
// final attempt. Exhaustion yields a StageError naming the stage, the
// attempt count and the last underlying error.
func ExecuteStage[T any](ctx context.Context, x *Executor, stage string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	start := time.Now()

	for attempt := 1; attempt <= x.cfg.MaxAttempts; attempt++ {
		result, err := runAttempt(ctx, x.cfg.Timeout, op)
		if err == nil {
			x.logger.Printf("[%s] completed in %s", stage, time.Since(start).Round(time.Millisecond))
			return result, nil
		}
		lastErr = err
		if attempt < x.cfg.MaxAttempts {
			x.telemetry.RecordStageRetry(stage)
			x.sleep(backoffDelay(x.cfg.BackoffFactor, attempt))
		}
	}

	x.logger.Printf("[%s] failed after %s: %T: %v", stage, time.Since(start).Round(time.Millisecond), lastErr, lastErr)
	return zero, &StageError{Stage: stage, Attempts: x.cfg.MaxAttempts, Err: lastErr}
}

// runAttempt gives the operation a cancellable child context bounded by the
// configured timeout. The result channel is buffered so a late finisher can
// neither block nor write shared state after the attempt is abandoned.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := op(attemptCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-attemptCtx.Done():
		var zero T
		return zero, fmt.Errorf("attempt timed out after %s: %w", timeout, attemptCtx.Err())
	}
}

func backoffDelay(factor float64, attempt int) time.Duration {
	return time.Duration(factor * math.Pow(2, float64(attempt-1)) * float64(time.Second))
}
