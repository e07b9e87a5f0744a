package task

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brieferhq/briefer/config"
	"github.com/brieferhq/briefer/internal/agent/core"
	"github.com/brieferhq/briefer/internal/agent/telemetry"
	"github.com/brieferhq/briefer/internal/store"
)

// Status is a task lifecycle state. Transitions are monotonic: a task only
// moves forward through the ranks below, and any non-terminal state may jump
// to failed.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusRunning    Status = "running"
	StatusWriting    Status = "writing"
	StatusValidating Status = "validating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var statusRank = map[Status]int{
	StatusQueued:     0,
	StatusRunning:    1,
	StatusWriting:    2,
	StatusValidating: 3,
	StatusCompleted:  4,
	StatusFailed:     4,
}

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

func (s Status) canTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// State is the live view of one task.
type State struct {
	TaskID            string              `json:"task_id"`
	Status            Status              `json:"status"`
	Envelope          *core.Envelope      `json:"envelope,omitempty"`
	Quality           *core.QualityReport `json:"quality,omitempty"`
	Bibliography      string              `json:"bibliography,omitempty"`
	SourceMap         map[string]string   `json:"source_map,omitempty"`
	Notes             []string            `json:"notes,omitempty"`
	Findings          []core.Finding      `json:"findings,omitempty"`
	Evidence          []core.Evidence     `json:"evidence,omitempty"`
	OverallConfidence string              `json:"overall_confidence,omitempty"`
	Error             string              `json:"error,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Runner executes the research pipeline, reporting stage starts so the
// manager can surface transient statuses.
type Runner interface {
	RunWithObserver(ctx context.Context, req core.NormalizedRequest, observe func(stage string)) (core.RunResult, error)
}

// Manager owns the async task lifecycle: submission, background execution,
// status queries and persistence. In-memory state is authoritative while the
// process lives; the store provides durability and rehydration.
type Manager struct {
	mu     sync.RWMutex
	tasks  map[string]*State
	store  store.TaskStore
	runner Runner
	deep   core.DeepResearcher
	cfg    config.TasksConfig
	tel    *telemetry.Telemetry
	logger *log.Logger
	now    func() time.Time
	tick   func(time.Duration) <-chan time.Time
}

func NewManager(runner Runner, deep core.DeepResearcher, ts store.TaskStore, cfg config.TasksConfig, tel *telemetry.Telemetry, logger *log.Logger) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = 500 * time.Millisecond
	}
	if cfg.DeepWaitTimeout <= 0 {
		cfg.DeepWaitTimeout = 15 * time.Minute
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[TASKS] ", log.LstdFlags)
	}
	return &Manager{
		tasks:  make(map[string]*State),
		store:  ts,
		runner: runner,
		deep:   deep,
		cfg:    cfg,
		tel:    tel,
		logger: logger,
		now:    time.Now,
		tick:   time.After,
	}
}

// Submit registers a task and starts its pipeline in the background. useDeep
// routes the request through provider-side deep research first.
func (m *Manager) Submit(ctx context.Context, req core.NormalizedRequest, useDeep bool) (string, error) {
	taskID := uuid.NewString()
	now := m.now().UTC()
	state := &State{TaskID: taskID, Status: StatusQueued, CreatedAt: now, UpdatedAt: now}

	m.mu.Lock()
	m.tasks[taskID] = state
	m.mu.Unlock()
	m.persist(ctx, *state)
	m.tel.RecordTaskTransition(string(StatusQueued))

	go m.process(context.Background(), taskID, req, useDeep)
	return taskID, nil
}

// Get returns the live state, rehydrating from the store after a restart.
func (m *Manager) Get(ctx context.Context, taskID string) (State, bool) {
	m.mu.RLock()
	state, ok := m.tasks[taskID]
	if ok {
		snapshot := *state
		m.mu.RUnlock()
		return snapshot, true
	}
	m.mu.RUnlock()

	if m.store == nil {
		return State{}, false
	}
	record, found, err := m.store.Load(ctx, taskID)
	if err != nil || !found {
		return State{}, false
	}
	return stateFromRecord(record), true
}

// List returns persisted tasks, newest first.
func (m *Manager) List(ctx context.Context, status string, limit int) ([]State, error) {
	if m.store == nil {
		return nil, fmt.Errorf("task store not configured")
	}
	records, err := m.store.List(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	states := make([]State, 0, len(records))
	for _, record := range records {
		states = append(states, stateFromRecord(record))
	}
	return states, nil
}

func (m *Manager) process(ctx context.Context, taskID string, req core.NormalizedRequest, useDeep bool) {
	m.transition(ctx, taskID, StatusRunning, nil)

	if useDeep && m.deep != nil {
		req = m.runDeepResearch(ctx, taskID, req)
	}

	observe := func(stage string) {
		if stage == core.StageComposition {
			m.transition(ctx, taskID, StatusWriting, nil)
		}
	}

	result, err := m.runner.RunWithObserver(ctx, req, observe)
	if err != nil {
		m.logger.Printf("task %s failed: %v", taskID, err)
		m.transition(ctx, taskID, StatusFailed, func(s *State) {
			s.Error = err.Error()
		})
		return
	}

	m.transition(ctx, taskID, StatusValidating, nil)

	output := result.Output
	m.transition(ctx, taskID, StatusCompleted, func(s *State) {
		envelope := output.Envelope
		s.Envelope = &envelope
		s.Quality = output.Quality
		s.Bibliography = output.Bibliography
		s.SourceMap = output.SourceMap
		s.Notes = mergeNotes(s.Notes, output.Notes)
		s.Findings = output.Findings
		s.Evidence = output.Evidence
		s.OverallConfidence = output.OverallConfidence
	})
}

// runDeepResearch drives a provider-side background job, folding progress
// notes into the task as they arrive. The request always comes back with a
// deep_results key so the researcher never re-attempts deep research: the
// gathered results on success, an empty slice on failure or timeout.
func (m *Manager) runDeepResearch(ctx context.Context, taskID string, req core.NormalizedRequest) core.NormalizedRequest {
	jobID, err := m.deep.Start(ctx, req.Query)
	if err != nil {
		m.logger.Printf("task %s deep research start failed: %v", taskID, err)
		return req.WithUpdates(map[string]any{"deep_results": []core.SearchResult{}})
	}

	deadline := m.now().Add(m.cfg.DeepWaitTimeout)
	for {
		job, err := m.deep.Fetch(ctx, jobID)
		if err != nil {
			m.logger.Printf("task %s deep research fetch failed: %v", taskID, err)
			return req.WithUpdates(map[string]any{"deep_results": []core.SearchResult{}})
		}
		if len(job.Notes) > 0 {
			m.mutate(ctx, taskID, func(s *State) {
				s.Notes = mergeNotes(s.Notes, job.Notes)
			})
		}

		switch job.Status {
		case "completed", "succeeded":
			return req.WithUpdates(map[string]any{"deep_results": job.Results})
		case "failed", "error", "cancelled":
			m.logger.Printf("task %s deep research job %s ended with status %q", taskID, jobID, job.Status)
			return req.WithUpdates(map[string]any{"deep_results": []core.SearchResult{}})
		}
		if m.now().After(deadline) {
			m.logger.Printf("task %s deep research timed out, falling back to sync pipeline", taskID)
			return req.WithUpdates(map[string]any{"deep_results": []core.SearchResult{}})
		}

		select {
		case <-ctx.Done():
			return req.WithUpdates(map[string]any{"deep_results": []core.SearchResult{}})
		case <-m.tick(m.cfg.PollInterval):
		}
	}
}

// transition moves a task to the given status if the lifecycle allows it,
// applying mutate under the same lock.
func (m *Manager) transition(ctx context.Context, taskID string, next Status, mutate func(*State)) {
	m.mu.Lock()
	state, ok := m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if !state.Status.canTransitionTo(next) {
		m.mu.Unlock()
		m.logger.Printf("task %s ignoring transition %s -> %s", taskID, state.Status, next)
		return
	}
	state.Status = next
	state.UpdatedAt = m.now().UTC()
	if mutate != nil {
		mutate(state)
	}
	snapshot := *state
	m.mu.Unlock()

	m.tel.RecordTaskTransition(string(next))
	m.persist(ctx, snapshot)
}

// mutate applies a change without a status transition.
func (m *Manager) mutate(ctx context.Context, taskID string, fn func(*State)) {
	m.mu.Lock()
	state, ok := m.tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return
	}
	fn(state)
	state.UpdatedAt = m.now().UTC()
	snapshot := *state
	m.mu.Unlock()

	m.persist(ctx, snapshot)
}

// persist writes through to the store; persistence failures are logged and
// never fail the task.
func (m *Manager) persist(ctx context.Context, state State) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, recordFromState(state)); err != nil {
		m.logger.Printf("failed to persist task %s: %v", state.TaskID, err)
	}
}

func mergeNotes(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, note := range existing {
		seen[note] = struct{}{}
	}
	merged := existing
	for _, note := range incoming {
		if _, ok := seen[note]; ok {
			continue
		}
		seen[note] = struct{}{}
		merged = append(merged, note)
	}
	return merged
}

func recordFromState(state State) store.Task {
	return store.Task{
		TaskID:            state.TaskID,
		Status:            string(state.Status),
		Envelope:          state.Envelope,
		Quality:           state.Quality,
		Bibliography:      state.Bibliography,
		SourceMap:         state.SourceMap,
		Notes:             state.Notes,
		Findings:          state.Findings,
		Evidence:          state.Evidence,
		OverallConfidence: state.OverallConfidence,
		Error:             state.Error,
		CreatedAt:         state.CreatedAt,
		UpdatedAt:         state.UpdatedAt,
	}
}

func stateFromRecord(record store.Task) State {
	return State{
		TaskID:            record.TaskID,
		Status:            Status(record.Status),
		Envelope:          record.Envelope,
		Quality:           record.Quality,
		Bibliography:      record.Bibliography,
		SourceMap:         record.SourceMap,
		Notes:             record.Notes,
		Findings:          record.Findings,
		Evidence:          record.Evidence,
		OverallConfidence: record.OverallConfidence,
		Error:             record.Error,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}
