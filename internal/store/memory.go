package store

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps tasks in a process-local map. It backs tests and the default
// zero-configuration deployment.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]Task)}
}

func (m *Memory) Save(_ context.Context, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.TaskID] = task
	return nil
}

func (m *Memory) Load(_ context.Context, taskID string) (Task, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[taskID]
	return task, ok, nil
}

func (m *Memory) List(_ context.Context, status string, limit int) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Task
	for _, task := range m.tasks {
		if status != "" && task.Status != status {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	return nil
}

func (m *Memory) Close() error { return nil }
