package task

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event is one server-sent update about a task. Type is the SSE event name.
type Event struct {
	Type string
	Data any
}

// Stream watches a task and emits an event whenever its state changes. Each
// change first emits findings, evidence and notes sub-events for the parts
// that are populated, then a status event carrying the full state. The
// channel closes after the terminal status event. A task already terminal at
// subscribe time gets exactly one such sequence.
func (m *Manager) Stream(ctx context.Context, taskID string) (<-chan Event, error) {
	if _, ok := m.Get(ctx, taskID); !ok {
		return nil, fmt.Errorf("task %s not found", taskID)
	}

	events := make(chan Event)
	go func() {
		defer close(events)

		var lastSerialized string
		emit := func(event Event) bool {
			select {
			case events <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			state, ok := m.Get(ctx, taskID)
			if !ok {
				return
			}

			serialized, err := json.Marshal(state)
			if err == nil && string(serialized) != lastSerialized {
				lastSerialized = string(serialized)

				if len(state.Findings) > 0 {
					if !emit(Event{Type: "findings", Data: state.Findings}) {
						return
					}
				}
				if len(state.Evidence) > 0 {
					if !emit(Event{Type: "evidence", Data: state.Evidence}) {
						return
					}
				}
				if len(state.Notes) > 0 {
					if !emit(Event{Type: "notes", Data: state.Notes}) {
						return
					}
				}
				if !emit(Event{Type: "status", Data: state}) {
					return
				}
			}

			if state.Status.Terminal() {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-m.tick(m.cfg.StreamInterval):
			}
		}
	}()
	return events, nil
}
