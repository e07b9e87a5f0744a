package task

import (
	"context"
	"testing"
	"time"

	"github.com/brieferhq/briefer/internal/agent/core"
	"github.com/brieferhq/briefer/internal/store"
)

func collectEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-timeout:
			t.Fatalf("stream did not close; events so far: %d", len(out))
		}
	}
}

func TestStreamUnknownTask(t *testing.T) {
	m := newTestManager(&fakeRunner{}, nil, &recordingStore{TaskStore: store.NewMemory()})
	if _, err := m.Stream(context.Background(), "nope"); err == nil {
		t.Fatalf("expected unknown task error")
	}
}

func TestStreamEndsAfterTerminalStatus(t *testing.T) {
	rec := &recordingStore{TaskStore: store.NewMemory()}
	m := newTestManager(&fakeRunner{result: successResult()}, nil, rec)

	taskID, _ := m.Submit(context.Background(), core.NormalizedRequest{Query: "q"}, false)
	events, err := m.Stream(context.Background(), taskID)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	collected := collectEvents(t, events)
	if len(collected) == 0 {
		t.Fatalf("expected at least one event")
	}

	last := collected[len(collected)-1]
	if last.Type != "status" {
		t.Fatalf("stream must end with a status event, got %s", last.Type)
	}
	state, ok := last.Data.(State)
	if !ok {
		t.Fatalf("status event should carry the state, got %T", last.Data)
	}
	if !state.Status.Terminal() {
		t.Fatalf("final status must be terminal, got %s", state.Status)
	}
}

func TestStreamTerminalAtSubscribe(t *testing.T) {
	rec := &recordingStore{TaskStore: store.NewMemory()}
	m := newTestManager(&fakeRunner{result: successResult()}, nil, rec)

	taskID, _ := m.Submit(context.Background(), core.NormalizedRequest{Query: "q"}, false)
	waitTerminal(t, m, taskID)

	events, err := m.Stream(context.Background(), taskID)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	collected := collectEvents(t, events)

	// Exactly one change is visible: the terminal snapshot, prefixed by its
	// populated sub-events.
	var statusCount int
	var statusIdx int
	for i, event := range collected {
		if event.Type == "status" {
			statusCount++
			statusIdx = i
		}
	}
	if statusCount != 1 {
		t.Fatalf("expected exactly one status event, got %d", statusCount)
	}
	if statusIdx != len(collected)-1 {
		t.Fatalf("sub-events must precede the terminal status event: %+v", collected)
	}

	types := make(map[string]bool)
	for _, event := range collected {
		types[event.Type] = true
	}
	if !types["findings"] || !types["evidence"] || !types["notes"] {
		t.Fatalf("expected findings, evidence and notes sub-events, got %v", types)
	}
}

func TestStreamStopsOnContextCancel(t *testing.T) {
	rec := &recordingStore{TaskStore: store.NewMemory()}
	block := make(chan struct{})
	m := newTestManager(&fakeRunner{result: successResult(), block: block}, nil, rec)

	taskID, _ := m.Submit(context.Background(), core.NormalizedRequest{Query: "q"}, false)
	ctx, cancel := context.WithCancel(context.Background())
	events, err := m.Stream(ctx, taskID)
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	// Drain the first snapshot, then cancel.
	<-events
	cancel()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				close(block)
				return
			}
		case <-timeout:
			t.Fatalf("stream did not close after cancel")
		}
	}
}
