package store

import (
	"context"
	"testing"
	"time"

	"github.com/brieferhq/briefer/internal/agent/core"
)

func sampleTask(id, status string, createdAt time.Time) Task {
	return Task{
		TaskID:            id,
		Status:            status,
		Envelope:          &core.Envelope{Title: "Research: " + id},
		Quality:           &core.QualityReport{CitationCoverageScore: 0.5},
		Bibliography:      "S1. Source (http://a)",
		SourceMap:         map[string]string{"S1": "http://a"},
		Notes:             []string{"note"},
		Findings:          []core.Finding{{ID: "F1", Title: "t"}},
		Evidence:          []core.Evidence{{ID: "EF1", SourceID: "F1"}},
		OverallConfidence: "medium",
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Save(ctx, sampleTask("t1", "completed", now)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	task, found, err := s.Load(ctx, "t1")
	if err != nil || !found {
		t.Fatalf("expected task, found=%v err=%v", found, err)
	}
	if task.Envelope == nil || task.Envelope.Title != "Research: t1" {
		t.Fatalf("envelope did not round-trip: %+v", task.Envelope)
	}
	if task.SourceMap["S1"] != "http://a" {
		t.Fatalf("source map did not round-trip: %v", task.SourceMap)
	}

	if _, found, _ := s.Load(ctx, "nope"); found {
		t.Fatalf("missing task should not be found")
	}
}

func TestMemoryStoreListFiltersAndLimits(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Now().UTC()
	_ = s.Save(ctx, sampleTask("a", "completed", base.Add(-3*time.Hour)))
	_ = s.Save(ctx, sampleTask("b", "completed", base.Add(-1*time.Hour)))
	_ = s.Save(ctx, sampleTask("c", "failed", base.Add(-2*time.Hour)))

	completed, err := s.List(ctx, "completed", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("expected 2 completed tasks, got %d", len(completed))
	}
	if completed[0].TaskID != "b" {
		t.Fatalf("expected newest first, got %s", completed[0].TaskID)
	}

	limited, _ := s.List(ctx, "", 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_ = s.Save(ctx, sampleTask("t1", "failed", time.Now()))
	if err := s.Delete(ctx, "t1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, found, _ := s.Load(ctx, "t1"); found {
		t.Fatalf("deleted task should not be found")
	}
}
