package agent

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rahul/questd/internal/memory"
	"github.com/rahul/questd/internal/store"
)

func TestRecordOutcomeOnSuccess(t *testing.T) {
	mem := newTestMemory(t)
	r := NewOutcomeRecorder(mem)
	ctx := context.Background()

	goal := store.Goal{ID: "g1", Description: "create docs/test.md with content X"}
	id, err := r.RecordOutcome(ctx, goal, Outcome{Status: store.StatusCompleted, Summary: "created"})
	if err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a memory id")
	}

	outcomes, err := mem.QueryMemories(ctx, memory.Filter{Kind: memory.KindOutcome})
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected exactly one outcome memory, got %d", len(outcomes))
	}
	o := outcomes[0]
	if o.Content != "created" {
		t.Errorf("expected the final summary as content, got %q", o.Content)
	}
	if o.Metadata["goal_id"] != "g1" || o.Metadata["status"] != "COMPLETED" {
		t.Errorf("unexpected metadata: %+v", o.Metadata)
	}
}

func TestRecordOutcomeOnFailureCarriesStepAndReason(t *testing.T) {
	mem := newTestMemory(t)
	r := NewOutcomeRecorder(mem)
	ctx := context.Background()

	goal := store.Goal{ID: "g2", Description: "write to /etc/forbidden.txt"}
	outcome := Outcome{
		Status:     store.StatusFailed,
		FailedStep: 1,
		Reason:     "permission denied: /etc/forbidden.txt is outside the allowed roots",
	}
	if _, err := r.RecordOutcome(ctx, goal, outcome); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}

	outcomes, _ := mem.QueryMemories(ctx, memory.Filter{Kind: memory.KindOutcome})
	if len(outcomes) != 1 {
		t.Fatalf("expected exactly one outcome memory, got %d", len(outcomes))
	}
	o := outcomes[0]
	if !strings.Contains(o.Content, "failed at step 1") || !strings.Contains(o.Content, "permission denied") {
		t.Errorf("content is missing step index or reason: %q", o.Content)
	}
	// JSON round-trips numbers as float64.
	if o.Metadata["failed_step"] != float64(1) {
		t.Errorf("unexpected failed_step metadata: %v", o.Metadata["failed_step"])
	}
}

func TestRecordOutcomeTruncatesTitleOnRuneBoundary(t *testing.T) {
	mem := newTestMemory(t)
	r := NewOutcomeRecorder(mem)
	ctx := context.Background()

	goal := store.Goal{ID: "g3", Description: strings.Repeat("日本語の説明", 30)}
	if _, err := r.RecordOutcome(ctx, goal, Outcome{Status: store.StatusCompleted, Summary: "done"}); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}

	outcomes, _ := mem.QueryMemories(ctx, memory.Filter{Kind: memory.KindOutcome})
	if len(outcomes) != 1 {
		t.Fatalf("expected exactly one outcome memory, got %d", len(outcomes))
	}
	title := outcomes[0].Title
	if !utf8.ValidString(title) {
		t.Errorf("truncated title is not valid UTF-8: %q", title)
	}
	if !strings.HasSuffix(title, "...") {
		t.Errorf("long description should be truncated, got %q", title)
	}
}
