package agent

import (
	"context"
	"fmt"

	"github.com/rahul/questd/internal/memory"
	"github.com/rahul/questd/internal/store"
)

// MemoryWriter is the slice of the memory collaborator the recorder and
// the reflector write through.
type MemoryWriter interface {
	CreateMemory(ctx context.Context, kind, title, content string, metadata map[string]any) (string, error)
}

// OutcomeRecorder writes exactly one outcome memory per terminal goal.
type OutcomeRecorder struct {
	Memory MemoryWriter
}

func NewOutcomeRecorder(mem MemoryWriter) *OutcomeRecorder {
	return &OutcomeRecorder{Memory: mem}
}

// RecordOutcome summarizes how a goal run ended: the planner-declared
// final summary on success, the failing step index and reason otherwise.
func (r *OutcomeRecorder) RecordOutcome(ctx context.Context, goal store.Goal, outcome Outcome) (string, error) {
	var content string
	switch outcome.Status {
	case store.StatusCompleted:
		content = outcome.Summary
	default:
		content = fmt.Sprintf("failed at step %d: %s", outcome.FailedStep, outcome.Reason)
	}

	title := fmt.Sprintf("Goal %s: %s", outcome.Status, truncate(goal.Description, 80))
	return r.Memory.CreateMemory(ctx, memory.KindOutcome, title, content, map[string]any{
		"goal_id":     goal.ID,
		"status":      string(outcome.Status),
		"failed_step": outcome.FailedStep,
	})
}

// truncate cuts on a rune boundary so multi-byte descriptions never yield
// an invalid title.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
