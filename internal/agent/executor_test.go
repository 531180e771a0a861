package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rahul/questd/internal/observability"
	"github.com/rahul/questd/internal/store"
	"github.com/rahul/questd/internal/tools"
)

func newTestGoalStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "goals.db"))
	if err != nil {
		t.Fatalf("store.NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestExecutor(t *testing.T, st *store.Store) (*Executor, string) {
	t.Helper()
	workspace := t.TempDir()
	runner := tools.NewRunner(tools.NewFilesystem([]string{workspace}), tools.NewShell(workspace))
	return NewExecutor(st, runner, observability.NewLogger(), observability.NewStatus()), workspace
}

func claimedGoal(t *testing.T, st *store.Store, description string) store.Goal {
	t.Helper()
	ctx := context.Background()
	g, err := st.CreateGoal(ctx, store.GoalDraft{Description: description, Priority: 5})
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := st.Claim(ctx, g.ID); err != nil || !ok {
		t.Fatalf("claim failed: ok=%v err=%v", ok, err)
	}
	g.Status = store.StatusActive
	return g
}

// Scenario: WRITE_FILE then REASONING_COMPLETE, both succeed, goal COMPLETED.
func TestExecuteCompletesGoal(t *testing.T) {
	st := newTestGoalStore(t)
	exec, workspace := newTestExecutor(t, st)
	ctx := context.Background()

	g := claimedGoal(t, st, "create docs/test.md with content X")
	steps, err := st.AppendSteps(ctx, g.ID, []store.PlannedStep{
		{ActionType: store.ActionWriteFile, Params: store.Params{
			"filepath": store.Lit("docs/test.md"), "content": store.Lit("X"),
		}},
		{ActionType: store.ActionReasoningComplete, Params: store.Params{
			"final_summary": store.Lit("created"),
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := exec.Execute(ctx, g, steps)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if outcome.Status != store.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", outcome.Status, outcome.Reason)
	}
	if outcome.Summary != "created" {
		t.Errorf("expected planner-declared summary, got %q", outcome.Summary)
	}

	data, err := os.ReadFile(filepath.Join(workspace, "docs/test.md"))
	if err != nil || string(data) != "X" {
		t.Errorf("file not written: %v %q", err, data)
	}

	final, _ := st.GetGoal(ctx, g.ID)
	if final.Status != store.StatusCompleted || final.CompletedAt == nil {
		t.Errorf("goal not finalized: %+v", final)
	}
	persisted, _ := st.GetSteps(ctx, g.ID)
	for _, s := range persisted {
		if s.Status != store.StatusCompleted {
			t.Errorf("step %d not COMPLETED: %s", s.StepNumber, s.Status)
		}
	}
}

// Scenario: write outside the allow-list fails at step 1; step 2 never runs.
func TestExecuteHaltsOnDeniedPath(t *testing.T) {
	st := newTestGoalStore(t)
	exec, _ := newTestExecutor(t, st)
	ctx := context.Background()

	g := claimedGoal(t, st, "write to /etc/forbidden.txt")
	steps, err := st.AppendSteps(ctx, g.ID, []store.PlannedStep{
		{ActionType: store.ActionWriteFile, Params: store.Params{
			"filepath": store.Lit("/etc/forbidden.txt"), "content": store.Lit("nope"),
		}},
		{ActionType: store.ActionReasoningComplete, Params: store.Params{
			"final_summary": store.Lit("done"),
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := exec.Execute(ctx, g, steps)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if outcome.Status != store.StatusFailed {
		t.Fatalf("expected FAILED, got %s", outcome.Status)
	}
	if outcome.FailedStep != 1 {
		t.Errorf("expected failure at step 1, got %d", outcome.FailedStep)
	}
	if outcome.Reason == "" || !contains(outcome.Reason, "permission denied") {
		t.Errorf("expected a denial reason, got %q", outcome.Reason)
	}

	persisted, _ := st.GetSteps(ctx, g.ID)
	if persisted[0].Status != store.StatusFailed {
		t.Errorf("step 1 should be FAILED, got %s", persisted[0].Status)
	}
	if persisted[1].Status != store.StatusPending {
		t.Errorf("step 2 should stay PENDING, got %s", persisted[1].Status)
	}

	final, _ := st.GetGoal(ctx, g.ID)
	if final.Status != store.StatusFailed {
		t.Errorf("goal should be FAILED, got %s", final.Status)
	}
}

func TestExecutePropagatesStepOutputs(t *testing.T) {
	st := newTestGoalStore(t)
	exec, workspace := newTestExecutor(t, st)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(workspace, "in.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	g := claimedGoal(t, st, "copy in.txt to out.txt")
	steps, err := st.AppendSteps(ctx, g.ID, []store.PlannedStep{
		{ActionType: store.ActionReadFile, Params: store.Params{
			"filepath": store.Lit("in.txt"),
		}},
		{ActionType: store.ActionWriteFile, Params: store.Params{
			"filepath": store.Lit("out.txt"), "content": store.Ref(1),
		}},
		{ActionType: store.ActionReasoningComplete, Params: store.Params{
			"final_summary": store.Lit("copied"),
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := exec.Execute(ctx, g, steps)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if outcome.Status != store.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", outcome.Status, outcome.Reason)
	}

	data, err := os.ReadFile(filepath.Join(workspace, "out.txt"))
	if err != nil || string(data) != "hello" {
		t.Errorf("step output was not propagated: %v %q", err, data)
	}

	// Steps finalize strictly in order, so their completion timestamps
	// never go backwards.
	persisted, _ := st.GetSteps(ctx, g.ID)
	for i := 1; i < len(persisted); i++ {
		if persisted[i].UpdatedAt.Before(persisted[i-1].UpdatedAt) {
			t.Errorf("step %d finished at %v, before step %d at %v",
				persisted[i].StepNumber, persisted[i].UpdatedAt,
				persisted[i-1].StepNumber, persisted[i-1].UpdatedAt)
		}
	}
}

func TestExecuteFailsOnUnrecognizedAction(t *testing.T) {
	st := newTestGoalStore(t)
	exec, _ := newTestExecutor(t, st)
	ctx := context.Background()

	g := claimedGoal(t, st, "dispatch failure")
	steps, err := st.AppendSteps(ctx, g.ID, []store.PlannedStep{
		{ActionType: store.ActionReadFile, Params: store.Params{"filepath": store.Lit("a.txt")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	// Simulate a stale row with an action the runner does not know.
	steps[0].ActionType = store.ActionType("LAUNCH_ROCKET")

	outcome, err := exec.Execute(ctx, g, steps)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if outcome.Status != store.StatusFailed || outcome.FailedStep != 1 {
		t.Fatalf("expected failure at step 1, got %+v", outcome)
	}
	if !contains(outcome.Reason, "unrecognized action") {
		t.Errorf("expected dispatch failure reason, got %q", outcome.Reason)
	}
}

func TestExecuteFailsOnDanglingReference(t *testing.T) {
	st := newTestGoalStore(t)
	exec, _ := newTestExecutor(t, st)
	ctx := context.Background()

	g := claimedGoal(t, st, "dangling reference")
	steps, err := st.AppendSteps(ctx, g.ID, []store.PlannedStep{
		{ActionType: store.ActionWriteFile, Params: store.Params{
			"filepath": store.Lit("a.txt"), "content": store.Ref(7),
		}},
		{ActionType: store.ActionReasoningComplete, Params: store.Params{
			"final_summary": store.Lit("done"),
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := exec.Execute(ctx, g, steps)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if outcome.Status != store.StatusFailed || outcome.FailedStep != 1 {
		t.Fatalf("expected failure at step 1, got %+v", outcome)
	}
	if !contains(outcome.Reason, "no recorded output") {
		t.Errorf("expected dangling reference reason, got %q", outcome.Reason)
	}
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}
