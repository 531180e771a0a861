package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rahul/questd/internal/observability"
	"github.com/rahul/questd/internal/store"
	"github.com/rahul/questd/internal/tools"
)

// Outcome is what a finished goal run boils down to: the terminal status
// and the material for its outcome memory.
type Outcome struct {
	Status     store.Status
	Summary    string
	FailedStep int // 0 when the goal completed
	Reason     string
}

// Executor runs one claimed goal's plan steps strictly in step_number
// order. Any step failure halts the remaining steps and fails the goal;
// there is no step-level retry.
type Executor struct {
	Store  *store.Store
	Runner *tools.Runner
	Logger *observability.Logger
	Status *observability.Status
}

func NewExecutor(st *store.Store, runner *tools.Runner, logger *observability.Logger, status *observability.Status) *Executor {
	return &Executor{Store: st, Runner: runner, Logger: logger, Status: status}
}

// Execute runs the plan and finalizes the goal. The returned error is a
// persistence failure only; every capability-level failure is absorbed
// into the Outcome.
func (e *Executor) Execute(ctx context.Context, goal store.Goal, steps []store.PlanStep) (Outcome, error) {
	// step_number → output, for resolving references in later steps
	outputs := make(map[int]string, len(steps))
	var summary string

	for _, step := range steps {
		e.Status.SetStepProgress(step.StepNumber, len(steps))

		if err := e.Store.UpdateStep(ctx, step.ID, store.StatusActive, nil); err != nil {
			return Outcome{}, fmt.Errorf("mark step %d active: %w", step.StepNumber, err)
		}

		result := e.dispatch(ctx, step, outputs)

		status := store.StatusCompleted
		if !result.Success {
			status = store.StatusFailed
		}
		stepResult := &store.StepResult{Success: result.Success, Output: result.Output, Error: result.Error}
		if err := e.Store.UpdateStep(ctx, step.ID, status, stepResult); err != nil {
			return Outcome{}, fmt.Errorf("persist step %d result: %w", step.StepNumber, err)
		}
		e.Logger.LogStep(goal.ID, step.StepNumber, string(step.ActionType), string(status), firstNonEmpty(result.Error, result.Output))

		if !result.Success {
			outcome := Outcome{
				Status:     store.StatusFailed,
				FailedStep: step.StepNumber,
				Reason:     result.Error,
			}
			if err := e.Store.FinalizeGoal(ctx, goal.ID, store.StatusFailed, time.Now().UTC()); err != nil {
				return Outcome{}, fmt.Errorf("finalize failed goal: %w", err)
			}
			return outcome, nil
		}

		outputs[step.StepNumber] = result.Output
		if step.ActionType == store.ActionReasoningComplete {
			summary = result.Output
		}
	}

	if summary == "" {
		// The planner guarantees a trailing REASONING_COMPLETE, so a plan
		// that ran out of steps without one cannot be called a success.
		outcome := Outcome{
			Status:     store.StatusFailed,
			FailedStep: len(steps),
			Reason:     "plan ended without REASONING_COMPLETE",
		}
		if err := e.Store.FinalizeGoal(ctx, goal.ID, store.StatusFailed, time.Now().UTC()); err != nil {
			return Outcome{}, fmt.Errorf("finalize failed goal: %w", err)
		}
		return outcome, nil
	}

	if err := e.Store.FinalizeGoal(ctx, goal.ID, store.StatusCompleted, time.Now().UTC()); err != nil {
		return Outcome{}, fmt.Errorf("finalize completed goal: %w", err)
	}
	return Outcome{Status: store.StatusCompleted, Summary: summary}, nil
}

// dispatch resolves the step's parameters and routes it to its capability.
// The switch is exhaustive over the closed action vocabulary; anything
// else is a dispatch failure.
func (e *Executor) dispatch(ctx context.Context, step store.PlanStep, outputs map[int]string) tools.Result {
	params, err := resolveParams(step.Params, outputs)
	if err != nil {
		return tools.Fail("%v", err)
	}

	switch step.ActionType {
	case store.ActionReadFile:
		return e.Runner.Files.Read(tools.ReadFileArgs{Filepath: params["filepath"]})
	case store.ActionWriteFile:
		return e.Runner.Files.Write(tools.WriteFileArgs{Filepath: params["filepath"], Content: params["content"]})
	case store.ActionExecuteShell:
		return e.Runner.Shell.Run(ctx, tools.ShellArgs{Command: params["command"]})
	case store.ActionReasoningComplete:
		return e.Runner.Complete(tools.CompleteArgs{FinalSummary: params["final_summary"]})
	default:
		return tools.Fail("unrecognized action type %q", step.ActionType)
	}
}

// resolveParams replaces step-output references with the referenced
// step's recorded output. A reference to a step that produced nothing is
// a failure, not a guess.
func resolveParams(params store.Params, outputs map[int]string) (map[string]string, error) {
	resolved := make(map[string]string, len(params))
	for key, v := range params {
		if !v.IsRef() {
			resolved[key] = v.Literal
			continue
		}
		out, ok := outputs[v.FromStep]
		if !ok {
			return nil, fmt.Errorf("parameter %q references step %d, which has no recorded output", key, v.FromStep)
		}
		resolved[key] = out
	}
	return resolved, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
