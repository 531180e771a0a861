package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the shared lifecycle enum for goals and plan steps.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusBlocked   Status = "BLOCKED"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ActionType is the closed vocabulary of executable step kinds.
type ActionType string

const (
	ActionReadFile          ActionType = "READ_FILE"
	ActionWriteFile         ActionType = "WRITE_FILE"
	ActionExecuteShell      ActionType = "EXECUTE_SHELL"
	ActionReasoningComplete ActionType = "REASONING_COMPLETE"
)

// RequiredParams returns the parameter keys a step of this type must carry.
func (a ActionType) RequiredParams() []string {
	switch a {
	case ActionReadFile:
		return []string{"filepath"}
	case ActionWriteFile:
		return []string{"filepath", "content"}
	case ActionExecuteShell:
		return []string{"command"}
	case ActionReasoningComplete:
		return []string{"final_summary"}
	}
	return nil
}

// Known reports whether a is part of the closed vocabulary.
func (a ActionType) Known() bool {
	return a.RequiredParams() != nil
}

// GoalCategory feeds the prioritizer's type weight.
type GoalCategory string

const (
	CategoryUser        GoalCategory = "user"
	CategoryMaintenance GoalCategory = "maintenance"
	CategoryExploration GoalCategory = "exploration"
)

// Goal is a unit of autonomous work. One goal owns an ordered plan of steps.
type Goal struct {
	ID               string
	Description      string
	Status           Status
	Priority         int // lower = more urgent, by convention
	Category         GoalCategory
	CreatedAt        time.Time
	CompletedAt      *time.Time
	TargetCompletion *time.Time
	BlockedReason    string
}

// ParamValue is one step parameter: either a literal string or a reference
// to the output of an earlier step, resolved by the executor before dispatch.
type ParamValue struct {
	Literal  string
	FromStep int // 1-based step number; 0 means literal
}

// Lit wraps a literal string parameter.
func Lit(s string) ParamValue { return ParamValue{Literal: s} }

// Ref builds a reference to step n's output.
func Ref(n int) ParamValue { return ParamValue{FromStep: n} }

// IsRef reports whether the value references an earlier step's output.
func (p ParamValue) IsRef() bool { return p.FromStep > 0 }

func (p ParamValue) MarshalJSON() ([]byte, error) {
	if p.IsRef() {
		return json.Marshal(map[string]int{"from_step": p.FromStep})
	}
	return json.Marshal(p.Literal)
}

func (p *ParamValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Literal = s
		p.FromStep = 0
		return nil
	}
	var ref struct {
		FromStep int `json:"from_step"`
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return fmt.Errorf("parameter must be a string or {\"from_step\": N}: %s", data)
	}
	if ref.FromStep < 1 {
		return fmt.Errorf("from_step must be >= 1, got %d", ref.FromStep)
	}
	p.Literal = ""
	p.FromStep = ref.FromStep
	return nil
}

// Params is the structured payload of one plan step.
type Params map[string]ParamValue

// StepResult is the outcome payload of an executed step.
type StepResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PlanStep is one typed, parameterized unit of execution within a goal's plan.
type PlanStep struct {
	ID         int64
	GoalID     string
	StepNumber int // 1-based, dense, strictly increasing per goal
	ActionType ActionType
	Params     Params
	Status     Status
	Result     *StepResult
	UpdatedAt  time.Time
}

// PlannedStep is the planner's output shape, before persistence.
type PlannedStep struct {
	ActionType ActionType `json:"action_type"`
	Params     Params     `json:"parameters"`
}

// goalTransitions is the allowed edge set for goals. Steps share the
// PENDING→ACTIVE→{COMPLETED,FAILED} core but are never blocked or cancelled
// individually.
var goalTransitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusBlocked, StatusCancelled, StatusFailed},
	StatusActive:  {StatusCompleted, StatusFailed, StatusCancelled},
	StatusBlocked: {StatusPending, StatusCancelled},
}

// CanTransition reports whether a goal may move from one status to another.
// PENDING→FAILED covers planning failures where no step ever runs.
func CanTransition(from, to Status) bool {
	for _, next := range goalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
