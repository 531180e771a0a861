package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/rahul/questd/internal/memory"
	"github.com/rahul/questd/internal/observability"
	"github.com/rahul/questd/internal/store"
	"github.com/tmc/langchaingo/llms"
)

// plannerTemplate enumerates the closed action vocabulary. The model must
// answer with nothing but the JSON array.
const plannerTemplate = `You are the planning module of an autonomous agent. Decompose the goal below into an ordered JSON array of executable steps.

Allowed action types and their required parameters:
- READ_FILE        {"filepath": "<path relative to the project root>"}
- WRITE_FILE       {"filepath": "<relative path>", "content": "<file content>"}
- EXECUTE_SHELL    {"command": "<shell command>"}
- REASONING_COMPLETE {"final_summary": "<one-sentence summary of what was accomplished>"}

Rules:
- Respond with ONLY the JSON array, no prose, no markdown fences.
- Each element: {"action_type": "...", "parameters": {...}}.
- Every filepath must be relative to the project root. Never use absolute paths or "..".
- To feed an earlier step's output into a parameter, use {"from_step": N} as the value, where N is the 1-based index of that step.
- The LAST step must always be REASONING_COMPLETE.

Example:
[
  {"action_type": "READ_FILE", "parameters": {"filepath": "notes/todo.md"}},
  {"action_type": "WRITE_FILE", "parameters": {"filepath": "notes/copy.md", "content": {"from_step": 1}}},
  {"action_type": "REASONING_COMPLETE", "parameters": {"final_summary": "Copied the todo list."}}
]`

// MemoryReader is the slice of the memory collaborator the planner needs:
// beliefs synthesized by past reflection runs.
type MemoryReader interface {
	QueryMemories(ctx context.Context, f memory.Filter) ([]memory.Memory, error)
}

// Planner turns a goal description into an ordered list of typed steps.
// Text generation is delegated to the llms.Model collaborator; everything
// the model returns is parsed defensively and rejected rather than
// guessed at.
type Planner struct {
	Model       llms.Model
	Memory      MemoryReader
	Logger      *observability.Logger
	Temperature float64
	MaxBeliefs  int
}

func NewPlanner(model llms.Model, mem MemoryReader, logger *observability.Logger) *Planner {
	return &Planner{
		Model:       model,
		Memory:      mem,
		Logger:      logger,
		Temperature: 0.1, // bias toward well-formed structured output
		MaxBeliefs:  5,
	}
}

// CreatePlan returns the ordered steps for a goal, or nil when no valid
// plan could be produced. A nil plan is the planning-failure signal; the
// reason only goes to the log.
func (p *Planner) CreatePlan(ctx context.Context, goalID, description string) []store.PlannedStep {
	prompt := p.buildPrompt(ctx, description)

	response, err := llms.GenerateFromSinglePrompt(ctx, p.Model, prompt,
		llms.WithTemperature(p.Temperature))
	if err != nil {
		log.Printf("[planner] generation failed for goal %s: %v", goalID, err)
		return nil
	}
	p.Logger.LogLLM(goalID, prompt, response)

	steps, err := ParsePlan(response)
	if err != nil {
		log.Printf("[planner] rejecting plan for goal %s: %v", goalID, err)
		return nil
	}
	return steps
}

func (p *Planner) buildPrompt(ctx context.Context, description string) string {
	var sb strings.Builder
	sb.WriteString(plannerTemplate)

	beliefs, err := p.Memory.QueryMemories(ctx, memory.Filter{
		Kind:  memory.KindBelief,
		Limit: p.MaxBeliefs,
	})
	if err != nil {
		log.Printf("[planner] belief lookup failed: %v", err)
	}
	if len(beliefs) > 0 {
		sb.WriteString("\n\nLessons from previous goals:\n")
		for _, b := range beliefs {
			sb.WriteString("- " + b.Content + "\n")
		}
	}

	sb.WriteString("\n\nGoal: " + description)
	return sb.String()
}

// ParsePlan validates the model's response into planned steps. It
// tolerates a fenced payload but nothing looser than that: any missing
// field, unknown action, unsafe path, or dangling step reference rejects
// the whole plan.
func ParsePlan(response string) ([]store.PlannedStep, error) {
	payload := stripFences(response)
	if payload == "" {
		return nil, fmt.Errorf("empty response")
	}

	var steps []store.PlannedStep
	if err := json.Unmarshal([]byte(payload), &steps); err != nil {
		return nil, fmt.Errorf("not a JSON step array: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("plan has zero steps")
	}

	for i, s := range steps {
		n := i + 1
		if !s.ActionType.Known() {
			return nil, fmt.Errorf("step %d: unknown action type %q", n, s.ActionType)
		}
		for _, key := range s.ActionType.RequiredParams() {
			v, ok := s.Params[key]
			if !ok {
				return nil, fmt.Errorf("step %d: missing required parameter %q", n, key)
			}
			if v.IsRef() {
				if v.FromStep >= n {
					return nil, fmt.Errorf("step %d: parameter %q references step %d, which has not run yet", n, key, v.FromStep)
				}
				continue
			}
			if v.Literal == "" {
				return nil, fmt.Errorf("step %d: required parameter %q is empty", n, key)
			}
			if key == "filepath" && !safeRelativePath(v.Literal) {
				return nil, fmt.Errorf("step %d: filepath %q is not relative to the project root", n, v.Literal)
			}
		}
		if s.ActionType == store.ActionReasoningComplete && n != len(steps) {
			return nil, fmt.Errorf("step %d: REASONING_COMPLETE must be the last step", n)
		}
	}

	if steps[len(steps)-1].ActionType != store.ActionReasoningComplete {
		return nil, fmt.Errorf("plan does not end with REASONING_COMPLETE")
	}
	return steps, nil
}

// stripFences unwraps a ```json ... ``` (or bare ```) block if the model
// ignored the no-fences instruction, and otherwise trims to the outermost
// JSON array.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimSpace(s)
	}
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func safeRelativePath(path string) bool {
	if filepath.IsAbs(path) {
		return false
	}
	clean := filepath.Clean(path)
	return clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
}
