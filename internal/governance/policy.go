package governance

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rahul/questd/internal/store"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// Approved is a convenience view of the verify contract: (approved, reason).
func (r Result) Approved() bool { return r.Effect == EffectAllow }

// Verifier can veto a goal's activation before the scheduler claims it.
// A vetoed goal is blocked, never failed.
type Verifier interface {
	Verify(ctx context.Context, goal store.Goal) (Result, error)
}

// DefaultPolicyEngine is a basic Verifier: deny-by-pattern over the goal
// description, deny-by-category, allow everything else. The real scoring
// or classification logic is a product decision that plugs in behind the
// Verifier interface.
type DefaultPolicyEngine struct {
	DeniedCategories map[store.GoalCategory]bool
	DeniedRegex      []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedCategories: make(map[store.GoalCategory]bool),
		DeniedRegex:      make([]*regexp.Regexp, 0),
	}
}

func (e *DefaultPolicyEngine) DenyCategory(c store.GoalCategory) {
	e.DeniedCategories[c] = true
}

func (e *DefaultPolicyEngine) DenyDescription(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Verify(ctx context.Context, goal store.Goal) (Result, error) {
	if e.DeniedCategories[goal.Category] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("goal category '%s' is restricted by system policy", goal.Category),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(goal.Description) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("goal description matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "approved by default policy",
	}, nil
}
