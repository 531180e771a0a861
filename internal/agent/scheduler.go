package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rahul/questd/internal/governance"
	"github.com/rahul/questd/internal/observability"
	"github.com/rahul/questd/internal/store"
)

// Messenger delivers terminal-status notifications to the user.
type Messenger interface {
	Send(chatID string, text string) error
}

// Scheduler drives the two periodic cycles: the goal cycle (claim → plan →
// execute → record) and the slower reflection cycle. Cycle iterations are
// serialized, so at most one goal is ACTIVE at a time.
type Scheduler struct {
	Store       *store.Store
	Planner     *Planner
	Executor    *Executor
	Recorder    *OutcomeRecorder
	Reflector   *Reflector
	Policy      governance.Verifier
	Prioritizer *Prioritizer
	Logger      *observability.Logger
	Status      *observability.Status

	Gateway      Messenger // optional
	NotifyChatID string

	GoalInterval       time.Duration
	ReflectionInterval time.Duration
}

func (s *Scheduler) Start(ctx context.Context) {
	goalTicker := time.NewTicker(s.GoalInterval)
	defer goalTicker.Stop()
	reflectTicker := time.NewTicker(s.ReflectionInterval)
	defer reflectTicker.Stop()

	log.Println("Goal scheduler started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-goalTicker.C:
			s.RunGoalCycle(ctx)
		case <-reflectTicker.C:
			s.RunReflectionCycle(ctx)
		}
	}
}

// RunGoalCycle processes at most one goal to completion or failure.
// Persistence failures end the iteration early; the scheduler itself
// survives to run again on its next tick.
func (s *Scheduler) RunGoalCycle(ctx context.Context) {
	s.Status.Heartbeat()

	goal, ok := s.claimNext(ctx)
	if !ok {
		return
	}
	log.Printf("[cycle] claimed goal %s: %s", goal.ID, goal.Description)

	s.Status.SetPhase(observability.PhasePlanning, goal.Description)
	defer s.Status.SetPhase(observability.PhaseIdle, "")

	planned := s.Planner.CreatePlan(ctx, goal.ID, goal.Description)
	if len(planned) == 0 {
		s.failWithoutPlan(ctx, goal)
		return
	}
	s.Logger.LogPlan(goal.ID, len(planned))

	steps, err := s.Store.AppendSteps(ctx, goal.ID, planned)
	if err != nil {
		log.Printf("[cycle] could not persist plan for goal %s: %v", goal.ID, err)
		return
	}

	s.Status.SetPhase(observability.PhaseExecuting, goal.Description)
	outcome, err := s.Executor.Execute(ctx, goal, steps)
	if err != nil {
		log.Printf("[cycle] execution of goal %s aborted: %v", goal.ID, err)
		return
	}

	s.finish(ctx, goal, outcome)
}

// claimNext ranks the backlog by dynamic priority and claims the best
// eligible goal. Policy vetoes block a goal rather than failing it; a
// lost claim race just moves on to the next candidate.
func (s *Scheduler) claimNext(ctx context.Context) (store.Goal, bool) {
	pending, err := s.Store.ListPending(ctx)
	if err != nil {
		log.Printf("[cycle] backlog query failed: %v", err)
		return store.Goal{}, false
	}
	if len(pending) == 0 {
		return store.Goal{}, false
	}

	for _, goal := range s.Prioritizer.Rank(pending) {
		verdict, err := s.Policy.Verify(ctx, goal)
		if err != nil {
			log.Printf("[cycle] policy check failed for goal %s: %v", goal.ID, err)
			continue
		}
		s.Logger.LogPolicyCheck(goal.ID, verdict.Approved(), verdict.Reason)
		if !verdict.Approved() {
			if err := s.Store.MarkBlocked(ctx, goal.ID, verdict.Reason); err != nil {
				log.Printf("[cycle] could not block goal %s: %v", goal.ID, err)
			}
			continue
		}

		claimed, err := s.Store.Claim(ctx, goal.ID)
		if err != nil {
			log.Printf("[cycle] claim of goal %s failed: %v", goal.ID, err)
			return store.Goal{}, false
		}
		if claimed {
			goal.Status = store.StatusActive
			return goal, true
		}
		// lost the race for this one; try the next candidate
	}
	return store.Goal{}, false
}

// failWithoutPlan handles the planning-failure path: the goal moves
// PENDING-claimed-ACTIVE→FAILED with zero step rows ever created.
func (s *Scheduler) failWithoutPlan(ctx context.Context, goal store.Goal) {
	outcome := Outcome{
		Status: store.StatusFailed,
		Reason: "failed to create a valid plan",
	}
	if err := s.Store.FinalizeGoal(ctx, goal.ID, store.StatusFailed, time.Now().UTC()); err != nil {
		log.Printf("[cycle] could not finalize unplannable goal %s: %v", goal.ID, err)
		return
	}
	s.finish(ctx, goal, outcome)
}

func (s *Scheduler) finish(ctx context.Context, goal store.Goal, outcome Outcome) {
	s.Logger.LogGoal(goal.ID, string(outcome.Status), firstNonEmpty(outcome.Summary, outcome.Reason))

	if _, err := s.Recorder.RecordOutcome(ctx, goal, outcome); err != nil {
		log.Printf("[cycle] could not record outcome for goal %s: %v", goal.ID, err)
	}

	if s.Gateway != nil && s.NotifyChatID != "" {
		text := fmt.Sprintf("🎯 *Goal %s*\n%s\n\n%s",
			outcome.Status, goal.Description, firstNonEmpty(outcome.Summary, outcome.Reason))
		if err := s.Gateway.Send(s.NotifyChatID, text); err != nil {
			log.Printf("[cycle] notification failed: %v", err)
		}
	}
}

// RunReflectionCycle runs one reflection pass.
func (s *Scheduler) RunReflectionCycle(ctx context.Context) {
	s.Status.SetPhase(observability.PhaseReflecting, "")
	defer s.Status.SetPhase(observability.PhaseIdle, "")

	if err := s.Reflector.Reflect(ctx); err != nil {
		log.Printf("[reflect] cycle failed: %v", err)
	}
}
