package observability

import (
	"sync"
	"time"
)

// Phase describes what the engine is currently doing.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhasePlanning   Phase = "PLANNING"
	PhaseExecuting  Phase = "EXECUTING"
	PhaseReflecting Phase = "REFLECTING"
)

// Status is the live view of the engine, shared between the scheduler and
// the terminal dashboard. One instance is built in main and passed in
// explicitly.
type Status struct {
	mu            sync.RWMutex
	phase         Phase
	activeGoal    string
	currentStep   int
	totalSteps    int
	lastHeartbeat time.Time
}

func NewStatus() *Status {
	return &Status{
		phase:         PhaseIdle,
		lastHeartbeat: time.Now(),
	}
}

// SetPhase updates the engine phase and the goal it concerns.
func (s *Status) SetPhase(phase Phase, goalDescription string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.activeGoal = goalDescription
	if phase == PhaseIdle {
		s.activeGoal = ""
		s.currentStep = 0
		s.totalSteps = 0
	}
}

// SetStepProgress records the in-flight step position.
func (s *Status) SetStepProgress(current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentStep = current
	s.totalSteps = total
}

// Snapshot retrieves a consistent copy of the status.
func (s *Status) Snapshot() (Phase, string, int, int, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase, s.activeGoal, s.currentStep, s.totalSteps, s.lastHeartbeat
}

// Heartbeat updates the last heartbeat time.
func (s *Status) Heartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeartbeat = time.Now()
}
