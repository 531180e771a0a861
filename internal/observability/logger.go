package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan        EventType = "plan"
	EventTypeStep        EventType = "step"
	EventTypeGoal        EventType = "goal"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeReflection  EventType = "reflection"
	EventTypeLLM         EventType = "llm"
	EventTypeHeartbeat   EventType = "heartbeat"
)

// Event represents a structured log entry.
type Event struct {
	Type       EventType `json:"type"`
	GoalID     string    `json:"goal_id,omitempty"`
	StepNumber int       `json:"step_number,omitempty"`
	Data       any       `json:"data"`
	Timestamp  time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(goalID string, stepCount int) {
	l.Log(Event{
		Type:   EventTypePlan,
		GoalID: goalID,
		Data:   map[string]any{"steps": stepCount},
	})
}

func (l *Logger) LogStep(goalID string, stepNumber int, action, status, detail string) {
	l.Log(Event{
		Type:       EventTypeStep,
		GoalID:     goalID,
		StepNumber: stepNumber,
		Data: map[string]string{
			"action": action,
			"status": status,
			"detail": detail,
		},
	})
}

func (l *Logger) LogGoal(goalID, status, summary string) {
	l.Log(Event{
		Type:   EventTypeGoal,
		GoalID: goalID,
		Data: map[string]string{
			"status":  status,
			"summary": summary,
		},
	})
}

func (l *Logger) LogPolicyCheck(goalID string, approved bool, reason string) {
	l.Log(Event{
		Type:   EventTypePolicyCheck,
		GoalID: goalID,
		Data: map[string]any{
			"approved": approved,
			"reason":   reason,
		},
	})
}

func (l *Logger) LogReflection(outcomes, beliefs int) {
	l.Log(Event{
		Type: EventTypeReflection,
		Data: map[string]int{
			"outcomes_scanned": outcomes,
			"beliefs_written":  beliefs,
		},
	})
}

func (l *Logger) LogLLM(goalID string, prompt any, response string) {
	l.Log(Event{
		Type:   EventTypeLLM,
		GoalID: goalID,
		Data: map[string]any{
			"prompt":   prompt,
			"response": response,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}
