package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rahul/questd/internal/memory"
	"github.com/rahul/questd/internal/observability"
)

// Pattern is one recurring signal mined out of recent outcome memories,
// with provenance back to the outcomes that produced it.
type Pattern struct {
	Lesson    string
	SourceIDs []string
}

// PatternDetector is the pluggable reflection heuristic: given N outcome
// memories, produce 0..K patterns. No other side effects.
type PatternDetector interface {
	Detect(outcomes []memory.Memory) []Pattern
}

// ReflectionMemory is the full memory surface the reflector needs.
type ReflectionMemory interface {
	MemoryReader
	MemoryWriter
}

// Reflector is the lower-frequency cycle that turns recent outcomes into
// belief memories for future planning.
type Reflector struct {
	Memory      ReflectionMemory
	Detector    PatternDetector
	Logger      *observability.Logger
	Window      time.Duration
	MaxOutcomes int

	lastRun time.Time
}

func NewReflector(mem ReflectionMemory, detector PatternDetector, logger *observability.Logger) *Reflector {
	return &Reflector{
		Memory:      mem,
		Detector:    detector,
		Logger:      logger,
		Window:      24 * time.Hour,
		MaxOutcomes: 50,
	}
}

// Reflect scans outcome memories written since the previous run and writes
// one belief memory per detected pattern.
func (r *Reflector) Reflect(ctx context.Context) error {
	since := r.lastRun
	if since.IsZero() {
		since = time.Now().Add(-r.Window)
	}

	outcomes, err := r.Memory.QueryMemories(ctx, memory.Filter{
		Kind:  memory.KindOutcome,
		Since: since,
		Limit: r.MaxOutcomes,
	})
	if err != nil {
		return fmt.Errorf("query outcomes: %w", err)
	}
	r.lastRun = time.Now()

	patterns := r.Detector.Detect(outcomes)
	for _, p := range patterns {
		sources := make([]any, len(p.SourceIDs))
		for i, id := range p.SourceIDs {
			sources[i] = id
		}
		if _, err := r.Memory.CreateMemory(ctx, memory.KindBelief, truncate(p.Lesson, 80), p.Lesson,
			map[string]any{"source_outcomes": sources}); err != nil {
			log.Printf("[reflect] failed to write belief: %v", err)
		}
	}

	r.Logger.LogReflection(len(outcomes), len(patterns))
	return nil
}

// KeywordDetector is the reference heuristic: it buckets failed outcomes
// by a coarse failure keyword and reports every bucket that recurs.
type KeywordDetector struct {
	MinOccurrences int
}

func NewKeywordDetector() *KeywordDetector {
	return &KeywordDetector{MinOccurrences: 2}
}

var failureKeywords = []string{
	"permission denied",
	"blocked by safety policy",
	"failed to create a valid plan",
	"command failed",
	"failed to read",
	"failed to write",
	"unrecognized action",
	"no recorded output",
}

func (d *KeywordDetector) Detect(outcomes []memory.Memory) []Pattern {
	buckets := make(map[string][]string)
	var order []string

	for _, o := range outcomes {
		status, _ := o.Metadata["status"].(string)
		if status != "FAILED" {
			continue
		}
		key := classifyFailure(o.Content)
		if key == "" {
			continue
		}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], o.ID)
	}

	var patterns []Pattern
	for _, key := range order {
		ids := buckets[key]
		if len(ids) < d.MinOccurrences {
			continue
		}
		patterns = append(patterns, Pattern{
			Lesson:    fmt.Sprintf("%d recent goals failed with \"%s\"; plan around this failure mode.", len(ids), key),
			SourceIDs: ids,
		})
	}
	return patterns
}

func classifyFailure(content string) string {
	lower := strings.ToLower(content)
	for _, kw := range failureKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}
