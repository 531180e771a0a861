package agent

import (
	"sort"
	"time"

	"github.com/rahul/questd/internal/store"
)

// Prioritizer computes a dynamic urgency score per goal. Higher score runs
// first. The declared priority uses the lower-is-more-urgent convention,
// so it enters the score inverted; deadline proximity, backlog age and
// goal category add on top.
type Prioritizer struct {
	Now func() time.Time
}

func NewPrioritizer() *Prioritizer {
	return &Prioritizer{Now: time.Now}
}

const (
	urgencyWeek    = 2.0
	urgencyThree   = 5.0
	urgencyOne     = 10.0
	ageBonusPerDay = 0.5
	ageBonusCap    = 3.0 // saturates around a week on the backlog
)

// Score returns the dynamic priority of a goal.
func (p *Prioritizer) Score(g store.Goal) float64 {
	now := p.Now()
	score := -float64(g.Priority)
	score += urgencyBonus(g.TargetCompletion, now)
	score += ageBonus(g.CreatedAt, now)
	score += typeWeight(g.Category)
	return score
}

// Rank orders goals best-first, with creation time as the tie-break so
// equal scores stay FIFO.
func (p *Prioritizer) Rank(goals []store.Goal) []store.Goal {
	ranked := make([]store.Goal, len(goals))
	copy(ranked, goals)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := p.Score(ranked[i]), p.Score(ranked[j])
		if si != sj {
			return si > sj
		}
		return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
	})
	return ranked
}

// urgencyBonus steps up as the deadline nears: ≤7 days, ≤3 days, ≤1 day.
// An overdue goal keeps the maximum bonus.
func urgencyBonus(target *time.Time, now time.Time) float64 {
	if target == nil {
		return 0
	}
	days := target.Sub(now).Hours() / 24
	switch {
	case days <= 1:
		return urgencyOne
	case days <= 3:
		return urgencyThree
	case days <= 7:
		return urgencyWeek
	default:
		return 0
	}
}

func ageBonus(createdAt time.Time, now time.Time) float64 {
	if createdAt.IsZero() || createdAt.After(now) {
		return 0
	}
	bonus := now.Sub(createdAt).Hours() / 24 * ageBonusPerDay
	if bonus > ageBonusCap {
		return ageBonusCap
	}
	return bonus
}

// typeWeight ranks user-facing work above maintenance, and both above
// exploratory goals.
func typeWeight(c store.GoalCategory) float64 {
	switch c {
	case store.CategoryUser:
		return 2
	case store.CategoryMaintenance:
		return 1
	default:
		return 0
	}
}
