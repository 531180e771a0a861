package agent

import (
	"testing"
	"time"

	"github.com/rahul/questd/internal/store"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func testPrioritizer() *Prioritizer {
	return &Prioritizer{Now: fixedNow}
}

// Scenario: priority 5 vs priority 1, no deadlines → priority 1 ranks first.
func TestRankPrefersLowerDeclaredPriority(t *testing.T) {
	p := testPrioritizer()
	now := fixedNow()

	goals := []store.Goal{
		{ID: "a", Priority: 5, CreatedAt: now},
		{ID: "b", Priority: 1, CreatedAt: now},
	}
	ranked := p.Rank(goals)
	if ranked[0].ID != "b" {
		t.Errorf("expected the priority-1 goal first, got %s", ranked[0].ID)
	}
}

func TestUrgencyBonusStepsUpAtThresholds(t *testing.T) {
	p := testPrioritizer()
	now := fixedNow()

	deadline := func(days float64) *time.Time {
		d := now.Add(time.Duration(days * 24 * float64(time.Hour)))
		return &d
	}

	base := store.Goal{Priority: 5, CreatedAt: now}
	score := func(target *time.Time) float64 {
		g := base
		g.TargetCompletion = target
		return p.Score(g)
	}

	far := score(deadline(30))
	week := score(deadline(6))
	three := score(deadline(2))
	one := score(deadline(0.5))
	overdue := score(deadline(-1))

	if !(far < week && week < three && three < one) {
		t.Errorf("urgency must strictly increase across thresholds: %v %v %v %v", far, week, three, one)
	}
	if overdue != one {
		t.Errorf("an overdue goal keeps the maximum bonus: %v vs %v", overdue, one)
	}
	if score(nil) != far {
		t.Errorf("no deadline should score like a distant one")
	}
}

// Monotonic: moving the deadline closer never lowers the score.
func TestUrgencyIsMonotonicInDeadline(t *testing.T) {
	p := testPrioritizer()
	now := fixedNow()
	base := store.Goal{Priority: 5, CreatedAt: now}

	prev := -1e9
	for days := 14.0; days >= -2; days -= 0.5 {
		d := now.Add(time.Duration(days * 24 * float64(time.Hour)))
		g := base
		g.TargetCompletion = &d
		s := p.Score(g)
		if s < prev {
			t.Fatalf("score dropped as deadline approached: %v days → %v (was %v)", days, s, prev)
		}
		prev = s
	}
}

func TestAgeBonusSaturates(t *testing.T) {
	p := testPrioritizer()
	now := fixedNow()

	fresh := p.Score(store.Goal{Priority: 5, CreatedAt: now})
	threeDays := p.Score(store.Goal{Priority: 5, CreatedAt: now.Add(-3 * 24 * time.Hour)})
	oneWeek := p.Score(store.Goal{Priority: 5, CreatedAt: now.Add(-7 * 24 * time.Hour)})
	oneMonth := p.Score(store.Goal{Priority: 5, CreatedAt: now.Add(-30 * 24 * time.Hour)})

	if !(fresh < threeDays && threeDays < oneWeek) {
		t.Errorf("age bonus should grow: %v %v %v", fresh, threeDays, oneWeek)
	}
	if oneWeek != oneMonth {
		t.Errorf("age bonus should saturate around a week: %v vs %v", oneWeek, oneMonth)
	}
}

func TestTypeWeightRanksUserWorkFirst(t *testing.T) {
	p := testPrioritizer()
	now := fixedNow()

	user := p.Score(store.Goal{Priority: 5, Category: store.CategoryUser, CreatedAt: now})
	maint := p.Score(store.Goal{Priority: 5, Category: store.CategoryMaintenance, CreatedAt: now})
	explore := p.Score(store.Goal{Priority: 5, Category: store.CategoryExploration, CreatedAt: now})

	if !(user > maint && maint > explore) {
		t.Errorf("expected user > maintenance > exploration, got %v %v %v", user, maint, explore)
	}
}

func TestRankBreaksTiesByAge(t *testing.T) {
	p := testPrioritizer()
	now := fixedNow()

	goals := []store.Goal{
		{ID: "younger", Priority: 5, CreatedAt: now},
		{ID: "older", Priority: 5, CreatedAt: now.Add(-time.Minute)},
	}
	ranked := p.Rank(goals)
	if ranked[0].ID != "older" {
		t.Errorf("expected FIFO tie-break, got %s first", ranked[0].ID)
	}
}
