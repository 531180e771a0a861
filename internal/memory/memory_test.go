package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "memories.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndQueryMemory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateMemory(ctx, KindOutcome, "Goal COMPLETED: docs", "created",
		map[string]any{"goal_id": "g1", "status": "COMPLETED"})
	if err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a memory id")
	}

	memories, err := s.QueryMemories(ctx, Filter{Kind: KindOutcome})
	if err != nil {
		t.Fatalf("QueryMemories failed: %v", err)
	}
	if len(memories) != 1 {
		t.Fatalf("expected 1 memory, got %d", len(memories))
	}
	m := memories[0]
	if m.ID != id || m.Content != "created" {
		t.Errorf("memory did not round-trip: %+v", m)
	}
	if m.Metadata["goal_id"] != "g1" {
		t.Errorf("metadata did not round-trip: %+v", m.Metadata)
	}
}

func TestQueryMemoriesFiltersByKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateMemory(ctx, KindOutcome, "o", "outcome content", nil)
	s.CreateMemory(ctx, KindBelief, "b", "belief content", nil)

	beliefs, err := s.QueryMemories(ctx, Filter{Kind: KindBelief})
	if err != nil {
		t.Fatal(err)
	}
	if len(beliefs) != 1 || beliefs[0].Kind != KindBelief {
		t.Errorf("kind filter failed: %+v", beliefs)
	}

	all, _ := s.QueryMemories(ctx, Filter{})
	if len(all) != 2 {
		t.Errorf("expected 2 memories without a kind filter, got %d", len(all))
	}
}

func TestQueryMemoriesRespectsSinceAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.CreateMemory(ctx, KindOutcome, "o", "content", nil); err != nil {
			t.Fatal(err)
		}
	}

	limited, err := s.QueryMemories(ctx, Filter{Kind: KindOutcome, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 memories with limit, got %d", len(limited))
	}

	none, err := s.QueryMemories(ctx, Filter{Since: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("expected no memories newer than the future, got %d", len(none))
	}
}

func TestQueryMemoriesOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, _ := s.CreateMemory(ctx, KindOutcome, "first", "1", nil)
	time.Sleep(2 * time.Millisecond)
	second, _ := s.CreateMemory(ctx, KindOutcome, "second", "2", nil)

	memories, err := s.QueryMemories(ctx, Filter{Kind: KindOutcome})
	if err != nil {
		t.Fatal(err)
	}
	if len(memories) != 2 {
		t.Fatalf("expected 2 memories, got %d", len(memories))
	}
	if memories[0].ID != second || memories[1].ID != first {
		t.Errorf("expected newest first, got %s then %s", memories[0].ID, memories[1].ID)
	}
}
