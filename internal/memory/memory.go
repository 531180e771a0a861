package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
)

// Memory kinds written by the goal engine.
const (
	KindOutcome = "outcome"
	KindBelief  = "belief"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Memory is one persisted record: an outcome summary or a synthesized belief.
type Memory struct {
	ID        string
	Kind      string
	Title     string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Filter narrows a QueryMemories call. Zero values are ignored.
type Filter struct {
	Kind  string
	Since time.Time
	Limit int
}

// Store is the memory collaborator: outcomes in, beliefs out.
type Store struct {
	DB *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	);`)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) CreateMemory(ctx context.Context, kind, title, content string, metadata map[string]any) (string, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	id := uuid.NewString()
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO memories (id, kind, title, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, kind, title, content, string(meta), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}
	return id, nil
}

func (s *Store) QueryMemories(ctx context.Context, f Filter) ([]Memory, error) {
	query := `SELECT id, kind, title, content, metadata, created_at FROM memories WHERE 1=1`
	var args []any
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	if !f.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		var (
			m         Memory
			meta      string
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.Kind, &m.Title, &m.Content, &meta, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of memory %s: %w", m.ID, err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
