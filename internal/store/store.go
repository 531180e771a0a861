package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
)

// Store is the single source of truth for goals and their plan steps.
// Every transition commits immediately; there is no batching.
type Store struct {
	DB *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS goals (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			priority INTEGER NOT NULL DEFAULT 5,
			category TEXT NOT NULL DEFAULT 'exploration',
			created_at TEXT NOT NULL,
			completed_at TEXT,
			target_completion TEXT,
			blocked_reason TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS plan_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			goal_id TEXT NOT NULL REFERENCES goals(id) ON DELETE CASCADE,
			step_number INTEGER NOT NULL,
			action_type TEXT NOT NULL,
			params TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			result TEXT,
			updated_at TEXT NOT NULL,
			UNIQUE(goal_id, step_number)
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return nil, err
		}
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// GoalDraft carries the caller-supplied fields of a new goal.
type GoalDraft struct {
	Description      string
	Priority         int
	Category         GoalCategory
	TargetCompletion *time.Time
}

func (s *Store) CreateGoal(ctx context.Context, draft GoalDraft) (Goal, error) {
	if draft.Description == "" {
		return Goal{}, fmt.Errorf("goal description is required")
	}
	if draft.Category == "" {
		draft.Category = CategoryExploration
	}
	g := Goal{
		ID:               uuid.NewString(),
		Description:      draft.Description,
		Status:           StatusPending,
		Priority:         draft.Priority,
		Category:         draft.Category,
		CreatedAt:        time.Now().UTC(),
		TargetCompletion: draft.TargetCompletion,
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO goals (id, description, status, priority, category, created_at, target_completion)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Description, string(g.Status), g.Priority, string(g.Category),
		formatTime(g.CreatedAt), nullableTime(g.TargetCompletion))
	if err != nil {
		return Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

// ListPending returns every PENDING goal. The caller ranks them; claiming
// stays a separate compare-and-set so concurrent schedulers cannot both
// win the same goal.
func (s *Store) ListPending(ctx context.Context) ([]Goal, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, description, status, priority, category, created_at, completed_at, target_completion, blocked_reason
		 FROM goals WHERE status = ? ORDER BY created_at`, string(StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGoals(rows)
}

// Claim atomically moves one goal PENDING→ACTIVE. It reports false when the
// goal was no longer PENDING, which is how a lost race shows up.
func (s *Store) Claim(ctx context.Context, goalID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE goals SET status = ? WHERE id = ? AND status = ?`,
		string(StatusActive), goalID, string(StatusPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkBlocked records a policy veto. Only a PENDING goal can become BLOCKED.
func (s *Store) MarkBlocked(ctx context.Context, goalID, reason string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE goals SET status = ?, blocked_reason = ? WHERE id = ? AND status = ?`,
		string(StatusBlocked), reason, goalID, string(StatusPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("[store] ignoring block of goal %s: not PENDING", goalID)
	}
	return nil
}

// Unblock returns a BLOCKED goal to the backlog.
func (s *Store) Unblock(ctx context.Context, goalID string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE goals SET status = ?, blocked_reason = '' WHERE id = ? AND status = ?`,
		string(StatusPending), goalID, string(StatusBlocked))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("[store] ignoring unblock of goal %s: not BLOCKED", goalID)
	}
	return nil
}

// CancelGoal handles the explicit external cancellation request. Terminal
// goals are immutable, so anything already finished is a logged no-op.
func (s *Store) CancelGoal(ctx context.Context, goalID string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE goals SET status = ?, completed_at = ? WHERE id = ? AND status IN (?, ?, ?)`,
		string(StatusCancelled), formatTime(time.Now().UTC()), goalID,
		string(StatusPending), string(StatusActive), string(StatusBlocked))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("[store] ignoring cancel of goal %s: already terminal or unknown", goalID)
	}
	return nil
}

// AppendSteps persists a freshly produced plan as steps numbered 1..N.
// An empty plan is a planning failure and never touches the database.
func (s *Store) AppendSteps(ctx context.Context, goalID string, planned []PlannedStep) ([]PlanStep, error) {
	if len(planned) == 0 {
		return nil, fmt.Errorf("refusing to persist an empty plan for goal %s", goalID)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	steps := make([]PlanStep, 0, len(planned))
	for i, p := range planned {
		payload, err := json.Marshal(p.Params)
		if err != nil {
			return nil, fmt.Errorf("marshal params for step %d: %w", i+1, err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO plan_steps (goal_id, step_number, action_type, params, status, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			goalID, i+1, string(p.ActionType), string(payload), string(StatusPending), formatTime(now))
		if err != nil {
			return nil, fmt.Errorf("insert step %d: %w", i+1, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		steps = append(steps, PlanStep{
			ID:         id,
			GoalID:     goalID,
			StepNumber: i + 1,
			ActionType: p.ActionType,
			Params:     p.Params,
			Status:     StatusPending,
			UpdatedAt:  now,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return steps, nil
}

// UpdateStep commits one step's status and result immediately, so goal
// progress is observable mid-run. Steps share the goal transition table;
// an illegal edge is rejected as a logged no-op, which keeps terminal
// steps immutable.
func (s *Store) UpdateStep(ctx context.Context, stepID int64, status Status, result *StepResult) error {
	var current string
	err := s.DB.QueryRowContext(ctx,
		`SELECT status FROM plan_steps WHERE id = ?`, stepID).Scan(&current)
	if err != nil {
		return fmt.Errorf("read step %d status: %w", stepID, err)
	}
	if !CanTransition(Status(current), status) {
		log.Printf("[store] rejecting transition %s→%s for step %d", current, status, stepID)
		return nil
	}

	var payload sql.NullString
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal step result: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}
	_, err = s.DB.ExecContext(ctx,
		`UPDATE plan_steps SET status = ?, result = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(status), payload, formatTime(time.Now().UTC()), stepID, current)
	return err
}

// FinalizeGoal moves a goal to a terminal (or blocked-adjacent) status.
// Illegal edges are rejected as logged no-ops, not errors, per the
// transition table.
func (s *Store) FinalizeGoal(ctx context.Context, goalID string, status Status, completedAt time.Time) error {
	g, err := s.GetGoal(ctx, goalID)
	if err != nil {
		return err
	}
	if !CanTransition(g.Status, status) {
		log.Printf("[store] rejecting transition %s→%s for goal %s", g.Status, status, goalID)
		return nil
	}
	var done sql.NullString
	if status.Terminal() {
		done = sql.NullString{String: formatTime(completedAt.UTC()), Valid: true}
	}
	_, err = s.DB.ExecContext(ctx,
		`UPDATE goals SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		string(status), done, goalID, string(g.Status))
	return err
}

func (s *Store) GetGoal(ctx context.Context, goalID string) (Goal, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, description, status, priority, category, created_at, completed_at, target_completion, blocked_reason
		 FROM goals WHERE id = ?`, goalID)
	return scanGoal(row)
}

// GetSteps returns a goal's plan in step order.
func (s *Store) GetSteps(ctx context.Context, goalID string) ([]PlanStep, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, goal_id, step_number, action_type, params, status, result, updated_at
		 FROM plan_steps WHERE goal_id = ? ORDER BY step_number`, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []PlanStep
	for rows.Next() {
		var (
			st        PlanStep
			action    string
			status    string
			params    string
			result    sql.NullString
			updatedAt string
		)
		if err := rows.Scan(&st.ID, &st.GoalID, &st.StepNumber, &action, &params, &status, &result, &updatedAt); err != nil {
			return nil, err
		}
		st.ActionType = ActionType(action)
		st.Status = Status(status)
		if err := json.Unmarshal([]byte(params), &st.Params); err != nil {
			return nil, fmt.Errorf("decode params of step %d: %w", st.StepNumber, err)
		}
		if result.Valid {
			var r StepResult
			if err := json.Unmarshal([]byte(result.String), &r); err != nil {
				return nil, fmt.Errorf("decode result of step %d: %w", st.StepNumber, err)
			}
			st.Result = &r
		}
		st.UpdatedAt, _ = parseTime(updatedAt)
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// CountByStatus powers the live status line.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM goals GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (Goal, error) {
	var (
		g          Goal
		status     string
		category   string
		createdAt  string
		completed  sql.NullString
		target     sql.NullString
		blockedWhy string
	)
	if err := row.Scan(&g.ID, &g.Description, &status, &g.Priority, &category,
		&createdAt, &completed, &target, &blockedWhy); err != nil {
		return Goal{}, err
	}
	g.Status = Status(status)
	g.Category = GoalCategory(category)
	g.BlockedReason = blockedWhy
	g.CreatedAt, _ = parseTime(createdAt)
	if completed.Valid {
		if t, err := parseTime(completed.String); err == nil {
			g.CompletedAt = &t
		}
	}
	if target.Valid {
		if t, err := parseTime(target.String); err == nil {
			g.TargetCompletion = &t
		}
	}
	return g, nil
}

func scanGoals(rows *sql.Rows) ([]Goal, error) {
	var goals []Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
