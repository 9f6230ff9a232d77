package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lifesync/lifesync/internal/model"
)

var (
	ErrInvalidCategory = errors.New("invalid goal category")
	ErrInvalidTarget   = errors.New("goal target must be positive")
	ErrEmptyTitle      = errors.New("goal title is required")
)

type GoalStore struct {
	db *sql.DB
}

func NewGoalStore(db *sql.DB) *GoalStore {
	return &GoalStore{db: db}
}

const goalCols = `id, user_id, title, description, category, target_value, current_value, completed, created_at, updated_at`

func scanGoal(scanner interface{ Scan(...any) error }) (*model.Goal, error) {
	var g model.Goal
	var completed int
	err := scanner.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &g.Category,
		&g.TargetValue, &g.CurrentValue, &completed, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Completed = completed != 0
	return &g, nil
}

func (s *GoalStore) Create(ctx context.Context, userID int64, title, description, category string, targetValue float64) (*model.Goal, error) {
	switch {
	case title == "":
		return nil, ErrEmptyTitle
	case !model.ValidCategory(category):
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	case targetValue <= 0:
		return nil, ErrInvalidTarget
	}
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (user_id, title, description, category, target_value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, title, description, category, targetValue, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id, userID)
}

// GetByID returns the goal owned by userID, or nil if there is none.
func (s *GoalStore) GetByID(ctx context.Context, id, userID int64) (*model.Goal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+goalCols+` FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (s *GoalStore) ListByUser(ctx context.Context, userID int64) ([]model.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+goalCols+` FROM goals WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

// ListCreatedSince returns the user's goals in category created at or after since.
func (s *GoalStore) ListCreatedSince(ctx context.Context, userID int64, category string, since time.Time) ([]model.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+goalCols+` FROM goals WHERE user_id = ? AND category = ? AND created_at >= ? ORDER BY created_at ASC`,
		userID, category, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list goals since: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

func scanGoals(rows *sql.Rows) ([]model.Goal, error) {
	var goals []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

// LogProgress records a progress value for a goal, sets the goal's current
// value and marks it completed once the value reaches the target. A goal that
// is already completed stays completed.
func (s *GoalStore) LogProgress(ctx context.Context, goalID, userID int64, value float64, notes string) (*model.Goal, *model.ProgressLog, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	g, err := scanGoal(tx.QueryRowContext(ctx, `SELECT `+goalCols+` FROM goals WHERE id = ? AND user_id = ?`, goalID, userID))
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get goal: %w", err)
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO progress_logs (goal_id, user_id, value, notes, logged_at) VALUES (?, ?, ?, ?, ?)`,
		goalID, userID, value, notes, now,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert progress log: %w", err)
	}
	logID, err := result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("last insert id: %w", err)
	}

	g.CurrentValue = value
	if g.CurrentValue >= g.TargetValue {
		g.Completed = true
	}
	g.UpdatedAt = now

	var completed int
	if g.Completed {
		completed = 1
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE goals SET current_value = ?, completed = ?, updated_at = ? WHERE id = ?`,
		g.CurrentValue, completed, now, goalID,
	); err != nil {
		return nil, nil, fmt.Errorf("update goal progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	log := &model.ProgressLog{
		ID:       logID,
		GoalID:   goalID,
		UserID:   userID,
		Value:    value,
		Notes:    notes,
		LoggedAt: now,
	}
	return g, log, nil
}

// ProgressTimes returns when each of the user's progress logs was recorded.
func (s *GoalStore) ProgressTimes(ctx context.Context, userID int64) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT logged_at FROM progress_logs WHERE user_id = ? ORDER BY logged_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan progress time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}
