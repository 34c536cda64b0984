package goals

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// --- Database ---

// DB is the PostgreSQL-backed savings goal store.
type DB struct {
	*sql.DB
}

func NewDB(db *sql.DB) *DB {
	return &DB{db}
}

const goalColumns = `id, user_id, COALESCE(account_id::text, ''), name, target_amount, current_amount,
	target_date, COALESCE(description, ''), completed, created_at`

func scanGoal(row interface{ Scan(...any) error }) (*Goal, error) {
	g := &Goal{}
	var targetDate sql.NullTime
	err := row.Scan(&g.ID, &g.UserID, &g.AccountID, &g.Name, &g.TargetAmount, &g.CurrentAmount,
		&targetDate, &g.Description, &g.Completed, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	if targetDate.Valid {
		g.TargetDate = &targetDate.Time
	}
	return g, nil
}

func (db *DB) CreateGoal(ctx context.Context, g *Goal) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO savings_goals (id, user_id, account_id, name, target_amount, current_amount,
			target_date, description, completed, created_at)
		 VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)`,
		g.ID, g.UserID, g.AccountID, g.Name, g.TargetAmount, g.CurrentAmount,
		g.TargetDate, g.Description, g.Completed, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("could not create savings goal: %w", err)
	}
	return nil
}

func (db *DB) GoalByID(ctx context.Context, id string) (*Goal, error) {
	g, err := scanGoal(db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM savings_goals WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not get savings goal by id: %w", err)
	}
	return g, nil
}

func (db *DB) GoalsByUser(ctx context.Context, userID string) ([]*Goal, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM savings_goals WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("could not query savings goals: %w", err)
	}
	defer rows.Close()

	var goals []*Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan savings goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating savings goals: %w", err)
	}
	return goals, nil
}

func (db *DB) UpdateGoal(ctx context.Context, g *Goal) error {
	res, err := db.ExecContext(ctx,
		`UPDATE savings_goals SET current_amount = $1, completed = $2, target_amount = $3,
			target_date = $4, description = NULLIF($5, '') WHERE id = $6`,
		g.CurrentAmount, g.Completed, g.TargetAmount, g.TargetDate, g.Description, g.ID)
	if err != nil {
		return fmt.Errorf("could not update savings goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) DeleteGoal(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM savings_goals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("could not delete savings goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
