package budgets

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// --- Database ---

// DB is the PostgreSQL-backed budget store.
type DB struct {
	*sql.DB
}

func NewDB(db *sql.DB) *DB {
	return &DB{db}
}

func (db *DB) CreateBudget(ctx context.Context, b *Budget) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	err := db.QueryRowContext(ctx,
		`INSERT INTO budgets (id, user_id, category, amount, period, start_date, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		b.ID, b.UserID, b.Category, b.Amount, string(b.Period), b.StartDate, b.Active).
		Scan(&b.CreatedAt)
	if err != nil {
		return fmt.Errorf("could not create budget: %w", err)
	}
	return nil
}

func (db *DB) BudgetByID(ctx context.Context, id string) (*Budget, error) {
	b := &Budget{}
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, category, amount, period, start_date, is_active, created_at
		 FROM budgets WHERE id = $1`, id).
		Scan(&b.ID, &b.UserID, &b.Category, &b.Amount, &b.Period, &b.StartDate, &b.Active, &b.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not get budget by id: %w", err)
	}
	return b, nil
}

func (db *DB) BudgetsByUser(ctx context.Context, userID string) ([]*Budget, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, category, amount, period, start_date, is_active, created_at
		 FROM budgets WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("could not query budgets: %w", err)
	}
	defer rows.Close()

	var budgets []*Budget
	for rows.Next() {
		b := &Budget{}
		if err := rows.Scan(&b.ID, &b.UserID, &b.Category, &b.Amount, &b.Period,
			&b.StartDate, &b.Active, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("could not scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}
	return budgets, nil
}

func (db *DB) DeleteBudget(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM budgets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("could not delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
