package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Database ---

// DB is the PostgreSQL-backed ledger store.
type DB struct {
	*sql.DB
}

func NewDB(db *sql.DB) *DB {
	return &DB{db}
}

// Apply wraps the balance updates and entry appends in one transaction.
// Account rows are locked with SELECT ... FOR UPDATE in sorted id order so
// two concurrent transfers touching the same pair of accounts cannot
// deadlock.
func (db *DB) Apply(ctx context.Context, muts ...Mutation) ([]Entry, error) {
	if len(muts) == 0 {
		return nil, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := lockOrder(muts)
	balances := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		var balance decimal.Decimal
		err := tx.QueryRowContext(ctx,
			`SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&balance)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, ErrAccountNotFound
			}
			return nil, fmt.Errorf("could not lock account %s: %w", id, err)
		}
		balances[id] = balance
	}

	entries := make([]Entry, 0, len(muts))
	for _, m := range muts {
		newBalance := balances[m.AccountID]
		if m.Kind.Sign() > 0 {
			newBalance = newBalance.Add(m.Amount)
		} else {
			newBalance = newBalance.Sub(m.Amount)
		}
		if newBalance.LessThan(m.Floor) {
			return nil, ErrBelowFloor
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`,
			newBalance, m.AccountID); err != nil {
			return nil, fmt.Errorf("could not update account balance: %w", err)
		}

		e := Entry{
			ID:               uuid.NewString(),
			AccountID:        m.AccountID,
			Kind:             m.Kind,
			Amount:           m.Amount,
			BalanceAfter:     newBalance,
			Description:      m.Description,
			RelatedAccountID: m.RelatedAccountID,
		}
		err := tx.QueryRowContext(ctx,
			`INSERT INTO transactions (id, account_id, kind, amount, balance_after, description, related_account_id)
			 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, '')) RETURNING created_at`,
			e.ID, e.AccountID, string(e.Kind), e.Amount, e.BalanceAfter, e.Description, e.RelatedAccountID).
			Scan(&e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("could not append ledger entry: %w", err)
		}

		balances[m.AccountID] = newBalance
		entries = append(entries, e)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}
	return entries, nil
}

func lockOrder(muts []Mutation) []string {
	seen := make(map[string]bool, len(muts))
	ids := make([]string, 0, len(muts))
	for _, m := range muts {
		if !seen[m.AccountID] {
			seen[m.AccountID] = true
			ids = append(ids, m.AccountID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (db *DB) LastEntry(ctx context.Context, accountID string) (*Entry, error) {
	query := `SELECT id, account_id, kind, amount, balance_after, COALESCE(description, ''), COALESCE(related_account_id, ''), created_at
			  FROM transactions WHERE account_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`
	e := &Entry{}
	err := db.QueryRowContext(ctx, query, accountID).
		Scan(&e.ID, &e.AccountID, &e.Kind, &e.Amount, &e.BalanceAfter, &e.Description, &e.RelatedAccountID, &e.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("could not get last ledger entry: %w", err)
	}
	return e, nil
}

func (db *DB) History(ctx context.Context, accountID string, f Filter) ([]Entry, error) {
	query := `SELECT id, account_id, kind, amount, balance_after, COALESCE(description, ''), COALESCE(related_account_id, ''), created_at
			  FROM transactions WHERE account_id = $1`
	args := []any{accountID}
	if f.Start != nil {
		args = append(args, *f.Start)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if f.End != nil {
		args = append(args, *f.End)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query transaction history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Amount, &e.BalanceAfter,
			&e.Description, &e.RelatedAccountID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("could not scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

func (db *DB) DailyTotal(ctx context.Context, accountID string, kind Kind, day time.Time) (decimal.Decimal, error) {
	start, end := DayBounds(day)
	var total decimal.Decimal
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions
		 WHERE account_id = $1 AND kind = $2 AND created_at >= $3 AND created_at < $4`,
		accountID, string(kind), start, end).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not sum daily total: %w", err)
	}
	return total, nil
}
