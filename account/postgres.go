package account

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// --- Database ---

// DB is the PostgreSQL-backed account store.
type DB struct {
	*sql.DB
}

func NewDB(db *sql.DB) *DB {
	return &DB{db}
}

const accountColumns = `a.id, a.user_id, a.account_number, a.balance, a.is_active, a.created_at, a.updated_at,
	at.id, at.type_name, at.description, at.interest_rate, at.minimum_balance`

const accountJoin = `FROM accounts a INNER JOIN account_types at ON a.account_type_id = at.id`

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	a := &Account{}
	err := row.Scan(&a.ID, &a.UserID, &a.AccountNumber, &a.Balance, &a.Active, &a.CreatedAt, &a.UpdatedAt,
		&a.Type.ID, &a.Type.TypeName, &a.Type.Description, &a.Type.InterestRate, &a.Type.MinimumBalance)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (db *DB) CreateAccount(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	query := `INSERT INTO accounts (id, user_id, account_type_id, account_number, balance, is_active)
			  VALUES ($1, $2, $3, $4, $5, TRUE) RETURNING created_at, updated_at`
	err := db.QueryRowContext(ctx, query, a.ID, a.UserID, a.Type.ID, a.AccountNumber, a.Balance).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("could not create account: %w", err)
	}
	a.Active = true
	return nil
}

func (db *DB) AccountByID(ctx context.Context, id string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` ` + accountJoin + ` WHERE a.id = $1`
	a, err := scanAccount(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not get account by id: %w", err)
	}
	return a, nil
}

func (db *DB) AccountByNumber(ctx context.Context, number string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` ` + accountJoin + ` WHERE a.account_number = $1`
	a, err := scanAccount(db.QueryRowContext(ctx, query, number))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not get account by number: %w", err)
	}
	return a, nil
}

func (db *DB) AccountsByUser(ctx context.Context, userID string) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` ` + accountJoin + ` WHERE a.user_id = $1 ORDER BY a.created_at`
	return db.queryAccounts(ctx, query, userID)
}

func (db *DB) InterestBearingAccounts(ctx context.Context) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` ` + accountJoin + `
			  WHERE a.is_active = TRUE AND at.interest_rate > 0 ORDER BY a.created_at`
	return db.queryAccounts(ctx, query)
}

func (db *DB) queryAccounts(ctx context.Context, query string, args ...any) ([]*Account, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func (db *DB) CloseAccount(ctx context.Context, id string) error {
	query := `UPDATE accounts SET is_active = FALSE, updated_at = NOW()
			  WHERE id = $1 AND balance = 0`
	res, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("could not close account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish a missing account from a non-zero balance.
		if _, err := db.AccountByID(ctx, id); err != nil {
			return err
		}
		return ErrNotEmpty
	}
	return nil
}

func (db *DB) AccountTypes(ctx context.Context) ([]*AccountType, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, type_name, description, interest_rate, minimum_balance FROM account_types ORDER BY type_name`)
	if err != nil {
		return nil, fmt.Errorf("could not query account types: %w", err)
	}
	defer rows.Close()

	var types []*AccountType
	for rows.Next() {
		t := &AccountType{}
		if err := rows.Scan(&t.ID, &t.TypeName, &t.Description, &t.InterestRate, &t.MinimumBalance); err != nil {
			return nil, fmt.Errorf("could not scan account type: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account types: %w", err)
	}
	return types, nil
}

func (db *DB) AccountTypeByName(ctx context.Context, name string) (*AccountType, error) {
	t := &AccountType{}
	query := `SELECT id, type_name, description, interest_rate, minimum_balance FROM account_types WHERE type_name = $1`
	err := db.QueryRowContext(ctx, query, name).
		Scan(&t.ID, &t.TypeName, &t.Description, &t.InterestRate, &t.MinimumBalance)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTypeNotFound
		}
		return nil, fmt.Errorf("could not get account type: %w", err)
	}
	return t, nil
}
