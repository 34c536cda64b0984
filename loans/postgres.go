package loans

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Database ---

// DB is the PostgreSQL-backed loan store.
type DB struct {
	*sql.DB
}

func NewDB(db *sql.DB) *DB {
	return &DB{db}
}

const loanColumns = `id, user_id, COALESCE(account_id, ''), principal, interest_rate, term_months,
	monthly_payment, remaining_balance, status, applied_at, approved_at, due_at`

func scanLoan(row interface{ Scan(...any) error }) (*Loan, error) {
	l := &Loan{}
	var approvedAt, dueAt sql.NullTime
	err := row.Scan(&l.ID, &l.UserID, &l.AccountID, &l.Principal, &l.InterestRate, &l.TermMonths,
		&l.MonthlyPayment, &l.RemainingBalance, &l.Status, &l.AppliedAt, &approvedAt, &dueAt)
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		l.ApprovedAt = &approvedAt.Time
	}
	if dueAt.Valid {
		l.DueAt = &dueAt.Time
	}
	return l, nil
}

func (db *DB) CreateLoan(ctx context.Context, l *Loan) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO loans (id, user_id, account_id, principal, interest_rate, term_months,
			monthly_payment, remaining_balance, status, applied_at, due_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11)`,
		l.ID, l.UserID, l.AccountID, l.Principal, l.InterestRate, l.TermMonths,
		l.MonthlyPayment, l.RemainingBalance, string(l.Status), l.AppliedAt, l.DueAt)
	if err != nil {
		return fmt.Errorf("could not create loan: %w", err)
	}
	return nil
}

func (db *DB) LoanByID(ctx context.Context, id string) (*Loan, error) {
	l, err := scanLoan(db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not get loan by id: %w", err)
	}
	return l, nil
}

func (db *DB) LoansByUser(ctx context.Context, userID string) ([]*Loan, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE user_id = $1 ORDER BY applied_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("could not query loans: %w", err)
	}
	defer rows.Close()

	var loans []*Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loans: %w", err)
	}
	return loans, nil
}

func (db *DB) UpdateLoan(ctx context.Context, l *Loan) error {
	res, err := db.ExecContext(ctx,
		`UPDATE loans SET status = $1, remaining_balance = $2, approved_at = $3, due_at = $4 WHERE id = $5`,
		string(l.Status), l.RemainingBalance, l.ApprovedAt, l.DueAt, l.ID)
	if err != nil {
		return fmt.Errorf("could not update loan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyPayment decrements the remaining balance under a row lock, clamping
// at zero and flipping the status to Paid when fully retired.
func (db *DB) ApplyPayment(ctx context.Context, loanID string, amount decimal.Decimal) (*Loan, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	var remaining decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`SELECT remaining_balance FROM loans WHERE id = $1 FOR UPDATE`, loanID).Scan(&remaining)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not lock loan: %w", err)
	}

	newBalance := remaining.Sub(amount)
	if newBalance.IsNegative() {
		newBalance = decimal.Zero
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE loans SET remaining_balance = $1,
			status = CASE WHEN $1 <= 0 THEN 'Paid' ELSE status END
		 WHERE id = $2`,
		newBalance, loanID)
	if err != nil {
		return nil, fmt.Errorf("could not apply loan payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit loan payment: %w", err)
	}
	return db.LoanByID(ctx, loanID)
}
