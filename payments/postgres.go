package payments

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// --- Database ---

// DB is the PostgreSQL-backed payments store.
type DB struct {
	*sql.DB
}

func NewDB(db *sql.DB) *DB {
	return &DB{db}
}

const recurringColumns = `id, account_id, recipient_name, COALESCE(recipient_account_number, ''),
	amount, frequency, next_payment_at, end_at, COALESCE(description, ''), active, created_at`

func scanRecurring(row interface{ Scan(...any) error }) (*RecurringPayment, error) {
	p := &RecurringPayment{}
	var endAt sql.NullTime
	err := row.Scan(&p.ID, &p.AccountID, &p.RecipientName, &p.RecipientAccountNumber,
		&p.Amount, &p.Frequency, &p.NextPaymentAt, &endAt, &p.Description, &p.Active, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if endAt.Valid {
		p.EndAt = &endAt.Time
	}
	return p, nil
}

func (db *DB) CreateRecurring(ctx context.Context, p *RecurringPayment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO recurring_payments (id, account_id, recipient_name, recipient_account_number,
			amount, frequency, next_payment_at, end_at, description, active, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, NULLIF($9, ''), $10, $11)`,
		p.ID, p.AccountID, p.RecipientName, p.RecipientAccountNumber,
		p.Amount, string(p.Frequency), p.NextPaymentAt, p.EndAt, p.Description, p.Active, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("could not create recurring payment: %w", err)
	}
	return nil
}

func (db *DB) RecurringByID(ctx context.Context, id string) (*RecurringPayment, error) {
	p, err := scanRecurring(db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_payments WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecurringNotFound
		}
		return nil, fmt.Errorf("could not get recurring payment by id: %w", err)
	}
	return p, nil
}

func (db *DB) RecurringByAccount(ctx context.Context, accountID string) ([]*RecurringPayment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_payments WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("could not query recurring payments: %w", err)
	}
	defer rows.Close()

	var payments []*RecurringPayment
	for rows.Next() {
		p, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan recurring payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recurring payments: %w", err)
	}
	return payments, nil
}

func (db *DB) UpdateRecurring(ctx context.Context, p *RecurringPayment) error {
	res, err := db.ExecContext(ctx,
		`UPDATE recurring_payments SET active = $1, next_payment_at = $2, end_at = $3, amount = $4 WHERE id = $5`,
		p.Active, p.NextPaymentAt, p.EndAt, p.Amount, p.ID)
	if err != nil {
		return fmt.Errorf("could not update recurring payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecurringNotFound
	}
	return nil
}

func (db *DB) DeleteRecurring(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM recurring_payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("could not delete recurring payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecurringNotFound
	}
	return nil
}

const billColumns = `id, account_id, payee_name, COALESCE(payee_account_number, ''), amount, due_at,
	status, COALESCE(description, ''), COALESCE(recurring_payment_id::text, ''), paid_at, created_at`

func scanBill(row interface{ Scan(...any) error }) (*Bill, error) {
	b := &Bill{}
	var paidAt sql.NullTime
	err := row.Scan(&b.ID, &b.AccountID, &b.PayeeName, &b.PayeeAccountNumber, &b.Amount, &b.DueAt,
		&b.Status, &b.Description, &b.RecurringPaymentID, &paidAt, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		b.PaidAt = &paidAt.Time
	}
	return b, nil
}

func (db *DB) CreateBill(ctx context.Context, b *Bill) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO bill_payments (id, account_id, payee_name, payee_account_number, amount, due_at,
			status, description, recurring_payment_id, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''), NULLIF($9, '')::uuid, $10)`,
		b.ID, b.AccountID, b.PayeeName, b.PayeeAccountNumber, b.Amount, b.DueAt,
		string(b.Status), b.Description, b.RecurringPaymentID, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("could not create bill payment: %w", err)
	}
	return nil
}

func (db *DB) BillByID(ctx context.Context, id string) (*Bill, error) {
	b, err := scanBill(db.QueryRowContext(ctx,
		`SELECT `+billColumns+` FROM bill_payments WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBillNotFound
		}
		return nil, fmt.Errorf("could not get bill payment by id: %w", err)
	}
	return b, nil
}

func (db *DB) BillsByAccount(ctx context.Context, accountID string) ([]*Bill, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+billColumns+` FROM bill_payments WHERE account_id = $1 ORDER BY due_at`, accountID)
	if err != nil {
		return nil, fmt.Errorf("could not query bill payments: %w", err)
	}
	defer rows.Close()

	var bills []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan bill payment: %w", err)
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bill payments: %w", err)
	}
	return bills, nil
}

func (db *DB) UpdateBill(ctx context.Context, b *Bill) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bill_payments SET status = $1, paid_at = $2, due_at = $3, amount = $4 WHERE id = $5`,
		string(b.Status), b.PaidAt, b.DueAt, b.Amount, b.ID)
	if err != nil {
		return fmt.Errorf("could not update bill payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (db *DB) DeleteBill(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM bill_payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("could not delete bill payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBillNotFound
	}
	return nil
}
