// Package payments tracks scheduled outgoing payments: recurring
// payment templates and the bill payments they (or the user) produce.
// Paying a bill moves money through the transaction engine; everything
// else is bookkeeping around the ledger.
package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// --- Models ---

// Frequency is how often a recurring payment fires.
type Frequency string

const (
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
	FrequencyYearly  Frequency = "Yearly"
)

// ParseFrequency accepts any casing of the four frequency names.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(s) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	case "monthly":
		return FrequencyMonthly, nil
	case "yearly":
		return FrequencyYearly, nil
	}
	return "", ErrInvalidFrequency
}

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// NextAfter returns the next payment date following t.
func (f Frequency) NextAfter(t time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return t.AddDate(0, 1, 0)
	case FrequencyYearly:
		return t.AddDate(1, 0, 0)
	}
	return t
}

type RecurringPayment struct {
	ID                     string          `json:"id"`
	AccountID              string          `json:"account_id"`
	RecipientName          string          `json:"recipient_name"`
	RecipientAccountNumber string          `json:"recipient_account_number,omitempty"`
	Amount                 decimal.Decimal `json:"amount"`
	Frequency              Frequency       `json:"frequency"`
	NextPaymentAt          time.Time       `json:"next_payment_at"`
	EndAt                  *time.Time      `json:"end_at,omitempty"`
	Description            string          `json:"description,omitempty"`
	Active                 bool            `json:"active"`
	CreatedAt              time.Time       `json:"created_at"`
}

// BillStatus is a bill's lifecycle state. Pending -> Paid (via PayBill)
// or Cancelled (via CancelBill); no transition out of Paid or Cancelled.
type BillStatus string

const (
	BillPending   BillStatus = "Pending"
	BillPaid      BillStatus = "Paid"
	BillCancelled BillStatus = "Cancelled"
)

type Bill struct {
	ID                 string          `json:"id"`
	AccountID          string          `json:"account_id"`
	PayeeName          string          `json:"payee_name"`
	PayeeAccountNumber string          `json:"payee_account_number,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	DueAt              time.Time       `json:"due_at"`
	Status             BillStatus      `json:"status"`
	Description        string          `json:"description,omitempty"`
	RecurringPaymentID string          `json:"recurring_payment_id,omitempty"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Overdue reports whether the bill is still pending past its due date.
func (b *Bill) Overdue(now time.Time) bool {
	return b.Status == BillPending && b.DueAt.Before(now)
}

// --- Errors ---

var (
	ErrRecurringNotFound = errors.New("recurring payment not found")
	ErrBillNotFound      = errors.New("bill payment not found")
	ErrInvalidFrequency  = errors.New("frequency must be Daily, Weekly, Monthly or Yearly")
	ErrInvalidState      = errors.New("bill payment is not in a valid state for this operation")

	// ErrReconciliation marks a partial payment: the withdrawal committed
	// but the bill-status update did not. Requires manual reconciliation;
	// never swallowed or retried.
	ErrReconciliation = errors.New("bill payment state is inconsistent and requires reconciliation")
)

// --- Store ---

// Store is account-scoped; user-level queries fan out over the user's
// accounts in the service, the same way budget status reads the ledger.
type Store interface {
	CreateRecurring(ctx context.Context, p *RecurringPayment) error
	RecurringByID(ctx context.Context, id string) (*RecurringPayment, error)
	RecurringByAccount(ctx context.Context, accountID string) ([]*RecurringPayment, error)
	// UpdateRecurring persists the active flag and next payment date.
	UpdateRecurring(ctx context.Context, p *RecurringPayment) error
	DeleteRecurring(ctx context.Context, id string) error

	CreateBill(ctx context.Context, b *Bill) error
	BillByID(ctx context.Context, id string) (*Bill, error)
	BillsByAccount(ctx context.Context, accountID string) ([]*Bill, error)
	// UpdateBill persists the status and payment date.
	UpdateBill(ctx context.Context, b *Bill) error
	DeleteBill(ctx context.Context, id string) error
}
