package loans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// --- Models ---

// Status is a loan's lifecycle state. Pending -> Active (via Approve) or
// Rejected (via Reject); Active -> Paid when the remaining balance hits
// zero. There is no transition out of Paid or Rejected.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusActive   Status = "Active"
	StatusPaid     Status = "Paid"
	StatusRejected Status = "Rejected"

	// StatusApproved never leaves this engine but may exist in migrated
	// data; it counts toward outstanding debt like Active.
	StatusApproved Status = "Approved"
)

// Outstanding reports whether a loan in this status counts toward the
// borrower's outstanding debt.
func (s Status) Outstanding() bool {
	return s == StatusActive || s == StatusApproved
}

type Loan struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	AccountID        string          `json:"account_id,omitempty"`
	Principal        decimal.Decimal `json:"principal"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	TermMonths       int             `json:"term_months"`
	MonthlyPayment   decimal.Decimal `json:"monthly_payment"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Status           Status          `json:"status"`
	AppliedAt        time.Time       `json:"applied_at"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	DueAt            *time.Time      `json:"due_at,omitempty"`
}

// Eligibility is the verdict of the deterministic scoring rules.
type Eligibility struct {
	Eligible          bool            `json:"eligible"`
	Reasons           []string        `json:"reasons,omitempty"`
	RecommendedAmount decimal.Decimal `json:"recommended_amount"`
	InterestRate      decimal.Decimal `json:"interest_rate"`
}

// --- Errors ---

var (
	ErrNotFound     = errors.New("loan not found")
	ErrInvalidTerm  = errors.New("loan term must be between 6 and 60 months")
	ErrInvalidState = errors.New("loan is not in a valid state for this operation")

	// ErrReconciliation marks a partial application: the funding leg
	// committed but the loan-balance update did not. Requires manual
	// reconciliation; never swallowed or retried.
	ErrReconciliation = errors.New("loan state is inconsistent and requires reconciliation")
)

// NotEligibleError carries every reason the scoring rules rejected the
// application.
type NotEligibleError struct {
	Reasons []string
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("loan application not eligible: %s", strings.Join(e.Reasons, "; "))
}

// --- Store ---

type Store interface {
	CreateLoan(ctx context.Context, l *Loan) error
	LoanByID(ctx context.Context, id string) (*Loan, error)
	LoansByUser(ctx context.Context, userID string) ([]*Loan, error)
	// UpdateLoan persists status, remaining balance and approval date.
	UpdateLoan(ctx context.Context, l *Loan) error
	// ApplyPayment atomically decrements the remaining balance, clamped at
	// zero, flipping the status to Paid when it reaches zero. Returns the
	// updated loan.
	ApplyPayment(ctx context.Context, loanID string, amount decimal.Decimal) (*Loan, error)
}
