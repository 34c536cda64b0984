// Package loans scores loan eligibility, amortizes fixed-rate loans and
// drives the Pending/Active/Paid/Rejected lifecycle. Disbursement and
// repayment money movement goes through the transaction engine.
package loans

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"banking-system/account"
	"banking-system/audit"
	"banking-system/transactions"
)

var (
	minLoanAmount      = decimal.NewFromInt(100)
	minBalanceFraction = decimal.RequireFromString("0.10")
	maxDebtRatio       = decimal.RequireFromString("0.50")
	maxBalanceMultiple = decimal.NewFromInt(5)

	lowRiskFraction = decimal.RequireFromString("0.5")
	midRiskFraction = decimal.RequireFromString("0.25")
	lowRiskRate     = decimal.RequireFromString("4.5")
	midRiskRate     = decimal.RequireFromString("5.5")
	highRiskRate    = decimal.RequireFromString("6.5")
)

const (
	minTermMonths = 6
	maxTermMonths = 60
)

type Engine struct {
	loans    Store
	accounts account.Store
	engine   *transactions.Engine
	audit    audit.Sink
	now      func() time.Time
}

func NewEngine(loans Store, accounts account.Store, engine *transactions.Engine, sink audit.Sink) *Engine {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Engine{loans: loans, accounts: accounts, engine: engine, audit: sink, now: time.Now}
}

// WithClock overrides the engine's clock. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CheckEligibility runs the deterministic scoring rules. Every rule is
// evaluated; reasons accumulate rather than short-circuit. No side effects.
func (e *Engine) CheckEligibility(ctx context.Context, userID string, requested decimal.Decimal, termMonths int) (*Eligibility, error) {
	result := &Eligibility{InterestRate: highRiskRate}

	accounts, err := e.accounts.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("could not load accounts: %w", err)
	}
	if len(accounts) == 0 {
		result.Reasons = append(result.Reasons,
			"no active accounts found, at least one account is required to apply for a loan")
		return result, nil
	}

	totalBalance := decimal.Zero
	for _, a := range accounts {
		totalBalance = totalBalance.Add(a.Balance)
	}

	existing, err := e.loans.LoansByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("could not load existing loans: %w", err)
	}
	totalOutstanding := decimal.Zero
	for _, l := range existing {
		if l.Status.Outstanding() {
			totalOutstanding = totalOutstanding.Add(l.RemainingBalance)
		}
	}

	minRequired := requested.Mul(minBalanceFraction)
	if totalBalance.LessThan(minRequired) {
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("insufficient account balance, minimum required: $%s", minRequired.StringFixed(2)))
	}

	ratioBase := totalBalance
	if !ratioBase.IsPositive() {
		ratioBase = decimal.NewFromInt(1)
	}
	if totalOutstanding.Div(ratioBase).GreaterThan(maxDebtRatio) {
		result.Reasons = append(result.Reasons,
			"high existing debt, debt-to-balance ratio exceeds 50%")
	}

	maxLoan := totalBalance.Mul(maxBalanceMultiple)
	if requested.GreaterThan(maxLoan) {
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("requested amount exceeds maximum allowed ($%s)", maxLoan.StringFixed(2)))
		result.RecommendedAmount = maxLoan
	}

	if requested.LessThan(minLoanAmount) {
		result.Reasons = append(result.Reasons, "minimum loan amount is $100")
	}

	if termMonths < minTermMonths || termMonths > maxTermMonths {
		result.Reasons = append(result.Reasons, "loan term must be between 6 and 60 months")
	}

	// Risk-tiered rate from the balance-to-requested ratio.
	switch {
	case totalBalance.GreaterThanOrEqual(requested.Mul(lowRiskFraction)):
		result.InterestRate = lowRiskRate
	case totalBalance.GreaterThanOrEqual(requested.Mul(midRiskFraction)):
		result.InterestRate = midRiskRate
	default:
		result.InterestRate = highRiskRate
	}

	if len(result.Reasons) == 0 {
		result.Eligible = true
		result.RecommendedAmount = requested
	} else if result.RecommendedAmount.IsZero() {
		result.RecommendedAmount = decimal.Min(requested, maxLoan)
	}
	return result, nil
}

// MonthlyPayment is the standard fixed-rate amortization payment:
// P * r(1+r)^n / ((1+r)^n - 1) with r the monthly rate. Full decimal
// precision; round for display only.
func MonthlyPayment(principal, annualRate decimal.Decimal, termMonths int) decimal.Decimal {
	term := decimal.NewFromInt(int64(termMonths))
	monthlyRate := annualRate.Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(12))
	if monthlyRate.IsZero() {
		return principal.Div(term)
	}
	one := decimal.NewFromInt(1)
	factor := one.Add(monthlyRate).Pow(term)
	return principal.Mul(monthlyRate).Mul(factor).Div(factor.Sub(one))
}

// Apply re-runs eligibility and creates the loan in Pending status.
func (e *Engine) Apply(ctx context.Context, userID string, amount decimal.Decimal, termMonths int, accountID string) (*Loan, error) {
	if !amount.IsPositive() {
		return nil, transactions.ErrInvalidAmount
	}
	if termMonths < minTermMonths || termMonths > maxTermMonths {
		return nil, ErrInvalidTerm
	}
	if accountID != "" {
		if _, err := e.accounts.AccountByID(ctx, accountID); err != nil {
			return nil, err
		}
	}

	eligibility, err := e.CheckEligibility(ctx, userID, amount, termMonths)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		return nil, &NotEligibleError{Reasons: eligibility.Reasons}
	}

	now := e.now()
	due := now.AddDate(0, termMonths, 0)
	loan := &Loan{
		UserID:           userID,
		AccountID:        accountID,
		Principal:        amount,
		InterestRate:     eligibility.InterestRate,
		TermMonths:       termMonths,
		MonthlyPayment:   MonthlyPayment(amount, eligibility.InterestRate, termMonths),
		RemainingBalance: amount,
		Status:           StatusPending,
		AppliedAt:        now,
		DueAt:            &due,
	}
	if err := e.loans.CreateLoan(ctx, loan); err != nil {
		return nil, err
	}

	e.audit.Record(audit.Event{
		UserID:     userID,
		Action:     "LoanApplication",
		EntityType: "Loan",
		EntityID:   loan.ID,
		Details: fmt.Sprintf("Applied for $%s over %d months at %s%%",
			amount.StringFixed(2), termMonths, eligibility.InterestRate.String()),
	})
	return loan, nil
}

// Approve activates a pending loan. When the loan has a linked account the
// full principal is disbursed through the transaction engine first; a
// disbursement failure is fatal to the approval and surfaced to the caller.
func (e *Engine) Approve(ctx context.Context, loanID string) (*Loan, error) {
	loan, err := e.loans.LoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot approve a %s loan", ErrInvalidState, loan.Status)
	}

	if loan.AccountID != "" {
		desc := fmt.Sprintf("Loan Disbursement - Loan %s", loan.ID)
		if _, err := e.engine.Deposit(ctx, loan.AccountID, loan.Principal, desc); err != nil {
			return nil, fmt.Errorf("could not disburse loan to account: %w", err)
		}
	}

	now := e.now()
	loan.Status = StatusActive
	loan.ApprovedAt = &now
	if err := e.loans.UpdateLoan(ctx, loan); err != nil {
		if loan.AccountID != "" {
			// Disbursement committed but activation did not.
			log.Printf("loans: FATAL reconciliation needed for loan %s: disbursed but not activated: %v", loan.ID, err)
			return nil, fmt.Errorf("%w: disbursed but not activated: %v", ErrReconciliation, err)
		}
		return nil, err
	}

	e.audit.Record(audit.Event{
		UserID:     loan.UserID,
		Action:     "LoanApproval",
		EntityType: "Loan",
		EntityID:   loan.ID,
		Details:    fmt.Sprintf("Approved loan of $%s", loan.Principal.StringFixed(2)),
	})
	return loan, nil
}

// Reject declines a pending loan.
func (e *Engine) Reject(ctx context.Context, loanID string) (*Loan, error) {
	loan, err := e.loans.LoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot reject a %s loan", ErrInvalidState, loan.Status)
	}

	loan.Status = StatusRejected
	if err := e.loans.UpdateLoan(ctx, loan); err != nil {
		return nil, err
	}

	e.audit.Record(audit.Event{
		UserID:     loan.UserID,
		Action:     "LoanRejection",
		EntityType: "Loan",
		EntityID:   loan.ID,
	})
	return loan, nil
}

// Pay withdraws the amount from the account through the transaction engine
// and decrements the loan's remaining balance, clamped at zero. The two
// steps form one logical unit: if the decrement fails after the withdrawal
// committed, Pay reports ErrReconciliation instead of silently retrying.
func (e *Engine) Pay(ctx context.Context, loanID, accountID string, amount decimal.Decimal) (*Loan, error) {
	if !amount.IsPositive() {
		return nil, transactions.ErrInvalidAmount
	}
	loan, err := e.loans.LoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !loan.Status.Outstanding() || !loan.RemainingBalance.IsPositive() {
		return nil, fmt.Errorf("%w: loan is %s", ErrInvalidState, loan.Status)
	}
	acct, err := e.accounts.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.Balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: for loan payment", transactions.ErrInsufficientFunds)
	}

	desc := fmt.Sprintf("Loan Payment - Loan %s", loan.ID)
	if _, err := e.engine.Withdraw(ctx, accountID, amount, desc); err != nil {
		return nil, err
	}

	updated, err := e.loans.ApplyPayment(ctx, loanID, amount)
	if err != nil {
		log.Printf("loans: FATAL reconciliation needed for loan %s: withdrew $%s from account %s but payment not applied: %v",
			loanID, amount.StringFixed(2), accountID, err)
		return nil, fmt.Errorf("%w: withdrawal committed but loan balance not updated: %v", ErrReconciliation, err)
	}

	e.audit.Record(audit.Event{
		UserID:     loan.UserID,
		Action:     "LoanPayment",
		EntityType: "Loan",
		EntityID:   loan.ID,
		Details: fmt.Sprintf("Payment of $%s, remaining balance $%s",
			amount.StringFixed(2), updated.RemainingBalance.StringFixed(2)),
	})
	return updated, nil
}

// UserLoans lists a borrower's loans, newest application first.
func (e *Engine) UserLoans(ctx context.Context, userID string) ([]*Loan, error) {
	return e.loans.LoansByUser(ctx, userID)
}
