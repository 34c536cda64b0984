package loans_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking-system/account"
	"banking-system/audit"
	"banking-system/ledger"
	"banking-system/limits"
	"banking-system/loans"
	"banking-system/storage"
	"banking-system/transactions"
)

type fixture struct {
	store  *storage.Memory
	sink   *audit.Memory
	tx     *transactions.Engine
	engine *loans.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemory()
	sink := audit.NewMemory()
	guard := limits.NewGuard(limits.Default(), store)
	tx := transactions.NewEngine(store, store, guard, nil)
	return &fixture{
		store:  store,
		sink:   sink,
		tx:     tx,
		engine: loans.NewEngine(store, store, tx, sink),
	}
}

func (f *fixture) newAccount(t *testing.T, userID, balance string) *account.Account {
	t.Helper()
	typ := f.store.SeedAccountType(account.AccountType{TypeName: "Checking"})
	a := &account.Account{UserID: userID, AccountNumber: "0001", Type: typ}
	require.NoError(t, f.store.CreateAccount(context.Background(), a))
	if b := decimal.RequireFromString(balance); b.IsPositive() {
		_, err := f.store.Apply(context.Background(), ledger.Mutation{
			AccountID: a.ID, Kind: ledger.KindDeposit, Amount: b,
		})
		require.NoError(t, err)
	}
	return a
}

func TestCheckEligibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.newAccount(t, "u1", "1000")

	// Balance 1000 against 4000 requested: above the 10% minimum (400),
	// under the 5x cap (5000), balance >= 0.25x requested -> mid tier.
	got, err := f.engine.CheckEligibility(ctx, "u1", decimal.NewFromInt(4000), 12)
	require.NoError(t, err)
	assert.True(t, got.Eligible)
	assert.Empty(t, got.Reasons)
	assert.True(t, got.InterestRate.Equal(decimal.RequireFromString("5.5")))
	assert.True(t, got.RecommendedAmount.Equal(decimal.NewFromInt(4000)))
}

func TestCheckEligibilityRateTiers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.newAccount(t, "u1", "1000")

	tests := []struct {
		requested string
		wantRate  string
	}{
		{"2000", "4.5"}, // balance >= half of requested
		{"4000", "5.5"}, // balance >= quarter of requested
		{"5000", "6.5"}, // below a quarter
	}
	for _, tt := range tests {
		got, err := f.engine.CheckEligibility(ctx, "u1", decimal.RequireFromString(tt.requested), 12)
		require.NoError(t, err)
		assert.True(t, got.InterestRate.Equal(decimal.RequireFromString(tt.wantRate)),
			"requested %s: got rate %s", tt.requested, got.InterestRate)
	}
}

func TestCheckEligibilityNoAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	got, err := f.engine.CheckEligibility(ctx, "nobody", decimal.NewFromInt(1000), 12)
	require.NoError(t, err)
	assert.False(t, got.Eligible)
	require.Len(t, got.Reasons, 1)
	assert.Contains(t, got.Reasons[0], "at least one account is required")
}

func TestCheckEligibilityReasonsAccumulate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.newAccount(t, "u1", "5")

	// 99.99 fails the minimum amount; the tiny balance also fails the 10%
	// rule (9.999 required) but not the 5x cap (25).
	got, err := f.engine.CheckEligibility(ctx, "u1", decimal.RequireFromString("99.99"), 3)
	require.NoError(t, err)
	assert.False(t, got.Eligible)
	assert.Contains(t, got.Reasons, "minimum loan amount is $100")
	assert.Contains(t, got.Reasons, "loan term must be between 6 and 60 months")

	// At exactly $100 the minimum-amount rule passes.
	got, err = f.engine.CheckEligibility(ctx, "u1", decimal.NewFromInt(100), 12)
	require.NoError(t, err)
	assert.NotContains(t, got.Reasons, "minimum loan amount is $100")
}

func TestCheckEligibilityMaxLoan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.newAccount(t, "u1", "1000")

	got, err := f.engine.CheckEligibility(ctx, "u1", decimal.NewFromInt(6000), 12)
	require.NoError(t, err)
	assert.False(t, got.Eligible)
	assert.Contains(t, got.Reasons, "requested amount exceeds maximum allowed ($5000.00)")
	assert.True(t, got.RecommendedAmount.Equal(decimal.NewFromInt(5000)))
}

func TestCheckEligibilityDebtRatio(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.newAccount(t, "u1", "1000")

	// An active loan with 600 outstanding pushes the ratio past 50%.
	require.NoError(t, f.store.CreateLoan(ctx, &loans.Loan{
		UserID:           "u1",
		Principal:        decimal.NewFromInt(600),
		RemainingBalance: decimal.NewFromInt(600),
		Status:           loans.StatusActive,
		AppliedAt:        time.Now(),
	}))

	got, err := f.engine.CheckEligibility(ctx, "u1", decimal.NewFromInt(1000), 12)
	require.NoError(t, err)
	assert.False(t, got.Eligible)
	assert.Contains(t, got.Reasons, "high existing debt, debt-to-balance ratio exceeds 50%")

	// Rejected and paid loans do not count.
	require.NoError(t, f.store.CreateLoan(ctx, &loans.Loan{
		UserID:           "u2",
		Principal:        decimal.NewFromInt(600),
		RemainingBalance: decimal.NewFromInt(600),
		Status:           loans.StatusRejected,
		AppliedAt:        time.Now(),
	}))
	f.newAccount(t, "u2", "1000")
	got, err = f.engine.CheckEligibility(ctx, "u2", decimal.NewFromInt(1000), 12)
	require.NoError(t, err)
	assert.True(t, got.Eligible)
}

func TestMonthlyPaymentAmortizes(t *testing.T) {
	principal := decimal.NewFromInt(4000)
	rate := decimal.RequireFromString("5.5")
	term := 12

	payment := loans.MonthlyPayment(principal, rate, term)

	// Simulate the repayment schedule: accrue monthly interest, subtract
	// the payment; the residual after the final payment stays within a cent.
	monthlyRate := rate.Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(12))
	balance := principal
	for i := 0; i < term; i++ {
		balance = balance.Add(balance.Mul(monthlyRate)).Sub(payment)
	}
	assert.True(t, balance.Abs().LessThanOrEqual(decimal.RequireFromString("0.01")),
		"residual %s", balance)
}

func TestMonthlyPaymentZeroRate(t *testing.T) {
	payment := loans.MonthlyPayment(decimal.NewFromInt(1200), decimal.Zero, 12)
	assert.True(t, payment.Equal(decimal.NewFromInt(100)))
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.newAccount(t, "u1", "1000")

	applied := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	f.engine.WithClock(func() time.Time { return applied })

	loan, err := f.engine.Apply(ctx, "u1", decimal.NewFromInt(4000), 12, a.ID)
	require.NoError(t, err)
	assert.Equal(t, loans.StatusPending, loan.Status)
	assert.True(t, loan.InterestRate.Equal(decimal.RequireFromString("5.5")))
	assert.True(t, loan.RemainingBalance.Equal(decimal.NewFromInt(4000)))
	require.NotNil(t, loan.DueAt)
	assert.Equal(t, applied.AddDate(0, 12, 0), *loan.DueAt)
	assert.Nil(t, loan.ApprovedAt)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "LoanApplication", events[0].Action)
}

func TestApplyNotEligible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.newAccount(t, "u1", "10")

	_, err := f.engine.Apply(ctx, "u1", decimal.NewFromInt(4000), 12, "")
	var notEligible *loans.NotEligibleError
	require.ErrorAs(t, err, &notEligible)
	assert.NotEmpty(t, notEligible.Reasons)
}

func TestApplyValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.newAccount(t, "u1", "1000")

	_, err := f.engine.Apply(ctx, "u1", decimal.Zero, 12, "")
	assert.ErrorIs(t, err, transactions.ErrInvalidAmount)

	_, err = f.engine.Apply(ctx, "u1", decimal.NewFromInt(500), 3, "")
	assert.ErrorIs(t, err, loans.ErrInvalidTerm)

	_, err = f.engine.Apply(ctx, "u1", decimal.NewFromInt(500), 61, "")
	assert.ErrorIs(t, err, loans.ErrInvalidTerm)

	_, err = f.engine.Apply(ctx, "u1", decimal.NewFromInt(500), 12, "missing")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestApproveDisbursesToLinkedAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.newAccount(t, "u1", "1000")

	loan, err := f.engine.Apply(ctx, "u1", decimal.NewFromInt(4000), 12, a.ID)
	require.NoError(t, err)

	approved, err := f.engine.Approve(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loans.StatusActive, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	got, err := f.store.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(5000)))

	last, err := f.store.LastEntry(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Contains(t, last.Description, "Loan Disbursement")

	// Only pending loans can be approved.
	_, err = f.engine.Approve(ctx, loan.ID)
	assert.ErrorIs(t, err, loans.ErrInvalidState)
}

func TestApproveWithoutLinkedAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.newAccount(t, "u1", "1000")

	loan, err := f.engine.Apply(ctx, "u1", decimal.NewFromInt(2000), 12, "")
	require.NoError(t, err)

	approved, err := f.engine.Approve(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loans.StatusActive, approved.Status)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.newAccount(t, "u1", "1000")

	loan, err := f.engine.Apply(ctx, "u1", decimal.NewFromInt(2000), 12, "")
	require.NoError(t, err)

	rejected, err := f.engine.Reject(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loans.StatusRejected, rejected.Status)

	_, err = f.engine.Reject(ctx, loan.ID)
	assert.ErrorIs(t, err, loans.ErrInvalidState)
	_, err = f.engine.Approve(ctx, loan.ID)
	assert.ErrorIs(t, err, loans.ErrInvalidState)

	_, err = f.engine.Reject(ctx, "missing")
	assert.ErrorIs(t, err, loans.ErrNotFound)
}

func TestPay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.newAccount(t, "u1", "10000")

	loan, err := f.engine.Apply(ctx, "u1", decimal.NewFromInt(500), 12, "")
	require.NoError(t, err)
	_, err = f.engine.Approve(ctx, loan.ID)
	require.NoError(t, err)

	paid, err := f.engine.Pay(ctx, loan.ID, a.ID, decimal.NewFromInt(200))
	require.NoError(t, err)
	assert.Equal(t, loans.StatusActive, paid.Status)
	assert.True(t, paid.RemainingBalance.Equal(decimal.NewFromInt(300)))

	got, err := f.store.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(9800)))

	last, err := f.store.LastEntry(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, ledger.KindWithdrawal, last.Kind)
	assert.Contains(t, last.Description, "Loan Payment")
}

func TestOverpaymentClampsToZeroAndPaysOff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.newAccount(t, "u1", "10000")

	loan, err := f.engine.Apply(ctx, "u1", decimal.NewFromInt(500), 12, "")
	require.NoError(t, err)
	_, err = f.engine.Approve(ctx, loan.ID)
	require.NoError(t, err)

	// Paying 600 against a 500 balance clamps to zero, never negative.
	paid, err := f.engine.Pay(ctx, loan.ID, a.ID, decimal.NewFromInt(600))
	require.NoError(t, err)
	assert.True(t, paid.RemainingBalance.IsZero())
	assert.Equal(t, loans.StatusPaid, paid.Status)

	// The full requested amount was still withdrawn.
	got, err := f.store.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(9400)))

	// A paid-off loan takes no further payments.
	_, err = f.engine.Pay(ctx, loan.ID, a.ID, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, loans.ErrInvalidState)
}

func TestPayValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.newAccount(t, "u1", "50")

	loan, err := f.engine.Apply(ctx, "u1", decimal.NewFromInt(200), 12, "")
	require.NoError(t, err)

	// Pending loans are not payable.
	_, err = f.engine.Pay(ctx, loan.ID, a.ID, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, loans.ErrInvalidState)

	_, err = f.engine.Approve(ctx, loan.ID)
	require.NoError(t, err)

	_, err = f.engine.Pay(ctx, loan.ID, a.ID, decimal.Zero)
	assert.ErrorIs(t, err, transactions.ErrInvalidAmount)

	// Balance 50, payment 100.
	_, err = f.engine.Pay(ctx, loan.ID, a.ID, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, transactions.ErrInsufficientFunds)

	_, err = f.engine.Pay(ctx, "missing", a.ID, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, loans.ErrNotFound)
}

// brokenLoanStore fails selected writes after the transaction engine has
// already committed its side, forcing the partial-operation paths.
type brokenLoanStore struct {
	*storage.Memory
	failApplyPayment bool
	failUpdateLoan   bool
}

var errStoreDown = errors.New("loan store unavailable")

func (s *brokenLoanStore) ApplyPayment(ctx context.Context, loanID string, amount decimal.Decimal) (*loans.Loan, error) {
	if s.failApplyPayment {
		return nil, errStoreDown
	}
	return s.Memory.ApplyPayment(ctx, loanID, amount)
}

func (s *brokenLoanStore) UpdateLoan(ctx context.Context, l *loans.Loan) error {
	if s.failUpdateLoan {
		return errStoreDown
	}
	return s.Memory.UpdateLoan(ctx, l)
}

func newBrokenFixture(t *testing.T) (*fixture, *brokenLoanStore) {
	t.Helper()
	f := newFixture(t)
	broken := &brokenLoanStore{Memory: f.store}
	f.engine = loans.NewEngine(broken, f.store, f.tx, f.sink)
	return f, broken
}

func TestPayReconciliation(t *testing.T) {
	ctx := context.Background()
	f, broken := newBrokenFixture(t)
	a := f.newAccount(t, "u1", "10000")

	loan, err := f.engine.Apply(ctx, "u1", decimal.NewFromInt(500), 12, "")
	require.NoError(t, err)
	_, err = f.engine.Approve(ctx, loan.ID)
	require.NoError(t, err)

	broken.failApplyPayment = true
	_, err = f.engine.Pay(ctx, loan.ID, a.ID, decimal.NewFromInt(200))
	require.ErrorIs(t, err, loans.ErrReconciliation)

	// The withdrawal committed and stays committed; only the loan balance
	// decrement is missing.
	got, err := f.store.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(9800)))

	last, err := f.store.LastEntry(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, ledger.KindWithdrawal, last.Kind)
	assert.Contains(t, last.Description, "Loan Payment")

	stored, err := f.store.LoanByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, stored.RemainingBalance.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, loans.StatusActive, stored.Status)
}

func TestApproveReconciliation(t *testing.T) {
	ctx := context.Background()
	f, broken := newBrokenFixture(t)
	a := f.newAccount(t, "u1", "1000")

	loan, err := f.engine.Apply(ctx, "u1", decimal.NewFromInt(2000), 12, a.ID)
	require.NoError(t, err)

	broken.failUpdateLoan = true
	_, err = f.engine.Approve(ctx, loan.ID)
	require.ErrorIs(t, err, loans.ErrReconciliation)

	// The disbursement committed; the loan never activated.
	got, err := f.store.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(3000)))

	last, err := f.store.LastEntry(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Contains(t, last.Description, "Loan Disbursement")

	stored, err := f.store.LoanByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loans.StatusPending, stored.Status)
}

func TestApproveUpdateFailureWithoutDisbursement(t *testing.T) {
	ctx := context.Background()
	f, broken := newBrokenFixture(t)
	f.newAccount(t, "u1", "1000")

	loan, err := f.engine.Apply(ctx, "u1", decimal.NewFromInt(2000), 12, "")
	require.NoError(t, err)

	// With no linked account nothing was disbursed, so the failure is an
	// ordinary store error rather than a reconciliation case.
	broken.failUpdateLoan = true
	_, err = f.engine.Approve(ctx, loan.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, loans.ErrReconciliation)
}

func TestUserLoansNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.newAccount(t, "u1", "1000")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.AddDate(0, i, 0)
		f.engine.WithClock(func() time.Time { return at })
		_, err := f.engine.Apply(ctx, "u1", decimal.NewFromInt(500), 12, "")
		require.NoError(t, err)
	}

	got, err := f.engine.UserLoans(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].AppliedAt.After(got[1].AppliedAt))
	assert.True(t, got[1].AppliedAt.After(got[2].AppliedAt))
}
