package interest_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking-system/account"
	"banking-system/interest"
	"banking-system/ledger"
	"banking-system/limits"
	"banking-system/storage"
	"banking-system/transactions"
)

type fixture struct {
	store  *storage.Memory
	engine *interest.Engine
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	store := storage.NewMemory()
	store.Now = func() time.Time { return now }
	guard := limits.NewGuard(limits.Default(), store)
	tx := transactions.NewEngine(store, store, guard, nil)
	eng := interest.NewEngine(store, tx).WithClock(func() time.Time { return now })
	return &fixture{store: store, engine: eng}
}

func (f *fixture) newAccount(t *testing.T, typ account.AccountType, balance string) *account.Account {
	t.Helper()
	seeded := f.store.SeedAccountType(typ)
	a := &account.Account{UserID: "u1", AccountNumber: "0001", Type: seeded}
	require.NoError(t, f.store.CreateAccount(context.Background(), a))
	if b := decimal.RequireFromString(balance); b.IsPositive() {
		_, err := f.store.Apply(context.Background(), ledger.Mutation{
			AccountID: a.ID, Kind: ledger.KindDeposit, Amount: b,
		})
		require.NoError(t, err)
	}
	return a
}

func TestApplyMonthlyInterest(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	savings := f.newAccount(t, account.AccountType{
		TypeName:     "Savings",
		InterestRate: decimal.RequireFromString("2.50"),
	}, "1000")
	f.newAccount(t, account.AccountType{TypeName: "Checking"}, "1000")
	f.newAccount(t, account.AccountType{
		TypeName:     "Premium",
		InterestRate: decimal.RequireFromString("3.00"),
	}, "0")

	results, err := f.engine.ApplyMonthlyInterest(ctx)
	require.NoError(t, err)

	// Only the funded savings account accrues; checking bears no interest
	// and the zero-balance account is skipped.
	require.Len(t, results, 1)
	assert.Equal(t, savings.ID, results[0].AccountID)
	assert.NoError(t, results[0].Err)
	// 1000 * 2.50/100/12 = 2.0833... rounded to 2.08.
	assert.True(t, results[0].Interest.Equal(decimal.RequireFromString("2.08")),
		"got %s", results[0].Interest)

	got, err := f.store.AccountByID(ctx, savings.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("1002.08")))

	last, err := f.store.LastEntry(ctx, savings.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, ledger.KindDeposit, last.Kind)
	assert.Equal(t, "Monthly Interest - January 2026", last.Description)
}

func TestApplyMonthlyInterestSkipsInactive(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	a := f.newAccount(t, account.AccountType{
		TypeName:     "Savings",
		InterestRate: decimal.RequireFromString("2.50"),
	}, "0")
	require.NoError(t, f.store.CloseAccount(ctx, a.ID))

	results, err := f.engine.ApplyMonthlyInterest(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestProjectedInterest(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	savings := f.newAccount(t, account.AccountType{
		TypeName:     "Savings",
		InterestRate: decimal.RequireFromString("2.50"),
	}, "1000")

	// 1000 * 2.50/100/12 * 12 = 25.00 over a year.
	got, err := f.engine.ProjectedInterest(ctx, savings.ID, 12)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("25.00")), "got %s", got)

	got, err = f.engine.ProjectedInterest(ctx, savings.ID, 1)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("2.08")), "got %s", got)

	got, err = f.engine.ProjectedInterest(ctx, savings.ID, 0)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestProjectedInterestZeroForIneligible(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	checking := f.newAccount(t, account.AccountType{TypeName: "Checking"}, "1000")

	got, err := f.engine.ProjectedInterest(ctx, checking.ID, 12)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	// Missing account projects zero instead of failing.
	got, err = f.engine.ProjectedInterest(ctx, "missing", 12)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
