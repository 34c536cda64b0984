package limits_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking-system/account"
	"banking-system/ledger"
	"banking-system/limits"
	"banking-system/storage"
)

func acct(balance, minBalance string) *account.Account {
	return &account.Account{
		ID:      "acct-1",
		Balance: decimal.RequireFromString(balance),
		Active:  true,
		Type: account.AccountType{
			TypeName:       "Checking",
			MinimumBalance: decimal.RequireFromString(minBalance),
		},
	}
}

func TestEvaluate(t *testing.T) {
	l := limits.Default()

	tests := []struct {
		name       string
		acct       *account.Account
		kind       ledger.Kind
		amount     string
		todayTotal string
		wantOK     bool
		wantRule   limits.Rule
	}{
		{
			name: "deposit within limits passes",
			acct: acct("0", "0"), kind: ledger.KindDeposit,
			amount: "100", todayTotal: "0",
			wantOK: true,
		},
		{
			name: "amount above per-transaction ceiling fails for any kind",
			acct: acct("100000", "0"), kind: ledger.KindDeposit,
			amount: "50000.01", todayTotal: "0",
			wantRule: limits.RuleMaxAmount,
		},
		{
			name: "withdrawal at the ceiling is allowed",
			acct: acct("100000", "0"), kind: ledger.KindWithdrawal,
			amount: "5000", todayTotal: "0",
			wantOK: true,
		},
		{
			name: "withdrawal beyond daily cap fails",
			acct: acct("100000", "0"), kind: ledger.KindWithdrawal,
			amount: "3000", todayTotal: "3000",
			wantRule: limits.RuleDailyCap,
		},
		{
			name: "daily cap checked before balance",
			acct: acct("10", "0"), kind: ledger.KindWithdrawal,
			amount: "5001", todayTotal: "0",
			wantRule: limits.RuleDailyCap,
		},
		{
			name: "withdrawal over balance fails",
			acct: acct("100", "0"), kind: ledger.KindWithdrawal,
			amount: "100.01", todayTotal: "0",
			wantRule: limits.RuleInsufficientFunds,
		},
		{
			name: "withdrawal breaking minimum balance fails",
			acct: acct("1000", "100"), kind: ledger.KindWithdrawal,
			amount: "950", todayTotal: "0",
			wantRule: limits.RuleMinimumBalance,
		},
		{
			name: "withdrawal down to exactly the minimum balance passes",
			acct: acct("1000", "100"), kind: ledger.KindWithdrawal,
			amount: "900", todayTotal: "0",
			wantOK: true,
		},
		{
			name: "transfer beyond daily cap fails",
			acct: acct("100000", "0"), kind: ledger.KindTransfer,
			amount: "4000", todayTotal: "7000",
			wantRule: limits.RuleDailyCap,
		},
		{
			name: "transfer up to daily cap passes",
			acct: acct("100000", "0"), kind: ledger.KindTransfer,
			amount: "3000", todayTotal: "7000",
			wantOK: true,
		},
		{
			name: "transfer over balance fails",
			acct: acct("50", "0"), kind: ledger.KindTransfer,
			amount: "60", todayTotal: "0",
			wantRule: limits.RuleInsufficientFunds,
		},
		{
			name: "transfer ignores minimum balance",
			acct: acct("1000", "100"), kind: ledger.KindTransfer,
			amount: "950", todayTotal: "0",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := limits.Evaluate(tt.acct, tt.kind,
				decimal.RequireFromString(tt.amount),
				decimal.RequireFromString(tt.todayTotal), l)
			assert.Equal(t, tt.wantOK, res.OK)
			if !tt.wantOK {
				assert.Equal(t, tt.wantRule, res.Rule)
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestGuardUsesTodaysTotals(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return clock }

	typ := store.SeedAccountType(account.AccountType{TypeName: "Checking"})
	a := &account.Account{UserID: "u1", AccountNumber: "111", Type: typ, Balance: decimal.NewFromInt(20000)}
	require.NoError(t, store.CreateAccount(ctx, a))

	_, err := store.Apply(ctx, ledger.Mutation{
		AccountID: a.ID, Kind: ledger.KindWithdrawal, Amount: decimal.NewFromInt(3000),
	})
	require.NoError(t, err)

	guard := limits.NewGuard(limits.Default(), store).
		WithClock(func() time.Time { return clock })

	acct, err := store.AccountByID(ctx, a.ID)
	require.NoError(t, err)

	res, err := guard.Check(ctx, acct, ledger.KindWithdrawal, decimal.NewFromInt(3000))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, limits.RuleDailyCap, res.Rule)

	// A new day resets the total.
	nextDay := clock.AddDate(0, 0, 1)
	guard.WithClock(func() time.Time { return nextDay })
	res, err = guard.Check(ctx, acct, ledger.KindWithdrawal, decimal.NewFromInt(3000))
	require.NoError(t, err)
	assert.True(t, res.OK)
}
