package storage_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking-system/account"
	"banking-system/ledger"
	"banking-system/storage"
)

func seedAccount(t *testing.T, m *storage.Memory) *account.Account {
	t.Helper()
	typ := m.SeedAccountType(account.AccountType{TypeName: "Checking"})
	a := &account.Account{UserID: "u1", AccountNumber: "0001", Type: typ}
	require.NoError(t, m.CreateAccount(context.Background(), a))
	return a
}

func TestConcurrentDepositsLoseNothing(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()
	a := seedAccount(t, m)

	const workers = 8
	const perWorker = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := m.Apply(ctx, ledger.Mutation{
					AccountID: a.ID, Kind: ledger.KindDeposit, Amount: decimal.NewFromInt(1),
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := m.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(workers*perWorker)))

	entries, err := m.History(ctx, a.ID, ledger.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, workers*perWorker)

	last, err := m.LastEntry(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.BalanceAfter.Equal(got.Balance))
}

func TestApplyBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()
	a := seedAccount(t, m)
	_, err := m.Apply(ctx, ledger.Mutation{
		AccountID: a.ID, Kind: ledger.KindDeposit, Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	// Second mutation drops below the floor; the first must not stick.
	_, err = m.Apply(ctx,
		ledger.Mutation{AccountID: a.ID, Kind: ledger.KindDeposit, Amount: decimal.NewFromInt(10)},
		ledger.Mutation{AccountID: a.ID, Kind: ledger.KindWithdrawal, Amount: decimal.NewFromInt(500)},
	)
	require.ErrorIs(t, err, ledger.ErrBelowFloor)

	got, err := m.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))

	entries, err := m.History(ctx, a.ID, ledger.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestApplyFloor(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()
	a := seedAccount(t, m)
	_, err := m.Apply(ctx, ledger.Mutation{
		AccountID: a.ID, Kind: ledger.KindDeposit, Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	_, err = m.Apply(ctx, ledger.Mutation{
		AccountID: a.ID, Kind: ledger.KindWithdrawal,
		Amount: decimal.NewFromInt(60), Floor: decimal.NewFromInt(50),
	})
	require.ErrorIs(t, err, ledger.ErrBelowFloor)

	_, err = m.Apply(ctx, ledger.Mutation{
		AccountID: a.ID, Kind: ledger.KindWithdrawal,
		Amount: decimal.NewFromInt(50), Floor: decimal.NewFromInt(50),
	})
	assert.NoError(t, err)
}

func TestApplyUnknownAccount(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()
	_, err := m.Apply(ctx, ledger.Mutation{
		AccountID: "missing", Kind: ledger.KindDeposit, Amount: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestCloseAccount(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()
	a := seedAccount(t, m)

	_, err := m.Apply(ctx, ledger.Mutation{
		AccountID: a.ID, Kind: ledger.KindDeposit, Amount: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	require.ErrorIs(t, m.CloseAccount(ctx, a.ID), account.ErrNotEmpty)

	_, err = m.Apply(ctx, ledger.Mutation{
		AccountID: a.ID, Kind: ledger.KindWithdrawal, Amount: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	require.NoError(t, m.CloseAccount(ctx, a.ID))

	got, err := m.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	assert.ErrorIs(t, m.CloseAccount(ctx, "missing"), account.ErrNotFound)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()
	a := seedAccount(t, m)

	got, err := m.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	got.Balance = decimal.NewFromInt(1_000_000)

	again, err := m.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, again.Balance.IsZero())
}
