package goals_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking-system/account"
	"banking-system/audit"
	"banking-system/goals"
	"banking-system/storage"
)

type fixture struct {
	store   *storage.Memory
	sink    *audit.Memory
	service *goals.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemory()
	sink := audit.NewMemory()
	return &fixture{
		store:   store,
		sink:    sink,
		service: goals.NewService(store, store, sink),
	}
}

func (f *fixture) newAccount(t *testing.T, userID string) *account.Account {
	t.Helper()
	typ := f.store.SeedAccountType(account.AccountType{TypeName: "Savings"})
	a := &account.Account{UserID: userID, AccountNumber: "0001", Type: typ}
	require.NoError(t, f.store.CreateAccount(context.Background(), a))
	return a
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.newAccount(t, "u1")

	_, err := f.service.Create(ctx, "u1", "", "", decimal.NewFromInt(100), nil, "")
	assert.ErrorContains(t, err, "name is required")

	_, err = f.service.Create(ctx, "u1", "", "Vacation", decimal.Zero, nil, "")
	assert.ErrorContains(t, err, "greater than zero")

	_, err = f.service.Create(ctx, "u1", "missing", "Vacation", decimal.NewFromInt(100), nil, "")
	assert.ErrorIs(t, err, account.ErrNotFound)

	// A linked account must belong to the goal's owner.
	_, err = f.service.Create(ctx, "u2", a.ID, "Vacation", decimal.NewFromInt(100), nil, "")
	assert.ErrorContains(t, err, "does not belong")
}

func TestCreateWithLinkedAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.newAccount(t, "u1")

	g, err := f.service.Create(ctx, "u1", a.ID, "Vacation", decimal.NewFromInt(500), nil, "Trip fund")
	require.NoError(t, err)
	assert.Equal(t, a.ID, g.AccountID)
	assert.True(t, g.CurrentAmount.IsZero())
	assert.False(t, g.Completed)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "SavingsGoalCreated", events[0].Action)
	assert.Equal(t, "u1", events[0].UserID)
}

func TestAddCompletesAtTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	g, err := f.service.Create(ctx, "u1", "", "Vacation", decimal.NewFromInt(100), nil, "")
	require.NoError(t, err)

	g, err = f.service.Add(ctx, g.ID, decimal.NewFromInt(60))
	require.NoError(t, err)
	assert.False(t, g.Completed)

	g, err = f.service.Add(ctx, g.ID, decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.True(t, g.Completed)
	assert.True(t, g.CurrentAmount.Equal(decimal.NewFromInt(100)))

	// Completed goals take no further additions.
	_, err = f.service.Add(ctx, g.ID, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, goals.ErrCompleted)

	_, err = f.service.Add(ctx, g.ID, decimal.Zero)
	assert.ErrorContains(t, err, "greater than zero")

	_, err = f.service.Add(ctx, "missing", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, goals.ErrNotFound)
}

func TestWithdrawResetsCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	g, err := f.service.Create(ctx, "u1", "", "Vacation", decimal.NewFromInt(100), nil, "")
	require.NoError(t, err)
	g, err = f.service.Add(ctx, g.ID, decimal.NewFromInt(100))
	require.NoError(t, err)
	require.True(t, g.Completed)

	g, err = f.service.Withdraw(ctx, g.ID, decimal.NewFromInt(30))
	require.NoError(t, err)
	assert.False(t, g.Completed)
	assert.True(t, g.CurrentAmount.Equal(decimal.NewFromInt(70)))

	_, err = f.service.Withdraw(ctx, g.ID, decimal.NewFromInt(1000))
	assert.ErrorIs(t, err, goals.ErrInsufficient)

	_, err = f.service.Withdraw(ctx, g.ID, decimal.Zero)
	assert.ErrorContains(t, err, "greater than zero")
}

func TestProgressCapsAtHundred(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	g, err := f.service.Create(ctx, "u1", "", "Vacation", decimal.NewFromInt(100), nil, "")
	require.NoError(t, err)

	g, err = f.service.Add(ctx, g.ID, decimal.NewFromInt(150))
	require.NoError(t, err)

	// 150 saved against a 100 target still reads as 100%.
	assert.True(t, goals.Progress(g).Equal(decimal.NewFromInt(100)))

	g.CurrentAmount = decimal.RequireFromString("33.33")
	assert.True(t, goals.Progress(g).Equal(decimal.RequireFromString("33.33")))
}

func TestStatusFigures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	f.service.WithClock(func() time.Time { return now })

	target := now.AddDate(0, 0, 60)
	g, err := f.service.Create(ctx, "u1", "", "Vacation", decimal.NewFromInt(1000), &target, "")
	require.NoError(t, err)
	g, err = f.service.Add(ctx, g.ID, decimal.NewFromInt(100))
	require.NoError(t, err)

	status := f.service.Status(g)
	assert.Equal(t, 60, status.DaysRemaining)
	// 900 remaining over two 30-day months.
	assert.True(t, status.RequiredMonthly.Equal(decimal.NewFromInt(450)),
		"required monthly %s", status.RequiredMonthly)
	assert.True(t, status.Progress.Equal(decimal.NewFromInt(10)))
}

func TestStatusWithoutTargetDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	g, err := f.service.Create(ctx, "u1", "", "Vacation", decimal.NewFromInt(1000), nil, "")
	require.NoError(t, err)

	status := f.service.Status(g)
	assert.Equal(t, -1, status.DaysRemaining)
	assert.True(t, status.RequiredMonthly.IsZero())
}

func TestStatusPastTargetDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	f.service.WithClock(func() time.Time { return now })

	target := now.AddDate(0, 0, -10)
	g, err := f.service.Create(ctx, "u1", "", "Vacation", decimal.NewFromInt(1000), &target, "")
	require.NoError(t, err)

	status := f.service.Status(g)
	assert.Equal(t, 0, status.DaysRemaining)
	assert.True(t, status.RequiredMonthly.IsZero())
}

func TestUserGoalsAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	g1, err := f.service.Create(ctx, "u1", "", "Vacation", decimal.NewFromInt(100), nil, "")
	require.NoError(t, err)
	_, err = f.service.Create(ctx, "u1", "", "Car", decimal.NewFromInt(5000), nil, "")
	require.NoError(t, err)
	_, err = f.service.Create(ctx, "u2", "", "House", decimal.NewFromInt(100), nil, "")
	require.NoError(t, err)

	got, err := f.service.UserGoals(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, f.service.Delete(ctx, g1.ID))
	got, err = f.service.UserGoals(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	assert.ErrorIs(t, f.service.Delete(ctx, g1.ID), goals.ErrNotFound)
}
