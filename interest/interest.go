// Package interest accrues monthly interest on interest-bearing accounts
// and answers projected-interest queries.
package interest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"banking-system/account"
	"banking-system/transactions"
)

var monthsPerYear = decimal.NewFromInt(12)
var percent = decimal.NewFromInt(100)

type Engine struct {
	accounts account.Store
	engine   *transactions.Engine
	now      func() time.Time
}

func NewEngine(accounts account.Store, engine *transactions.Engine) *Engine {
	return &Engine{accounts: accounts, engine: engine, now: time.Now}
}

// WithClock overrides the engine's clock. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ApplyResult reports the outcome of one account's interest application.
type ApplyResult struct {
	AccountID string
	Interest  decimal.Decimal
	Err       error
}

// ApplyMonthlyInterest credits balance * rate/100/12 to every active
// interest-bearing account with a positive balance, through the
// transaction engine's deposit path. One account's failure is recorded in
// its result and does not abort the rest of the batch.
func (e *Engine) ApplyMonthlyInterest(ctx context.Context) ([]ApplyResult, error) {
	accounts, err := e.accounts.InterestBearingAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list interest-bearing accounts: %w", err)
	}

	description := fmt.Sprintf("Monthly Interest - %s", e.now().Format("January 2006"))
	var results []ApplyResult
	for _, acct := range accounts {
		if !acct.Balance.IsPositive() {
			continue
		}
		interest := monthlyInterest(acct.Balance, acct.Type.InterestRate)
		if !interest.IsPositive() {
			continue
		}
		r := ApplyResult{AccountID: acct.ID, Interest: interest}
		if _, err := e.engine.Deposit(ctx, acct.ID, interest, description); err != nil {
			r.Err = err
		}
		results = append(results, r)
	}
	return results, nil
}

// ProjectedInterest returns balance * rate/100/12 * months. Missing,
// inactive or non-interest-bearing accounts project zero rather than
// failing.
func (e *Engine) ProjectedInterest(ctx context.Context, accountID string, months int) (decimal.Decimal, error) {
	if months <= 0 {
		return decimal.Zero, nil
	}
	acct, err := e.accounts.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	if !acct.Active || !acct.Type.InterestBearing() {
		return decimal.Zero, nil
	}
	monthlyRate := acct.Type.InterestRate.Div(percent).Div(monthsPerYear)
	return acct.Balance.Mul(monthlyRate).Mul(decimal.NewFromInt(int64(months))).Round(2), nil
}

// monthlyInterest rounds to cents; ledger amounts are money.
func monthlyInterest(balance, annualRate decimal.Decimal) decimal.Decimal {
	return balance.Mul(annualRate.Div(percent).Div(monthsPerYear)).Round(2)
}
