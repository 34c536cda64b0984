// Package limits enforces the per-transaction ceiling, per-kind daily caps
// and the minimum-balance floor. Evaluation is a pure function over an
// account snapshot; Guard supplies the snapshot's daily total from the
// ledger.
package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"banking-system/account"
	"banking-system/ledger"
)

// Rule identifies which check a rejection came from.
type Rule int

const (
	RuleNone Rule = iota
	RuleMaxAmount
	RuleDailyCap
	RuleInsufficientFunds
	RuleMinimumBalance
	RuleNonPositive
)

// Result is a pass/fail verdict with a human-readable reason on failure.
type Result struct {
	OK     bool
	Rule   Rule
	Reason string
}

func pass() Result { return Result{OK: true} }

func fail(rule Rule, format string, args ...any) Result {
	return Result{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// Limits are the configured monetary ceilings.
type Limits struct {
	DailyWithdrawal decimal.Decimal
	DailyTransfer   decimal.Decimal
	MaxTransaction  decimal.Decimal
}

// Default returns the stock limits: $5,000 daily withdrawals, $10,000 daily
// transfers, $50,000 per transaction.
func Default() Limits {
	return Limits{
		DailyWithdrawal: decimal.NewFromInt(5000),
		DailyTransfer:   decimal.NewFromInt(10000),
		MaxTransaction:  decimal.NewFromInt(50000),
	}
}

// Evaluate applies the rules in order; the first failure wins. todayTotal
// is the sum of the account's same-kind entries so far today. Evaluate
// never mutates state.
func Evaluate(acct *account.Account, kind ledger.Kind, amount, todayTotal decimal.Decimal, l Limits) Result {
	if amount.GreaterThan(l.MaxTransaction) {
		return fail(RuleMaxAmount,
			"transaction amount exceeds maximum limit of $%s", l.MaxTransaction.StringFixed(2))
	}

	switch kind {
	case ledger.KindWithdrawal:
		if todayTotal.Add(amount).GreaterThan(l.DailyWithdrawal) {
			return fail(RuleDailyCap,
				"daily withdrawal limit of $%s exceeded, already withdrawn $%s today",
				l.DailyWithdrawal.StringFixed(2), todayTotal.StringFixed(2))
		}
		if acct.Balance.LessThan(amount) {
			return fail(RuleInsufficientFunds, "insufficient funds")
		}
		if acct.Balance.Sub(amount).LessThan(acct.Type.MinimumBalance) {
			return fail(RuleMinimumBalance,
				"withdrawal would violate minimum balance requirement of $%s",
				acct.Type.MinimumBalance.StringFixed(2))
		}
	case ledger.KindTransfer:
		if todayTotal.Add(amount).GreaterThan(l.DailyTransfer) {
			return fail(RuleDailyCap,
				"daily transfer limit of $%s exceeded, already transferred $%s today",
				l.DailyTransfer.StringFixed(2), todayTotal.StringFixed(2))
		}
		if acct.Balance.LessThan(amount) {
			return fail(RuleInsufficientFunds, "insufficient funds for transfer")
		}
	case ledger.KindDeposit:
		// Callers already reject non-positive amounts; kept as a safety net.
		if !amount.IsPositive() {
			return fail(RuleNonPositive, "deposit amount must be greater than zero")
		}
	}
	return pass()
}

// Guard evaluates the limit rules against live ledger state.
type Guard struct {
	limits Limits
	ledger ledger.Store
	now    func() time.Time
}

func NewGuard(l Limits, store ledger.Store) *Guard {
	return &Guard{limits: l, ledger: store, now: time.Now}
}

// WithClock overrides the guard's clock. Tests only.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Check recomputes today's same-kind total for the account and evaluates
// the rules against it.
func (g *Guard) Check(ctx context.Context, acct *account.Account, kind ledger.Kind, amount decimal.Decimal) (Result, error) {
	todayTotal := decimal.Zero
	if kind == ledger.KindWithdrawal || kind == ledger.KindTransfer {
		var err error
		todayTotal, err = g.ledger.DailyTotal(ctx, acct.ID, kind, g.now())
		if err != nil {
			return Result{}, fmt.Errorf("could not compute daily total: %w", err)
		}
	}
	return Evaluate(acct, kind, amount, todayTotal, g.limits), nil
}
