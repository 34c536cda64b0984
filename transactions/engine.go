// Package transactions is the transaction engine: the only component
// permitted to mutate account balances. Every mutation passes the limits
// guard, commits the balance change and its ledger entry as one unit, and
// emits a best-effort audit event.
package transactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"banking-system/account"
	"banking-system/audit"
	"banking-system/ledger"
	"banking-system/limits"
)

type Engine struct {
	accounts account.Store
	ledger   ledger.Store
	guard    *limits.Guard
	audit    audit.Sink
}

func NewEngine(accounts account.Store, store ledger.Store, guard *limits.Guard, sink audit.Sink) *Engine {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Engine{accounts: accounts, ledger: store, guard: guard, audit: sink}
}

// Deposit credits the account and returns the resulting ledger entry.
func (e *Engine) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*ledger.Entry, error) {
	acct, err := e.validate(ctx, accountID, amount)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = "Deposit"
	}

	res, err := e.guard.Check(ctx, acct, ledger.KindDeposit, amount)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, guardError(res)
	}

	entries, err := e.ledger.Apply(ctx, ledger.Mutation{
		AccountID:   accountID,
		Kind:        ledger.KindDeposit,
		Amount:      amount,
		Description: description,
	})
	if err != nil {
		return nil, mapLedgerError(err)
	}
	entry := &entries[0]

	e.audit.Record(audit.Event{
		UserID:     acct.UserID,
		Action:     "Deposit",
		EntityType: "Transaction",
		EntityID:   entry.ID,
		Details:    fmt.Sprintf("Deposit of $%s to account %s", amount.StringFixed(2), acct.AccountNumber),
	})
	return entry, nil
}

// Withdraw debits the account and returns the resulting ledger entry.
func (e *Engine) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*ledger.Entry, error) {
	acct, err := e.validate(ctx, accountID, amount)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = "Withdrawal"
	}

	res, err := e.guard.Check(ctx, acct, ledger.KindWithdrawal, amount)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, guardError(res)
	}

	entries, err := e.ledger.Apply(ctx, ledger.Mutation{
		AccountID:   accountID,
		Kind:        ledger.KindWithdrawal,
		Amount:      amount,
		Description: description,
		// The guard checked a snapshot; the floor re-enforces the minimum
		// balance under the row lock.
		Floor: acct.Type.MinimumBalance,
	})
	if err != nil {
		return nil, mapLedgerError(err)
	}
	entry := &entries[0]

	e.audit.Record(audit.Event{
		UserID:     acct.UserID,
		Action:     "Withdrawal",
		EntityType: "Transaction",
		EntityID:   entry.ID,
		Details:    fmt.Sprintf("Withdrawal of $%s from account %s", amount.StringFixed(2), acct.AccountNumber),
	})
	return entry, nil
}

// Transfer debits the source and credits the destination in one store
// transaction. The guard runs against the source only; the credit leg is
// applied as an unconditional deposit. The destination gets a plain
// deposit-shaped entry rather than a second transfer-tagged row; only the
// debit entry carries the related account id.
func (e *Engine) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, description string) (*ledger.Entry, error) {
	if fromID == toID {
		return nil, ErrSameAccount
	}
	from, err := e.validate(ctx, fromID, amount)
	if err != nil {
		return nil, err
	}
	to, err := e.accounts.AccountByID(ctx, toID)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = fmt.Sprintf("Transfer to account %s", to.AccountNumber)
	}

	res, err := e.guard.Check(ctx, from, ledger.KindTransfer, amount)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, guardError(res)
	}

	entries, err := e.ledger.Apply(ctx,
		ledger.Mutation{
			AccountID:        fromID,
			Kind:             ledger.KindTransfer,
			Amount:           amount,
			Description:      description,
			RelatedAccountID: toID,
		},
		ledger.Mutation{
			AccountID:   toID,
			Kind:        ledger.KindDeposit,
			Amount:      amount,
			Description: fmt.Sprintf("Transfer from account %s", from.AccountNumber),
		},
	)
	if err != nil {
		return nil, mapLedgerError(err)
	}
	debit := &entries[0]

	e.audit.Record(audit.Event{
		UserID:     from.UserID,
		Action:     "Transfer",
		EntityType: "Transaction",
		EntityID:   debit.ID,
		Details: fmt.Sprintf("Transfer of $%s from account %s to account %s",
			amount.StringFixed(2), from.AccountNumber, to.AccountNumber),
	})
	return debit, nil
}

// History returns the account's ledger entries, newest first.
func (e *Engine) History(ctx context.Context, accountID string, f ledger.Filter) ([]ledger.Entry, error) {
	if _, err := e.accounts.AccountByID(ctx, accountID); err != nil {
		return nil, err
	}
	return e.ledger.History(ctx, accountID, f)
}

func (e *Engine) validate(ctx context.Context, accountID string, amount decimal.Decimal) (*account.Account, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	acct, err := e.accounts.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !acct.Active {
		return nil, ErrAccountInactive
	}
	return acct, nil
}

func guardError(res limits.Result) error {
	var base error
	switch res.Rule {
	case limits.RuleInsufficientFunds:
		base = ErrInsufficientFunds
	case limits.RuleMinimumBalance:
		base = ErrBelowMinimumBalance
	case limits.RuleNonPositive:
		base = ErrInvalidAmount
	default:
		base = ErrLimitExceeded
	}
	return fmt.Errorf("%w: %s", base, res.Reason)
}

// mapLedgerError converts floor violations detected under the row lock
// into the same failures the guard would have produced.
func mapLedgerError(err error) error {
	if errors.Is(err, ledger.ErrBelowFloor) {
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, "balance changed concurrently")
	}
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return account.ErrNotFound
	}
	return err
}
