// Package ledger holds the append-only transaction log and the single
// primitive allowed to move money: Apply, which updates an account balance
// and appends the matching ledger entry as one durable unit.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the class of a balance-changing event.
type Kind string

const (
	KindDeposit    Kind = "Deposit"
	KindWithdrawal Kind = "Withdrawal"
	KindTransfer   Kind = "Transfer"
)

// Sign is the direction the kind moves an account balance: +1 for a
// deposit, -1 for a withdrawal or the debit leg of a transfer.
func (k Kind) Sign() int {
	if k == KindDeposit {
		return 1
	}
	return -1
}

// Entry is an immutable record of one balance-changing event on one
// account. Entries are never updated or deleted.
type Entry struct {
	ID               string          `json:"id"`
	AccountID        string          `json:"account_id"`
	Kind             Kind            `json:"kind"`
	Amount           decimal.Decimal `json:"amount"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	Description      string          `json:"description,omitempty"`
	RelatedAccountID string          `json:"related_account_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Mutation describes one balance change to apply. Amount is always
// positive; the direction comes from the kind. Floor is the minimum the
// post-mutation balance may not drop below, enforced under the store's row
// lock so a stale pre-check can never overdraw the account.
type Mutation struct {
	AccountID        string
	Kind             Kind
	Amount           decimal.Decimal
	Description      string
	RelatedAccountID string
	Floor            decimal.Decimal
}

// Filter narrows a history query. Zero fields match everything.
type Filter struct {
	Start *time.Time
	End   *time.Time
	Kind  Kind
}

var (
	ErrAccountNotFound = errors.New("ledger: account not found")
	ErrBelowFloor      = errors.New("ledger: balance would drop below allowed floor")
)

// Store is the durable ledger boundary.
type Store interface {
	// Apply performs every mutation inside one store transaction. Account
	// rows are locked for the duration; either all balance updates and
	// entries commit or none do. Returned entries are in mutation order.
	Apply(ctx context.Context, muts ...Mutation) ([]Entry, error)
	// LastEntry returns the most recent entry for the account, or nil if
	// the account has no entries yet.
	LastEntry(ctx context.Context, accountID string) (*Entry, error)
	History(ctx context.Context, accountID string, f Filter) ([]Entry, error)
	// DailyTotal sums the amounts of same-kind entries within
	// [start-of-day, start-of-next-day) for the given day.
	DailyTotal(ctx context.Context, accountID string, kind Kind, day time.Time) (decimal.Decimal, error)
}

// DayBounds returns [start-of-day, start-of-next-day) for t in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
