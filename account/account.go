package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// --- Models ---

// AccountType is immutable reference data describing a class of accounts.
type AccountType struct {
	ID             string          `json:"id"`
	TypeName       string          `json:"type_name"`
	Description    string          `json:"description"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	MinimumBalance decimal.Decimal `json:"minimum_balance"`
}

// InterestBearing reports whether accounts of this type accrue interest.
func (t AccountType) InterestBearing() bool {
	return t.InterestRate.IsPositive()
}

type Account struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	AccountNumber string          `json:"account_number"`
	Type          AccountType     `json:"account_type"`
	Balance       decimal.Decimal `json:"balance"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// --- Errors ---

var (
	ErrNotFound     = errors.New("account not found")
	ErrTypeNotFound = errors.New("account type not found")
	ErrNotEmpty     = errors.New("account balance must be zero before closing")
)

// --- Store ---

// Store is the account lookup and lifecycle boundary. Balances are never
// written through this interface; every balance mutation goes through the
// ledger store's Apply.
type Store interface {
	CreateAccount(ctx context.Context, a *Account) error
	AccountByID(ctx context.Context, id string) (*Account, error)
	AccountByNumber(ctx context.Context, number string) (*Account, error)
	AccountsByUser(ctx context.Context, userID string) ([]*Account, error)
	// InterestBearingAccounts returns every active account whose type has a
	// positive interest rate.
	InterestBearingAccounts(ctx context.Context) ([]*Account, error)
	// CloseAccount flips the active flag off. The balance must be exactly
	// zero; ErrNotEmpty otherwise.
	CloseAccount(ctx context.Context, id string) error
	AccountTypes(ctx context.Context) ([]*AccountType, error)
	AccountTypeByName(ctx context.Context, name string) (*AccountType, error)
}

// GenerateAccountNumber returns a random 10-digit account number.
func GenerateAccountNumber() (string, error) {
	const digits = "0123456789"
	var b [10]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("could not generate random bytes: %w", err)
	}
	for i := range b {
		b[i] = digits[int(b[i])%len(digits)]
	}
	return string(b[:]), nil
}
