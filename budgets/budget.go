// Package budgets tracks per-category spending budgets. Budgets sit
// outside the transaction core: they read the ledger, never write it.
package budgets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"banking-system/account"
	"banking-system/ledger"
)

// --- Models ---

type Period string

const (
	PeriodWeekly  Period = "Weekly"
	PeriodMonthly Period = "Monthly"
	PeriodYearly  Period = "Yearly"
)

func (p Period) Valid() bool {
	return p == PeriodWeekly || p == PeriodMonthly || p == PeriodYearly
}

type Budget struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Period    Period          `json:"period"`
	StartDate time.Time       `json:"start_date"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

// BudgetStatus reports spending against a budget for the current period.
type BudgetStatus struct {
	Budget      *Budget         `json:"budget"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed decimal.Decimal `json:"percent_used"`
	OverBudget  bool            `json:"over_budget"`
}

// --- Errors ---

var (
	ErrNotFound      = errors.New("budget not found")
	ErrInvalidPeriod = errors.New("budget period must be Weekly, Monthly or Yearly")
)

// --- Store ---

type Store interface {
	CreateBudget(ctx context.Context, b *Budget) error
	BudgetByID(ctx context.Context, id string) (*Budget, error)
	BudgetsByUser(ctx context.Context, userID string) ([]*Budget, error)
	DeleteBudget(ctx context.Context, id string) error
}

// --- Service ---

type Service struct {
	budgets    Store
	accounts   account.Store
	ledger     ledger.Store
	categorize Categorizer
	now        func() time.Time
}

func NewService(budgets Store, accounts account.Store, store ledger.Store, categorize Categorizer) *Service {
	if categorize == nil {
		categorize = NewKeywordMatcher()
	}
	return &Service{budgets: budgets, accounts: accounts, ledger: store, categorize: categorize, now: time.Now}
}

// WithClock overrides the service's clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Create(ctx context.Context, userID, category string, amount decimal.Decimal, period Period) (*Budget, error) {
	if category == "" {
		return nil, errors.New("category is required")
	}
	if !amount.IsPositive() {
		return nil, errors.New("budget amount must be greater than zero")
	}
	if !period.Valid() {
		return nil, ErrInvalidPeriod
	}
	b := &Budget{
		UserID:    userID,
		Category:  category,
		Amount:    amount,
		Period:    period,
		StartDate: s.now(),
		Active:    true,
	}
	if err := s.budgets.CreateBudget(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Status sums the user's outgoing ledger entries whose description matches
// the budget's category within the current period window.
func (s *Service) Status(ctx context.Context, budgetID string) (*BudgetStatus, error) {
	budget, err := s.budgets.BudgetByID(ctx, budgetID)
	if err != nil {
		return nil, err
	}

	start, end := periodBounds(s.now(), budget.StartDate, budget.Period)
	accounts, err := s.accounts.AccountsByUser(ctx, budget.UserID)
	if err != nil {
		return nil, fmt.Errorf("could not load accounts: %w", err)
	}

	spent := decimal.Zero
	for _, acct := range accounts {
		entries, err := s.ledger.History(ctx, acct.ID, ledger.Filter{Start: &start, End: &end})
		if err != nil {
			return nil, fmt.Errorf("could not load history for account %s: %w", acct.ID, err)
		}
		for _, e := range entries {
			if e.Kind.Sign() >= 0 {
				continue
			}
			if s.categorize.Matches(e.Description, budget.Category) {
				spent = spent.Add(e.Amount)
			}
		}
	}

	status := &BudgetStatus{
		Budget:     budget,
		Spent:      spent,
		Remaining:  budget.Amount.Sub(spent),
		OverBudget: spent.GreaterThan(budget.Amount),
	}
	if budget.Amount.IsPositive() {
		status.PercentUsed = spent.Div(budget.Amount).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return status, nil
}

func (s *Service) UserBudgets(ctx context.Context, userID string) ([]*Budget, error) {
	return s.budgets.BudgetsByUser(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, budgetID string) error {
	return s.budgets.DeleteBudget(ctx, budgetID)
}

// periodBounds returns the current period window: calendar month, ISO-ish
// week starting Monday, or calendar year. Unknown periods fall back to the
// budget's own start date.
func periodBounds(now, startDate time.Time, period Period) (time.Time, time.Time) {
	switch period {
	case PeriodMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0)
	case PeriodWeekly:
		daysSinceMonday := (int(now.Weekday()) - int(time.Monday) + 7) % 7
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		start := day.AddDate(0, 0, -daysSinceMonday)
		return start, start.AddDate(0, 0, 7)
	case PeriodYearly:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(1, 0, 0)
	default:
		return startDate, now
	}
}
