// Package goals tracks savings goals. A goal's current amount is an
// earmark the user maintains by hand; it never moves money, so the
// transaction core stays out of it entirely.
package goals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"banking-system/account"
	"banking-system/audit"
)

// --- Models ---

type Goal struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	AccountID     string          `json:"account_id,omitempty"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    *time.Time      `json:"target_date,omitempty"`
	Description   string          `json:"description,omitempty"`
	Completed     bool            `json:"completed"`
	CreatedAt     time.Time       `json:"created_at"`
}

// GoalStatus is a goal with its derived progress figures.
type GoalStatus struct {
	Goal            *Goal           `json:"goal"`
	Progress        decimal.Decimal `json:"progress"`
	DaysRemaining   int             `json:"days_remaining"`
	RequiredMonthly decimal.Decimal `json:"required_monthly"`
}

// --- Errors ---

var (
	ErrNotFound     = errors.New("savings goal not found")
	ErrCompleted    = errors.New("cannot add to a completed savings goal")
	ErrInsufficient = errors.New("insufficient amount in savings goal")
)

// --- Store ---

type Store interface {
	CreateGoal(ctx context.Context, g *Goal) error
	GoalByID(ctx context.Context, id string) (*Goal, error)
	GoalsByUser(ctx context.Context, userID string) ([]*Goal, error)
	// UpdateGoal persists the current amount and completion flag.
	UpdateGoal(ctx context.Context, g *Goal) error
	DeleteGoal(ctx context.Context, id string) error
}

// --- Service ---

type Service struct {
	goals    Store
	accounts account.Store
	audit    audit.Sink
	now      func() time.Time
}

func NewService(goals Store, accounts account.Store, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Service{goals: goals, accounts: accounts, audit: sink, now: time.Now}
}

// WithClock overrides the service's clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Create(ctx context.Context, userID, accountID, name string, target decimal.Decimal, targetDate *time.Time, description string) (*Goal, error) {
	if name == "" {
		return nil, errors.New("goal name is required")
	}
	if !target.IsPositive() {
		return nil, errors.New("target amount must be greater than zero")
	}
	if accountID != "" {
		acct, err := s.accounts.AccountByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if acct.UserID != userID {
			return nil, errors.New("account does not belong to the user")
		}
	}

	g := &Goal{
		UserID:        userID,
		AccountID:     accountID,
		Name:          name,
		TargetAmount:  target,
		CurrentAmount: decimal.Zero,
		TargetDate:    targetDate,
		Description:   description,
		CreatedAt:     s.now(),
	}
	if err := s.goals.CreateGoal(ctx, g); err != nil {
		return nil, err
	}

	s.audit.Record(audit.Event{
		UserID:     userID,
		Action:     "SavingsGoalCreated",
		EntityType: "SavingsGoal",
		EntityID:   g.ID,
		Details:    fmt.Sprintf("Created savings goal %q with target $%s", name, target.StringFixed(2)),
	})
	return g, nil
}

// Add increases the goal's earmarked amount, flipping it to completed
// when the target is reached. Completed goals take no further additions.
func (s *Service) Add(ctx context.Context, goalID string, amount decimal.Decimal) (*Goal, error) {
	if !amount.IsPositive() {
		return nil, errors.New("amount must be greater than zero")
	}
	g, err := s.goals.GoalByID(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if g.Completed {
		return nil, ErrCompleted
	}

	g.CurrentAmount = g.CurrentAmount.Add(amount)
	if g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount) {
		g.Completed = true
	}
	if err := s.goals.UpdateGoal(ctx, g); err != nil {
		return nil, err
	}

	s.audit.Record(audit.Event{
		UserID:     g.UserID,
		Action:     "SavingsGoalUpdated",
		EntityType: "SavingsGoal",
		EntityID:   g.ID,
		Details:    fmt.Sprintf("Added $%s to goal %q", amount.StringFixed(2), g.Name),
	})
	return g, nil
}

// Withdraw reduces the earmarked amount and clears the completion flag.
func (s *Service) Withdraw(ctx context.Context, goalID string, amount decimal.Decimal) (*Goal, error) {
	if !amount.IsPositive() {
		return nil, errors.New("amount must be greater than zero")
	}
	g, err := s.goals.GoalByID(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if g.CurrentAmount.LessThan(amount) {
		return nil, ErrInsufficient
	}

	g.CurrentAmount = g.CurrentAmount.Sub(amount)
	g.Completed = false
	if err := s.goals.UpdateGoal(ctx, g); err != nil {
		return nil, err
	}

	s.audit.Record(audit.Event{
		UserID:     g.UserID,
		Action:     "SavingsGoalUpdated",
		EntityType: "SavingsGoal",
		EntityID:   g.ID,
		Details:    fmt.Sprintf("Withdrew $%s from goal %q", amount.StringFixed(2), g.Name),
	})
	return g, nil
}

func (s *Service) Delete(ctx context.Context, goalID string) error {
	g, err := s.goals.GoalByID(ctx, goalID)
	if err != nil {
		return err
	}
	if err := s.goals.DeleteGoal(ctx, goalID); err != nil {
		return err
	}
	s.audit.Record(audit.Event{
		UserID:     g.UserID,
		Action:     "SavingsGoalDeleted",
		EntityType: "SavingsGoal",
		EntityID:   g.ID,
		Details:    fmt.Sprintf("Deleted savings goal %q", g.Name),
	})
	return nil
}

func (s *Service) Goal(ctx context.Context, goalID string) (*Goal, error) {
	return s.goals.GoalByID(ctx, goalID)
}

func (s *Service) UserGoals(ctx context.Context, userID string) ([]*Goal, error) {
	return s.goals.GoalsByUser(ctx, userID)
}

// Status derives the goal's progress figures against the service clock.
func (s *Service) Status(g *Goal) GoalStatus {
	return GoalStatus{
		Goal:            g,
		Progress:        Progress(g),
		DaysRemaining:   s.DaysRemaining(g),
		RequiredMonthly: s.RequiredMonthlySavings(g),
	}
}

// Progress is the percentage of the target reached, capped at 100.
func Progress(g *Goal) decimal.Decimal {
	if g == nil || !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	pct := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Round(2)
	return decimal.Min(decimal.NewFromInt(100), pct)
}

// DaysRemaining counts whole days until the target date, clamped at
// zero; -1 means the goal has no target date.
func (s *Service) DaysRemaining(g *Goal) int {
	if g == nil || g.TargetDate == nil {
		return -1
	}
	days := int(g.TargetDate.Sub(s.now()).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// RequiredMonthlySavings is the remaining amount spread over the months
// left, counting a month as 30 days.
func (s *Service) RequiredMonthlySavings(g *Goal) decimal.Decimal {
	if g == nil || g.TargetDate == nil {
		return decimal.Zero
	}
	days := s.DaysRemaining(g)
	if days <= 0 {
		return decimal.Zero
	}
	remaining := g.TargetAmount.Sub(g.CurrentAmount)
	if !remaining.IsPositive() {
		return decimal.Zero
	}
	months := decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(30))
	return remaining.Div(months).Round(2)
}
