// Package storage provides a thread-safe in-memory implementation of the
// account, ledger, loan, budget, savings goal and payment stores. It
// backs the test suites and a
// database-free development mode; a single mutex serializes every
// mutation, so per-account histories are linearizable by construction.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"banking-system/account"
	"banking-system/budgets"
	"banking-system/goals"
	"banking-system/ledger"
	"banking-system/loans"
	"banking-system/payments"
)

type Memory struct {
	mu        sync.Mutex
	types     map[string]*account.AccountType
	accounts  map[string]*account.Account
	entries   map[string][]ledger.Entry // account id -> append-only log
	loans     map[string]*loans.Loan
	budgets   map[string]*budgets.Budget
	goals     map[string]*goals.Goal
	recurring map[string]*payments.RecurringPayment
	bills     map[string]*payments.Bill

	// Now supplies timestamps; override in tests that care about days.
	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		types:     make(map[string]*account.AccountType),
		accounts:  make(map[string]*account.Account),
		entries:   make(map[string][]ledger.Entry),
		loans:     make(map[string]*loans.Loan),
		budgets:   make(map[string]*budgets.Budget),
		goals:     make(map[string]*goals.Goal),
		recurring: make(map[string]*payments.RecurringPayment),
		bills:     make(map[string]*payments.Bill),
		Now:       time.Now,
	}
}

// SeedAccountType registers reference data and returns it with an id.
func (m *Memory) SeedAccountType(t account.AccountType) account.AccountType {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := t
	m.types[t.ID] = &cp
	return t
}

// --- account.Store ---

func (m *Memory) CreateAccount(ctx context.Context, a *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if t, ok := m.types[a.Type.ID]; ok {
		a.Type = *t
	}
	now := m.Now()
	a.Active = true
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *Memory) AccountByID(ctx context.Context, id string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) AccountByNumber(ctx context.Context, number string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.AccountNumber == number {
			cp := *a
			return &cp, nil
		}
	}
	return nil, account.ErrNotFound
}

func (m *Memory) AccountsByUser(ctx context.Context, userID string) ([]*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*account.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) InterestBearingAccounts(ctx context.Context) ([]*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*account.Account
	for _, a := range m.accounts {
		if a.Active && a.Type.InterestBearing() {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CloseAccount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	if !a.Balance.IsZero() {
		return account.ErrNotEmpty
	}
	a.Active = false
	a.UpdatedAt = m.Now()
	return nil
}

func (m *Memory) AccountTypes(ctx context.Context) ([]*account.AccountType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*account.AccountType
	for _, t := range m.types {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeName < out[j].TypeName })
	return out, nil
}

func (m *Memory) AccountTypeByName(ctx context.Context, name string) (*account.AccountType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.types {
		if t.TypeName == name {
			cp := *t
			return &cp, nil
		}
	}
	return nil, account.ErrTypeNotFound
}

// --- ledger.Store ---

func (m *Memory) Apply(ctx context.Context, muts ...ledger.Mutation) ([]ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the whole batch before touching anything so a failure
	// leaves no partial state, mirroring the SQL store's transaction.
	balances := make(map[string]decimal.Decimal, len(muts))
	for _, mut := range muts {
		a, ok := m.accounts[mut.AccountID]
		if !ok {
			return nil, ledger.ErrAccountNotFound
		}
		if _, seen := balances[mut.AccountID]; !seen {
			balances[mut.AccountID] = a.Balance
		}
		next := balances[mut.AccountID]
		if mut.Kind.Sign() > 0 {
			next = next.Add(mut.Amount)
		} else {
			next = next.Sub(mut.Amount)
		}
		if next.LessThan(mut.Floor) {
			return nil, ledger.ErrBelowFloor
		}
		balances[mut.AccountID] = next
	}

	now := m.Now()
	entries := make([]ledger.Entry, 0, len(muts))
	running := make(map[string]decimal.Decimal, len(muts))
	for _, mut := range muts {
		a := m.accounts[mut.AccountID]
		if _, seen := running[mut.AccountID]; !seen {
			running[mut.AccountID] = a.Balance
		}
		next := running[mut.AccountID]
		if mut.Kind.Sign() > 0 {
			next = next.Add(mut.Amount)
		} else {
			next = next.Sub(mut.Amount)
		}
		running[mut.AccountID] = next

		a.Balance = next
		a.UpdatedAt = now
		e := ledger.Entry{
			ID:               uuid.NewString(),
			AccountID:        mut.AccountID,
			Kind:             mut.Kind,
			Amount:           mut.Amount,
			BalanceAfter:     next,
			Description:      mut.Description,
			RelatedAccountID: mut.RelatedAccountID,
			CreatedAt:        now,
		}
		m.entries[mut.AccountID] = append(m.entries[mut.AccountID], e)
		entries = append(entries, e)
	}
	return entries, nil
}

func (m *Memory) LastEntry(ctx context.Context, accountID string) (*ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.entries[accountID]
	if len(log) == 0 {
		return nil, nil
	}
	cp := log[len(log)-1]
	return &cp, nil
}

func (m *Memory) History(ctx context.Context, accountID string, f ledger.Filter) ([]ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.entries[accountID]
	out := make([]ledger.Entry, 0, len(log))
	// Newest first, matching the SQL store.
	for i := len(log) - 1; i >= 0; i-- {
		e := log[i]
		if f.Start != nil && e.CreatedAt.Before(*f.Start) {
			continue
		}
		if f.End != nil && !e.CreatedAt.Before(*f.End) {
			continue
		}
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) DailyTotal(ctx context.Context, accountID string, kind ledger.Kind, day time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, end := ledger.DayBounds(day)
	total := decimal.Zero
	for _, e := range m.entries[accountID] {
		if e.Kind == kind && !e.CreatedAt.Before(start) && e.CreatedAt.Before(end) {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

// --- loans.Store ---

func (m *Memory) CreateLoan(ctx context.Context, l *loans.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	cp := *l
	m.loans[l.ID] = &cp
	return nil
}

func (m *Memory) LoanByID(ctx context.Context, id string) (*loans.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[id]
	if !ok {
		return nil, loans.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *Memory) LoansByUser(ctx context.Context, userID string) ([]*loans.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*loans.Loan
	for _, l := range m.loans {
		if l.UserID == userID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.After(out[j].AppliedAt) })
	return out, nil
}

func (m *Memory) UpdateLoan(ctx context.Context, l *loans.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.loans[l.ID]
	if !ok {
		return loans.ErrNotFound
	}
	stored.Status = l.Status
	stored.RemainingBalance = l.RemainingBalance
	stored.ApprovedAt = l.ApprovedAt
	stored.DueAt = l.DueAt
	return nil
}

func (m *Memory) ApplyPayment(ctx context.Context, loanID string, amount decimal.Decimal) (*loans.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[loanID]
	if !ok {
		return nil, loans.ErrNotFound
	}
	l.RemainingBalance = l.RemainingBalance.Sub(amount)
	if l.RemainingBalance.IsNegative() {
		l.RemainingBalance = decimal.Zero
	}
	if l.RemainingBalance.IsZero() {
		l.Status = loans.StatusPaid
	}
	cp := *l
	return &cp, nil
}

// --- budgets.Store ---

func (m *Memory) CreateBudget(ctx context.Context, b *budgets.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = m.Now()
	cp := *b
	m.budgets[b.ID] = &cp
	return nil
}

func (m *Memory) BudgetByID(ctx context.Context, id string) (*budgets.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok {
		return nil, budgets.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) BudgetsByUser(ctx context.Context, userID string) ([]*budgets.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*budgets.Budget
	for _, b := range m.budgets {
		if b.UserID == userID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteBudget(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.budgets[id]; !ok {
		return budgets.ErrNotFound
	}
	delete(m.budgets, id)
	return nil
}

// --- goals.Store ---

func (m *Memory) CreateGoal(ctx context.Context, g *goals.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	cp := *g
	m.goals[g.ID] = &cp
	return nil
}

func (m *Memory) GoalByID(ctx context.Context, id string) (*goals.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, goals.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *Memory) GoalsByUser(ctx context.Context, userID string) ([]*goals.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*goals.Goal
	for _, g := range m.goals {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateGoal(ctx context.Context, g *goals.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.goals[g.ID]
	if !ok {
		return goals.ErrNotFound
	}
	stored.CurrentAmount = g.CurrentAmount
	stored.Completed = g.Completed
	stored.TargetAmount = g.TargetAmount
	stored.TargetDate = g.TargetDate
	stored.Description = g.Description
	return nil
}

func (m *Memory) DeleteGoal(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.goals[id]; !ok {
		return goals.ErrNotFound
	}
	delete(m.goals, id)
	return nil
}

// --- payments.Store ---

func (m *Memory) CreateRecurring(ctx context.Context, p *payments.RecurringPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	m.recurring[p.ID] = &cp
	return nil
}

func (m *Memory) RecurringByID(ctx context.Context, id string) (*payments.RecurringPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.recurring[id]
	if !ok {
		return nil, payments.ErrRecurringNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) RecurringByAccount(ctx context.Context, accountID string) ([]*payments.RecurringPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payments.RecurringPayment
	for _, p := range m.recurring {
		if p.AccountID == accountID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateRecurring(ctx context.Context, p *payments.RecurringPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.recurring[p.ID]
	if !ok {
		return payments.ErrRecurringNotFound
	}
	stored.Active = p.Active
	stored.NextPaymentAt = p.NextPaymentAt
	stored.EndAt = p.EndAt
	stored.Amount = p.Amount
	return nil
}

func (m *Memory) DeleteRecurring(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recurring[id]; !ok {
		return payments.ErrRecurringNotFound
	}
	delete(m.recurring, id)
	return nil
}

func (m *Memory) CreateBill(ctx context.Context, b *payments.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	cp := *b
	m.bills[b.ID] = &cp
	return nil
}

func (m *Memory) BillByID(ctx context.Context, id string) (*payments.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bills[id]
	if !ok {
		return nil, payments.ErrBillNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) BillsByAccount(ctx context.Context, accountID string) ([]*payments.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payments.Bill
	for _, b := range m.bills {
		if b.AccountID == accountID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (m *Memory) UpdateBill(ctx context.Context, b *payments.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.bills[b.ID]
	if !ok {
		return payments.ErrBillNotFound
	}
	stored.Status = b.Status
	stored.PaidAt = b.PaidAt
	stored.DueAt = b.DueAt
	stored.Amount = b.Amount
	return nil
}

func (m *Memory) DeleteBill(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bills[id]; !ok {
		return payments.ErrBillNotFound
	}
	delete(m.bills, id)
	return nil
}
