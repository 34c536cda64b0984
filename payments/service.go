package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"banking-system/account"
	"banking-system/audit"
	"banking-system/transactions"
)

// --- Service ---

type Service struct {
	store    Store
	accounts account.Store
	engine   *transactions.Engine
	audit    audit.Sink
	now      func() time.Time
}

func NewService(store Store, accounts account.Store, engine *transactions.Engine, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Service{store: store, accounts: accounts, engine: engine, audit: sink, now: time.Now}
}

// WithClock overrides the service's clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) CreateRecurring(ctx context.Context, accountID, recipientName, recipientNumber string,
	amount decimal.Decimal, frequency Frequency, nextAt time.Time, endAt *time.Time, description string) (*RecurringPayment, error) {
	if recipientName == "" {
		return nil, errors.New("recipient name is required")
	}
	if !amount.IsPositive() {
		return nil, errors.New("amount must be greater than zero")
	}
	if !frequency.Valid() {
		return nil, ErrInvalidFrequency
	}
	acct, err := s.accounts.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	p := &RecurringPayment{
		AccountID:              accountID,
		RecipientName:          recipientName,
		RecipientAccountNumber: recipientNumber,
		Amount:                 amount,
		Frequency:              frequency,
		NextPaymentAt:          nextAt,
		EndAt:                  endAt,
		Description:            description,
		Active:                 true,
		CreatedAt:              s.now(),
	}
	if err := s.store.CreateRecurring(ctx, p); err != nil {
		return nil, err
	}

	s.audit.Record(audit.Event{
		UserID:     acct.UserID,
		Action:     "RecurringPaymentCreated",
		EntityType: "RecurringPayment",
		EntityID:   p.ID,
		Details: fmt.Sprintf("Created %s recurring payment of $%s to %s",
			frequency, amount.StringFixed(2), recipientName),
	})
	return p, nil
}

// UserRecurring lists recurring payments across all of the user's accounts.
func (s *Service) UserRecurring(ctx context.Context, userID string) ([]*RecurringPayment, error) {
	accounts, err := s.accounts.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("could not load accounts: %w", err)
	}
	var out []*RecurringPayment
	for _, acct := range accounts {
		ps, err := s.store.RecurringByAccount(ctx, acct.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, ps...)
	}
	return out, nil
}

// Deactivate turns the template off without deleting its history.
func (s *Service) Deactivate(ctx context.Context, id string) (*RecurringPayment, error) {
	p, err := s.store.RecurringByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Active = false
	if err := s.store.UpdateRecurring(ctx, p); err != nil {
		return nil, err
	}
	s.recordRecurring(ctx, p, "RecurringPaymentDeactivated")
	return p, nil
}

func (s *Service) DeleteRecurring(ctx context.Context, id string) error {
	p, err := s.store.RecurringByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRecurring(ctx, id); err != nil {
		return err
	}
	s.recordRecurring(ctx, p, "RecurringPaymentDeleted")
	return nil
}

func (s *Service) Recurring(ctx context.Context, id string) (*RecurringPayment, error) {
	return s.store.RecurringByID(ctx, id)
}

func (s *Service) recordRecurring(ctx context.Context, p *RecurringPayment, action string) {
	acct, err := s.accounts.AccountByID(ctx, p.AccountID)
	if err != nil {
		return
	}
	s.audit.Record(audit.Event{
		UserID:     acct.UserID,
		Action:     action,
		EntityType: "RecurringPayment",
		EntityID:   p.ID,
		Details:    fmt.Sprintf("Recurring payment to %s", p.RecipientName),
	})
}

func (s *Service) CreateBill(ctx context.Context, accountID, payeeName, payeeNumber string,
	amount decimal.Decimal, dueAt time.Time, description, recurringID string) (*Bill, error) {
	if payeeName == "" {
		return nil, errors.New("payee name is required")
	}
	if !amount.IsPositive() {
		return nil, errors.New("amount must be greater than zero")
	}
	acct, err := s.accounts.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if recurringID != "" {
		if _, err := s.store.RecurringByID(ctx, recurringID); err != nil {
			return nil, err
		}
	}

	b := &Bill{
		AccountID:          accountID,
		PayeeName:          payeeName,
		PayeeAccountNumber: payeeNumber,
		Amount:             amount,
		DueAt:              dueAt,
		Status:             BillPending,
		Description:        description,
		RecurringPaymentID: recurringID,
		CreatedAt:          s.now(),
	}
	if err := s.store.CreateBill(ctx, b); err != nil {
		return nil, err
	}

	s.audit.Record(audit.Event{
		UserID:     acct.UserID,
		Action:     "BillPaymentCreated",
		EntityType: "BillPayment",
		EntityID:   b.ID,
		Details: fmt.Sprintf("Created bill payment to %s of $%s due %s",
			payeeName, amount.StringFixed(2), dueAt.Format("2006-01-02")),
	})
	return b, nil
}

// UserBills lists bills across all of the user's accounts.
func (s *Service) UserBills(ctx context.Context, userID string) ([]*Bill, error) {
	accounts, err := s.accounts.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("could not load accounts: %w", err)
	}
	var out []*Bill
	for _, acct := range accounts {
		bs, err := s.store.BillsByAccount(ctx, acct.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, bs...)
	}
	return out, nil
}

// OverdueBills lists the user's pending bills past their due date.
func (s *Service) OverdueBills(ctx context.Context, userID string) ([]*Bill, error) {
	bills, err := s.UserBills(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	overdue := bills[:0]
	for _, b := range bills {
		if b.Overdue(now) {
			overdue = append(overdue, b)
		}
	}
	return overdue, nil
}

// PayBill withdraws the bill amount from the account through the
// transaction engine, then marks the bill paid. The two steps form one
// logical unit: if the status update fails after the withdrawal
// committed, PayBill reports ErrReconciliation instead of silently
// retrying.
func (s *Service) PayBill(ctx context.Context, billID, accountID string) (*Bill, error) {
	bill, err := s.store.BillByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill.Status != BillPending {
		return nil, fmt.Errorf("%w: cannot pay a %s bill", ErrInvalidState, bill.Status)
	}
	acct, err := s.accounts.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.Balance.LessThan(bill.Amount) {
		return nil, fmt.Errorf("%w: to pay this bill", transactions.ErrInsufficientFunds)
	}

	desc := fmt.Sprintf("Bill payment to %s", bill.PayeeName)
	if _, err := s.engine.Withdraw(ctx, accountID, bill.Amount, desc); err != nil {
		return nil, err
	}

	now := s.now()
	bill.Status = BillPaid
	bill.PaidAt = &now
	if err := s.store.UpdateBill(ctx, bill); err != nil {
		log.Printf("payments: FATAL reconciliation needed for bill %s: withdrew $%s from account %s but bill not marked paid: %v",
			billID, bill.Amount.StringFixed(2), accountID, err)
		return nil, fmt.Errorf("%w: withdrawal committed but bill not marked paid: %v", ErrReconciliation, err)
	}

	s.audit.Record(audit.Event{
		UserID:     acct.UserID,
		Action:     "BillPaymentPaid",
		EntityType: "BillPayment",
		EntityID:   bill.ID,
		Details:    fmt.Sprintf("Paid bill to %s, $%s", bill.PayeeName, bill.Amount.StringFixed(2)),
	})
	return bill, nil
}

// CancelBill declines a pending bill.
func (s *Service) CancelBill(ctx context.Context, billID string) (*Bill, error) {
	bill, err := s.store.BillByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill.Status != BillPending {
		return nil, fmt.Errorf("%w: cannot cancel a %s bill", ErrInvalidState, bill.Status)
	}

	bill.Status = BillCancelled
	if err := s.store.UpdateBill(ctx, bill); err != nil {
		return nil, err
	}

	if acct, err := s.accounts.AccountByID(ctx, bill.AccountID); err == nil {
		s.audit.Record(audit.Event{
			UserID:     acct.UserID,
			Action:     "BillPaymentCancelled",
			EntityType: "BillPayment",
			EntityID:   bill.ID,
			Details:    fmt.Sprintf("Cancelled bill payment to %s", bill.PayeeName),
		})
	}
	return bill, nil
}

func (s *Service) DeleteBill(ctx context.Context, billID string) error {
	bill, err := s.store.BillByID(ctx, billID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBill(ctx, billID); err != nil {
		return err
	}
	if acct, err := s.accounts.AccountByID(ctx, bill.AccountID); err == nil {
		s.audit.Record(audit.Event{
			UserID:     acct.UserID,
			Action:     "BillPaymentDeleted",
			EntityType: "BillPayment",
			EntityID:   bill.ID,
			Details:    fmt.Sprintf("Deleted bill payment to %s", bill.PayeeName),
		})
	}
	return nil
}

func (s *Service) Bill(ctx context.Context, billID string) (*Bill, error) {
	return s.store.BillByID(ctx, billID)
}
