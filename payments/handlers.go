package payments

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"banking-system/auth"
	"banking-system/transactions"
)

// --- Handlers ---

type Env struct {
	Service *Service
}

type CreateRecurringRequest struct {
	AccountID              string          `json:"account_id"`
	RecipientName          string          `json:"recipient_name"`
	RecipientAccountNumber string          `json:"recipient_account_number,omitempty"`
	Amount                 decimal.Decimal `json:"amount"`
	Frequency              string          `json:"frequency"`
	NextPaymentAt          time.Time       `json:"next_payment_at"`
	EndAt                  *time.Time      `json:"end_at,omitempty"`
	Description            string          `json:"description,omitempty"`
}

func (env *Env) CreateRecurringHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !env.ownsAccount(w, r, userID, req.AccountID) {
		return
	}

	frequency, err := ParseFrequency(req.Frequency)
	if err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := env.Service.CreateRecurring(r.Context(), req.AccountID, req.RecipientName,
		req.RecipientAccountNumber, req.Amount, frequency, req.NextPaymentAt, req.EndAt, req.Description)
	if err != nil {
		respondPaymentError(w, err)
		return
	}
	auth.JSON(w, http.StatusCreated, payment)
}

func (env *Env) ListRecurringHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	payments, err := env.Service.UserRecurring(r.Context(), userID)
	if err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to get recurring payments")
		return
	}
	auth.JSON(w, http.StatusOK, payments)
}

type RecurringRequest struct {
	RecurringPaymentID string `json:"recurring_payment_id"`
}

func (env *Env) DeactivateRecurringHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req RecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !env.ownsRecurring(w, r, userID, req.RecurringPaymentID) {
		return
	}

	payment, err := env.Service.Deactivate(r.Context(), req.RecurringPaymentID)
	if err != nil {
		respondPaymentError(w, err)
		return
	}
	auth.JSON(w, http.StatusOK, payment)
}

func (env *Env) DeleteRecurringHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req RecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !env.ownsRecurring(w, r, userID, req.RecurringPaymentID) {
		return
	}

	if err := env.Service.DeleteRecurring(r.Context(), req.RecurringPaymentID); err != nil {
		respondPaymentError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CreateBillRequest struct {
	AccountID          string          `json:"account_id"`
	PayeeName          string          `json:"payee_name"`
	PayeeAccountNumber string          `json:"payee_account_number,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	DueAt              time.Time       `json:"due_at"`
	Description        string          `json:"description,omitempty"`
	RecurringPaymentID string          `json:"recurring_payment_id,omitempty"`
}

func (env *Env) CreateBillHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !env.ownsAccount(w, r, userID, req.AccountID) {
		return
	}

	bill, err := env.Service.CreateBill(r.Context(), req.AccountID, req.PayeeName,
		req.PayeeAccountNumber, req.Amount, req.DueAt, req.Description, req.RecurringPaymentID)
	if err != nil {
		respondPaymentError(w, err)
		return
	}
	auth.JSON(w, http.StatusCreated, bill)
}

func (env *Env) ListBillsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	bills, err := env.Service.UserBills(r.Context(), userID)
	if err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to get bill payments")
		return
	}
	auth.JSON(w, http.StatusOK, bills)
}

func (env *Env) OverdueBillsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	bills, err := env.Service.OverdueBills(r.Context(), userID)
	if err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to get overdue bills")
		return
	}
	auth.JSON(w, http.StatusOK, bills)
}

type PayBillRequest struct {
	BillID    string `json:"bill_id"`
	AccountID string `json:"account_id"`
}

func (env *Env) PayBillHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req PayBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !env.ownsBill(w, r, userID, req.BillID) || !env.ownsAccount(w, r, userID, req.AccountID) {
		return
	}

	bill, err := env.Service.PayBill(r.Context(), req.BillID, req.AccountID)
	if err != nil {
		respondPaymentError(w, err)
		return
	}
	auth.JSON(w, http.StatusOK, bill)
}

type BillRequest struct {
	BillID string `json:"bill_id"`
}

func (env *Env) CancelBillHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req BillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !env.ownsBill(w, r, userID, req.BillID) {
		return
	}

	bill, err := env.Service.CancelBill(r.Context(), req.BillID)
	if err != nil {
		respondPaymentError(w, err)
		return
	}
	auth.JSON(w, http.StatusOK, bill)
}

func (env *Env) DeleteBillHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req BillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !env.ownsBill(w, r, userID, req.BillID) {
		return
	}

	if err := env.Service.DeleteBill(r.Context(), req.BillID); err != nil {
		respondPaymentError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (env *Env) ownsAccount(w http.ResponseWriter, r *http.Request, userID, accountID string) bool {
	acct, err := env.Service.accounts.AccountByID(r.Context(), accountID)
	if err != nil {
		auth.RespondWithError(w, http.StatusNotFound, "Account not found")
		return false
	}
	if acct.UserID != userID {
		auth.RespondWithError(w, http.StatusUnauthorized, "Account does not belong to the user")
		return false
	}
	return true
}

func (env *Env) ownsRecurring(w http.ResponseWriter, r *http.Request, userID, id string) bool {
	payment, err := env.Service.Recurring(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRecurringNotFound) {
			auth.RespondWithError(w, http.StatusNotFound, "Recurring payment not found")
			return false
		}
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to look up recurring payment")
		return false
	}
	return env.ownsAccount(w, r, userID, payment.AccountID)
}

func (env *Env) ownsBill(w http.ResponseWriter, r *http.Request, userID, billID string) bool {
	bill, err := env.Service.Bill(r.Context(), billID)
	if err != nil {
		if errors.Is(err, ErrBillNotFound) {
			auth.RespondWithError(w, http.StatusNotFound, "Bill payment not found")
			return false
		}
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to look up bill payment")
		return false
	}
	return env.ownsAccount(w, r, userID, bill.AccountID)
}

func respondPaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRecurringNotFound), errors.Is(err, ErrBillNotFound):
		auth.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidState):
		auth.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, transactions.ErrInsufficientFunds):
		auth.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrReconciliation):
		auth.RespondWithError(w, http.StatusInternalServerError, err.Error())
	default:
		auth.RespondWithError(w, http.StatusBadRequest, err.Error())
	}
}
