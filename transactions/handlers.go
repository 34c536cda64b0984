package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"banking-system/account"
	"banking-system/auth"
	"banking-system/ledger"
)

// --- Handlers ---

type Env struct {
	Engine   *Engine
	Accounts account.Store
}

type MoveRequest struct {
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type TransferRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

func (env *Env) DepositHandler(w http.ResponseWriter, r *http.Request) {
	env.move(w, r, env.Engine.Deposit)
}

func (env *Env) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	env.move(w, r, env.Engine.Withdraw)
}

func (env *Env) move(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*ledger.Entry, error)) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !env.owns(w, r, userID, req.AccountID) {
		return
	}

	entry, err := op(r.Context(), req.AccountID, req.Amount, req.Description)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	auth.JSON(w, http.StatusOK, entry)
}

func (env *Env) TransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !env.owns(w, r, userID, req.FromAccountID) {
		return
	}

	entry, err := env.Engine.Transfer(r.Context(), req.FromAccountID, req.ToAccountID, req.Amount, req.Description)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	auth.JSON(w, http.StatusOK, entry)
}

func (env *Env) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		auth.RespondWithError(w, http.StatusBadRequest, "Missing required query parameter: account_id")
		return
	}
	if !env.owns(w, r, userID, accountID) {
		return
	}

	var f ledger.Filter
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			auth.RespondWithError(w, http.StatusBadRequest, "Invalid start timestamp")
			return
		}
		f.Start = &t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			auth.RespondWithError(w, http.StatusBadRequest, "Invalid end timestamp")
			return
		}
		f.End = &t
	}
	f.Kind = ledger.Kind(r.URL.Query().Get("kind"))

	entries, err := env.Engine.History(r.Context(), accountID, f)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if len(entries) == 0 {
		auth.JSON(w, http.StatusOK, []ledger.Entry{})
		return
	}
	auth.JSON(w, http.StatusOK, entries)
}

// owns verifies the account belongs to the authenticated user.
func (env *Env) owns(w http.ResponseWriter, r *http.Request, userID, accountID string) bool {
	acct, err := env.Accounts.AccountByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			auth.RespondWithError(w, http.StatusNotFound, "Account not found")
			return false
		}
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to look up account")
		return false
	}
	if acct.UserID != userID {
		auth.RespondWithError(w, http.StatusUnauthorized, "Account does not belong to the user")
		return false
	}
	return true
}

// respondDomainError maps the error taxonomy onto HTTP status codes; the
// error text travels as-is for the caller to surface.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		auth.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSameAccount):
		auth.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrNotFound):
		auth.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAccountInactive):
		auth.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrLimitExceeded),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrBelowMinimumBalance):
		auth.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		auth.RespondWithError(w, http.StatusInternalServerError, "Internal error")
	}
}
