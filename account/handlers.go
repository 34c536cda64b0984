package account

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"banking-system/audit"
	"banking-system/auth"
)

// --- Handlers ---

type Env struct {
	Store Store
	Audit audit.Sink
}

type CreateAccountRequest struct {
	AccountType    string          `json:"account_type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

func (env *Env) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AccountType == "" {
		req.AccountType = "Checking"
	}
	if req.InitialBalance.IsNegative() {
		auth.RespondWithError(w, http.StatusBadRequest, "Initial balance cannot be negative")
		return
	}

	accountType, err := env.Store.AccountTypeByName(r.Context(), req.AccountType)
	if err != nil {
		if errors.Is(err, ErrTypeNotFound) {
			auth.RespondWithError(w, http.StatusBadRequest, "Unknown account type")
			return
		}
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to look up account type")
		return
	}

	number, err := GenerateAccountNumber()
	if err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to generate account number")
		return
	}

	acct := &Account{
		UserID:        userID,
		AccountNumber: number,
		Type:          *accountType,
		Balance:       req.InitialBalance,
	}
	if err := env.Store.CreateAccount(r.Context(), acct); err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	env.sink().Record(audit.Event{
		UserID:     userID,
		Action:     "AccountCreated",
		EntityType: "Account",
		EntityID:   acct.ID,
		Details:    "Created " + accountType.TypeName + " account " + acct.AccountNumber,
	})
	auth.JSON(w, http.StatusCreated, acct)
}

func (env *Env) GetAccountsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	accounts, err := env.Store.AccountsByUser(r.Context(), userID)
	if err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to get accounts")
		return
	}
	if len(accounts) == 0 {
		auth.JSON(w, http.StatusOK, []*Account{})
		return
	}
	auth.JSON(w, http.StatusOK, accounts)
}

type CloseAccountRequest struct {
	AccountID string `json:"account_id"`
}

func (env *Env) CloseAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CloseAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acct, err := env.Store.AccountByID(r.Context(), req.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			auth.RespondWithError(w, http.StatusNotFound, "Account not found")
			return
		}
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to look up account")
		return
	}
	if acct.UserID != userID {
		auth.RespondWithError(w, http.StatusUnauthorized, "Account does not belong to the user")
		return
	}

	if err := env.Store.CloseAccount(r.Context(), req.AccountID); err != nil {
		if errors.Is(err, ErrNotEmpty) {
			auth.RespondWithError(w, http.StatusConflict, err.Error())
			return
		}
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to close account")
		return
	}

	env.sink().Record(audit.Event{
		UserID:     userID,
		Action:     "AccountClosed",
		EntityType: "Account",
		EntityID:   acct.ID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (env *Env) GetAccountTypesHandler(w http.ResponseWriter, r *http.Request) {
	types, err := env.Store.AccountTypes(r.Context())
	if err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to get account types")
		return
	}
	auth.JSON(w, http.StatusOK, types)
}

func (env *Env) sink() audit.Sink {
	if env.Audit == nil {
		return audit.Nop{}
	}
	return env.Audit
}
