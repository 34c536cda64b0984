package loans

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"banking-system/account"
	"banking-system/auth"
	"banking-system/transactions"
)

// --- Handlers ---

type Env struct {
	Engine *Engine
}

type EligibilityRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	TermMonths int             `json:"term_months"`
}

func (env *Env) EligibilityHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req EligibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	eligibility, err := env.Engine.CheckEligibility(r.Context(), userID, req.Amount, req.TermMonths)
	if err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to check eligibility")
		return
	}
	auth.JSON(w, http.StatusOK, eligibility)
}

type ApplyRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	TermMonths int             `json:"term_months"`
	AccountID  string          `json:"account_id,omitempty"`
}

func (env *Env) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	loan, err := env.Engine.Apply(r.Context(), userID, req.Amount, req.TermMonths, req.AccountID)
	if err != nil {
		respondLoanError(w, err)
		return
	}
	auth.JSON(w, http.StatusCreated, loan)
}

type DecisionRequest struct {
	LoanID string `json:"loan_id"`
}

func (env *Env) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	env.decide(w, r, env.Engine.Approve)
}

func (env *Env) RejectHandler(w http.ResponseWriter, r *http.Request) {
	env.decide(w, r, env.Engine.Reject)
}

func (env *Env) decide(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, loanID string) (*Loan, error)) {
	if _, err := auth.GetUserIDFromContext(r); err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	loan, err := op(r.Context(), req.LoanID)
	if err != nil {
		respondLoanError(w, err)
		return
	}
	auth.JSON(w, http.StatusOK, loan)
}

type PayRequest struct {
	LoanID    string          `json:"loan_id"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func (env *Env) PayHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.GetUserIDFromContext(r); err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	loan, err := env.Engine.Pay(r.Context(), req.LoanID, req.AccountID, req.Amount)
	if err != nil {
		respondLoanError(w, err)
		return
	}
	auth.JSON(w, http.StatusOK, loan)
}

func (env *Env) ListHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	userLoans, err := env.Engine.UserLoans(r.Context(), userID)
	if err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to get loans")
		return
	}
	if len(userLoans) == 0 {
		auth.JSON(w, http.StatusOK, []*Loan{})
		return
	}
	auth.JSON(w, http.StatusOK, userLoans)
}

func respondLoanError(w http.ResponseWriter, err error) {
	var notEligible *NotEligibleError
	switch {
	case errors.As(err, &notEligible):
		auth.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "loan application not eligible",
			"reasons": notEligible.Reasons,
		})
	case errors.Is(err, transactions.ErrInvalidAmount), errors.Is(err, ErrInvalidTerm):
		auth.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, account.ErrNotFound):
		auth.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidState):
		auth.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, transactions.ErrInsufficientFunds),
		errors.Is(err, transactions.ErrLimitExceeded),
		errors.Is(err, transactions.ErrBelowMinimumBalance):
		auth.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		// Includes ErrReconciliation: surfaced loudly as a server fault.
		auth.RespondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
