package budgets

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"banking-system/auth"
)

// --- Handlers ---

type Env struct {
	Service *Service
}

type CreateBudgetRequest struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Period   Period          `json:"period"`
}

func (env *Env) CreateHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	budget, err := env.Service.Create(r.Context(), userID, req.Category, req.Amount, req.Period)
	if err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	auth.JSON(w, http.StatusCreated, budget)
}

func (env *Env) StatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	budgetID := r.URL.Query().Get("budget_id")
	if budgetID == "" {
		auth.RespondWithError(w, http.StatusBadRequest, "Missing required query parameter: budget_id")
		return
	}

	status, err := env.Service.Status(r.Context(), budgetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			auth.RespondWithError(w, http.StatusNotFound, "Budget not found")
			return
		}
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to compute budget status")
		return
	}
	if status.Budget.UserID != userID {
		auth.RespondWithError(w, http.StatusUnauthorized, "Budget does not belong to the user")
		return
	}
	auth.JSON(w, http.StatusOK, status)
}

type DeleteBudgetRequest struct {
	BudgetID string `json:"budget_id"`
}

func (env *Env) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req DeleteBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	budget, err := env.Service.budgets.BudgetByID(r.Context(), req.BudgetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			auth.RespondWithError(w, http.StatusNotFound, "Budget not found")
			return
		}
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to look up budget")
		return
	}
	if budget.UserID != userID {
		auth.RespondWithError(w, http.StatusUnauthorized, "Budget does not belong to the user")
		return
	}

	if err := env.Service.Delete(r.Context(), req.BudgetID); err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to delete budget")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (env *Env) ListHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	userBudgets, err := env.Service.UserBudgets(r.Context(), userID)
	if err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to get budgets")
		return
	}
	if len(userBudgets) == 0 {
		auth.JSON(w, http.StatusOK, []*Budget{})
		return
	}
	auth.JSON(w, http.StatusOK, userBudgets)
}
