package goals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"banking-system/auth"
)

// --- Handlers ---

type Env struct {
	Service *Service
}

type CreateGoalRequest struct {
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	TargetDate   *time.Time      `json:"target_date,omitempty"`
	AccountID    string          `json:"account_id,omitempty"`
	Description  string          `json:"description,omitempty"`
}

func (env *Env) CreateHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	goal, err := env.Service.Create(r.Context(), userID, req.AccountID, req.Name,
		req.TargetAmount, req.TargetDate, req.Description)
	if err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	auth.JSON(w, http.StatusCreated, goal)
}

func (env *Env) ListHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	userGoals, err := env.Service.UserGoals(r.Context(), userID)
	if err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to get savings goals")
		return
	}

	statuses := make([]GoalStatus, 0, len(userGoals))
	for _, g := range userGoals {
		statuses = append(statuses, env.Service.Status(g))
	}
	auth.JSON(w, http.StatusOK, statuses)
}

type MoveGoalRequest struct {
	GoalID string          `json:"goal_id"`
	Amount decimal.Decimal `json:"amount"`
}

func (env *Env) AddHandler(w http.ResponseWriter, r *http.Request) {
	env.move(w, r, env.Service.Add)
}

func (env *Env) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	env.move(w, r, env.Service.Withdraw)
}

func (env *Env) move(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, goalID string, amount decimal.Decimal) (*Goal, error)) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req MoveGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !env.owns(w, r, userID, req.GoalID) {
		return
	}

	goal, err := op(r.Context(), req.GoalID, req.Amount)
	if err != nil {
		respondGoalError(w, err)
		return
	}
	auth.JSON(w, http.StatusOK, goal)
}

type DeleteGoalRequest struct {
	GoalID string `json:"goal_id"`
}

func (env *Env) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserIDFromContext(r)
	if err != nil {
		auth.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req DeleteGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !env.owns(w, r, userID, req.GoalID) {
		return
	}

	if err := env.Service.Delete(r.Context(), req.GoalID); err != nil {
		respondGoalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (env *Env) owns(w http.ResponseWriter, r *http.Request, userID, goalID string) bool {
	goal, err := env.Service.Goal(r.Context(), goalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			auth.RespondWithError(w, http.StatusNotFound, "Savings goal not found")
			return false
		}
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to look up savings goal")
		return false
	}
	if goal.UserID != userID {
		auth.RespondWithError(w, http.StatusUnauthorized, "Savings goal does not belong to the user")
		return false
	}
	return true
}

func respondGoalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		auth.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrCompleted):
		auth.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInsufficient):
		auth.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		auth.RespondWithError(w, http.StatusBadRequest, err.Error())
	}
}
