package interest

import (
	"net/http"
	"strconv"

	"banking-system/auth"
)

// --- Handlers ---

type Env struct {
	Engine *Engine
}

// ApplyHandler runs the monthly interest batch. Per-account failures are
// reported in the response body, not as a failed request.
func (env *Env) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	results, err := env.Engine.ApplyMonthlyInterest(r.Context())
	if err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to apply monthly interest")
		return
	}

	type result struct {
		AccountID string `json:"account_id"`
		Interest  string `json:"interest"`
		Error     string `json:"error,omitempty"`
	}
	out := make([]result, 0, len(results))
	for _, res := range results {
		item := result{AccountID: res.AccountID, Interest: res.Interest.StringFixed(2)}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		out = append(out, item)
	}
	auth.JSON(w, http.StatusOK, out)
}

func (env *Env) ProjectedHandler(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		auth.RespondWithError(w, http.StatusBadRequest, "Missing required query parameter: account_id")
		return
	}
	months, err := strconv.Atoi(r.URL.Query().Get("months"))
	if err != nil || months <= 0 {
		auth.RespondWithError(w, http.StatusBadRequest, "Invalid months")
		return
	}

	projected, err := env.Engine.ProjectedInterest(r.Context(), accountID, months)
	if err != nil {
		auth.RespondWithError(w, http.StatusInternalServerError, "Failed to project interest")
		return
	}
	auth.JSON(w, http.StatusOK, map[string]string{"projected_interest": projected.StringFixed(2)})
}
