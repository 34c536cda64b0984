package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"unicode"
)

// --- Context Keys ---

const signupRequestKey contextKey = "signupRequest"

// --- Validation Middleware ---

func ValidateSignupRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := validateSignupData(req); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), signupRequestKey, req)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validateSignupData(req SignupRequest) error {
	if len(req.Username) < 3 {
		return fmt.Errorf("username must be at least 3 characters long")
	}
	if err := validateEmail(req.Email); err != nil {
		return err
	}
	if err := validatePasswordStrength(req.Password); err != nil {
		return err
	}
	if req.FirstName == "" || req.LastName == "" {
		return fmt.Errorf("first and last name are required")
	}
	return nil
}

func validateEmail(email string) error {
	// A simple regex for email validation
	re := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	if !re.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

func validatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return fmt.Errorf("password must contain an uppercase letter, a lowercase letter and a digit")
	}
	return nil
}
