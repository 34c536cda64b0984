package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"banking-system/audit"
)

// --- Models ---

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Active       bool   `json:"active"`
}

type SignupRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.StandardClaims
}

// --- Database ---

type DB struct {
	*sql.DB
}

func (db *DB) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	query := `INSERT INTO users (id, username, email, password_hash, first_name, last_name, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, TRUE)`
	_, err := db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName)
	if err != nil {
		return fmt.Errorf("could not create user: %w", err)
	}
	user.Active = true
	return nil
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	user := &User{}
	query := `SELECT id, username, email, password_hash, first_name, last_name, is_active FROM users WHERE username = $1`
	err := db.QueryRowContext(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("could not get user by username: %w", err)
	}
	return user, nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*User, error) {
	user := &User{}
	query := `SELECT id, username, email, password_hash, first_name, last_name, is_active FROM users WHERE id = $1`
	err := db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("could not get user by id: %w", err)
	}
	return user, nil
}

func (db *DB) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, newHash, userID)
	if err != nil {
		return fmt.Errorf("could not update password hash: %w", err)
	}
	return nil
}

// --- JWT ---

var jwtKey = []byte("dev_secret_key")

// SetSigningKey replaces the JWT signing key; the entry point calls this
// with the configured secret before serving.
func SetSigningKey(key []byte) {
	if len(key) > 0 {
		jwtKey = key
	}
}

func GenerateJWT(userID string) (string, error) {
	expirationTime := time.Now().Add(24 * time.Hour)
	claims := &Claims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expirationTime.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

func ValidateJWT(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return jwtKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// --- Handlers ---

type Env struct {
	DB    *sql.DB
	Audit audit.Sink
}

func (env *Env) sink() audit.Sink {
	if env.Audit == nil {
		return audit.Nop{}
	}
	return env.Audit
}

func (env *Env) SignupHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(signupRequestKey).(SignupRequest)
	if !ok {
		// Reached without the validation middleware.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validateSignupData(req); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	db := &DB{env.DB}
	if existing, err := db.GetUserByUsername(r.Context(), req.Username); err == nil && existing != nil {
		RespondWithError(w, http.StatusConflict, "Username already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := &User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	}
	if err := db.CreateUser(r.Context(), user); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	env.sink().Record(audit.Event{
		UserID:     user.ID,
		Action:     "Signup",
		EntityType: "User",
		EntityID:   user.ID,
		SourceAddr: r.RemoteAddr,
	})
	JSON(w, http.StatusCreated, map[string]string{"user_id": user.ID})
}

func (env *Env) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	db := &DB{env.DB}
	user, err := db.GetUserByUsername(r.Context(), req.Username)
	if err != nil || user == nil || !user.Active {
		RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		env.sink().Record(audit.Event{
			UserID:     user.ID,
			Action:     "LoginFailed",
			SourceAddr: r.RemoteAddr,
		})
		RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	tokenString, err := GenerateJWT(user.ID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	env.sink().Record(audit.Event{
		UserID:     user.ID,
		Action:     "Login",
		SourceAddr: r.RemoteAddr,
	})
	JSON(w, http.StatusOK, map[string]string{"token": tokenString})
}

func (env *Env) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r)
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validatePasswordStrength(req.NewPassword); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	db := &DB{env.DB}
	user, err := db.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to hash new password")
		return
	}
	if err := db.UpdatePasswordHash(r.Context(), userID, string(newHash)); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	env.sink().Record(audit.Event{
		UserID:     userID,
		Action:     "PasswordChange",
		EntityType: "User",
		EntityID:   userID,
		SourceAddr: r.RemoteAddr,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (env *Env) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r)
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	db := &DB{env.DB}
	user, err := db.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	JSON(w, http.StatusOK, user)
}

// --- Middleware ---

type contextKey string

const userIDKey contextKey = "userID"

func AuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			RespondWithError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			RespondWithError(w, http.StatusUnauthorized, "Invalid token format")
			return
		}

		claims, err := ValidateJWT(tokenString)
		if err != nil {
			RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetUserIDFromContext(r *http.Request) (string, error) {
	userID, ok := r.Context().Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", errors.New("unauthorized")
	}
	return userID, nil
}
