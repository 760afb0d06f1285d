package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gitea.kood.tech/petrkubec/affinity/store"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserIDKey is the key type for storing user ID in context
type UserIDKey string

const userIDKey UserIDKey = "userID"

const tokenTTL = 24 * time.Hour

var jwtSecret = []byte("your_secret_key_please_change_in_production")

type registerRequest struct {
	Username   string   `json:"username" validate:"required,min=3,max=50"`
	Password   string   `json:"password" validate:"required,min=6,max=72"`
	Name       string   `json:"name" validate:"required,max=100"`
	Age        int      `json:"age" validate:"required,gte=18,lte=120"`
	Gender     string   `json:"gender" validate:"required,max=30"`
	LookingFor []string `json:"looking_for" validate:"max=10,dive,max=30"`
	Location   string   `json:"location" validate:"required,max=100"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func registerHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		req.Username = strings.TrimSpace(req.Username)
		req.Name = strings.TrimSpace(req.Name)
		req.Location = strings.TrimSpace(req.Location)
		if !validateRequest(w, &req) {
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			requestLogger(r).Error("hash password", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "hash_error")
			return
		}

		newID, err := b.CreateUser(r.Context(), store.NewUser{
			Username:     req.Username,
			PasswordHash: string(hashedPassword),
			Name:         req.Name,
			Age:          req.Age,
			Gender:       req.Gender,
			LookingFor:   req.LookingFor,
			Location:     req.Location,
		})
		if err != nil {
			writeStoreError(w, r, err, "create user")
			return
		}

		// Automatic login
		tokenString, err := issueToken(newID)
		if err != nil {
			requestLogger(r).Error("sign token", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "token_generation_error")
			return
		}

		requestLogger(r).Info("user registered", zap.Int("user_id", newID))
		writeJSON(w, http.StatusCreated, map[string]interface{}{"token": tokenString, "id": newID})
	}
}

func loginHandler(b backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}

		userID, passwordHash, err := b.Credentials(r.Context(), req.Username)
		if err != nil {
			if isNotFound(err) {
				writeError(w, http.StatusUnauthorized, "invalid_credentials")
				return
			}
			writeStoreError(w, r, err, "query credentials")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}

		tokenString, err := issueToken(userID)
		if err != nil {
			requestLogger(r).Error("sign token", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "token_generation_error")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"token": tokenString, "id": userID})
	}
}

func issueToken(userID int) (string, error) {
	expires := time.Now().Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     jwt.NewNumericDate(expires),
	})
	return token.SignedString(jwtSecret)
}

func authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserIDFromBearer(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// currentUserID is only valid behind authenticate.
func currentUserID(r *http.Request) int {
	id, _ := r.Context().Value(userIDKey).(int)
	return id
}

func getUserIDFromBearer(r *http.Request) (int, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return 0, false
	}
	return parseUserIDFromJWT(strings.TrimPrefix(auth, "Bearer "))
}

// getUserIDFromRequest also accepts ?token= for websocket clients, since
// browsers cannot set headers on the upgrade request.
func getUserIDFromRequest(r *http.Request) (int, bool) {
	if id, ok := getUserIDFromBearer(r); ok {
		return id, true
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return parseUserIDFromJWT(q)
	}
	return 0, false
}

func parseUserIDFromJWT(tokenStr string) (int, bool) {
	claims := jwt.MapClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}

	// jwt.MapClaims stores numbers as float64 by default
	fv, ok := claims["user_id"].(float64)
	if !ok || fv <= 0 {
		return 0, false
	}
	return int(fv), true
}
