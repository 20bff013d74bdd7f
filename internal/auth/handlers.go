package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/sofreh/backend-resto/internal/common"
)

// Handler exposes HTTP handlers for the login endpoints.
type Handler struct {
	OTP    *OTP
	Tokens *Tokens
	Users  Users
}

type otpRequestPayload struct {
	Phone string `json:"phone"`
}

type otpVerifyPayload struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type adminLoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      any       `json:"user"`
}

// OTPRequest handles POST /auth/otp/request.
func (h *Handler) OTPRequest(w http.ResponseWriter, r *http.Request) {
	var req otpRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	if err := h.OTP.Request(r.Context(), req.Phone); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"sent": true})
}

// OTPVerify handles POST /auth/otp/verify.
func (h *Handler) OTPVerify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	user, token, expiresAt, err := h.OTP.Verify(r.Context(), req.Phone, req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, sessionResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// AdminLogin handles POST /admin/auth/login with email and password.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		common.JSONError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
		return
	}
	user, err := h.Users.GetByEmail(r.Context(), email)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
		return
	}
	ok, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil || !ok || user.Role != "admin" {
		common.JSONError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
		return
	}
	token, expiresAt, err := h.Tokens.Sign(user.ID, user.Role)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to sign token", nil)
		return
	}
	common.JSON(w, http.StatusOK, sessionResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
