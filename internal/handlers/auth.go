package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/LeeRoiii/Image-Vault/internal/apperror"
	"github.com/LeeRoiii/Image-Vault/internal/identity"
	"github.com/LeeRoiii/Image-Vault/internal/logging"
	"github.com/LeeRoiii/Image-Vault/internal/models"
)

// AuthHandler implements user authentication endpoints.
type AuthHandler struct {
	Identity         identity.Provider
	ResetRedirectURL string
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type recoverRequest struct {
	Token string `json:"token"`
}

type updateUserRequest struct {
	Password string `json:"password"`
}

type authResponse struct {
	User   models.User          `json:"user"`
	Tokens models.SessionTokens `json:"tokens"`
}

// Login handles POST /api/v1/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err, "invalid request body")
		return
	}

	req.Email = identity.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(ctx, w, apperror.Validation("", "email and password are required"), "")
		return
	}

	session, err := h.Identity.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		logger.Warn("login failed", "email", req.Email, "error", err)
		writeError(ctx, w, err, "failed to create session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{User: session.User, Tokens: session.Tokens})
}

// SignUp handles POST /api/v1/auth/signup requests. The account is created
// but no session is issued; the client signs in afterwards.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err, "invalid request body")
		return
	}

	confirm := req.ConfirmPassword
	if confirm == "" {
		confirm = req.Password
	}
	if err := identity.ValidateSignUp(req.Email, req.Password, confirm); err != nil {
		writeError(ctx, w, err, "invalid sign-up details")
		return
	}

	user, err := h.Identity.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		writeError(ctx, w, err, "failed to create account")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{"user": user})
}

// Refresh exchanges a refresh token for a new token pair.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err, "invalid request body")
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		writeError(ctx, w, apperror.Validation("refreshToken", "refresh token is required"), "")
		return
	}

	session, err := h.Identity.GetSession(ctx, models.SessionTokens{RefreshToken: req.RefreshToken})
	if err != nil {
		writeError(ctx, w, err, "unable to refresh session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{User: session.User, Tokens: session.Tokens})
}

// Logout revokes the presented refresh token. Unknown tokens are accepted
// so the call is idempotent.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(ctx, w, err, "invalid request body")
			return
		}
	}

	var userID string
	if token := bearerToken(r); token != "" {
		if user, err := h.Identity.GetUser(ctx, token); err == nil {
			userID = user.ID
		}
	}

	if err := h.Identity.SignOut(ctx, userID, strings.TrimSpace(req.RefreshToken)); err != nil {
		writeError(ctx, w, err, "failed to sign out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset handles POST /api/v1/auth/password-reset requests.
func (h AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err, "invalid request body")
		return
	}

	req.Email = identity.NormalizeEmail(req.Email)
	if req.Email == "" {
		writeError(ctx, w, apperror.Validation("email", "email is required"), "")
		return
	}

	if err := h.Identity.ResetPasswordForEmail(ctx, req.Email, h.ResetRedirectURL); err != nil {
		logger.Error("password reset request failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong. Please try again later."})
		return
	}

	respondJSON(ctx, w, http.StatusAccepted, map[string]string{
		"status": "If the account exists, a reset link has been sent.",
	})
}

// Recover exchanges a recovery token from a reset email for a session.
func (h AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req recoverRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err, "invalid request body")
		return
	}

	session, err := h.Identity.ExchangeRecoveryToken(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		writeError(ctx, w, err, "unable to recover session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{User: session.User, Tokens: session.Tokens})
}

// UpdateUser handles PUT /api/v1/auth/user. Changing the password signs out
// every session of the user.
func (h AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := userFromContext(ctx)
	if !ok {
		writeError(ctx, w, identity.ErrNoSession, "")
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err, "invalid request body")
		return
	}

	updated, err := h.Identity.UpdateUser(ctx, user.ID, identity.UserUpdate{Password: req.Password})
	if err != nil {
		if !errors.Is(err, apperror.ErrValidation) {
			logging.FromContext(ctx).Warn("update user failed", "userId", user.ID, "error", err)
		}
		writeError(ctx, w, err, "Failed to reset password. Please try again.")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": updated})
}
