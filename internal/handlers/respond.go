package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/LeeRoiii/Image-Vault/internal/apperror"
	"github.com/LeeRoiii/Image-Vault/internal/identity"
	"github.com/LeeRoiii/Image-Vault/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// writeError maps err onto a status code and a message safe to show clients.
func writeError(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	status, body := errorStatus(err, fallback)
	if status >= http.StatusInternalServerError {
		logging.FromContext(ctx).Error("request error", "error", err)
	}
	respondJSON(ctx, w, status, body)
}

func errorStatus(err error, fallback string) (int, errorResponse) {
	body := errorResponse{Error: apperror.MessageOf(err, fallback)}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		body.Field = appErr.Field
	}

	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, body
	case errors.Is(err, identity.ErrInvalidCredentials):
		body.Error = "Invalid login credentials"
		return http.StatusUnauthorized, body
	case errors.Is(err, identity.ErrNoSession), errors.Is(err, apperror.ErrUnauthorized):
		if body.Error == fallback {
			body.Error = "No active session"
		}
		return http.StatusUnauthorized, body
	case errors.Is(err, identity.ErrInvalidRecoveryToken):
		body.Error = "This reset link is invalid or has expired."
		return http.StatusUnauthorized, body
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, identity.ErrEmailTaken):
		body.Error = "account already exists"
		return http.StatusConflict, body
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, body
	case errors.Is(err, apperror.ErrQuota):
		return http.StatusForbidden, body
	case errors.Is(err, identity.ErrServiceUnavailable), errors.Is(err, apperror.ErrUnavailable):
		body.Error = "Network error. Please try again."
		return http.StatusServiceUnavailable, body
	default:
		return http.StatusInternalServerError, body
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.Validation("", "invalid request body")
	}
	return nil
}
