package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/geocoder89/staffauth/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.AbortWithStatusJSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: middlewares.RequestIDFromContext(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnAuthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusForbidden, code, message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondTooLarge(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

type domainError struct {
	err     error
	status  int
	code    string
	message string
}

var domainErrors = []domainError{
	{user.ErrNotFound, http.StatusNotFound, "not_found", "User not found."},
	{user.ErrDuplicateEmail, http.StatusConflict, "email_taken", "Email is already in use."},
	{user.ErrDuplicatePhone, http.StatusConflict, "phone_taken", "Phone number is already in use."},
	{user.ErrWrongCurrentPassword, http.StatusBadRequest, "wrong_current_password", "Current password is incorrect."},
	{user.ErrSamePassword, http.StatusBadRequest, "same_password", "The new password must differ from the current password."},
	{user.ErrEmptyInput, http.StatusBadRequest, "empty_input", "At least one user id is required."},
	{user.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "Email or password is incorrect."},
	{user.ErrAccountInactive, http.StatusForbidden, "account_inactive", "Account is inactive."},
}

// respondServiceError maps domain errors to their status; anything else is
// logged and surfaces as a bare 500.
func respondServiceError(ctx *gin.Context, log *slog.Logger, op string, err error) {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			RespondError(ctx, d.status, d.code, d.message, nil)
			return
		}
	}

	log.ErrorContext(ctx.Request.Context(), op+" failed",
		"err", err,
		"request_id", middlewares.RequestIDFromContext(ctx),
	)
	RespondInternal(ctx, "Something went wrong.")
}
