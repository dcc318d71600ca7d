package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-core/internal/usecase"
)

// Stable error codes exposed to clients. These are API contract: clients
// branch on Code, never on Message.
const (
	codeValidationError    = "VALIDATION_ERROR"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeAccountLocked      = "ACCOUNT_LOCKED"
	codeAccountSuspended   = "ACCOUNT_SUSPENDED"
	codePhoneNotVerified   = "PHONE_NOT_VERIFIED"
	codeInvalidToken       = "INVALID_TOKEN"
	codeTokenExpired       = "TOKEN_EXPIRED"
	codeTokenReuseDetected = "TOKEN_REUSE_DETECTED"
	codeSessionRevoked     = "SESSION_REVOKED"
	codeInvalidOrExpired   = "INVALID_OR_EXPIRED"
	codeAlreadyUsed        = "ALREADY_USED"
	codeWeakPassword       = "WEAK_PASSWORD"
	codeTooManyRequests    = "TOO_MANY_REQUESTS"
	codeInternalError      = "INTERNAL_ERROR"
)

// writeError maps a usecase error to its HTTP status and stable code.
func writeError(c *gin.Context, err error) {
	var locked *usecase.AccountLockedError
	if errors.As(err, &locked) {
		c.JSON(http.StatusForbidden, errorResponse{Error: apiError{
			Code:       codeAccountLocked,
			Message:    "account temporarily locked due to repeated failures",
			RetryAfter: int64(locked.RetryAfter.Seconds()),
		}})
		return
	}

	var invalid *usecase.InvalidCredentialsError
	if errors.As(err, &invalid) {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: apiError{
			Code:              codeInvalidCredentials,
			Message:           "invalid identifier or password",
			AttemptsRemaining: invalid.AttemptsRemaining,
		}})
		return
	}

	var weak *usecase.WeakPasswordError
	if errors.As(err, &weak) {
		message := "password does not meet policy"
		if len(weak.Reasons) > 0 {
			message = weak.Reasons[0]
		}
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: apiError{
			Code:    codeWeakPassword,
			Message: message,
		}})
		return
	}

	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		respond(c, http.StatusUnauthorized, codeInvalidCredentials, "invalid identifier or password")
	case errors.Is(err, usecase.ErrAccountSuspended):
		respond(c, http.StatusForbidden, codeAccountSuspended, "account is not allowed to authenticate")
	case errors.Is(err, usecase.ErrPhoneNotVerified):
		respond(c, http.StatusForbidden, codePhoneNotVerified, "phone number is not verified")
	case errors.Is(err, usecase.ErrTokenReuse):
		respond(c, http.StatusUnauthorized, codeTokenReuseDetected, "refresh token reuse detected; all related sessions revoked")
	case errors.Is(err, usecase.ErrTokenExpired):
		respond(c, http.StatusUnauthorized, codeTokenExpired, "token has expired")
	case errors.Is(err, usecase.ErrSessionRevoked):
		respond(c, http.StatusUnauthorized, codeSessionRevoked, "session has been revoked")
	case errors.Is(err, usecase.ErrInvalidToken):
		respond(c, http.StatusUnauthorized, codeInvalidToken, "token is invalid")
	case errors.Is(err, usecase.ErrResetAlreadyUsed):
		respond(c, http.StatusConflict, codeAlreadyUsed, "reset token has already been used")
	case errors.Is(err, usecase.ErrResetInvalid):
		respond(c, http.StatusBadRequest, codeInvalidOrExpired, "code or token is invalid or expired")
	case errors.Is(err, usecase.ErrTooManyRequests):
		respond(c, http.StatusTooManyRequests, codeTooManyRequests, "too many requests; slow down")
	default:
		respond(c, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func respond(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Error: apiError{Code: code, Message: message}})
}

func writeValidationError(c *gin.Context, message string) {
	if message == "" {
		message = "request body failed validation"
	}
	respond(c, http.StatusBadRequest, codeValidationError, message)
}
