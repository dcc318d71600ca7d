package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-core/internal/usecase"
)

// resetAcceptedMessage is returned for every forgot-password request so the
// response cannot reveal whether the email belongs to an account.
const resetAcceptedMessage = "if the email is registered, a reset code has been sent"

// PasswordHandler serves the two-phase password reset endpoints.
type PasswordHandler struct {
	resets   *usecase.PasswordResetService
	tokenTTL int64
}

// NewPasswordHandler constructs a PasswordHandler. tokenTTLSeconds is echoed
// in the verify-code response so clients know how long the token lives.
func NewPasswordHandler(resets *usecase.PasswordResetService, tokenTTLSeconds int64) *PasswordHandler {
	return &PasswordHandler{resets: resets, tokenTTL: tokenTTLSeconds}
}

// Forgot handles POST /auth/password/forgot.
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, "a valid email is required")
		return
	}

	if err := h.resets.RequestCode(c.Request.Context(), req.Email, clientIP(c)); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, messageResponse{Message: resetAcceptedMessage})
}

// VerifyCode handles POST /auth/password/verify-code.
func (h *PasswordHandler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, "email and code are required")
		return
	}

	token, err := h.resets.VerifyCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifyCodeResponse{
		ResetToken: token,
		ExpiresIn:  h.tokenTTL,
	})
}

// Reset handles POST /auth/password/reset.
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, "reset_token and new_password are required")
		return
	}

	if err := h.resets.ResetPassword(c.Request.Context(), req.ResetToken, req.NewPassword); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "password updated; all sessions revoked"})
}
