package handlers

// loginRequest is the payload for POST /auth/login.
type loginRequest struct {
	Identifier  string  `json:"identifier" binding:"required"`
	Password    string  `json:"password" binding:"required"`
	DeviceLabel *string `json:"device_label,omitempty"`
}

// refreshRequest is the payload for POST /auth/refresh and /auth/logout.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// tokenPairResponse is the success body for login and refresh. The user
// object is present on login responses only.
type tokenPairResponse struct {
	AccessToken      string       `json:"access_token"`
	RefreshToken     string       `json:"refresh_token"`
	TokenType        string       `json:"token_type"`
	ExpiresIn        int64        `json:"expires_in"`
	RefreshExpiresAt string       `json:"refresh_expires_at"`
	User             *userPayload `json:"user,omitempty"`
}

// userPayload is the minimal user view returned on login.
type userPayload struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// forgotPasswordRequest is the payload for POST /auth/password/forgot.
type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// verifyCodeRequest is the payload for POST /auth/password/verify-code.
type verifyCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// verifyCodeResponse returns the single-use reset token.
type verifyCodeResponse struct {
	ResetToken string `json:"reset_token"`
	ExpiresIn  int64  `json:"expires_in"`
}

// resetPasswordRequest is the payload for POST /auth/password/reset.
type resetPasswordRequest struct {
	ResetToken  string `json:"reset_token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// messageResponse is the generic acknowledgement body.
type messageResponse struct {
	Message string `json:"message"`
}

// logoutAllResponse reports how many sessions were revoked.
type logoutAllResponse struct {
	Message         string `json:"message"`
	SessionsRevoked int    `json:"sessions_revoked"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfter        int64  `json:"retry_after,omitempty"`
	AttemptsRemaining int    `json:"attempts_remaining,omitempty"`
}
