package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/auth-core/internal/infra/logger"
	"github.com/arklim/auth-core/internal/infra/security"
	"github.com/arklim/auth-core/internal/usecase"
)

// AuthHandler serves the login, refresh, and logout endpoints.
type AuthHandler struct {
	auth  *usecase.AuthService
	codec *security.TokenCodec
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, codec *security.TokenCodec) *AuthHandler {
	return &AuthHandler{auth: auth, codec: codec}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, "identifier and password are required")
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Identifier:  req.Identifier,
		Password:    req.Password,
		DeviceLabel: req.DeviceLabel,
		IP:          clientIP(c),
		UserAgent:   userAgent(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTokenPairResponse(pair))
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, "refresh_token is required")
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), usecase.RefreshInput{
		RefreshToken: req.RefreshToken,
		IP:           clientIP(c),
		UserAgent:    userAgent(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTokenPairResponse(pair))
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, "refresh_token is required")
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// LogoutEverywhere handles POST /auth/logout-all. The caller authenticates
// with a bearer access token; every session the user owns is revoked.
func (h *AuthHandler) LogoutEverywhere(c *gin.Context) {
	claims, err := h.bearerClaims(c)
	if err != nil {
		writeError(c, usecase.ErrInvalidToken)
		return
	}

	revoked, err := h.auth.LogoutEverywhere(c.Request.Context(), claims.UserID)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("logout-all failed", zap.Error(err))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, logoutAllResponse{
		Message:         "all sessions revoked",
		SessionsRevoked: revoked,
	})
}

func (h *AuthHandler) bearerClaims(c *gin.Context) (*security.AccessTokenClaims, error) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, usecase.ErrInvalidToken
	}
	return h.codec.ParseAccessToken(token)
}

func toTokenPairResponse(pair *usecase.TokenPair) tokenPairResponse {
	resp := tokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int64(pair.AccessExpiresIn.Seconds()),
		RefreshExpiresAt: pair.RefreshExpiresAt.Format(time.RFC3339),
	}
	if pair.User != nil {
		resp.User = &userPayload{
			ID:     pair.User.ID,
			Email:  pair.User.Email,
			Status: string(pair.User.Status),
		}
	}
	return resp
}

func clientIP(c *gin.Context) *string {
	ip := c.ClientIP()
	if ip == "" {
		return nil
	}
	return &ip
}

func userAgent(c *gin.Context) *string {
	ua := c.Request.UserAgent()
	if ua == "" {
		return nil
	}
	return &ua
}
