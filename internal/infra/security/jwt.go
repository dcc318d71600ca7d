package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidAccessToken indicates the token is malformed or its signature failed.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
)

// AccessTokenClaims carries the session context alongside registered claims.
type AccessTokenClaims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid,omitempty"`
	Guest     bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec issues and parses signed, stateless access tokens. The TTL is an
// explicit configuration value; environment profiles differ only in the
// default they feed here.
type TokenCodec struct {
	keys      KeyProvider
	kid       string
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenCodec constructs a TokenCodec.
func NewTokenCodec(keys KeyProvider, kid, issuer string, accessTTL time.Duration) (*TokenCodec, error) {
	if keys == nil {
		return nil, fmt.Errorf("key provider is required")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}

	return &TokenCodec{
		keys:      keys,
		kid:       kid,
		issuer:    issuer,
		accessTTL: accessTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the codec clock for deterministic tests.
func (c *TokenCodec) WithClock(clock func() time.Time) {
	if clock != nil {
		c.now = clock
	}
}

// AccessTTL exposes the configured token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration {
	return c.accessTTL
}

// IssueAccessToken signs a stateless access token bound to the user and session.
func (c *TokenCodec) IssueAccessToken(userID, sessionID string, guest bool) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	now := c.now()
	claims := AccessTokenClaims{
		UserID:    userID,
		SessionID: sessionID,
		Guest:     guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = c.kid

	signingKey, err := c.keys.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("get signing key: %w", err)
	}

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseAccessToken validates a token and returns its claims.
func (c *TokenCodec) ParseAccessToken(token string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("access token is required")
	}

	claims := &AccessTokenClaims{}
	opts := []jwt.ParserOption{jwt.WithTimeFunc(c.now)}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer), jwt.WithAudience(c.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		kid, _ := t.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, fmt.Errorf("kid header not found")
		}

		return c.keys.GetVerificationKey(kid)
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if parsed == nil || !parsed.Valid || strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}
