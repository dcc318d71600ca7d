package security

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"
)

type staticKeyProvider struct {
	key *rsa.PrivateKey
	kid string
}

func (p *staticKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.key, nil
}

func (p *staticKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != p.kid {
		return nil, ErrKeyNotFound
	}
	return &p.key.PublicKey, nil
}

func newTestCodec(t *testing.T, ttl time.Duration) *TokenCodec {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	codec, err := NewTokenCodec(&staticKeyProvider{key: key, kid: "v1"}, "v1", "auth-core-test", ttl)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return codec
}

func TestIssueAndParseAccessToken(t *testing.T) {
	codec := newTestCodec(t, 5*time.Minute)

	token, err := codec.IssueAccessToken("user-1", "session-1", false)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	claims, err := codec.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", claims.UserID)
	}
	if claims.SessionID != "session-1" {
		t.Errorf("SessionID = %q, want session-1", claims.SessionID)
	}
	if claims.Guest {
		t.Error("Guest = true, want false")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	codec := newTestCodec(t, 5*time.Minute)

	issuedAt := time.Now().UTC()
	codec.WithClock(func() time.Time { return issuedAt })

	token, err := codec.IssueAccessToken("user-1", "session-1", false)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	codec.WithClock(func() time.Time { return issuedAt.Add(6 * time.Minute) })

	if _, err := codec.ParseAccessToken(token); !errors.Is(err, ErrExpiredAccessToken) {
		t.Fatalf("expected ErrExpiredAccessToken, got %v", err)
	}
}

func TestParseAccessTokenWrongIssuerRejected(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	provider := &staticKeyProvider{key: key, kid: "v1"}

	issuer, err := NewTokenCodec(provider, "v1", "other-service", 5*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	verifier, err := NewTokenCodec(provider, "v1", "auth-core-test", 5*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	token, err := issuer.IssueAccessToken("user-1", "session-1", false)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if _, err := verifier.ParseAccessToken(token); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
}

func TestParseAccessTokenGarbage(t *testing.T) {
	codec := newTestCodec(t, 5*time.Minute)

	for _, input := range []string{"", "   ", "not.a.jwt", "a.b"} {
		if _, err := codec.ParseAccessToken(input); err == nil {
			t.Errorf("ParseAccessToken(%q) succeeded, want error", input)
		}
	}
}

func TestAccessTTLDefaultsWhenUnset(t *testing.T) {
	codec := newTestCodec(t, 0)
	if codec.AccessTTL() != 15*time.Minute {
		t.Fatalf("AccessTTL = %v, want 15m default", codec.AccessTTL())
	}
}
