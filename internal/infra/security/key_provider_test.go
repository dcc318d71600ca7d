package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTestKey(t *testing.T, dir, name string) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	return key
}

func TestFileKeyProviderLoadsPrivateKey(t *testing.T) {
	dir := t.TempDir()
	writeTestKey(t, dir, "v1.pem")

	provider, err := NewFileKeyProvider(dir)
	if err != nil {
		t.Fatalf("NewFileKeyProvider: %v", err)
	}

	signing, err := provider.GetSigningKey()
	if err != nil {
		t.Fatalf("GetSigningKey: %v", err)
	}
	if signing == nil {
		t.Fatal("nil signing key")
	}

	public, err := provider.GetVerificationKey("v1")
	if err != nil {
		t.Fatalf("GetVerificationKey: %v", err)
	}
	if public.N.Cmp(signing.PublicKey.N) != 0 {
		t.Fatal("verification key does not match signing key")
	}
}

func TestFileKeyProviderUnknownKid(t *testing.T) {
	dir := t.TempDir()
	writeTestKey(t, dir, "v1.pem")

	provider, err := NewFileKeyProvider(dir)
	if err != nil {
		t.Fatalf("NewFileKeyProvider: %v", err)
	}

	if _, err := provider.GetVerificationKey("missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestFileKeyProviderNoPrivateKey(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewFileKeyProvider(dir); err == nil {
		t.Fatal("expected error for directory without keys")
	}
}
