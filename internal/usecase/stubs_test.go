package usecase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/auth-core/internal/core/domain"
	"github.com/arklim/auth-core/internal/core/port"
	"github.com/arklim/auth-core/internal/infra/security"
	"github.com/arklim/auth-core/internal/infra/telemetry"
	"github.com/arklim/auth-core/internal/repository"
)

// ---- user repository stub ----

type stubUserRepo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	attempts []domain.LoginAttempt

	passwordUpdates map[string]string
}

func newStubUserRepo(users ...*domain.User) *stubUserRepo {
	repo := &stubUserRepo{
		users:           make(map[string]*domain.User),
		passwordUpdates: make(map[string]string),
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepo) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, identifier) || (user.Phone != nil && *user.Phone == identifier) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepo) UpdatePassword(_ context.Context, id string, passwordHash string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	r.passwordUpdates[id] = passwordHash
	return nil
}

func (r *stubUserRepo) RecordLogin(_ context.Context, attempt domain.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *stubUserRepo) passwordUpdated(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.passwordUpdates[id]
	return ok
}

// ---- session repository stub ----

type stubSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	events   []domain.SessionEvent
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (r *stubSessionRepo) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *stubSessionRepo) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[sessionID]; ok {
		copied := *session
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubSessionRepo) RevokeIfActive(_ context.Context, sessionID string, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok || session.RevokedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	session.RevokedAt = &now
	session.RevokeReason = &reason
	return true, nil
}

func (r *stubSessionRepo) RevokeFamily(_ context.Context, familyID string, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	now := time.Now().UTC()
	for _, session := range r.sessions {
		if session.FamilyID == familyID && session.RevokedAt == nil {
			session.RevokedAt = &now
			session.RevokeReason = &reason
			count++
		}
	}
	return count, nil
}

func (r *stubSessionRepo) RevokeAllForUser(_ context.Context, userID string, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	now := time.Now().UTC()
	for _, session := range r.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &now
			session.RevokeReason = &reason
			count++
		}
	}
	return count, nil
}

func (r *stubSessionRepo) StoreEvent(_ context.Context, event domain.SessionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *stubSessionRepo) activeCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	now := time.Now().UTC()
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsActive(now) {
			count++
		}
	}
	return count
}

// ---- lockout store stub ----

type stubLockout struct {
	mu       sync.Mutex
	counts   map[string]int
	locked   map[string]time.Time
	failErr  error
	statuses int
}

func newStubLockout() *stubLockout {
	return &stubLockout{
		counts: make(map[string]int),
		locked: make(map[string]time.Time),
	}
}

func (s *stubLockout) RecordFailure(_ context.Context, userID string, threshold int, lockFor time.Duration) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, nil, s.failErr
	}
	s.counts[userID]++
	if s.counts[userID] >= threshold {
		until := time.Now().UTC().Add(lockFor)
		s.locked[userID] = until
		return s.counts[userID], &until, nil
	}
	return s.counts[userID], nil, nil
}

func (s *stubLockout) RecordSuccess(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, userID)
	delete(s.locked, userID)
	return nil
}

func (s *stubLockout) Status(_ context.Context, userID string) (port.LockoutStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses++
	until, ok := s.locked[userID]
	if !ok || until.Before(time.Now().UTC()) {
		return port.LockoutStatus{}, nil
	}
	return port.LockoutStatus{Locked: true, LockedUntil: until, Remaining: time.Until(until)}, nil
}

// ---- throttle stub ----

type stubThrottle struct {
	mu     sync.Mutex
	counts map[string]int
}

func newStubThrottle() *stubThrottle {
	return &stubThrottle{counts: make(map[string]int)}
}

func (s *stubThrottle) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	if s.counts[key] > limit {
		return false, window, nil
	}
	return true, 0, nil
}

// ---- code sender stub ----

type stubSender struct {
	mu    sync.Mutex
	codes []string
	sent  chan struct{}
}

func newStubSender() *stubSender {
	return &stubSender{sent: make(chan struct{}, 16)}
}

func (s *stubSender) SendResetCode(_ context.Context, _ string, code string, _ time.Time) error {
	s.mu.Lock()
	s.codes = append(s.codes, code)
	s.mu.Unlock()
	s.sent <- struct{}{}
	return nil
}

func (s *stubSender) waitForCode(t *testing.T) string {
	t.Helper()
	select {
	case <-s.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("reset code was never delivered")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[len(s.codes)-1]
}

// ---- event publisher recorder ----

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) record(eventType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
}

func (p *recordingPublisher) has(eventType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.types {
		if t == eventType {
			return true
		}
	}
	return false
}

func (p *recordingPublisher) PublishLoginSucceeded(context.Context, domain.LoginSucceededEvent) error {
	p.record("login_succeeded")
	return nil
}

func (p *recordingPublisher) PublishAccountLocked(context.Context, domain.AccountLockedEvent) error {
	p.record("account_locked")
	return nil
}

func (p *recordingPublisher) PublishTokenReuseDetected(context.Context, domain.TokenReuseDetectedEvent) error {
	p.record("token_reuse_detected")
	return nil
}

func (p *recordingPublisher) PublishSessionRevoked(context.Context, domain.SessionRevokedEvent) error {
	p.record("session_revoked")
	return nil
}

func (p *recordingPublisher) PublishPasswordResetRequested(context.Context, domain.PasswordResetRequestedEvent) error {
	p.record("password_reset_requested")
	return nil
}

func (p *recordingPublisher) PublishPasswordChanged(context.Context, domain.PasswordChangedEvent) error {
	p.record("password_changed")
	return nil
}

// ---- shared fixtures ----

type testKeys struct {
	key *rsa.PrivateKey
}

func (k *testKeys) GetSigningKey() (*rsa.PrivateKey, error) { return k.key, nil }

func (k *testKeys) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != "v1" {
		return nil, security.ErrKeyNotFound
	}
	return &k.key.PublicKey, nil
}

func newTestCodec(t *testing.T) *security.TokenCodec {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	codec, err := security.NewTokenCodec(&testKeys{key: key}, "v1", "auth-core-test", 5*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return codec
}

func newTestMetrics(t *testing.T) *telemetry.SecurityMetrics {
	t.Helper()

	metrics, err := telemetry.NewSecurityMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewSecurityMetrics: %v", err)
	}
	return metrics
}

func mustHash(t *testing.T, password string) string {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

func activeUser(t *testing.T, id, email, password string) *domain.User {
	t.Helper()

	return &domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: mustHash(t, password),
		Status:       domain.UserStatusActive,
		RegisteredAt: time.Now().UTC().Add(-24 * time.Hour),
	}
}

func nopLogger() *zap.Logger { return zap.NewNop() }
